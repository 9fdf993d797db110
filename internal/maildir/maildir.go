// Package maildir implements message storage using a Maildir-style layout:
//
//	<root>/<user>/new/   messages not yet seen by a mail client
//	<root>/<user>/cur/   messages a client has already seen
//	<root>/<user>/tmp/   staging area for delivery agents (unused here)
//
// Each regular file is one message in wire form. The store never locks
// files itself; exclusive per-user access is the caller's responsibility.
package maildir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// MailEntry describes one stored message.
type MailEntry struct {
	// Path is the opaque storage handle used to read or delete the message.
	Path string

	// Size is the message size in octets as stored on disk.
	Size int64
}

// Store provides access to per-user maildirs beneath a single root.
type Store struct {
	root string
}

// New creates a Store rooted at the given directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// InitUserMailbox idempotently creates the maildir layout for a user.
func (s *Store) InitUserMailbox(username string) error {
	mailbox := filepath.Join(s.root, username)
	for _, sub := range []string{"cur", "new", "tmp"} {
		if err := os.MkdirAll(filepath.Join(mailbox, sub), 0700); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Join(mailbox, sub), err)
		}
	}
	return nil
}

// ListMessages enumerates all messages for a user: the new partition
// followed by the cur partition, each sorted by file name. The returned
// order is what gives POP3 ordinals their meaning, so it must not depend
// on filesystem iteration order.
func (s *Store) ListMessages(username string) ([]MailEntry, error) {
	mailbox := filepath.Join(s.root, username)

	entries, err := scanDir(filepath.Join(mailbox, "new"))
	if err != nil {
		return nil, err
	}

	cur, err := scanDir(filepath.Join(mailbox, "cur"))
	if err != nil {
		return nil, err
	}

	return append(entries, cur...), nil
}

// ReadMessage returns the stored bytes of one message.
func (s *Store) ReadMessage(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DeleteMessage removes one message file.
func (s *Store) DeleteMessage(path string) error {
	return os.Remove(path)
}

// scanDir lists the regular files in one maildir partition, sorted by name.
// A missing partition directory is treated as empty.
func scanDir(dir string) ([]MailEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	sort.Slice(dirEntries, func(i, j int) bool {
		return dirEntries[i].Name() < dirEntries[j].Name()
	})

	var entries []MailEntry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", filepath.Join(dir, de.Name()), err)
		}
		entries = append(entries, MailEntry{
			Path: filepath.Join(dir, de.Name()),
			Size: info.Size(),
		})
	}

	return entries, nil
}
