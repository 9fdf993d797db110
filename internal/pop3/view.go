package pop3

import (
	"log/slog"

	"github.com/cnrmurphy/pop3d/internal/maildir"
)

// MessageStore is the storage interface the POP3 core consumes.
type MessageStore interface {
	// ListMessages enumerates a user's messages in the stable order that
	// defines this session's ordinals.
	ListMessages(username string) ([]maildir.MailEntry, error)

	// ReadMessage returns the stored bytes of one message.
	ReadMessage(path string) ([]byte, error)

	// DeleteMessage removes one message file.
	DeleteMessage(path string) error
}

// ListEntry is one row of a LIST response: a 1-based ordinal and the
// message size in octets.
type ListEntry struct {
	Ordinal int
	Size    int64
}

// MailboxView is the per-session snapshot of a user's mailbox, taken once
// at TRANSACTION entry. Ordinals are assigned at snapshot time and stay
// stable for the session regardless of concurrent store mutations; new
// arrivals are invisible until the next login. Deletion is deferred:
// marked entries stay in the snapshot but are filtered from every command
// until commit.
type MailboxView struct {
	store   MessageStore
	entries []maildir.MailEntry
	deleted map[int]bool // 1-based ordinals marked for deletion
}

// NewMailboxView snapshots the user's mailbox from the store.
func NewMailboxView(store MessageStore, username string) (*MailboxView, error) {
	entries, err := store.ListMessages(username)
	if err != nil {
		return nil, err
	}
	return &MailboxView{
		store:   store,
		entries: entries,
		deleted: make(map[int]bool),
	}, nil
}

// Count returns the number of messages not marked for deletion.
func (v *MailboxView) Count() int {
	count := 0
	for i := range v.entries {
		if !v.deleted[i+1] {
			count++
		}
	}
	return count
}

// TotalSize returns the octet total of messages not marked for deletion.
func (v *MailboxView) TotalSize() int64 {
	var total int64
	for i, e := range v.entries {
		if !v.deleted[i+1] {
			total += e.Size
		}
	}
	return total
}

// ListAll returns (ordinal, size) for every message not marked for
// deletion, in ascending ordinal order.
func (v *MailboxView) ListAll() []ListEntry {
	var list []ListEntry
	for i, e := range v.entries {
		if !v.deleted[i+1] {
			list = append(list, ListEntry{Ordinal: i + 1, Size: e.Size})
		}
	}
	return list
}

// ListOne returns the size of one message by ordinal.
// Returns ErrNoSuchMessage for an out-of-range ordinal and
// ErrMessageDeleted for one marked for deletion.
func (v *MailboxView) ListOne(ordinal int) (ListEntry, error) {
	if ordinal < 1 || ordinal > len(v.entries) {
		return ListEntry{}, ErrNoSuchMessage
	}
	if v.deleted[ordinal] {
		return ListEntry{}, ErrMessageDeleted
	}
	return ListEntry{Ordinal: ordinal, Size: v.entries[ordinal-1].Size}, nil
}

// Retrieve reads the full message bytes for one ordinal.
func (v *MailboxView) Retrieve(ordinal int) ([]byte, error) {
	if ordinal < 1 || ordinal > len(v.entries) {
		return nil, ErrNoSuchMessage
	}
	if v.deleted[ordinal] {
		return nil, ErrMessageDeleted
	}
	return v.store.ReadMessage(v.entries[ordinal-1].Path)
}

// MarkDelete marks one ordinal for deletion at UPDATE.
func (v *MailboxView) MarkDelete(ordinal int) error {
	if ordinal < 1 || ordinal > len(v.entries) {
		return ErrNoSuchMessage
	}
	if v.deleted[ordinal] {
		return ErrMessageDeleted
	}
	v.deleted[ordinal] = true
	return nil
}

// UnmarkAll clears every deletion mark (RSET).
func (v *MailboxView) UnmarkAll() {
	v.deleted = make(map[int]bool)
}

// CommitDeletes removes every marked message from the store and returns
// the number removed. Per-message failures are logged and skipped; the
// commit is best effort.
func (v *MailboxView) CommitDeletes(logger *slog.Logger) int {
	removed := 0
	for ordinal := range v.deleted {
		path := v.entries[ordinal-1].Path
		if err := v.store.DeleteMessage(path); err != nil {
			logger.Error("failed to delete message",
				"ordinal", ordinal,
				"path", path,
				"error", err.Error(),
			)
			continue
		}
		removed++
	}
	return removed
}
