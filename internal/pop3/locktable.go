package pop3

import "sync"

// LockTable grants exclusive mailbox possession to at most one live session
// per username. Acquisition is non-blocking: a second session for the same
// user is told the mailbox is busy rather than queued, so a stalled client
// cannot starve another.
type LockTable struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLockTable creates an empty LockTable.
func NewLockTable() *LockTable {
	return &LockTable{held: make(map[string]struct{})}
}

// TryAcquire attempts to take the mailbox lock for username.
// Returns a LockToken on success, or nil if another session holds it.
func (t *LockTable) TryAcquire(username string) *LockToken {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.held[username]; ok {
		return nil
	}
	t.held[username] = struct{}{}
	return &LockToken{table: t, username: username}
}

// Held reports whether the mailbox for username is currently locked.
func (t *LockTable) Held(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.held[username]
	return ok
}

func (t *LockTable) release(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, username)
}

// LockToken represents exclusive possession of one user's mailbox.
// Release returns the username to the free set; releasing twice is safe
// and the second call has no effect.
type LockToken struct {
	table    *LockTable
	username string
	once     sync.Once
}

// Username returns the username the token locks.
func (l *LockToken) Username() string {
	return l.username
}

// Release returns the mailbox to the free set. Idempotent.
func (l *LockToken) Release() {
	l.once.Do(func() {
		l.table.release(l.username)
	})
}
