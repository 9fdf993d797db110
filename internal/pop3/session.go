package pop3

// State represents the current state in the POP3 state machine.
type State int

const (
	// StateAuthorization is the initial state where authentication is required.
	StateAuthorization State = iota

	// StateAuthorizationUser is the authorization state once a USER command
	// has named a pending user.
	StateAuthorizationUser

	// StateTransaction is the state after successful authentication.
	StateTransaction

	// StateUpdate is the transient state entered by QUIT from Transaction,
	// while pending deletions are committed.
	StateUpdate
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAuthorization:
		return "Authorization"
	case StateAuthorizationUser:
		return "AuthorizationWithUser"
	case StateTransaction:
		return "Transaction"
	case StateUpdate:
		return "Update"
	default:
		return "Unknown"
	}
}

// Session represents one POP3 connection's protocol state.
//
// Invariants: the lock token is present iff the state is Transaction or
// Update; the view is present iff the state is Transaction or Update; a
// username is held from AuthorizationWithUser onward.
type Session struct {
	state    State
	username string
	lock     *LockToken
	view     *MailboxView
}

// NewSession creates a new POP3 session in the Authorization state.
func NewSession() *Session {
	return &Session{state: StateAuthorization}
}

// State returns the current POP3 state.
func (s *Session) State() State {
	return s.state
}

// Username returns the pending or authenticated username.
func (s *Session) Username() string {
	return s.username
}

// View returns the mailbox snapshot, or nil before authentication.
func (s *Session) View() *MailboxView {
	return s.view
}

// SetUser records the username from a USER command and moves to
// AuthorizationWithUser. A later USER replaces the pending name.
func (s *Session) SetUser(username string) {
	s.username = username
	s.state = StateAuthorizationUser
}

// EnterTransaction transitions to Transaction with the acquired mailbox
// lock and the snapshot taken at login.
func (s *Session) EnterTransaction(lock *LockToken, view *MailboxView) {
	s.state = StateTransaction
	s.lock = lock
	s.view = view
}

// EnterUpdate transitions to Update (called when QUIT arrives in
// Transaction). Pending deletions are committed by the handler while the
// session is in this state.
func (s *Session) EnterUpdate() {
	if s.state == StateTransaction {
		s.state = StateUpdate
	}
}

// ReleaseLock releases the mailbox lock if held. Safe to call on every
// exit path; the token itself guarantees exactly-once release.
func (s *Session) ReleaseLock() {
	if s.lock != nil {
		s.lock.Release()
	}
}

// Close releases all session-owned resources. Deletion marks are
// discarded with the view; only an explicit UPDATE commits them.
func (s *Session) Close() {
	s.ReleaseLock()
	s.view = nil
}
