package pop3

import "errors"

// Protocol errors for POP3.
var (
	// ErrNoSuchMessage is returned when a message number doesn't exist.
	ErrNoSuchMessage = errors.New("no such message")

	// ErrMessageDeleted is returned when accessing a message marked for deletion.
	ErrMessageDeleted = errors.New("message already deleted")

	// ErrMailboxNotInitialized describes a mailbox accessed before auth.
	// Nothing in this package returns it: commands issued before login are
	// answered with a state error instead.
	ErrMailboxNotInitialized = errors.New("mailbox not initialized")
)
