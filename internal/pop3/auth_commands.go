package pop3

import (
	"context"
	"fmt"
	"strings"
)

// AuthProvider is the interface for credential verification.
type AuthProvider interface {
	// Login returns true iff the credentials verify. Unknown user and
	// wrong password are indistinguishable.
	Login(username, password string) (bool, error)
}

// userCommand implements the USER command (RFC 1939).
type userCommand struct{}

func (u *userCommand) Name() string {
	return "USER"
}

func (u *userCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// USER is valid before authentication; a repeated USER replaces the
	// pending name.
	if sess.State() != StateAuthorization && sess.State() != StateAuthorizationUser {
		return stateError(StateAuthorization), nil
	}

	if len(args) < 1 {
		return Response{OK: false, Message: "USER requires username"}, nil
	}

	sess.SetUser(args[0])

	return Response{OK: true, Message: "User accepted"}, nil
}

// passCommand implements the PASS command (RFC 1939). A successful PASS
// performs the three-step TRANSACTION entry: verify credentials, acquire
// the mailbox lock, snapshot the mailbox. Any step failing leaves the
// session in AuthorizationWithUser.
type passCommand struct {
	auth  AuthProvider
	store MessageStore
	locks *LockTable
}

func (p *passCommand) Name() string {
	return "PASS"
}

func (p *passCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateAuthorizationUser {
		return stateError(StateAuthorizationUser), nil
	}

	if len(args) < 1 {
		return Response{OK: false, Message: "PASS requires password"}, nil
	}

	// The password is everything after the verb; rejoin so passwords
	// containing spaces survive tokenization.
	password := strings.Join(args, " ")
	username := sess.Username()

	ok, err := p.auth.Login(username, password)
	if err != nil {
		conn.Logger().Error("credential lookup failed",
			"username", username,
			"error", err.Error(),
		)
		return Response{OK: false, Message: "Username or password are incorrect"}, nil
	}
	if !ok {
		conn.Logger().Info("authentication failed", "username", username)
		return Response{OK: false, Message: "Username or password are incorrect"}, nil
	}

	// Lock acquisition precedes the snapshot; a mailbox in use by another
	// session fails fast rather than queueing.
	lock := p.locks.TryAcquire(username)
	if lock == nil {
		conn.Logger().Info("mailbox locked by another session", "username", username)
		return Response{OK: false, Message: "Mailbox already in use"}, nil
	}

	view, err := NewMailboxView(p.store, username)
	if err != nil {
		lock.Release()
		conn.Logger().Error("failed to snapshot mailbox",
			"username", username,
			"error", err.Error(),
		)
		return Response{OK: false, Message: fmt.Sprintf("Failed to access mailbox: %v", err)}, nil
	}

	sess.EnterTransaction(lock, view)

	conn.Logger().Info("authentication successful",
		"username", username,
		"messages", view.Count(),
	)

	return Response{OK: true, Message: "Pass accepted"}, nil
}

// apopCommand accepts the APOP verb (RFC 1939) as a stub. True APOP
// digest verification needs a timestamp banner in the greeting, which
// this server does not emit.
type apopCommand struct{}

func (a *apopCommand) Name() string {
	return "APOP"
}

func (a *apopCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	return Response{OK: true}, nil
}

// quitCommand implements the QUIT command (RFC 1939). From Transaction it
// enters Update; the handler commits pending deletions after the reply is
// sent.
type quitCommand struct{}

func (q *quitCommand) Name() string {
	return "QUIT"
}

func (q *quitCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() == StateTransaction {
		sess.EnterUpdate()
	}

	return Response{OK: true, Message: "Bye!"}, nil
}

// stateError formats the reply for a command issued outside its
// admissible state.
func stateError(expected State) Response {
	return Response{OK: false, Message: fmt.Sprintf("Session not in %s state", expected)}
}

// registerAuthCommands adds the authorization-phase commands.
func registerAuthCommands(d *Dispatcher, auth AuthProvider, store MessageStore, locks *LockTable) {
	d.Register(&userCommand{})
	d.Register(&passCommand{auth: auth, store: store, locks: locks})
	d.Register(&apopCommand{})
	d.Register(&quitCommand{})
}
