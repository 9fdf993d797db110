package pop3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// statCommand implements the STAT command (RFC 1939).
// Returns the number of messages and total size in octets.
type statCommand struct{}

func (s *statCommand) Name() string {
	return "STAT"
}

func (s *statCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return stateError(StateTransaction), nil
	}

	view := sess.View()
	return Response{OK: true, Message: fmt.Sprintf("%d %d", view.Count(), view.TotalSize())}, nil
}

// listCommand implements the LIST command (RFC 1939).
// Without arguments, lists all messages. With an argument, lists one.
type listCommand struct{}

func (l *listCommand) Name() string {
	return "LIST"
}

func (l *listCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return stateError(StateTransaction), nil
	}

	view := sess.View()

	if len(args) == 0 {
		entries := view.ListAll()
		lines := make([]string, len(entries))
		for i, e := range entries {
			lines[i] = fmt.Sprintf("%d %d", e.Ordinal, e.Size)
		}
		return Response{
			OK:      true,
			Message: fmt.Sprintf("%d messages (%d octets)", view.Count(), view.TotalSize()),
			Lines:   lines,
		}, nil
	}

	ordinal, errResp := parseOrdinal(args[0])
	if errResp != nil {
		return *errResp, nil
	}

	entry, err := view.ListOne(ordinal)
	if err != nil {
		return messageError(err), nil
	}

	return Response{OK: true, Message: fmt.Sprintf("%d %d", entry.Ordinal, entry.Size)}, nil
}

// retrCommand implements the RETR command (RFC 1939).
// Retrieves and sends the full message content.
type retrCommand struct{}

func (r *retrCommand) Name() string {
	return "RETR"
}

func (r *retrCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return stateError(StateTransaction), nil
	}

	if len(args) < 1 {
		return Response{OK: false, Message: "RETR requires ID"}, nil
	}

	ordinal, errResp := parseOrdinal(args[0])
	if errResp != nil {
		return *errResp, nil
	}

	view := sess.View()
	entry, err := view.ListOne(ordinal)
	if err != nil {
		return messageError(err), nil
	}

	content, err := view.Retrieve(ordinal)
	if err != nil {
		conn.Logger().Error("failed to read message",
			"ordinal", ordinal,
			"error", err.Error(),
		)
		return Response{OK: false, Message: err.Error()}, nil
	}

	return Response{
		OK:      true,
		Message: fmt.Sprintf("%d octets", entry.Size),
		Lines:   splitMessageLines(string(content)),
	}, nil
}

// deleCommand implements the DELE command (RFC 1939).
// Marks a message for deletion at UPDATE.
type deleCommand struct{}

func (d *deleCommand) Name() string {
	return "DELE"
}

func (d *deleCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return stateError(StateTransaction), nil
	}

	if len(args) < 1 {
		return Response{OK: false, Message: "DELE requires ID"}, nil
	}

	ordinal, errResp := parseOrdinal(args[0])
	if errResp != nil {
		return *errResp, nil
	}

	if err := sess.View().MarkDelete(ordinal); err != nil {
		return messageError(err), nil
	}

	return Response{OK: true, Message: fmt.Sprintf("message %d deleted", ordinal)}, nil
}

// rsetCommand implements the RSET command (RFC 1939).
// Unmarks all messages marked for deletion.
type rsetCommand struct{}

func (r *rsetCommand) Name() string {
	return "RSET"
}

func (r *rsetCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return stateError(StateTransaction), nil
	}

	sess.View().UnmarkAll()

	return Response{OK: true}, nil
}

// noopCommand implements the NOOP command (RFC 1939).
type noopCommand struct{}

func (n *noopCommand) Name() string {
	return "NOOP"
}

func (n *noopCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return stateError(StateTransaction), nil
	}

	return Response{OK: true}, nil
}

// parseOrdinal parses a 1-based message number argument. On failure the
// returned Response carries the parse error for the client.
func parseOrdinal(arg string) (int, *Response) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, &Response{OK: false, Message: fmt.Sprintf("error parsing ID: %v", err)}
	}
	// Values beyond the int range wrap negative and fail the ordinal
	// range check downstream, same as any other out-of-range ID.
	return int(id), nil
}

// messageError maps snapshot lookup errors to their protocol replies.
func messageError(err error) Response {
	if errors.Is(err, ErrMessageDeleted) {
		return Response{OK: false, Message: "Message already deleted"}
	}
	return Response{OK: false, Message: "No such message"}
}

// splitMessageLines splits message content into lines for a multi-line
// response. Handles both LF and CRLF line endings.
func splitMessageLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	rawLines := strings.Split(content, "\n")

	// Remove trailing empty line from a trailing newline
	if len(rawLines) > 0 && rawLines[len(rawLines)-1] == "" {
		rawLines = rawLines[:len(rawLines)-1]
	}

	return rawLines
}

// registerTransactionCommands adds the transaction-phase commands.
func registerTransactionCommands(d *Dispatcher) {
	d.Register(&statCommand{})
	d.Register(&listCommand{})
	d.Register(&retrCommand{})
	d.Register(&deleCommand{})
	d.Register(&rsetCommand{})
	d.Register(&noopCommand{})
}
