package pop3

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/cnrmurphy/pop3d/internal/logging"
	"github.com/cnrmurphy/pop3d/internal/metrics"
	"github.com/cnrmurphy/pop3d/internal/server"
)

// greeting is sent on every new connection before the first command.
const greeting = "+OK POP3 server ready\r\n"

// Handler creates a POP3 protocol handler wired to the given collaborators.
// The returned handler runs one session per connection; the lock table is
// shared across all of them.
func Handler(auth AuthProvider, store MessageStore, locks *LockTable, collector metrics.Collector) server.ConnectionHandler {
	dispatcher := NewDispatcher()
	registerAuthCommands(dispatcher, auth, store, locks)
	registerTransactionCommands(dispatcher)

	return func(ctx context.Context, conn *server.Connection) {
		handleConnection(ctx, conn, dispatcher, collector)
	}
}

// handleConnection manages a single POP3 connection from greeting to close.
// The mailbox lock, if acquired, is released on every exit path; pending
// deletions are committed only by an explicit QUIT from Transaction.
func handleConnection(ctx context.Context, conn *server.Connection, dispatcher *Dispatcher, collector metrics.Collector) {
	logger := logging.FromContext(ctx)

	collector.ConnectionOpened()
	defer collector.ConnectionClosed()

	sess := NewSession()
	defer sess.Close()

	if _, err := conn.Writer().WriteString(greeting); err != nil {
		logger.Error("failed to send greeting", "error", err.Error())
		return
	}
	if err := conn.Flush(); err != nil {
		logger.Error("failed to flush greeting", "error", err.Error())
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("context cancelled, closing connection")
			return
		default:
		}

		if err := conn.SetReadTimeout(); err != nil {
			logger.Error("failed to set read timeout", "error", err.Error())
			return
		}

		line, err := conn.Reader().ReadString('\n')
		if err != nil {
			// An abrupt close skips the UPDATE phase: deletion marks
			// are discarded, the deferred Close releases the lock.
			if err == io.EOF {
				logger.Info("client closed connection", "state", sess.State().String())
				return
			}
			logger.Error("error reading command", "error", err.Error())
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		logger.Debug("received command", "line", line)

		verb, args, err := ParseCommand(line)
		if err != nil {
			sendResponse(conn, logger, Response{OK: false, Message: "Unknown command"})
			continue
		}

		cmd, ok := dispatcher.Get(verb)
		if !ok {
			sendResponse(conn, logger, Response{OK: false, Message: "Unknown command"})
			continue
		}

		collector.CommandProcessed(verb)

		resp, err := cmd.Execute(ctx, sess, conn, args)
		if err != nil {
			logger.Error("command execution error",
				"command", verb,
				"error", err.Error(),
			)
			sendResponse(conn, logger, Response{OK: false, Message: "Internal server error"})
			continue
		}

		if !sendResponse(conn, logger, resp) {
			return
		}

		switch verb {
		case "PASS":
			collector.AuthAttempt(resp.OK)
			if !resp.OK && resp.Message == "Mailbox already in use" {
				collector.LockContention()
			}
		case "RETR":
			if resp.OK {
				collector.MessageRetrieved(payloadOctets(resp.Lines))
			}
		case "DELE":
			if resp.OK {
				collector.MessageDeleted()
			}
		case "LIST":
			if resp.OK {
				collector.MessageListed()
			}
		case "QUIT":
			// The reply precedes the commit; commit failures are logged
			// but no longer reportable to this client.
			if sess.State() == StateUpdate {
				removed := sess.View().CommitDeletes(logger)
				if removed > 0 {
					logger.Info("committed deletions",
						"username", sess.Username(),
						"removed", removed,
					)
				}
			}
			logger.Info("session closed", "state", sess.State().String())
			return
		}
	}
}

// payloadOctets is the wire size of a multi-line payload before
// dot-stuffing: each line plus its CRLF terminator.
func payloadOctets(lines []string) int64 {
	var total int64
	for _, line := range lines {
		total += int64(len(line)) + 2
	}
	return total
}

// sendResponse writes and flushes one reply. Returns false on transport
// failure, which terminates the session.
func sendResponse(conn *server.Connection, logger *slog.Logger, resp Response) bool {
	if _, err := conn.Writer().WriteString(resp.String()); err != nil {
		logger.Error("failed to send response", "error", err.Error())
		return false
	}
	if err := conn.Flush(); err != nil {
		logger.Error("failed to flush response", "error", err.Error())
		return false
	}
	return true
}
