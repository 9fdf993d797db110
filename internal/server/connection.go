package server

import (
	"bufio"
	"log/slog"
	"net"
	"sync/atomic"
	"time"
)

// Connection wraps an accepted net.Conn with buffered I/O, per-read
// deadlines, and a connection-scoped logger.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	logger *slog.Logger

	idleTimeout time.Duration
	closed      atomic.Bool
}

// NewConnection wraps a net.Conn for use by a protocol handler.
func NewConnection(conn net.Conn, idleTimeout time.Duration, logger *slog.Logger) *Connection {
	return &Connection{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		writer:      bufio.NewWriter(conn),
		logger:      logger.With(slog.String("remote", conn.RemoteAddr().String())),
		idleTimeout: idleTimeout,
	}
}

// Reader returns the buffered reader for the connection.
func (c *Connection) Reader() *bufio.Reader {
	return c.reader
}

// Writer returns the buffered writer for the connection.
func (c *Connection) Writer() *bufio.Writer {
	return c.writer
}

// Flush flushes any buffered response bytes to the socket.
func (c *Connection) Flush() error {
	return c.writer.Flush()
}

// Logger returns the connection-scoped logger.
func (c *Connection) Logger() *slog.Logger {
	return c.logger
}

// RemoteAddr returns the remote address of the connection.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// SetReadTimeout arms the idle deadline before waiting for the next
// command. A zero idle timeout disables the deadline.
func (c *Connection) SetReadTimeout() error {
	if c.idleTimeout == 0 {
		return c.conn.SetReadDeadline(time.Time{})
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
}

// Close closes the underlying socket. Safe to call more than once.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// IsClosed reports whether Close has been called.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}
