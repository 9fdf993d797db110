// Package server accepts TCP connections and hands each one to a protocol
// handler in its own goroutine.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cnrmurphy/pop3d/internal/logging"
)

// ConnectionHandler processes one accepted connection. It returns when the
// session is over; the server closes the socket afterwards.
type ConnectionHandler func(ctx context.Context, conn *Connection)

// Config holds configuration for creating a new Server.
type Config struct {
	// Address is the TCP address to listen on.
	Address string

	// IdleTimeout bounds the wait for the next command. Zero disables it.
	IdleTimeout time.Duration

	// MaxConnections caps concurrent sessions. Zero or negative means no cap.
	MaxConnections int

	// Logger receives server and per-connection log lines.
	Logger *slog.Logger

	// Handler processes each accepted connection.
	Handler ConnectionHandler
}

// Server owns the listening socket and the accept loop.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	limiter *ConnectionLimiter

	mu sync.Mutex
	ln net.Listener
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("server: handler is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
	}
	if cfg.MaxConnections > 0 {
		s.limiter = NewConnectionLimiter(cfg.MaxConnections)
	}

	return s, nil
}

// Addr returns the bound listener address, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run binds the listener and serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("listening", slog.String("address", ln.Addr().String()))

	// Close the listener when the context ends so Accept unblocks.
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		netConn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.logger.Error("accept error", slog.String("error", err.Error()))
			break
		}

		if s.limiter != nil && !s.limiter.TryAcquire() {
			s.logger.Warn("connection limit reached",
				slog.String("remote", netConn.RemoteAddr().String()))
			_, _ = netConn.Write([]byte("-ERR Too many connections\r\n"))
			_ = netConn.Close()
			continue
		}

		wg.Add(1)
		go func(netConn net.Conn) {
			defer wg.Done()
			if s.limiter != nil {
				defer s.limiter.Release()
			}
			s.serveConn(ctx, netConn)
		}(netConn)
	}

	s.logger.Info("server shutting down")
	wg.Wait()
	s.logger.Info("server stopped")

	return ctx.Err()
}

// Shutdown closes the listener; in-flight sessions run to completion.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

// serveConn runs the handler for one connection and guarantees the socket
// is closed and a single end-of-session line is logged on every exit path.
func (s *Server) serveConn(ctx context.Context, netConn net.Conn) {
	conn := NewConnection(netConn, s.cfg.IdleTimeout, s.logger)
	connCtx := logging.WithContext(ctx, conn.Logger())

	defer func() {
		if r := recover(); r != nil {
			conn.Logger().Error("panic in connection handler", "panic", r)
		}
		_ = conn.Close()
		conn.Logger().Info("connection closed")
	}()

	conn.Logger().Info("connection accepted")
	s.cfg.Handler(connCtx, conn)
}
