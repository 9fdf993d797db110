package server

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// startServer runs a Server with the given handler on a random loopback
// port and returns its address. The server is shut down via t.Cleanup.
func startServer(t *testing.T, maxConns int, handler ConnectionHandler) string {
	t.Helper()

	srv, err := New(Config{
		Address:        "127.0.0.1:0",
		MaxConnections: maxConns,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Handler:        handler,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()

	// Wait for the listener to bind.
	var addr net.Addr
	for i := 0; i < 100; i++ {
		if addr = srv.Addr(); addr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == nil {
		t.Fatal("server did not bind")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	return addr.String()
}

func TestServerRequiresHandler(t *testing.T) {
	if _, err := New(Config{Address: "127.0.0.1:0"}); err == nil {
		t.Error("New without handler did not error")
	}
}

func TestServerHandlesConnections(t *testing.T) {
	handler := func(ctx context.Context, conn *Connection) {
		if _, err := conn.Writer().WriteString("+OK hello\r\n"); err != nil {
			return
		}
		_ = conn.Flush()
	}

	addr := startServer(t, 10, handler)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("reading greeting: %v", err)
	}
	if line != "+OK hello\r\n" {
		t.Errorf("greeting = %q, want +OK hello", line)
	}
}

func TestServerConnectionLimit(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	t.Cleanup(func() { once.Do(func() { close(release) }) })

	handler := func(ctx context.Context, conn *Connection) {
		_, _ = conn.Writer().WriteString("+OK hello\r\n")
		_ = conn.Flush()
		<-release
	}

	addr := startServer(t, 1, handler)

	// First connection occupies the single slot.
	first, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()

	_ = first.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := bufio.NewReader(first).ReadString('\n'); err != nil {
		t.Fatalf("reading first greeting: %v", err)
	}

	// Second connection is turned away.
	second, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()

	_ = second.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(second).ReadString('\n')
	if err != nil {
		t.Fatalf("reading rejection: %v", err)
	}
	if !strings.HasPrefix(line, "-ERR Too many connections") {
		t.Errorf("rejection = %q, want -ERR Too many connections", line)
	}

	once.Do(func() { close(release) })
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	conn := NewConnection(serverConn, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if conn.IsClosed() {
		t.Error("new connection reports closed")
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if !conn.IsClosed() {
		t.Error("connection does not report closed")
	}
}
