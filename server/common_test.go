package server

import (
	"context"
	"net"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"
)

// startTestServer runs a server over a fresh temp directory and returns its
// address and root path. The driver accepts alice/secret with write access
// and guest/guest read-only.
func startTestServer(t *testing.T, options ...Option) (addr, root string) {
	t.Helper()

	root = t.TempDir()
	driver, err := NewFSDriver(root, WithAuthenticator(func(user, pass string) (string, bool, error) {
		switch {
		case user == "alice" && pass == "secret":
			return root, false, nil
		case user == "guest" && pass == "guest":
			return root, true, nil
		}
		return "", false, os.ErrPermission
	}))
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	options = append([]Option{WithDriver(driver)}, options...)
	s, err := New(ln.Addr().String(), options...)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		if err := s.Serve(ln); err != nil && err != ErrServerClosed {
			t.Logf("serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	return ln.Addr().String(), root
}

// rawConn drives the control channel directly for protocol-level tests.
type rawConn struct {
	t    *testing.T
	conn *textproto.Conn
}

func dialRaw(t *testing.T, addr string) *rawConn {
	t.Helper()
	conn, err := textproto.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	r := &rawConn{t: t, conn: conn}
	if got := r.readLine(); !strings.HasPrefix(got, "220") {
		t.Fatalf("greeting = %q, want 220", got)
	}
	return r
}

func (r *rawConn) readLine() string {
	r.t.Helper()
	line, err := r.conn.ReadLine()
	if err != nil {
		r.t.Fatalf("read reply: %v", err)
	}
	return line
}

// cmd sends one command and returns the next single-line reply.
func (r *rawConn) cmd(line string) string {
	r.t.Helper()
	if err := r.conn.PrintfLine("%s", line); err != nil {
		r.t.Fatalf("send %q: %v", line, err)
	}
	return r.readLine()
}

// expect sends a command and asserts on the reply's code prefix.
func (r *rawConn) expect(line, prefix string) string {
	r.t.Helper()
	reply := r.cmd(line)
	if !strings.HasPrefix(reply, prefix) {
		r.t.Fatalf("%q -> %q, want prefix %q", line, reply, prefix)
	}
	return reply
}

func (r *rawConn) login(user, pass string) {
	r.t.Helper()
	r.expect("USER "+user, "331")
	r.expect("PASS "+pass, "230")
}
