package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
var ErrServerClosed = errors.New("server: closed")

// Server is an embeddable FTP server.
//
// It accepts control connections and runs each one as a session in its own
// goroutine. The command surface covers what a server-to-server transfer
// client exercises: login, FEAT/OPTS, TYPE, working-directory navigation,
// SIZE, passive and active data-connection setup (PASV/EPSV/CPSV and
// PORT/EPRT), RETR/STOR, the HASH checksum extension and the AUTH TLS
// upgrade.
//
//	driver, _ := server.NewFSDriver("/srv/ftp")
//	s, err := server.New(":2121", server.WithDriver(driver))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
type Server struct {
	addr   string
	driver Driver
	logger *slog.Logger

	// tlsConfig enables AUTH TLS (and implicit TLS listeners); nil
	// disables both.
	tlsConfig *tls.Config

	// publicHost, when set, is advertised in PASV replies instead of the
	// control connection's local address. Needed behind NAT.
	publicHost string

	// pasvMinPort/pasvMaxPort bound the passive listener ports; zero
	// means any free port.
	pasvMinPort int
	pasvMaxPort int

	// nextPasvPort round-robins within the passive range.
	nextPasvPort atomic.Int32

	// throughput caps each data connection; nil means unlimited.
	throughput *rate.Limiter

	// idleTimeout closes control connections with no traffic.
	idleTimeout time.Duration

	// maxConns limits simultaneous control connections; zero is
	// unlimited.
	maxConns    int
	activeConns atomic.Int32

	metrics MetricsCollector

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	inShutdown atomic.Bool
}

// New creates a server for the given listen address. A driver is required.
func New(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:        addr,
		logger:      slog.Default(),
		idleTimeout: 5 * time.Minute,
		conns:       make(map[net.Conn]struct{}),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.driver == nil {
		return nil, fmt.Errorf("driver is required (use WithDriver)")
	}
	return s, nil
}

// ListenAndServe listens on the configured address and serves until the
// server is shut down or the listener fails.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("ftp server listening", "addr", ln.Addr().String())
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called or the listener
// fails. Each connection runs in its own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == ln {
			s.listener = nil
		}
		s.mu.Unlock()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Shutdown stops accepting connections and waits for active sessions to
// finish. When ctx expires first, the remaining connections are closed and
// the context's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		n := len(s.conns)
		s.mu.Unlock()
		if n == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			s.closeAllConns()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) closeAllConns() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	for conn := range conns {
		conn.Close()
	}
}

// track registers or unregisters a connection. It reports false when the
// server is shutting down and the connection was closed instead.
func (s *Server) track(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add && s.inShutdown.Load() {
		conn.Close()
		return false
	}
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
	return true
}

func (s *Server) handleConn(conn net.Conn) {
	if !s.track(conn, true) {
		return
	}
	defer s.track(conn, false)

	if s.maxConns > 0 && s.activeConns.Load() >= int32(s.maxConns) {
		s.logger.Warn("connection rejected", "remote", conn.RemoteAddr().String(), "reason", "connection limit")
		fmt.Fprintf(conn, "421 Too many users, sorry.\r\n")
		conn.Close()
		return
	}

	s.activeConns.Add(1)
	defer s.activeConns.Add(-1)

	if s.metrics != nil {
		s.metrics.SessionStarted()
		defer s.metrics.SessionEnded()
	}

	newSession(s, conn).serve()
}

// trackedConn unregisters itself from the server on Close, so Shutdown can
// account for data connections too.
type trackedConn struct {
	net.Conn
	server *Server
}

func (c *trackedConn) Close() error {
	c.server.track(c.Conn, false)
	return c.Conn.Close()
}
