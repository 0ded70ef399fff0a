package server

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Option is a functional option for configuring a Server.
type Option func(*Server) error

// WithDriver sets the backend for authentication and file operations.
// Required.
func WithDriver(driver Driver) Option {
	return func(s *Server) error {
		if s.driver != nil {
			return fmt.Errorf("driver already set")
		}
		s.driver = driver
		return nil
	}
}

// WithLogger sets the server's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithTLS enables FTPS with the given configuration: explicit upgrades via
// AUTH TLS on a plain listener, or implicit TLS when Serve is given a
// tls.Listener. The config must carry a certificate.
func WithTLS(config *tls.Config) Option {
	return func(s *Server) error {
		s.tlsConfig = config
		return nil
	}
}

// WithPublicHost sets the address advertised in PASV replies. Use it when
// the server sits behind NAT and its local address is not reachable by
// clients. A hostname is resolved to its first IPv4 address per session.
func WithPublicHost(host string) Option {
	return func(s *Server) error {
		s.publicHost = host
		return nil
	}
}

// WithPassivePortRange restricts passive data listeners to [min, max].
// Useful behind firewalls that forward a fixed range.
func WithPassivePortRange(min, max int) Option {
	return func(s *Server) error {
		if min <= 0 || max < min || max > 65535 {
			return fmt.Errorf("invalid passive port range [%d, %d]", min, max)
		}
		s.pasvMinPort = min
		s.pasvMaxPort = max
		return nil
	}
}

// WithMaxThroughput caps every data connection at bytesPerSec, shared
// across concurrent transfers.
func WithMaxThroughput(bytesPerSec int) Option {
	return func(s *Server) error {
		if bytesPerSec <= 0 {
			return fmt.Errorf("invalid throughput limit %d", bytesPerSec)
		}
		// Burst must cover the 32 KiB chunks io.Copy moves, or the
		// limiter would never admit a full chunk.
		burst := bytesPerSec
		if burst < 64*1024 {
			burst = 64 * 1024
		}
		s.throughput = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
		return nil
	}
}

// WithIdleTimeout closes control connections idle for longer than d.
// Defaults to five minutes; zero disables the timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.idleTimeout = d
		return nil
	}
}

// WithMaxConnections limits simultaneous control connections. Excess
// connections are greeted with 421 and closed. Zero (the default) is
// unlimited.
func WithMaxConnections(max int) Option {
	return func(s *Server) error {
		s.maxConns = max
		return nil
	}
}

// WithMetrics installs a metrics collector. Nil (the default) disables
// collection.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Server) error {
		s.metrics = collector
		return nil
	}
}
