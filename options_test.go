package ftpx

import (
	"crypto/tls"
	"net"
	"strings"
	"testing"
	"time"
)

func TestOptions_ExclusiveTLS(t *testing.T) {
	t.Parallel()
	_, err := New("ftp.example.com:21", WithExplicitTLS(nil), WithImplicitTLS(nil))
	if err == nil || !strings.Contains(err.Error(), "cannot be combined") {
		t.Errorf("explicit+implicit = %v, want combination error", err)
	}

	_, err = New("ftp.example.com:21", WithImplicitTLS(nil), WithExplicitTLS(nil))
	if err == nil || !strings.Contains(err.Error(), "cannot be combined") {
		t.Errorf("implicit+explicit = %v, want combination error", err)
	}

	// Repeating the same mode is allowed; the last config wins.
	if _, err := New("ftp.example.com:21", WithExplicitTLS(nil), WithExplicitTLS(nil)); err != nil {
		t.Errorf("repeated explicit TLS = %v, want nil", err)
	}
}

func TestOptions_TLSSessionCache(t *testing.T) {
	t.Parallel()
	cfg := &tls.Config{ServerName: "ftp.example.com"}
	c, err := New("ftp.example.com:21", WithExplicitTLS(cfg))
	if err != nil {
		t.Fatal(err)
	}
	// A session cache is installed so clones can resume TLS sessions.
	if c.tlsConfig.ClientSessionCache == nil {
		t.Error("expected a ClientSessionCache to be installed")
	}
}

func TestOptions_DataType(t *testing.T) {
	t.Parallel()
	c, err := New("h:21")
	if err != nil {
		t.Fatal(err)
	}
	if c.dataType != "I" {
		t.Errorf("default data type = %q, want I", c.dataType)
	}

	c, err = New("h:21", WithDataType("A"))
	if err != nil {
		t.Fatal(err)
	}
	if c.dataType != "A" {
		t.Errorf("data type = %q, want A", c.dataType)
	}

	if _, err := New("h:21", WithDataType("E")); err == nil {
		t.Error("WithDataType should reject unsupported types")
	}
}

func TestOptions_Basics(t *testing.T) {
	t.Parallel()
	dialer := &net.Dialer{}
	c, err := New("h:21",
		WithTimeout(5*time.Second),
		WithCredentials("alice", "secret"),
		WithDialer(dialer),
	)
	if err != nil {
		t.Fatal(err)
	}
	if c.timeout != 5*time.Second {
		t.Errorf("timeout = %v", c.timeout)
	}
	if c.user != "alice" || c.password != "secret" {
		t.Errorf("credentials = %q/%q", c.user, c.password)
	}
	if c.dialer != dialer {
		t.Error("dialer not installed")
	}
}

func TestNew_InvalidAddress(t *testing.T) {
	t.Parallel()
	if _, err := New("no-port-here"); err == nil {
		t.Error("New should reject an address without a port")
	}
}
