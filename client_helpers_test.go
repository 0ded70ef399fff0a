package ftpx

import (
	"bytes"
	"context"
	"crypto/sha256"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xferlab/ftpx/server"
)

// startLoopbackServer runs a real in-process FTP server rooted at a fresh
// temp directory. It accepts alice/secret with write access and anonymous
// read-only, and is torn down with the test.
func startLoopbackServer(t *testing.T) (addr, root string) {
	t.Helper()
	root = t.TempDir()

	driver, err := server.NewFSDriver(root, server.WithAuthenticator(func(user, pass string) (string, bool, error) {
		switch {
		case user == "alice" && pass == "secret":
			return root, false, nil
		case user == "anonymous":
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

	s, err := server.New(ln.Addr().String(), server.WithDriver(driver))
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	return ln.Addr().String(), root
}

func TestDialURL_Loopback(t *testing.T) {
	t.Parallel()
	addr, root := startLoopbackServer(t)
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		c, err := DialURL(ctx, "ftp://"+addr)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = c.Quit() }()

		if err := c.Noop(ctx); err != nil {
			t.Errorf("Noop: %v", err)
		}
	})

	t.Run("credentials in URL", func(t *testing.T) {
		c, err := DialURL(ctx, "ftp://alice:secret@"+addr)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = c.Quit() }()

		if err := c.Noop(ctx); err != nil {
			t.Errorf("Noop: %v", err)
		}
	})

	t.Run("path becomes working directory", func(t *testing.T) {
		if err := os.Mkdir(filepath.Join(root, "incoming"), 0755); err != nil {
			t.Fatal(err)
		}

		c, err := DialURL(ctx, "ftp://alice:secret@"+addr+"/incoming")
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = c.Quit() }()

		pwd, err := c.CurrentDir(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if pwd != "/incoming" {
			t.Errorf("working directory = %q, want /incoming", pwd)
		}
	})

	t.Run("rejected credentials", func(t *testing.T) {
		if _, err := DialURL(ctx, "ftp://mallory:wrong@"+addr); err == nil {
			t.Error("expected login failure")
		}
	})
}

func TestFeatures_Loopback(t *testing.T) {
	t.Parallel()
	addr, _ := startLoopbackServer(t)
	ctx := context.Background()

	c, err := Dial(ctx, addr, WithCredentials("alice", "secret"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Quit() }()

	feats, err := c.Features(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := feats["SIZE"]; !ok {
		t.Error("server should advertise SIZE")
	}
	if !c.SupportsChecksum(ctx) {
		t.Error("server should advertise HASH")
	}
}

func TestChecksum_Loopback(t *testing.T) {
	t.Parallel()
	addr, root := startLoopbackServer(t)
	ctx := context.Background()

	content := []byte("checksum me")
	if err := os.WriteFile(filepath.Join(root, "file.bin"), content, 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Dial(ctx, addr, WithCredentials("alice", "secret"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Quit() }()

	h, err := c.Checksum(ctx, "file.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !h.Valid {
		t.Fatal("expected a usable digest")
	}
	if h.Algorithm != "SHA-256" {
		t.Errorf("algorithm = %q, want the server default SHA-256", h.Algorithm)
	}

	want := sha256.Sum256(content)
	if !bytes.Equal(h.Sum, want[:]) {
		t.Errorf("digest = %x, want %x", h.Sum, want)
	}
}

func TestSetChecksumAlgo_Loopback(t *testing.T) {
	t.Parallel()
	addr, root := startLoopbackServer(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(root, "file.bin"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Dial(ctx, addr, WithCredentials("alice", "secret"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Quit() }()

	if err := c.SetChecksumAlgo(ctx, "SHA-512"); err != nil {
		t.Fatal(err)
	}

	h, err := c.Checksum(ctx, "file.bin")
	if err != nil {
		t.Fatal(err)
	}
	if h.Algorithm != "SHA-512" {
		t.Errorf("algorithm = %q, want SHA-512", h.Algorithm)
	}
	if len(h.Sum) != 64 {
		t.Errorf("digest length = %d, want 64", len(h.Sum))
	}
}
