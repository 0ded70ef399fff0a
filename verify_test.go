package ftpx

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// fakePeer scripts the checksum capability and counts every call, so tests
// can assert not just outcomes but which peer interactions happened.
type fakePeer struct {
	supports bool
	hash     Hash
	err      error

	supportsCalls int
	checksumCalls int
}

func (p *fakePeer) SupportsChecksum(context.Context) bool {
	p.supportsCalls++
	return p.supports
}

func (p *fakePeer) Checksum(context.Context, string) (Hash, error) {
	p.checksumCalls++
	return p.hash, p.err
}

// capturingHandler records every emitted record at or above Warn.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *capturingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (h *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *capturingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capturingHandler) WithGroup(string) slog.Handler      { return h }

func (h *capturingHandler) warnings() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// writeTemp writes content into a fresh temp file and returns its path.
func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local.bin")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sha256Hash(content []byte) Hash {
	sum := sha256.Sum256(content)
	return Hash{Algorithm: "SHA-256", Sum: sum[:], Valid: true}
}

func TestVerify_BlankPaths(t *testing.T) {
	t.Parallel()
	peer := &fakePeer{supports: true}
	v := NewVerifier(peer)

	if _, err := v.Verify(context.Background(), "", "remote.bin"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("blank local path = %v, want ErrInvalidArgument", err)
	}
	if _, err := v.Verify(context.Background(), "local.bin", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("blank remote path = %v, want ErrInvalidArgument", err)
	}

	// Rejection happens before any peer interaction.
	if peer.supportsCalls != 0 || peer.checksumCalls != 0 {
		t.Errorf("peer was consulted (%d/%d calls) despite blank paths",
			peer.supportsCalls, peer.checksumCalls)
	}
}

func TestVerify_SkippedWithoutCapability(t *testing.T) {
	t.Parallel()
	peer := &fakePeer{supports: false}
	v := NewVerifier(peer)

	status, err := v.Verify(context.Background(), "local.bin", "remote.bin")
	if err != nil {
		t.Fatal(err)
	}
	if status != VerifySkipped {
		t.Errorf("status = %v, want VerifySkipped", status)
	}
	if peer.checksumCalls != 0 {
		t.Errorf("no digest should be requested from an incapable peer, got %d calls", peer.checksumCalls)
	}
}

func TestVerify_Match(t *testing.T) {
	t.Parallel()
	content := []byte("the quick brown fox")
	peer := &fakePeer{supports: true, hash: sha256Hash(content)}
	v := NewVerifier(peer)

	status, err := v.Verify(context.Background(), writeTemp(t, content), "remote.bin")
	if err != nil {
		t.Fatal(err)
	}
	if status != VerifyOK {
		t.Errorf("status = %v, want VerifyOK", status)
	}
	if peer.checksumCalls != 1 {
		t.Errorf("checksum calls = %d, want 1", peer.checksumCalls)
	}
}

func TestVerify_Mismatch(t *testing.T) {
	t.Parallel()
	peer := &fakePeer{supports: true, hash: sha256Hash([]byte("what the server stored"))}
	handler := &capturingHandler{}
	v := NewVerifier(peer, WithVerifierLogger(slog.New(handler)))

	status, err := v.Verify(context.Background(), writeTemp(t, []byte("what we have locally")), "remote.bin")
	if err != nil {
		t.Fatal(err)
	}
	if status != VerifyFailed {
		t.Errorf("status = %v, want VerifyFailed", status)
	}

	// A mismatch is a clean comparison result, not a fault to warn about.
	if got := handler.warnings(); got != 0 {
		t.Errorf("warnings = %d, want 0 for a plain mismatch", got)
	}
}

func TestVerify_RemoteChecksumError(t *testing.T) {
	t.Parallel()
	peer := &fakePeer{supports: true, err: &ProtocolError{Command: "HASH", Message: "busy", Code: 450}}
	handler := &capturingHandler{}
	v := NewVerifier(peer, WithVerifierLogger(slog.New(handler)))

	status, err := v.Verify(context.Background(), "local.bin", "remote.bin")
	if err != nil {
		t.Fatal("a failed digest request is a status, never an error")
	}
	if status != VerifyFailed {
		t.Errorf("status = %v, want VerifyFailed", status)
	}
	if got := handler.warnings(); got != 1 {
		t.Errorf("warnings = %d, want exactly 1", got)
	}
}

func TestVerify_UnusableRemoteDigest(t *testing.T) {
	t.Parallel()
	peer := &fakePeer{supports: true, hash: Hash{Algorithm: "SHA-256", Valid: false}}
	handler := &capturingHandler{}
	v := NewVerifier(peer, WithVerifierLogger(slog.New(handler)))

	// A missing local path proves no comparison is attempted: a local read
	// would add a second warning.
	missing := filepath.Join(t.TempDir(), "never-opened.bin")
	status, err := v.Verify(context.Background(), missing, "remote.bin")
	if err != nil {
		t.Fatal(err)
	}
	if status != VerifyFailed {
		t.Errorf("status = %v, want VerifyFailed", status)
	}
	if got := handler.warnings(); got != 1 {
		t.Errorf("warnings = %d, want exactly 1", got)
	}
}

func TestVerify_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()
	peer := &fakePeer{supports: true, hash: Hash{Algorithm: "WHIRLPOOL", Sum: []byte{1, 2}, Valid: true}}
	handler := &capturingHandler{}
	v := NewVerifier(peer, WithVerifierLogger(slog.New(handler)))

	status, err := v.Verify(context.Background(), writeTemp(t, []byte("data")), "remote.bin")
	if err != nil {
		t.Fatal(err)
	}
	if status != VerifyFailed {
		t.Errorf("status = %v, want VerifyFailed", status)
	}
	if got := handler.warnings(); got != 1 {
		t.Errorf("warnings = %d, want exactly 1", got)
	}
}

func TestVerify_LocalReadFailure(t *testing.T) {
	t.Parallel()
	peer := &fakePeer{supports: true, hash: sha256Hash([]byte("data"))}
	handler := &capturingHandler{}
	v := NewVerifier(peer, WithVerifierLogger(slog.New(handler)))

	missing := filepath.Join(t.TempDir(), "does-not-exist.bin")
	status, err := v.Verify(context.Background(), missing, "remote.bin")
	if err != nil {
		t.Fatal("a local read fault is a status, never an error")
	}
	if status != VerifyFailed {
		t.Errorf("status = %v, want VerifyFailed", status)
	}
	if got := handler.warnings(); got != 1 {
		t.Errorf("warnings = %d, want exactly 1", got)
	}
}

func TestVerify_AllAlgorithms(t *testing.T) {
	t.Parallel()
	for _, algo := range []string{"SHA-256", "SHA-512", "SHA-1", "MD5", "CRC32", "sha-256"} {
		if _, ok := newDigest(algo); !ok {
			t.Errorf("newDigest(%q) should be supported", algo)
		}
	}
	if _, ok := newDigest("XXH64"); ok {
		t.Error("newDigest should reject unknown algorithms")
	}
}

func TestVerifyStatusString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status VerifyStatus
		want   string
	}{
		{VerifyOK, "verified"},
		{VerifySkipped, "skipped"},
		{VerifyFailed, "failed"},
		{VerifyStatus(42), "VerifyStatus(42)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}
