package ftpx

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Hash is the result of a remote checksum query.
type Hash struct {
	// Algorithm is the digest algorithm name as reported by the server
	// (e.g., "SHA-256")
	Algorithm string

	// Sum is the decoded digest
	Sum []byte

	// Valid reports whether the reply could be interpreted as a usable
	// digest. False is not the same as "unsupported": the capability was
	// there, the answer was not.
	Valid bool
}

// VerifyStatus is the tri-state outcome of a post-transfer verification.
type VerifyStatus int

const (
	// VerifyFailed means the digests differ, the remote digest was
	// unusable, or the local content could not be read. It is advisory;
	// the caller decides whether to re-transfer.
	VerifyFailed VerifyStatus = iota

	// VerifySkipped means the remote lacks the checksum capability.
	// Callers treat it as success.
	VerifySkipped

	// VerifyOK means the remote digest matched the local content.
	VerifyOK
)

// String returns the outcome as a short word for logs and CLI output.
func (s VerifyStatus) String() string {
	switch s {
	case VerifySkipped:
		return "skipped"
	case VerifyOK:
		return "verified"
	case VerifyFailed:
		return "failed"
	default:
		return fmt.Sprintf("VerifyStatus(%d)", int(s))
	}
}

// ChecksumPeer is the slice of a client the verifier consumes: capability
// discovery and digest retrieval. *Client implements it.
type ChecksumPeer interface {
	SupportsChecksum(ctx context.Context) bool
	Checksum(ctx context.Context, path string) (Hash, error)
}

var _ ChecksumPeer = (*Client)(nil)

// Verifier checks a transferred file against the remote's digest of it.
// Every degraded condition short of a caller error is absorbed into the
// returned VerifyStatus; the injected logger receives one warning line per
// absorbed fault.
type Verifier struct {
	peer   ChecksumPeer
	logger *slog.Logger
}

// VerifierOption is a functional option for configuring a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets the warning sink. The default logger discards
// everything.
func WithVerifierLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a verifier over the given peer.
func NewVerifier(peer ChecksumPeer, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		peer:   peer,
		logger: slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 1})),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify compares the local file against the remote file's digest.
//
// Blank paths are rejected with ErrInvalidArgument before any peer call.
// A peer without the checksum capability yields VerifySkipped and no digest
// request. From there every outcome is a status, never an error: a failed or
// unusable remote digest, a digest mismatch, and a local read fault all
// yield VerifyFailed, the faults with a single warning log line each.
func (v *Verifier) Verify(ctx context.Context, localPath, remotePath string) (VerifyStatus, error) {
	if localPath == "" || remotePath == "" {
		return VerifyFailed, fmt.Errorf("%w: blank verification path", ErrInvalidArgument)
	}

	if !v.peer.SupportsChecksum(ctx) {
		return VerifySkipped, nil
	}

	remote, err := v.peer.Checksum(ctx, remotePath)
	if err != nil {
		v.logger.Warn("remote checksum request failed", "path", remotePath, "error", err)
		return VerifyFailed, nil
	}
	if !remote.Valid {
		v.logger.Warn("remote checksum unusable", "path", remotePath, "algorithm", remote.Algorithm)
		return VerifyFailed, nil
	}

	return v.compareLocal(localPath, remote), nil
}

// compareLocal digests the local file with the remote's algorithm and
// compares the sums.
func (v *Verifier) compareLocal(localPath string, remote Hash) VerifyStatus {
	digest, ok := newDigest(remote.Algorithm)
	if !ok {
		v.logger.Warn("unsupported checksum algorithm", "algorithm", remote.Algorithm)
		return VerifyFailed
	}

	f, err := os.Open(localPath)
	if err != nil {
		v.logger.Warn("local content unreadable, verification failed", "path", localPath, "error", err)
		return VerifyFailed
	}
	defer f.Close()

	if _, err := io.Copy(digest, f); err != nil {
		v.logger.Warn("local content unreadable, verification failed", "path", localPath, "error", err)
		return VerifyFailed
	}

	if !bytes.Equal(digest.Sum(nil), remote.Sum) {
		v.logger.Debug("digest mismatch", "path", localPath, "algorithm", remote.Algorithm)
		return VerifyFailed
	}

	return VerifyOK
}

// newDigest returns a hash for a draft-bryan-ftp-hash algorithm name.
func newDigest(algo string) (hash.Hash, bool) {
	switch strings.ToUpper(algo) {
	case "SHA-256":
		return sha256.New(), true
	case "SHA-512":
		return sha512.New(), true
	case "SHA-1":
		return sha1.New(), true
	case "MD5":
		return md5.New(), true
	case "CRC32":
		return crc32.NewIEEE(), true
	}
	return nil, false
}
