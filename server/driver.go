package server

import (
	"io"
	"os"
)

// Driver authenticates users and hands each session a ClientContext for
// file operations.
//
// Implementations validate the credentials and return a context that
// isolates the user's view of the filesystem. Return os.ErrPermission
// for invalid credentials; the server answers 530.
type Driver interface {
	// Authenticate validates the user and password and returns a
	// session-specific context for file operations.
	Authenticate(user, pass string) (ClientContext, error)
}

// ClientContext is a single session's view of the backing store. All paths
// are virtual, rooted at "/", and use forward slashes. A context is used by
// one session at a time and need not be safe for concurrent use.
//
// Error conventions: return os.ErrNotExist for missing paths and
// os.ErrPermission for denied operations; the server translates them to
// the appropriate reply codes.
type ClientContext interface {
	// ChangeDir changes the current working directory.
	ChangeDir(path string) error

	// CurrentDir returns the current working directory.
	CurrentDir() (string, error)

	// Open opens a file for download (RETR).
	Open(path string) (io.ReadCloser, error)

	// Create opens a file for upload (STOR), truncating any existing
	// content.
	Create(path string) (io.WriteCloser, error)

	// Stat returns metadata for a file or directory.
	Stat(path string) (os.FileInfo, error)

	// Checksum returns the hex digest of a file using the named
	// algorithm (SHA-256, SHA-512, SHA-1, MD5 or CRC32).
	Checksum(path, algo string) (string, error)

	// Close releases the context's resources when the session ends.
	Close() error
}
