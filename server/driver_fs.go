package server

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSDriver serves files from a local directory.
//
// Every operation goes through an os.Root handle opened at login, so path
// traversal cannot escape the jail even through symlinks. Without a custom
// authenticator only anonymous logins ("anonymous" or "ftp") are accepted,
// read-only.
type FSDriver struct {
	rootPath string

	// authenticator validates credentials and returns the root directory
	// and read-only flag for the user. Nil means anonymous-only access.
	authenticator func(user, pass string) (root string, readOnly bool, err error)

	// anonWrite grants write access to anonymous users when no
	// authenticator is installed.
	anonWrite bool
}

// FSDriverOption configures an FSDriver.
type FSDriverOption func(*FSDriver)

// WithAuthenticator installs a credential check. The returned root becomes
// the user's jail; readOnly blocks STOR.
//
//	server.WithAuthenticator(func(user, pass string) (string, bool, error) {
//	    if user == "admin" && pass == "secret" {
//	        return "/srv/ftp", false, nil
//	    }
//	    return "", false, os.ErrPermission
//	})
func WithAuthenticator(fn func(user, pass string) (string, bool, error)) FSDriverOption {
	return func(d *FSDriver) {
		d.authenticator = fn
	}
}

// WithAnonWrite lets anonymous users upload. Off by default, and only
// meaningful without a custom authenticator.
func WithAnonWrite(enable bool) FSDriverOption {
	return func(d *FSDriver) {
		d.anonWrite = enable
	}
}

// NewFSDriver creates a filesystem driver rooted at rootPath. The path must
// exist and be a directory.
func NewFSDriver(rootPath string, options ...FSDriverOption) (*FSDriver, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("root path validation failed: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", rootPath)
	}

	// Canonical form so the os.Root handle and later comparisons agree
	rootPath, err = filepath.EvalSymlinks(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	d := &FSDriver{rootPath: rootPath}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// Authenticate validates the credentials and opens the user's jail.
func (d *FSDriver) Authenticate(user, pass string) (ClientContext, error) {
	rootPath := d.rootPath
	readOnly := false

	if d.authenticator != nil {
		var err error
		rootPath, readOnly, err = d.authenticator(user, pass)
		if err != nil {
			return nil, err
		}
	} else {
		if user != "anonymous" && user != "ftp" {
			return nil, os.ErrPermission
		}
		readOnly = !d.anonWrite
	}

	root, err := os.OpenRoot(rootPath)
	if err != nil {
		return nil, err
	}

	return &fsContext{
		root:     root,
		cwd:      "/",
		readOnly: readOnly,
	}, nil
}

// fsContext is one session's jailed view of the driver's directory.
type fsContext struct {
	root     *os.Root
	cwd      string
	readOnly bool
}

func (c *fsContext) Close() error {
	return c.root.Close()
}

// resolve maps a virtual path to a name relative to the root handle.
func (c *fsContext) resolve(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		p = path.Join(c.cwd, p)
	}
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		return "", errors.New("invalid path")
	}

	rel := strings.TrimPrefix(p, "/")
	if rel == "" {
		rel = "."
	}
	return rel, nil
}

func (c *fsContext) ChangeDir(p string) error {
	rel, err := c.resolve(p)
	if err != nil {
		return err
	}

	info, err := c.root.Stat(rel)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}

	if !strings.HasPrefix(p, "/") {
		p = path.Join(c.cwd, p)
	}
	c.cwd = path.Clean(p)
	return nil
}

func (c *fsContext) CurrentDir() (string, error) {
	return c.cwd, nil
}

func (c *fsContext) Open(p string) (io.ReadCloser, error) {
	rel, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	return c.root.Open(rel)
}

func (c *fsContext) Create(p string) (io.WriteCloser, error) {
	if c.readOnly {
		return nil, os.ErrPermission
	}
	rel, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	return c.root.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}

func (c *fsContext) Stat(p string) (os.FileInfo, error) {
	rel, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	return c.root.Stat(rel)
}

// Checksum digests the file with the named algorithm and returns the hex
// encoding, the way the HASH extension reports it.
func (c *fsContext) Checksum(p, algo string) (string, error) {
	rel, err := c.resolve(p)
	if err != nil {
		return "", err
	}

	f, err := c.root.Open(rel)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func newHash(algo string) (hash.Hash, error) {
	switch strings.ToUpper(algo) {
	case "SHA-256":
		return sha256.New(), nil
	case "SHA-512":
		return sha512.New(), nil
	case "SHA-1":
		return sha1.New(), nil
	case "MD5":
		return md5.New(), nil
	case "CRC32":
		return crc32.NewIEEE(), nil
	}
	return nil, errors.New("unsupported algorithm")
}
