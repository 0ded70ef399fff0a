package ftpx

import (
	"context"
	"fmt"
	"strings"
)

// ChangeDir changes the current working directory.
func (c *Client) ChangeDir(ctx context.Context, path string) error {
	_, err := c.expect2xx(ctx, "CWD", path)
	return err
}

// CurrentDir returns the current working directory.
func (c *Client) CurrentDir(ctx context.Context) (string, error) {
	reply, err := c.expect2xx(ctx, "PWD")
	if err != nil {
		return "", err
	}

	// Example reply: 257 "/home/user" is the current directory
	msg := reply.Message
	start := strings.Index(msg, "\"")
	if start == -1 {
		return "", &MalformedReplyError{Raw: msg}
	}
	end := strings.Index(msg[start+1:], "\"")
	if end == -1 {
		return "", &MalformedReplyError{Raw: msg}
	}

	return msg[start+1 : start+1+end], nil
}

// Size returns the size of a remote file in bytes using the SIZE command
// (RFC 3659). Servers report the size in the current transfer type; for
// byte-accurate answers use binary.
func (c *Client) Size(ctx context.Context, path string) (int64, error) {
	reply, err := c.expect2xx(ctx, "SIZE", path)
	if err != nil {
		return 0, err
	}

	var size int64
	if _, err := fmt.Sscanf(reply.Message, "%d", &size); err != nil {
		return 0, &MalformedReplyError{Raw: reply.Message}
	}

	return size, nil
}
