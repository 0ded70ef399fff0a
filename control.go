package ftpx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Reply represents one FTP server reply.
type Reply struct {
	// Code is the three-digit reply code (e.g., 220, 550)
	Code int

	// Message is the human-readable message from the server
	Message string

	// Lines contains all lines of the reply (for multi-line replies)
	Lines []string
}

// Is1xx returns true if the reply code is in the 1xx range (positive preliminary).
func (r *Reply) Is1xx() bool {
	return r.Code >= 100 && r.Code < 200
}

// Is2xx returns true if the reply code is in the 2xx range (success).
func (r *Reply) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// Is3xx returns true if the reply code is in the 3xx range (intermediate).
func (r *Reply) Is3xx() bool {
	return r.Code >= 300 && r.Code < 400
}

// Is4xx returns true if the reply code is in the 4xx range (temporary failure).
func (r *Reply) Is4xx() bool {
	return r.Code >= 400 && r.Code < 500
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (r *Reply) Is5xx() bool {
	return r.Code >= 500 && r.Code < 600
}

// String returns the full reply as a string.
func (r *Reply) String() string {
	return strings.Join(r.Lines, "\n")
}

// readReply reads a complete FTP reply from the reader.
// It handles both single-line and multi-line replies.
//
// Single-line format: "220 Welcome\r\n"
// Multi-line format:
//
//	"220-Welcome to FTP\r\n"
//	"220-This is line 2\r\n"
//	"220 Ready\r\n"
//
// The reply is complete when a line starts with the code followed by a space.
func readReply(r *bufio.Reader) (*Reply, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 {
		return nil, fmt.Errorf("invalid reply line: %q", line)
	}

	code, err := strconv.Atoi(line[0:3])
	if err != nil {
		return nil, fmt.Errorf("invalid reply code: %q", line[0:3])
	}

	lines := []string{line}

	// Common single-line reply
	if line[3] == ' ' {
		return &Reply{
			Code:    code,
			Message: line[4:],
			Lines:   lines,
		}, nil
	}

	// Multi-line replies must continue with '-'
	if line[3] != '-' {
		return nil, fmt.Errorf("invalid reply format: %q", line)
	}

	if err := readMultiLine(r, code, &lines); err != nil {
		return nil, err
	}

	var messageLines []string
	for _, l := range lines {
		if len(l) > 4 {
			messageLines = append(messageLines, l[4:])
		}
	}

	return &Reply{
		Code:    code,
		Message: strings.Join(messageLines, "\n"),
		Lines:   lines,
	}, nil
}

func readMultiLine(r *bufio.Reader, code int, lines *[]string) error {
	codeStr := fmt.Sprintf("%03d", code)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && len(*lines) > 0 {
				return fmt.Errorf("unexpected EOF reading reply")
			}
			return err
		}

		line = strings.TrimRight(line, "\r\n")

		// RFC 2389 continuation lines start with a space
		if len(line) > 0 && line[0] == ' ' {
			*lines = append(*lines, line)
			continue
		}

		if len(line) < 4 || line[0:3] != codeStr {
			return fmt.Errorf("reply code mismatch or invalid line: %q", line)
		}

		*lines = append(*lines, line)

		if line[3] == ' ' {
			return nil // End of reply
		}

		if line[3] != '-' {
			return fmt.Errorf("invalid reply format: %q", line)
		}
	}
}

// armCancel interrupts a blocked read or write on the control connection when
// ctx is cancelled, by forcing the connection deadlines into the past. The
// returned function must be called once the I/O completes; it reports whether
// the context fired. When it did, the forced deadlines are lifted so a
// best-effort QUIT can still go out on the wire.
func (c *Client) armCancel(ctx context.Context) func() bool {
	if ctx.Done() == nil {
		return func() bool { return false }
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = conn.SetReadDeadline(now)
		_ = conn.SetWriteDeadline(now)
	})

	return func() bool {
		if stop() {
			return false
		}
		_ = conn.SetReadDeadline(time.Time{})
		_ = conn.SetWriteDeadline(time.Time{})
		return true
	}
}

// ctxErr prefers the context's error over the I/O error it caused. A read
// aborted by cancellation surfaces as context.Canceled, not as the network
// timeout used to unblock it.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

// sendCommand sends an FTP command and returns the reply. The context is
// checked before the send and before the reply read; cancellation mid-read
// interrupts the blocked I/O. Blocking callers pass context.Background().
func (c *Client) sendCommand(ctx context.Context, command string, args ...string) (*Reply, error) {
	var cmd string
	if len(args) > 0 {
		cmd = fmt.Sprintf("%s %s", command, strings.Join(args, " "))
	} else {
		cmd = command
	}

	c.logger.Debug("ftp command", "cmd", redactCommand(cmd))

	// One command/reply exchange at a time per control connection
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := c.armCancel(ctx)
	defer done()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if _, err := fmt.Fprintf(c.conn, "%s\r\n", cmd); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("failed to send command: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The deadline goes on the underlying connection, not the bufio reader
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	reply, err := readReply(c.reader)
	if err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("failed to read reply: %w", err))
	}

	c.logger.Debug("ftp reply", "code", reply.Code, "message", reply.Message)

	return reply, nil
}

// redactCommand hides password arguments from debug logs.
func redactCommand(cmd string) string {
	if len(cmd) >= 5 && strings.EqualFold(cmd[:5], "PASS ") {
		return "PASS ****"
	}
	return cmd
}

// completionReply waits for the next reply on the control connection without
// sending anything. Transfer commands produce a preliminary reply when the
// data connection opens and a completion reply when it drains; this reads the
// latter. No read deadline is applied: a transfer may legitimately run longer
// than the command timeout, so callers bound the wait with ctx.
func (c *Client) completionReply(ctx context.Context) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := c.armCancel(ctx)
	defer done()

	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("failed to clear read deadline: %w", err)
	}

	reply, err := readReply(c.reader)
	if err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("failed to read completion reply: %w", err))
	}

	c.logger.Debug("ftp completion reply", "code", reply.Code, "message", reply.Message)

	return reply, nil
}

// expectCode sends a command and verifies the reply code matches exactly.
func (c *Client) expectCode(ctx context.Context, expectedCode int, command string, args ...string) (*Reply, error) {
	reply, err := c.sendCommand(ctx, command, args...)
	if err != nil {
		return nil, err
	}

	if reply.Code != expectedCode {
		return reply, protocolError(command, reply)
	}

	return reply, nil
}

// expect2xx sends a command and verifies the reply is in the 2xx range.
func (c *Client) expect2xx(ctx context.Context, command string, args ...string) (*Reply, error) {
	reply, err := c.sendCommand(ctx, command, args...)
	if err != nil {
		return nil, err
	}

	if !reply.Is2xx() {
		return reply, protocolError(command, reply)
	}

	return reply, nil
}

// expect1xx sends a transfer command and verifies the reply is preliminary
// (1xx). Servers that complete instantly may answer 2xx directly; that is
// accepted too, and reported via the returned reply's code.
func (c *Client) expect1xx(ctx context.Context, command string, args ...string) (*Reply, error) {
	reply, err := c.sendCommand(ctx, command, args...)
	if err != nil {
		return nil, err
	}

	if !reply.Is1xx() && !reply.Is2xx() {
		return reply, protocolError(command, reply)
	}

	return reply, nil
}
