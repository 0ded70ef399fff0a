package ftpx

import (
	"errors"
	"fmt"
)

// Package-level sentinel errors, matched with errors.Is.
var (
	// ErrNotConnected is returned when an operation requires an established
	// control connection and the client does not have one.
	ErrNotConnected = errors.New("ftpx: not connected")

	// ErrAlreadyConnected is returned by Connect when the client already
	// holds a live control connection.
	ErrAlreadyConnected = errors.New("ftpx: already connected")

	// ErrInvalidArgument is returned when a caller-supplied argument is
	// rejected before any network traffic is generated.
	ErrInvalidArgument = errors.New("ftpx: invalid argument")
)

// ProtocolError reports a command whose reply indicated failure. It keeps
// the full context of the command/reply exchange for debugging.
type ProtocolError struct {
	// Command is the command that was sent (e.g., "PASV", "STOR file.bin")
	Command string

	// Message is the text of the failure reply
	Message string

	// Code is the numeric reply code (e.g., 550)
	Code int
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftpx: %s failed: %s (code %d)", e.Command, e.Message, e.Code)
}

// Is4xx returns true if the reply code is in the 4xx range (temporary failure).
func (e *ProtocolError) Is4xx() bool {
	return e.Code >= 400 && e.Code < 500
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (e *ProtocolError) Is5xx() bool {
	return e.Code >= 500 && e.Code < 600
}

// IsTemporary returns true if the error is a temporary failure (4xx).
// This can be used to implement retry logic.
func (e *ProtocolError) IsTemporary() bool {
	return e.Is4xx()
}

// IsPermanent returns true if the error is a permanent failure (5xx).
func (e *ProtocolError) IsPermanent() bool {
	return e.Is5xx()
}

// protocolError builds a *ProtocolError from a failure reply.
func protocolError(command string, r *Reply) *ProtocolError {
	return &ProtocolError{
		Command: command,
		Message: r.Message,
		Code:    r.Code,
	}
}

// MalformedReplyError reports a nominally successful reply whose body could
// not be parsed. The raw text is preserved so callers can log exactly what
// the server sent.
type MalformedReplyError struct {
	// Raw is the reply text as received
	Raw string
}

// Error implements the error interface.
func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("ftpx: malformed reply: %q", e.Raw)
}
