package server

import (
	"bufio"
	"io"
)

// asciiReader converts LF line endings to CRLF on the fly, for sending
// local files over a TYPE A data connection. Lines already terminated with
// CRLF pass through unchanged.
type asciiReader struct {
	r         *bufio.Reader
	lastCR    bool
	pendingLF bool
}

func newASCIIReader(r io.Reader) *asciiReader {
	return &asciiReader{r: bufio.NewReader(r)}
}

func (a *asciiReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if a.pendingLF {
			p[n] = '\n'
			n++
			a.pendingLF = false
			continue
		}

		// Return what we have instead of blocking for more input.
		if n > 0 && a.r.Buffered() == 0 {
			return n, nil
		}

		b, err := a.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if b == '\n' && !a.lastCR {
			p[n] = '\r'
			n++
			a.pendingLF = true
		} else {
			p[n] = b
			n++
		}
		a.lastCR = b == '\r'
	}
	return n, nil
}

// asciiDecoder converts CRLF line endings back to LF, for storing TYPE A
// uploads with native line endings. A CR not followed by LF is kept.
type asciiDecoder struct {
	r      *bufio.Reader
	heldCR bool
}

func newASCIIDecoder(r io.Reader) *asciiDecoder {
	return &asciiDecoder{r: bufio.NewReader(r)}
}

func (d *asciiDecoder) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if n > 0 && d.r.Buffered() == 0 && !d.heldCR {
			return n, nil
		}

		b, err := d.r.ReadByte()
		if err != nil {
			if d.heldCR && n < len(p) {
				p[n] = '\r'
				n++
				d.heldCR = false
			}
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if d.heldCR {
			d.heldCR = false
			if b == '\n' {
				p[n] = '\n'
				n++
				continue
			}
			p[n] = '\r'
			n++
			if n == len(p) {
				_ = d.r.UnreadByte()
				return n, nil
			}
		}

		if b == '\r' {
			d.heldCR = true
			continue
		}
		p[n] = b
		n++
	}
	return n, nil
}
