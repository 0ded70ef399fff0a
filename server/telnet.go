package server

import (
	"bufio"
	"io"
)

// Telnet control bytes that may appear on an FTP control connection.
const (
	telnetIAC  = 0xFF
	telnetWILL = 0xFB
	telnetWONT = 0xFC
	telnetDO   = 0xFD
	telnetDONT = 0xFE
)

// telnetReader strips Telnet command sequences from the control stream.
// Some clients negotiate options or send IAC-prefixed interrupts before an
// ABOR; the command parser should never see those bytes.
type telnetReader struct {
	r *bufio.Reader
}

func newTelnetReader(r io.Reader) *telnetReader {
	return &telnetReader{r: bufio.NewReader(r)}
}

func (t *telnetReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		// Return what we have instead of blocking on the network.
		if n > 0 && t.r.Buffered() == 0 {
			return n, nil
		}

		b, err := t.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if b != telnetIAC {
			p[n] = b
			n++
			continue
		}

		next, err := t.r.ReadByte()
		if err != nil {
			return n, err
		}
		switch next {
		case telnetIAC:
			// Escaped 0xFF is data.
			p[n] = telnetIAC
			n++
		case telnetWILL, telnetWONT, telnetDO, telnetDONT:
			// Three-byte negotiation: consume the option byte.
			if _, err := t.r.ReadByte(); err != nil {
				return n, err
			}
		default:
			// Two-byte command, already consumed.
		}
	}
	return n, nil
}
