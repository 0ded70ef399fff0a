package ftpx

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// passiveRegex matches the six comma-separated decimal groups of a passive
// reply: h1,h2,h3,h4,p1,p2. Servers embed the groups in parentheses, prose,
// or nothing at all, so no surrounding syntax is required and the first
// occurrence wins.
var passiveRegex = regexp.MustCompile(`(\d+),(\d+),(\d+),(\d+),(\d+),(\d+)`)

// PassiveEndpoint is the parsed form of a passive-mode reply such as
// "227 Entering Passive Mode (192,168,1,1,195,149)".
type PassiveEndpoint struct {
	// Quad is the advertised IPv4 address, one octet per element
	Quad [4]byte

	// PortHi and PortLo are the two port bytes; the advertised port is
	// PortHi*256 + PortLo
	PortHi byte
	PortLo byte

	// Literal is the exact matched substring, e.g. "192,168,1,1,195,149".
	// It is passed verbatim as the PORT argument when handing the endpoint
	// to a peer server, never rebuilt from the parsed values, so that
	// formatting quirks of the advertising server survive the round trip.
	Literal string
}

// Host returns the advertised address in dotted-quad form.
func (e PassiveEndpoint) Host() string {
	return fmt.Sprintf("%d.%d.%d.%d", e.Quad[0], e.Quad[1], e.Quad[2], e.Quad[3])
}

// Port returns the advertised port.
func (e PassiveEndpoint) Port() int {
	return int(e.PortHi)*256 + int(e.PortLo)
}

// Addr returns the endpoint as "host:port", suitable for dialing.
func (e PassiveEndpoint) Addr() string {
	return net.JoinHostPort(e.Host(), strconv.Itoa(e.Port()))
}

// ParsePassiveEndpoint extracts a passive endpoint from the text of a
// passive-mode reply. The text is scanned for the first six-group sequence;
// a missing sequence, or any group outside the 0-255 byte range, fails with
// *MalformedReplyError carrying the raw text. No partial endpoint is ever
// returned.
func ParsePassiveEndpoint(text string) (PassiveEndpoint, error) {
	matches := passiveRegex.FindStringSubmatch(text)
	if len(matches) != 7 {
		return PassiveEndpoint{}, &MalformedReplyError{Raw: text}
	}

	var parts [6]byte
	for i := range 6 {
		val, err := strconv.Atoi(matches[i+1])
		if err != nil || val < 0 || val > 255 {
			return PassiveEndpoint{}, &MalformedReplyError{Raw: text}
		}
		parts[i] = byte(val)
	}

	return PassiveEndpoint{
		Quad:    [4]byte{parts[0], parts[1], parts[2], parts[3]},
		PortHi:  parts[4],
		PortLo:  parts[5],
		Literal: matches[0],
	}, nil
}
