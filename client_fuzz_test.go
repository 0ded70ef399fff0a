package ftpx

import (
	"errors"
	"strings"
	"testing"
)

func FuzzParsePassiveEndpoint(f *testing.F) {
	f.Add("227 Entering Passive Mode (192,168,1,100,39,16).")
	f.Add("227 =192,168,1,100,39,16")
	f.Add("227 Entering Passive Mode (300,1,1,1,1,1).")
	f.Add("Passive mode, but no literal at all")
	f.Add("(1,2,3,4,5,6) trailing (7,8,9,10,11,12)")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		ep, err := ParsePassiveEndpoint(s)
		if err != nil {
			var malformed *MalformedReplyError
			if !errors.As(err, &malformed) {
				t.Fatalf("ParsePassiveEndpoint(%q) returned %T, want *MalformedReplyError", s, err)
			}
			return
		}

		// A successful parse always yields in-range values and a literal
		// taken verbatim from the input.
		for i, b := range ep.Quad {
			if b > 255 {
				t.Errorf("quad[%d] = %d out of range for %q", i, b, s)
			}
		}
		if ep.PortHi > 255 || ep.PortLo > 255 {
			t.Errorf("port bytes %d,%d out of range for %q", ep.PortHi, ep.PortLo, s)
		}
		if !strings.Contains(s, ep.Literal) {
			t.Errorf("literal %q is not a substring of %q", ep.Literal, s)
		}
	})
}

func FuzzParseFeatureLines(f *testing.F) {
	f.Add("211-Features:\n SIZE\n HASH SHA-256;SHA-512\n211 End")
	f.Add("211-SIZE\n211-UTF8\n211 End")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		_ = parseFeatureLines(strings.Split(s, "\n"))
	})
}
