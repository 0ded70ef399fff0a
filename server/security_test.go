package server

import (
	"testing"
)

func TestPORTRejectsForeignTarget(t *testing.T) {
	t.Parallel()
	addr, _ := startTestServer(t)
	r := dialRaw(t, addr)
	r.login("alice", "secret")

	// A loopback client may not bounce the data connection to an
	// arbitrary remote host.
	r.expect("PORT 192,0,2,1,4,210", "500")
	r.expect("EPRT |1|192.0.2.1|1234|", "500")
}

func TestPORTAllowsLoopbackPeer(t *testing.T) {
	t.Parallel()
	addr, _ := startTestServer(t)
	r := dialRaw(t, addr)
	r.login("alice", "secret")

	// Loopback-to-loopback redirection is what server-to-server transfers
	// between local instances need.
	r.expect("PORT 127,0,0,1,4,210", "200")
}

func TestPORTSyntaxErrors(t *testing.T) {
	t.Parallel()
	addr, _ := startTestServer(t)
	r := dialRaw(t, addr)
	r.login("alice", "secret")

	r.expect("PORT 1,2,3", "501")
	r.expect("PORT 1,2,3,4,999,1", "501")
	r.expect("PORT a,b,c,d,1,2", "501")
}

func TestEPRTSyntaxAndProtocol(t *testing.T) {
	t.Parallel()
	addr, _ := startTestServer(t)
	r := dialRaw(t, addr)
	r.login("alice", "secret")

	r.expect("EPRT |1|127.0.0.1|2000|", "200")
	r.expect("EPRT bogus", "501")
	r.expect("EPRT |3|127.0.0.1|2000|", "522")
	r.expect("EPRT |1|::1|2000|", "522")
	r.expect("EPRT |1|127.0.0.1|99999|", "501")
}

func TestOversizedCommandLine(t *testing.T) {
	t.Parallel()
	addr, _ := startTestServer(t)
	r := dialRaw(t, addr)

	long := make([]byte, maxCommandLength+10)
	for i := range long {
		long[i] = 'A'
	}
	if reply := r.cmd(string(long)); reply[:3] != "500" {
		t.Errorf("oversized command -> %q, want 500", reply)
	}
}
