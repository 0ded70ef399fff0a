package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// dataConnTimeout bounds how long the session waits for the peer to dial a
// passive listener, or how long an active dial may take.
const dataConnTimeout = 10 * time.Second

// listenPassive opens a data listener, cycling through the configured port
// range when one is set.
func (s *session) listenPassive() (net.Listener, error) {
	min, max := s.server.pasvMinPort, s.server.pasvMaxPort
	if min == 0 {
		return net.Listen("tcp", ":0")
	}

	rangeLen := int32(max - min + 1)
	start := s.server.nextPasvPort.Add(1)
	for i := int32(0); i < rangeLen; i++ {
		port := min + int((start+i)%rangeLen)
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("no free port in range [%d, %d]", min, max)
}

// armPassive replaces any previously armed data endpoint with a fresh
// passive listener and returns its port.
func (s *session) armPassive() (int, bool) {
	if s.pasvListener != nil {
		s.pasvListener.Close()
		s.pasvListener = nil
	}
	s.activeAddr = ""

	ln, err := s.listenPassive()
	if err != nil {
		s.server.logger.Warn("passive listen failed", "session_id", s.id, "error", err)
		s.reply(425, "Can't open passive connection.")
		return 0, false
	}
	s.pasvListener = ln

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port, true
}

// pasvHost picks the address to advertise: the configured public host if
// any, otherwise the control connection's local address.
func (s *session) pasvHost() net.IP {
	host := s.server.publicHost
	if host == "" {
		host, _, _ = net.SplitHostPort(s.conn.LocalAddr().String())
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.To4()
	}

	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		if v4 := addr.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

// replyPassive sends the 227 six-group endpoint reply shared by PASV and
// CPSV.
func (s *session) replyPassive(port int) {
	ip := s.pasvHost()

	quad := "0,0,0,0"
	if ip != nil {
		quad = strings.ReplaceAll(ip.String(), ".", ",")
	}

	s.reply(227, fmt.Sprintf("Entering Passive Mode (%s,%d,%d).", quad, port/256, port%256))
}

func (s *session) handlePASV(string) {
	if !s.requireLogin() {
		return
	}
	port, ok := s.armPassive()
	if !ok {
		return
	}
	s.replyPassive(port)
}

// handleCPSV arms a passive endpoint for a server-to-server transfer. The
// reply format is identical to PASV; clients fall back to it when PASV is
// refused during FXP negotiation.
func (s *session) handleCPSV(string) {
	if !s.requireLogin() {
		return
	}
	port, ok := s.armPassive()
	if !ok {
		return
	}
	s.replyPassive(port)
}

func (s *session) handleEPSV(string) {
	if !s.requireLogin() {
		return
	}
	port, ok := s.armPassive()
	if !ok {
		return
	}
	s.reply(229, fmt.Sprintf("Entering Extended Passive Mode (|||%d|)", port))
}

// validateDataPeer guards PORT/EPRT targets against bounce attacks: the
// target must be the control connection's peer, or both must be loopback
// addresses, which keeps server-to-server transfers between local
// instances working.
func (s *session) validateDataPeer(ip net.IP) bool {
	remote := net.ParseIP(s.remoteIP)
	if remote == nil {
		return false
	}
	if ip.Equal(remote) {
		return true
	}
	return ip.IsLoopback() && remote.IsLoopback()
}

// armActive records an endpoint for the next transfer to dial.
func (s *session) armActive(ip net.IP, port int) {
	if s.pasvListener != nil {
		s.pasvListener.Close()
		s.pasvListener = nil
	}
	s.activeAddr = net.JoinHostPort(ip.String(), strconv.Itoa(port))
}

func (s *session) handlePORT(arg string) {
	if !s.requireLogin() {
		return
	}

	// h1,h2,h3,h4,p1,p2
	parts := strings.Split(arg, ",")
	if len(parts) != 6 {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}

	p1, err1 := strconv.Atoi(parts[4])
	p2, err2 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		s.reply(501, "Invalid port number.")
		return
	}

	ip := net.ParseIP(strings.Join(parts[0:4], "."))
	if ip == nil {
		s.reply(501, "Invalid IP address.")
		return
	}
	if !s.validateDataPeer(ip) {
		s.server.logger.Warn("bounce attempt rejected", "session_id", s.id, "remote_ip", s.remoteIP, "target", ip.String())
		s.reply(500, "Illegal PORT command.")
		return
	}

	s.armActive(ip, p1*256+p2)
	s.reply(200, "PORT command successful.")
}

func (s *session) handleEPRT(arg string) {
	if !s.requireLogin() {
		return
	}

	// |proto|ip|port|
	if len(arg) < 4 {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	parts := strings.Split(arg, string(arg[0]))
	if len(parts) != 5 {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}

	proto, ipStr, portStr := parts[1], parts[2], parts[3]
	if proto != "1" && proto != "2" {
		s.reply(522, "Network protocol not supported, use (1,2).")
		return
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		s.reply(501, "Invalid network address.")
		return
	}
	if proto == "1" && ip.To4() == nil {
		s.reply(522, "Network protocol not supported, use (2).")
		return
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		s.reply(501, "Invalid port number.")
		return
	}

	if !s.validateDataPeer(ip) {
		s.server.logger.Warn("bounce attempt rejected", "session_id", s.id, "remote_ip", s.remoteIP, "target", ip.String())
		s.reply(500, "Illegal EPRT command.")
		return
	}

	s.armActive(ip, port)
	s.reply(200, "EPRT command successful.")
}

// openDataConn produces the data connection for a transfer, from whichever
// endpoint the client armed last.
func (s *session) openDataConn() (net.Conn, error) {
	var conn net.Conn
	var err error

	switch {
	case s.pasvListener != nil:
		if tl, ok := s.pasvListener.(*net.TCPListener); ok {
			_ = tl.SetDeadline(time.Now().Add(dataConnTimeout))
		}
		conn, err = s.pasvListener.Accept()
		s.pasvListener.Close()
		s.pasvListener = nil
	case s.activeAddr != "":
		conn, err = net.DialTimeout("tcp", s.activeAddr, dataConnTimeout)
		s.activeAddr = ""
	default:
		return nil, fmt.Errorf("no data connection armed")
	}
	if err != nil {
		return nil, err
	}

	if s.prot == "P" {
		if s.server.tlsConfig == nil {
			conn.Close()
			return nil, fmt.Errorf("TLS configuration missing")
		}
		// RFC 4217: the server side of the data connection is the TLS
		// server.
		tlsConn := tls.Server(conn, s.server.tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	if !s.server.track(conn, true) {
		return nil, ErrServerClosed
	}
	return &trackedConn{Conn: conn, server: s.server}, nil
}

func (s *session) handleRETR(arg string) {
	if !s.requireLogin() {
		return
	}

	file, err := s.fs.Open(arg)
	if err != nil {
		s.replyError(err)
		return
	}
	defer file.Close()

	if s.pasvListener == nil && s.activeAddr == "" {
		s.reply(425, "Use PASV or PORT first.")
		return
	}

	// 150 goes out before the accept: in a server-to-server transfer the
	// peer only dials once its client has seen this reply.
	s.reply(150, "Opening data connection for RETR.")

	conn, err := s.openDataConn()
	if err != nil {
		s.reply(425, "Can't open data connection.")
		return
	}
	defer conn.Close()

	var src io.Reader = file
	if s.transferType == "A" {
		src = newASCIIReader(src)
	}
	src = s.throttle(src)

	start := time.Now()
	n, err := io.Copy(conn, src)
	if err != nil {
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}

	s.finishTransfer("RETR", arg, n, time.Since(start))
}

func (s *session) handleSTOR(arg string) {
	if !s.requireLogin() {
		return
	}

	file, err := s.fs.Create(arg)
	if err != nil {
		s.replyError(err)
		return
	}
	defer file.Close()

	if s.pasvListener == nil && s.activeAddr == "" {
		s.reply(425, "Use PASV or PORT first.")
		return
	}

	s.reply(150, "Opening data connection for STOR.")

	conn, err := s.openDataConn()
	if err != nil {
		s.reply(425, "Can't open data connection.")
		return
	}
	defer conn.Close()

	var src io.Reader = conn
	if s.transferType == "A" {
		src = newASCIIDecoder(src)
	}
	src = s.throttle(src)

	start := time.Now()
	n, err := io.Copy(file, src)
	if err != nil {
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}

	s.finishTransfer("STOR", arg, n, time.Since(start))
}

func (s *session) finishTransfer(direction, path string, bytes int64, d time.Duration) {
	s.server.logger.Info("transfer complete",
		"session_id", s.id,
		"user", s.user,
		"direction", direction,
		"path", path,
		"bytes", bytes,
		"duration_ms", d.Milliseconds(),
	)

	if s.server.metrics != nil {
		s.server.metrics.TransferCompleted(direction, bytes, d)
	}

	s.reply(226, "Transfer complete.")
}

// throttle wraps r with the server-wide throughput limiter when one is
// configured.
func (s *session) throttle(r io.Reader) io.Reader {
	if s.server.throughput == nil {
		return r
	}
	return &throttledReader{r: r, limiter: s.server.throughput}
}

// throttledReader paces reads through a shared rate.Limiter, charging each
// chunk after it is read.
type throttledReader struct {
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	// Cap the chunk at the limiter's burst so WaitN cannot fail.
	if burst := t.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.limiter.WaitN(context.Background(), n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
