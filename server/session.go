package server

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxCommandLength bounds one control-channel line.
const maxCommandLength = 4096

var errLineTooLong = errors.New("command line too long")

// session is one control connection's state. Commands are read and handled
// one at a time, so handlers may freely swap the connection (AUTH TLS) or
// block on a data transfer.
type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	// id tags every log line of this session.
	id       string
	remoteIP string

	loggedIn bool
	user     string
	fs       ClientContext

	// transferType is "I" (binary) or "A" (ASCII).
	transferType string

	// hashAlgo is the algorithm OPTS HASH selected.
	hashAlgo string

	// prot is the data-channel protection level, "C" or "P".
	prot string

	// Passive listener or active endpoint, whichever the client armed
	// last. Consumed by the next RETR/STOR.
	pasvListener net.Listener
	activeAddr   string
}

func newSession(server *Server, conn net.Conn) *session {
	remoteIP := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}

	s := &session{
		server:       server,
		conn:         conn,
		reader:       bufio.NewReader(newTelnetReader(conn)),
		writer:       bufio.NewWriter(conn),
		id:           uuid.NewString(),
		remoteIP:     remoteIP,
		transferType: "I",
		hashAlgo:     "SHA-256",
		prot:         "C",
	}

	// An implicit-TLS listener hands us an already-encrypted connection;
	// default its data channel to private.
	if _, ok := conn.(*tls.Conn); ok {
		s.prot = "P"
	}

	return s
}

// commandHandlers dispatches everything except USER, PASS and QUIT, which
// manipulate login state and session lifetime directly.
var commandHandlers = map[string]func(*session, string){
	"SYST": (*session).handleSYST,
	"FEAT": (*session).handleFEAT,
	"OPTS": (*session).handleOPTS,
	"NOOP": (*session).handleNOOP,
	"TYPE": (*session).handleTYPE,
	"MODE": (*session).handleMODE,
	"STRU": (*session).handleSTRU,

	"PWD":  (*session).handlePWD,
	"CWD":  (*session).handleCWD,
	"CDUP": (*session).handleCDUP,
	"SIZE": (*session).handleSIZE,
	"HASH": (*session).handleHASH,

	"PASV": (*session).handlePASV,
	"EPSV": (*session).handleEPSV,
	"CPSV": (*session).handleCPSV,
	"PORT": (*session).handlePORT,
	"EPRT": (*session).handleEPRT,
	"RETR": (*session).handleRETR,
	"STOR": (*session).handleSTOR,

	"AUTH": (*session).handleAUTH,
	"PBSZ": (*session).handlePBSZ,
	"PROT": (*session).handlePROT,
}

func (s *session) serve() {
	defer s.close()

	s.reply(220, "FTP server ready.")
	s.server.logger.Info("session started", "session_id", s.id, "remote_ip", s.remoteIP)

	for {
		if s.server.idleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.idleTimeout))
		}

		line, err := s.readCommand()
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				s.reply(500, "Command line too long.")
			} else if err != io.EOF {
				s.server.logger.Debug("control read failed", "session_id", s.id, "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Time{})

		if !s.dispatch(line) {
			return
		}
	}
}

// readCommand reads one CRLF-terminated line with a length cap.
func (s *session) readCommand() (string, error) {
	var line []byte
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' {
			return strings.TrimRight(string(line), "\r"), nil
		}
		if len(line) >= maxCommandLength {
			return "", errLineTooLong
		}
		line = append(line, b)
	}
}

// dispatch handles one command line and reports whether the session
// continues.
func (s *session) dispatch(line string) bool {
	if line == "" {
		return true
	}

	verb, arg, _ := strings.Cut(line, " ")
	verb = strings.ToUpper(verb)

	logArg := arg
	if verb == "PASS" {
		logArg = "****"
	}
	s.server.logger.Debug("command", "session_id", s.id, "user", s.user, "verb", verb, "arg", logArg)

	switch verb {
	case "USER":
		s.handleUSER(arg)
	case "PASS":
		s.handlePASS(arg)
	case "QUIT":
		s.reply(221, "Goodbye.")
		return false
	default:
		if handler, ok := commandHandlers[verb]; ok {
			handler(s, arg)
		} else {
			s.reply(502, "Command not implemented.")
		}
	}
	return true
}

func (s *session) close() {
	if s.fs != nil {
		s.fs.Close()
	}
	if s.pasvListener != nil {
		s.pasvListener.Close()
	}
	s.conn.Close()

	s.server.logger.Info("session closed", "session_id", s.id, "remote_ip", s.remoteIP, "user", s.user)
}

// reply writes one single-line response.
func (s *session) reply(code int, message string) {
	fmt.Fprintf(s.writer, "%d %s\r\n", code, message)
	s.writer.Flush()
}

// replyError maps driver errors to the conventional 550 variants.
func (s *session) replyError(err error) {
	switch {
	case os.IsNotExist(err):
		s.reply(550, "File not found.")
	case os.IsPermission(err):
		s.reply(550, "Permission denied.")
	default:
		s.reply(550, "Action failed: "+err.Error())
	}
}

func (s *session) requireLogin() bool {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return false
	}
	return true
}

func (s *session) handleUSER(arg string) {
	if arg == "" {
		s.reply(501, "USER requires a name.")
		return
	}
	s.user = arg
	s.loggedIn = false
	s.reply(331, "User name okay, need password.")
}

func (s *session) handlePASS(arg string) {
	if s.user == "" {
		s.reply(503, "Login with USER first.")
		return
	}

	fs, err := s.server.driver.Authenticate(s.user, arg)
	if err != nil {
		s.server.logger.Warn("login rejected", "session_id", s.id, "remote_ip", s.remoteIP, "user", s.user)
		s.reply(530, "Login incorrect.")
		return
	}

	if s.fs != nil {
		s.fs.Close()
	}
	s.fs = fs
	s.loggedIn = true
	s.server.logger.Info("login", "session_id", s.id, "user", s.user)
	s.reply(230, "User logged in, proceed.")
}

func (s *session) handleSYST(string) {
	s.reply(215, "UNIX Type: L8")
}

func (s *session) handleNOOP(string) {
	s.reply(200, "OK.")
}

func (s *session) handleFEAT(string) {
	features := []string{
		"SIZE",
		"UTF8",
		"PASV",
		"EPSV",
		"EPRT",
		"HASH SHA-1;SHA-256;SHA-512;MD5;CRC32",
	}
	if s.server.tlsConfig != nil {
		features = append(features, "AUTH TLS", "PBSZ", "PROT")
	}

	s.writer.WriteString("211-Features:\r\n")
	for _, f := range features {
		s.writer.WriteString(" " + f + "\r\n")
	}
	s.writer.WriteString("211 End\r\n")
	s.writer.Flush()
}

func (s *session) handleOPTS(arg string) {
	upper := strings.ToUpper(arg)

	if strings.HasPrefix(upper, "UTF8") {
		s.reply(200, "Always in UTF8 mode.")
		return
	}

	// OPTS HASH <ALGO> selects the digest for subsequent HASH commands.
	if name, ok := strings.CutPrefix(upper, "HASH "); ok {
		switch name {
		case "SHA-1", "SHA-256", "SHA-512", "MD5", "CRC32":
			s.hashAlgo = name
			s.reply(200, name+" selected.")
		default:
			s.reply(501, "Unknown hash algorithm.")
		}
		return
	}

	s.reply(501, "Option not understood.")
}

func (s *session) handleTYPE(arg string) {
	if !s.requireLogin() {
		return
	}
	switch strings.ToUpper(arg) {
	case "A", "A N":
		s.transferType = "A"
		s.reply(200, "Type set to A.")
	case "I", "L 8":
		s.transferType = "I"
		s.reply(200, "Type set to I.")
	default:
		s.reply(504, "Type not supported.")
	}
}

func (s *session) handleMODE(arg string) {
	if strings.ToUpper(arg) == "S" {
		s.reply(200, "Mode set to S.")
		return
	}
	s.reply(504, "Only stream mode is supported.")
}

func (s *session) handleSTRU(arg string) {
	if strings.ToUpper(arg) == "F" {
		s.reply(200, "Structure set to F.")
		return
	}
	s.reply(504, "Only file structure is supported.")
}

// handleAUTH upgrades the control connection to TLS (RFC 4217).
func (s *session) handleAUTH(arg string) {
	if s.server.tlsConfig == nil {
		s.reply(502, "TLS not configured.")
		return
	}
	if strings.ToUpper(arg) != "TLS" {
		s.reply(504, "Only AUTH TLS is supported.")
		return
	}

	s.reply(234, "AUTH TLS successful.")

	tlsConn := tls.Server(s.conn, s.server.tlsConfig)
	s.conn = tlsConn
	s.reader = bufio.NewReader(newTelnetReader(tlsConn))
	s.writer = bufio.NewWriter(tlsConn)
}

func (s *session) handlePBSZ(string) {
	if s.server.tlsConfig == nil {
		s.reply(502, "TLS not configured.")
		return
	}
	s.reply(200, "PBSZ=0")
}

func (s *session) handlePROT(arg string) {
	if s.server.tlsConfig == nil {
		s.reply(502, "TLS not configured.")
		return
	}
	switch strings.ToUpper(arg) {
	case "P":
		s.prot = "P"
		s.reply(200, "PROT P OK.")
	case "C":
		s.prot = "C"
		s.reply(200, "PROT C OK.")
	default:
		s.reply(504, "PROT level not implemented.")
	}
}
