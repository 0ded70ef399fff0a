package server

import (
	"fmt"
	"strings"
)

func (s *session) handlePWD(string) {
	if !s.requireLogin() {
		return
	}
	wd, err := s.fs.CurrentDir()
	if err != nil {
		s.replyError(err)
		return
	}
	// RFC 959 quoting: double-quotes inside the path are doubled.
	s.reply(257, fmt.Sprintf("%q is the current directory.", wd))
}

func (s *session) handleCWD(arg string) {
	if !s.requireLogin() {
		return
	}
	if arg == "" {
		s.reply(501, "CWD requires a path.")
		return
	}
	if err := s.fs.ChangeDir(arg); err != nil {
		s.replyError(err)
		return
	}
	s.reply(250, "Directory changed.")
}

func (s *session) handleCDUP(string) {
	if !s.requireLogin() {
		return
	}
	if err := s.fs.ChangeDir(".."); err != nil {
		s.replyError(err)
		return
	}
	s.reply(250, "Directory changed.")
}

func (s *session) handleSIZE(arg string) {
	if !s.requireLogin() {
		return
	}
	info, err := s.fs.Stat(arg)
	if err != nil || info.IsDir() {
		s.reply(550, "Could not get file size.")
		return
	}
	s.reply(213, fmt.Sprintf("%d", info.Size()))
}

// handleHASH answers the draft-bryan-ftp-hash checksum request with the
// algorithm selected via OPTS HASH.
func (s *session) handleHASH(arg string) {
	if !s.requireLogin() {
		return
	}
	if arg == "" {
		s.reply(501, "HASH requires a path.")
		return
	}

	digest, err := s.fs.Checksum(arg, s.hashAlgo)
	if err != nil {
		s.replyError(err)
		return
	}

	s.reply(213, strings.Join([]string{s.hashAlgo, digest, arg}, " "))
}
