// Package server provides an embeddable FTP/FTPS server.
//
// The command surface is aimed at server-to-server transfer clients:
// login, FEAT/OPTS, TYPE, working-directory navigation, SIZE, passive and
// active data-connection setup (PASV, EPSV, CPSV, PORT, EPRT), RETR and
// STOR, the HASH checksum extension (draft-bryan-ftp-hash) and the AUTH
// TLS upgrade (RFC 4217). Directory listing and file management commands
// are not implemented.
//
// File access goes through the Driver interface; NewFSDriver serves a
// local directory jailed with os.Root. Custom backends implement Driver
// and ClientContext.
//
// Basic usage:
//
//	driver, err := server.NewFSDriver("/srv/ftp")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s, err := server.New(":2121", server.WithDriver(driver))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
//
// Graceful shutdown:
//
//	ln, _ := net.Listen("tcp", ":2121")
//	go s.Serve(ln)
//	...
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	err := s.Shutdown(ctx)
//
// PORT and EPRT targets are validated against the control connection's
// peer to prevent bounce attacks; a loopback peer may redirect the data
// connection to another loopback address, which lets two local instances
// exchange files server-to-server.
package server
