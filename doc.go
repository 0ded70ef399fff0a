// Package ftpx implements an FTP/FTPS client built around server-to-server
// (FXP) transfers: passive-endpoint negotiation with fallback, direct
// data-connection handoff between two servers, optional transfer monitoring
// over a third control connection, and checksum-based verification.
//
// # Overview
//
// This package provides:
//   - Plain FTP, explicit TLS (AUTH TLS) and implicit TLS connections
//   - FXP session negotiation between two servers (PASV with CPSV fallback,
//     PORT handoff of the advertised endpoint)
//   - Transfer execution with concurrent completion tracking and optional
//     size polling on a dedicated monitoring connection
//   - Post-transfer verification against the remote HASH digest
//     (draft-bryan-ftp-hash), degrading gracefully when the server lacks
//     the capability
//   - Robust error handling with detailed protocol context
//
// # Cancellation
//
// Every network operation takes a context.Context, checked before each
// command send and each reply read. Passing context.Background() gives
// plain blocking behavior; a cancellable context can interrupt an operation
// mid-wait. Both run the same code path and produce the same protocol
// behavior.
//
// # Server-to-Server Transfers
//
// A transfer between two servers needs two connected clients. The
// negotiation tells the target to listen and the source to dial, then
// Transfer runs the exchange over the direct connection between them:
//
//	src, err := ftpx.Dial(ctx, "eu.example.com:21", ftpx.WithCredentials("alice", "secret"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer src.Quit()
//
//	dst, err := ftpx.Dial(ctx, "us.example.com:21", ftpx.WithCredentials("alice", "secret"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dst.Quit()
//
//	session, err := ftpx.NegotiateFXP(ctx, src, dst, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	if err := session.Transfer(ctx, "data.bin", "data.bin"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Verification
//
// After an upload, the local file can be checked against the server's
// digest. Absence of the HASH capability is reported as a skip, not a
// failure:
//
//	verifier := ftpx.NewVerifier(dst)
//	status, err := verifier.Verify(ctx, "local/data.bin", "data.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if status == ftpx.VerifyFailed {
//	    log.Println("digest mismatch, consider re-transferring")
//	}
//
// # TLS Support
//
// Explicit TLS (recommended): the client connects on port 21 and upgrades
// using AUTH TLS:
//
//	client, err := ftpx.Dial(ctx, "ftp.example.com:21",
//	    ftpx.WithExplicitTLS(&tls.Config{
//	        ServerName: "ftp.example.com",
//	    }),
//	)
//
// Implicit TLS: the client connects directly with TLS on port 990. This is
// a legacy mode but still used by some servers:
//
//	client, err := ftpx.Dial(ctx, "ftp.example.com:990",
//	    ftpx.WithImplicitTLS(&tls.Config{
//	        ServerName: "ftp.example.com",
//	    }),
//	)
//
// TLS sessions are cached and reused across connections, including the
// cloned monitoring connection many strict servers require to resume the
// control session.
//
// # Error Handling
//
// Errors returned by this package keep the protocol context. Failed
// commands surface as *ProtocolError, unparseable success replies as
// *MalformedReplyError:
//
//	if _, err := ftpx.NegotiateFXP(ctx, src, dst, false); err != nil {
//	    var pe *ftpx.ProtocolError
//	    if errors.As(err, &pe) {
//	        fmt.Printf("Command: %s\n", pe.Command)
//	        fmt.Printf("Reply: %s (code %d)\n", pe.Message, pe.Code)
//	    }
//	}
package ftpx
