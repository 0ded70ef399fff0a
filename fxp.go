package ftpx

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// FXPSession is the outcome of a successful server-to-server negotiation.
// After negotiation the target is listening on an advertised endpoint and
// the source has been told to dial it; Transfer starts the actual exchange.
type FXPSession struct {
	// Source is the borrowed handle that reads the file (the RETR side).
	// Its lifecycle belongs to the caller.
	Source *Client

	// Target is the borrowed handle that writes the file (the STOR side).
	// Its lifecycle belongs to the caller.
	Target *Client

	// Progress is the session-owned monitoring connection, nil unless
	// requested at negotiation time. It is released by Close.
	Progress *Client
}

// Close releases the session-owned progress connection, if any. The source
// and target handles are borrowed and stay open.
func (s *FXPSession) Close() error {
	if s.Progress == nil {
		return nil
	}
	err := s.Progress.Quit()
	s.Progress = nil
	return err
}

// NegotiateFXP prepares a server-to-server transfer between two connected,
// authenticated clients: it sets the transfer data type on both ends, asks
// target for a passive endpoint (PASV, falling back to CPSV when PASV is
// refused), and hands the advertised endpoint to source with PORT.
//
// With trackProgress, a third control connection is opened first: a clone of
// target's configuration, logged in independently and moved to target's
// working directory as of this instant. A clone that cannot connect or
// cannot reach that directory fails the whole negotiation; there is no
// silent fallback to an unmonitored session. The returned session owns the
// clone and releases it on Close; when negotiation fails or is cancelled
// after the clone came up, it is released before the error returns.
//
// Steps run strictly in this order and each observes ctx. A step's failure
// aborts the negotiation with nothing rolled back: a data type already set
// stays set, since the transfer attempt is abandoned anyway.
func NegotiateFXP(ctx context.Context, source, target *Client, trackProgress bool) (*FXPSession, error) {
	if source == nil || target == nil || source == target {
		return nil, fmt.Errorf("%w: source and target must be distinct clients", ErrInvalidArgument)
	}
	if !source.IsConnected() || !target.IsConnected() {
		return nil, ErrNotConnected
	}

	var progress *Client
	if trackProgress {
		p, err := connectProgress(ctx, target)
		if err != nil {
			return nil, err
		}
		progress = p
	}

	fail := func(err error) (*FXPSession, error) {
		if progress != nil {
			_ = progress.Quit()
		}
		return nil, err
	}

	// Both ends must agree on the data representation before any endpoint
	// is advertised.
	dataType := target.dataType
	if err := source.Type(ctx, dataType); err != nil {
		return fail(fmt.Errorf("set data type on source: %w", err))
	}
	if err := target.Type(ctx, dataType); err != nil {
		return fail(fmt.Errorf("set data type on target: %w", err))
	}

	endpoint, err := passiveEndpoint(ctx, target)
	if err != nil {
		return fail(err)
	}

	// The endpoint literal goes to the peer verbatim; rebuilding it from
	// the parsed values could diverge from what the target advertised.
	reply, err := source.sendCommand(ctx, "PORT", endpoint.Literal)
	if err != nil {
		return fail(err)
	}
	if !reply.Is2xx() {
		return fail(protocolError("PORT", reply))
	}

	source.logger.Debug("fxp session negotiated",
		"endpoint", endpoint.Addr(), "data_type", dataType, "progress", progress != nil)

	return &FXPSession{Source: source, Target: target, Progress: progress}, nil
}

// connectProgress builds the monitoring connection: a clone of target's
// configuration, independently connected and logged in, then aligned to
// target's working directory as it is right now. The snapshot is one-time;
// the two connections drift apart afterwards.
func connectProgress(ctx context.Context, target *Client) (*Client, error) {
	p := target.Clone()
	if err := p.Connect(ctx); err != nil {
		return nil, fmt.Errorf("progress connection: %w", err)
	}

	wd, err := target.CurrentDir(ctx)
	if err == nil {
		err = p.ChangeDir(ctx, wd)
	}
	if err != nil {
		_ = p.Quit()
		return nil, fmt.Errorf("progress connection: %w", err)
	}

	return p, nil
}

// passiveEndpoint asks target for a passive endpoint, trying PASV first and
// CPSV when PASV is refused. When both are refused, the PASV failure is the
// one reported: it is the interoperable baseline and its diagnostic is the
// useful one. A successful reply that does not parse aborts the negotiation
// without trying the other command; a malformed success reply is a protocol
// violation, not a retryable condition.
func passiveEndpoint(ctx context.Context, target *Client) (PassiveEndpoint, error) {
	primary, err := target.sendCommand(ctx, "PASV")
	if err != nil {
		return PassiveEndpoint{}, err
	}

	reply, command := primary, "PASV"
	if !primary.Is2xx() {
		fallback, err := target.sendCommand(ctx, "CPSV")
		if err != nil {
			return PassiveEndpoint{}, err
		}
		if !fallback.Is2xx() {
			return PassiveEndpoint{}, protocolError("PASV", primary)
		}
		reply, command = fallback, "CPSV"
	}

	endpoint, err := ParsePassiveEndpoint(reply.Message)
	if err != nil {
		return PassiveEndpoint{}, err
	}

	target.logger.Debug("passive endpoint negotiated", "command", command, "endpoint", endpoint.Addr())
	return endpoint, nil
}

// transferConfig collects the per-transfer options.
type transferConfig struct {
	progress ProgressFunc
	interval time.Duration
}

// TransferOption is a functional option for a single transfer.
type TransferOption func(*transferConfig)

// WithTransferProgress reports the observed byte count at the target while
// the transfer runs. It requires a session negotiated with trackProgress;
// Transfer rejects the combination otherwise rather than silently dropping
// the reporting.
func WithTransferProgress(fn ProgressFunc) TransferOption {
	return func(tc *transferConfig) {
		tc.progress = fn
	}
}

// WithProgressInterval sets how often the target size is polled while a
// transfer runs. The default is one second.
func WithProgressInterval(interval time.Duration) TransferOption {
	return func(tc *transferConfig) {
		if interval > 0 {
			tc.interval = interval
		}
	}
}

// Transfer moves one file across a negotiated session: STOR on the target
// (arming its passive listener), RETR on the source (which dials the
// advertised endpoint), then both completion replies are awaited
// concurrently. Either side's failure cancels the other wait.
//
// Completion waits are not bounded by the command timeout; a long transfer
// is bounded only by ctx.
//
// A failed or aborted transfer consumes the negotiated endpoint: discard
// the session and negotiate again before retrying. The source and target
// control channels themselves stay usable.
func (s *FXPSession) Transfer(ctx context.Context, sourcePath, targetPath string, opts ...TransferOption) error {
	if sourcePath == "" || targetPath == "" {
		return fmt.Errorf("%w: blank transfer path", ErrInvalidArgument)
	}

	cfg := transferConfig{interval: time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.progress != nil && s.Progress == nil {
		return fmt.Errorf("%w: progress reporting requires a session negotiated with trackProgress", ErrInvalidArgument)
	}

	// STOR goes first so the target is committed to its listener before the
	// source starts dialing.
	storReply, err := s.Target.expect1xx(ctx, "STOR", targetPath)
	if err != nil {
		return fmt.Errorf("start store: %w", err)
	}
	retrReply, err := s.Source.expect1xx(ctx, "RETR", sourcePath)
	if err != nil {
		// The target already acknowledged the store and still owes a
		// completion reply (a 426 once its data accept gives up). Drain it
		// so the next command on the borrowed handle reads its own reply.
		if !storReply.Is2xx() {
			s.drainTarget(ctx)
		}
		return fmt.Errorf("start retrieve: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// A direct 2xx means that side already considers the transfer complete
	// and will not send a second reply.
	if !retrReply.Is2xx() {
		g.Go(func() error {
			reply, err := s.Source.completionReply(gctx)
			if err != nil {
				return fmt.Errorf("source completion: %w", err)
			}
			if !reply.Is2xx() {
				return protocolError("RETR", reply)
			}
			return nil
		})
	}
	if !storReply.Is2xx() {
		g.Go(func() error {
			reply, err := s.Target.completionReply(gctx)
			if err != nil {
				return fmt.Errorf("target completion: %w", err)
			}
			if !reply.Is2xx() {
				return protocolError("STOR", reply)
			}
			return nil
		})
	}

	var cancelPoll context.CancelFunc
	var pollDone chan struct{}
	if cfg.progress != nil {
		var pollCtx context.Context
		pollCtx, cancelPoll = context.WithCancel(gctx)
		pollDone = make(chan struct{})
		go func() {
			defer close(pollDone)
			pollSize(pollCtx, s.Progress, targetPath, cfg.interval, cfg.progress)
		}()
	}

	err = g.Wait()

	if cancelPoll != nil {
		cancelPoll()
		<-pollDone
	}

	return err
}

// drainTarget reads the completion reply the target owes after a store that
// started but will never receive data. Best effort, bounded by the target's
// command timeout so an unresponsive server cannot hold the caller.
func (s *FXPSession) drainTarget(ctx context.Context) {
	if s.Target.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Target.timeout)
		defer cancel()
	}
	if reply, err := s.Target.completionReply(ctx); err == nil {
		s.Target.logger.Debug("drained abandoned store reply", "code", reply.Code, "message", reply.Message)
	}
}
