package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/strahe/pgreplay-sentinel/pgproto"
	"github.com/yugabyte/pgx/v5/pgconn"
	"github.com/yugabyte/pgx/v5/pgproto3"
)

// Session drives one replication connection end to end: preflight,
// START_REPLICATION, the CopyBoth receive loop, transaction
// buffering, sink dispatch, and feedback reporting. It owns exactly
// one goroutine's worth of control flow — Run blocks the calling
// goroutine for the lifetime of the session, matching the
// single-threaded cooperative model the rest of this package assumes.
type Session struct {
	cfg    Config
	logger Logger

	mu    sync.Mutex
	state State

	replConn *pgconn.PgConn
	plainConn *pgconn.PgConn

	receivedLSN pgproto.LSN
	appliedLSN  pgproto.LSN

	feedbackPeriod time.Duration
}

func NewSession(cfg Config, logger Logger) *Session {
	if logger == nil {
		logger = NoopLogger
	}
	period := defaultFeedbackPeriod
	if cfg.FeedbackInterval > 0 {
		period = time.Duration(cfg.FeedbackInterval) * time.Second
	}
	return &Session{cfg: cfg, logger: logger, state: Disconnected, feedbackPeriod: period}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run executes the full session lifecycle and blocks until ctx is
// canceled or a fatal error occurs. sink receives every committed
// transaction's events, in order, after preflight succeeds and
// streaming begins.
func (s *Session) Run(ctx context.Context, sink Sink) error {
	if err := s.cfg.validate(); err != nil {
		return err
	}

	plainConn, err := connectPlain(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	s.plainConn = plainConn
	defer plainConn.Close(ctx)
	s.setState(Connected)

	replConn, err := connectReplication(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	s.replConn = replConn
	defer replConn.Close(ctx)

	if err := runPreflight(ctx, plainConn, replConn, s.cfg); err != nil {
		return err
	}
	s.setState(Validated)

	systemID, _, xlogpos, _, err := identifySystem(ctx, replConn)
	if err != nil {
		return err
	}
	s.logger.Infof("identified system %s at %s", systemID, xlogpos)
	s.setState(Identified)

	serverLSN, err := pgproto.ParseLSN(xlogpos)
	if err != nil {
		return pgerr.NewConnectionError("parse IDENTIFY_SYSTEM xlogpos", err)
	}
	s.receivedLSN = serverLSN

	// Requesting 0/0 lets the server resume from the slot's confirmed
	// position; appliedLSN stays unset until a Commit is delivered.
	if _, err := replConn.Exec(ctx, startReplicationSQL(s.cfg.SlotName, 0, s.cfg.PubName)).ReadAll(); err != nil {
		return pgerr.NewConnectionError("START_REPLICATION", err)
	}
	s.setState(Ready)
	s.setState(Streaming)

	correlationID := uuid.NewString()
	processor := NewProcessor(plainConn, correlationID, s.logger)

	err = s.streamLoop(ctx, processor, sink)

	s.setState(Closing)
	s.gracefulShutdown(ctx)
	s.setState(Closed)
	return err
}

func (s *Session) streamLoop(ctx context.Context, processor *Processor, out Sink) error {
	nextFeedback := time.Now().Add(s.feedbackPeriod)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if time.Now().After(nextFeedback) {
			if err := sendFeedback(s.replConn, s.receivedLSN, s.appliedLSN); err != nil {
				return err
			}
			nextFeedback = time.Now().Add(s.feedbackPeriod)
		}

		msg, err := receiveCopyMessage(ctx, s.replConn, nextFeedback)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return pgerr.NewConnectionError("receive replication message", err)
		}

		cd, ok := msg.(*pgproto3.CopyData)
		if !ok {
			s.logger.Warnf("unexpected message during streaming: %T", msg)
			continue
		}
		if len(cd.Data) == 0 {
			continue
		}

		switch cd.Data[0] {
		case byteKeepalive:
			ka, err := parseKeepalive(cd.Data[1:])
			if err != nil {
				return pgerr.NewProtocolError(byteKeepalive, 0, err.Error())
			}
			s.receivedLSN = pgproto.Max(s.receivedLSN, ka.WALEnd)
			if ka.ReplyRequested {
				if err := sendFeedback(s.replConn, s.receivedLSN, s.appliedLSN); err != nil {
					return err
				}
				nextFeedback = time.Now().Add(s.feedbackPeriod)
			}

		case byteXLogData:
			xld, err := parseXLogData(cd.Data[1:])
			if err != nil {
				return pgerr.NewProtocolError(byteXLogData, 0, err.Error())
			}
			s.receivedLSN = pgproto.Max(s.receivedLSN, xld.WALEnd)

			decoded, err := pgproto.Parse(xld.Payload, processor.Streaming())
			if err != nil {
				if errors.Is(err, pgproto.ErrUnknownKind) {
					s.logger.Warnf("skipping unrecognized message: %v", err)
					continue
				}
				return err
			}
			events, err := processor.Process(ctx, decoded, xld.WALStart)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				continue
			}
			if err := s.dispatch(ctx, out, events, decoded.Commit != nil || decoded.StreamCommit != nil); err != nil {
				s.logger.Errorf("sink delivery failed permanently: %v", err)
				// Permanent failure: log and continue without
				// advancing applied_lsn for this transaction, per the
				// commit-gated sending policy.
				continue
			}
			if decoded.Commit != nil {
				s.appliedLSN = pgproto.Max(s.appliedLSN, decoded.Commit.TransactionEnd)
			} else if decoded.StreamCommit != nil {
				s.appliedLSN = pgproto.Max(s.appliedLSN, decoded.StreamCommit.TransactionEnd)
			}
			if err := sendFeedback(s.replConn, s.receivedLSN, s.appliedLSN); err != nil {
				return err
			}
			nextFeedback = time.Now().Add(s.feedbackPeriod)

		default:
			s.logger.Warnf("unknown CopyData discriminator %q", cd.Data[0])
		}
	}
}

// dispatch delivers every event Process returned, in order, stopping
// at the first delivery error. isCommit is true when the batch ends
// with a Commit or StreamCommit and false for a standalone
// non-transactional message; dispatch itself does not read it.
func (s *Session) dispatch(ctx context.Context, out Sink, events []*Event, isCommit bool) error {
	for _, ev := range events {
		if err := out.Deliver(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// gracefulShutdown sends a final feedback frame best-effort; failures
// here are logged, not propagated, since the session is already
// tearing down.
func (s *Session) gracefulShutdown(_ context.Context) {
	if s.replConn == nil || s.replConn.IsClosed() {
		return
	}
	if err := sendFeedback(s.replConn, s.receivedLSN, s.appliedLSN); err != nil {
		s.logger.Warnf("final feedback frame failed: %v", err)
	}
}
