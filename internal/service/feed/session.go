package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/andres10976/certwatch/internal/metrics"
	"github.com/andres10976/certwatch/internal/model"
	"github.com/andres10976/certwatch/internal/repository"
	"github.com/andres10976/certwatch/internal/service/matcher"
)

// DefaultProgressEvery is how many received events pass between progress lines.
const DefaultProgressEvery = 100

type certStore interface {
	Insert(ctx context.Context, rec *model.CertificateRecord) (repository.InsertOutcome, error)
}

type eventRelay interface {
	Relay(ev model.CertificateEvent) error
}

// Session consumes one feed connection. Every certificate_update event is
// matched, offered to the store, and then relayed, one event at a time.
type Session struct {
	id       string
	dialer   Dialer
	store    certStore
	relay    eventRelay
	patterns model.MonitorConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics

	progressEvery int64

	state atomic.Int32

	received    atomic.Int64
	heartbeats  atomic.Int64
	matched     atomic.Int64
	stored      atomic.Int64
	duplicates  atomic.Int64
	storeErrors atomic.Int64
	relayed     atomic.Int64
	relayErrors atomic.Int64
	malformed   atomic.Int64
	failed      atomic.Int64
}

type Option func(*Session)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithProgressEvery(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.progressEvery = int64(n)
		}
	}
}

func NewSession(
	dialer Dialer,
	store certStore,
	relay eventRelay,
	patterns model.MonitorConfig,
	logger *slog.Logger,
	opts ...Option,
) *Session {
	s := &Session{
		id:            uuid.NewString(),
		dialer:        dialer,
		store:         store,
		relay:         relay,
		patterns:      patterns,
		progressEvery: DefaultProgressEvery,
	}
	for _, opt := range opts {
		opt(s)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger.With("component", "feed", "session_id", s.id)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Stats() Stats {
	return Stats{
		Received:    s.received.Load(),
		Heartbeats:  s.heartbeats.Load(),
		Matched:     s.matched.Load(),
		Stored:      s.stored.Load(),
		Duplicates:  s.duplicates.Load(),
		StoreErrors: s.storeErrors.Load(),
		Relayed:     s.relayed.Load(),
		RelayErrors: s.relayErrors.Load(),
		Malformed:   s.malformed.Load(),
		Failed:      s.failed.Load(),
	}
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.SessionState(int(st))
	s.logger.Debug("session state changed", "state", st.String())
}

// Run connects and processes events until ctx is cancelled or the stream ends.
// It returns nil on shutdown or an orderly upstream close, an error wrapping
// ErrTransportUnavailable when no transport can be used, and an error
// wrapping ErrStreamFailed when the transport broke mid-stream.
func (s *Session) Run(ctx context.Context) error {
	if s.dialer == nil {
		s.setState(StateClosed)
		return fmt.Errorf("%w: no dialer configured", ErrTransportUnavailable)
	}

	s.setState(StateConnecting)
	s.logger.Info("connecting to feed")

	stream, err := s.dialer.Dial(ctx)
	if err != nil {
		s.setState(StateClosed)
		switch {
		case errors.Is(err, ErrTransportUnavailable):
			return err
		case ctx.Err() != nil:
			s.logger.Info("shutdown requested while connecting")
			return nil
		default:
			return fmt.Errorf("%w: connect: %w", ErrStreamFailed, err)
		}
	}

	s.setState(StateStreaming)
	s.logger.Info("feed connected, streaming")

	runErr := s.consume(ctx, stream)

	s.setState(StateDraining)
	if err := stream.Close(); err != nil {
		s.logger.Warn("failed to close feed stream", "error", err)
	}

	s.setState(StateClosed)
	st := s.Stats()
	s.logger.Info("feed session stopped",
		"received", st.Received,
		"matched", st.Matched,
		"stored", st.Stored,
		"duplicates", st.Duplicates,
		"store_errors", st.StoreErrors,
		"relayed", st.Relayed,
		"malformed", st.Malformed,
	)
	return runErr
}

func (s *Session) consume(ctx context.Context, stream Stream) error {
	for {
		// Shutdown is only observed between events.
		if ctx.Err() != nil {
			s.logger.Info("shutdown requested, draining")
			return nil
		}

		ev, err := stream.Next(ctx)
		switch {
		case err == nil:
			s.handle(ctx, ev)
		case errors.Is(err, ErrMalformedEvent):
			s.malformed.Add(1)
			s.metrics.Malformed()
			s.countReceived()
			s.logger.Warn("skipping malformed event", "error", err)
		case ctx.Err() != nil:
			s.logger.Info("shutdown requested, draining")
			return nil
		case errors.Is(err, io.EOF):
			s.logger.Info("feed closed the stream")
			return nil
		default:
			s.logger.Error("feed stream error", "error", err)
			return fmt.Errorf("%w: %w", ErrStreamFailed, err)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev model.CertificateEvent) {
	switch ev.MessageType {
	case model.MessageHeartbeat:
		s.heartbeats.Add(1)
		s.metrics.Heartbeat()
		return
	case model.MessageCertificateUpdate:
	default:
		return
	}

	s.countReceived()

	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			s.metrics.Malformed()
			s.logger.Error("event handler panicked",
				"cert_index", ev.CertIndex, "error", r, "stack", string(debug.Stack()))
		}
	}()

	decision := matcher.DecideConfig(ev.Domains, s.patterns)
	if decision.Matched {
		s.matched.Add(1)
		s.metrics.Matched(decision.Pattern)
	}

	// The write must finish even if shutdown arrives mid-insert.
	outcome, err := s.insertRecord(context.WithoutCancel(ctx), &model.CertificateRecord{
		CertIndex:      ev.CertIndex,
		Domains:        ev.Domains,
		SerialNumber:   ev.SerialNumber,
		Issuer:         ev.IssuerCommonName,
		SeenAt:         ev.SeenAt,
		MatchedPattern: decision.PatternPtr(),
	})
	s.metrics.InsertOutcome(outcome.String())
	switch {
	case err != nil:
		s.storeErrors.Add(1)
		s.logger.Error("failed to store certificate", "cert_index", ev.CertIndex, "error", err)
	case outcome == repository.OutcomeDuplicate:
		s.duplicates.Add(1)
	default:
		s.stored.Add(1)
		if decision.Matched {
			s.logger.Info("stored matching certificate",
				"cert_index", ev.CertIndex,
				"domain", firstDomain(ev.Domains),
				"pattern", decision.Pattern,
			)
		}
	}

	err = s.relay.Relay(ev)
	s.metrics.Relayed(err)
	if err != nil {
		s.relayErrors.Add(1)
		s.logger.Error("failed to relay event", "cert_index", ev.CertIndex, "error", err)
		return
	}
	s.relayed.Add(1)
}

// insertRecord reports a panicking store as a failed insert so the event is
// still relayed.
func (s *Session) insertRecord(ctx context.Context, rec *model.CertificateRecord) (outcome repository.InsertOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			s.logger.Error("store insert panicked",
				"cert_index", rec.CertIndex, "error", r, "stack", string(debug.Stack()))
			outcome, err = repository.OutcomeFailed, fmt.Errorf("store insert panicked: %v", r)
		}
	}()
	return s.store.Insert(ctx, rec)
}

func (s *Session) countReceived() {
	n := s.received.Add(1)
	s.metrics.EventReceived()
	if n%s.progressEvery == 0 {
		s.logger.Info("progress", "received", n)
	}
}

func firstDomain(domains []string) string {
	if len(domains) == 0 {
		return "unknown"
	}
	return domains[0]
}
