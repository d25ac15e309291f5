package host

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vaultauction/core/events"
	"vaultauction/core/state"
	"vaultauction/observability/metrics"
)

// Clock supplies the unix timestamp every operation observes.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() uint64

// Now implements Clock.
func (f ClockFunc) Now() uint64 { return f() }

// SystemClock reads wall-clock seconds.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// Operation is one atomic unit of work. Everything it writes to tx and emits
// to emitter is discarded unless it returns nil and the commit succeeds.
type Operation func(ctx context.Context, tx *state.Tx, emitter events.Emitter) error

// Host executes operations one transaction at a time against a shared store.
// Operations on disjoint records run concurrently; overlapping ones are
// serialised by optimistic validation at commit, and the loser receives
// state.ErrConflict.
type Host struct {
	store   *state.Store
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.AuctionMetrics
	tracer  trace.Tracer
	clock   Clock
}

// Option customises a Host.
type Option func(*Host)

// WithEmitter forwards committed events to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(h *Host) {
		if emitter != nil {
			h.emitter = emitter
		}
	}
}

// WithLogger sets the operation logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *metrics.AuctionMetrics) Option {
	return func(h *Host) { h.metrics = m }
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(h *Host) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// New constructs a host over store.
func New(store *state.Store, opts ...Option) *Host {
	h := &Host{
		store:   store,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("vaultauction/core/host"),
		clock:   SystemClock{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Now returns the host clock reading.
func (h *Host) Now() uint64 { return h.clock.Now() }

// Execute runs fn in a fresh transaction. On success the transaction commits
// and the buffered events are forwarded downstream before the next commit
// can land; on any failure, including cancellation of ctx before commit,
// nothing is persisted or emitted.
func (h *Host) Execute(ctx context.Context, op string, fn Operation) (err error) {
	ctx, span := h.tracer.Start(ctx, "host."+op, trace.WithAttributes(attribute.String("op", op)))
	started := time.Now()
	defer func() {
		outcome := outcomeOf(err)
		h.metrics.ObserveOperation(op, outcome, time.Since(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			h.logger.Info("operation aborted",
				slog.String("op", op),
				slog.String("outcome", outcome),
				slog.Duration("duration", time.Since(started)),
				slog.String("error", err.Error()))
		} else {
			h.logger.Debug("operation committed",
				slog.String("op", op),
				slog.Duration("duration", time.Since(started)))
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := h.store.Begin()
	buf := &events.Buffer{}
	if err := fn(ctx, tx, buf); err != nil {
		tx.Discard()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.Discard()
		return err
	}
	// Events leave in commit order; a sink never sees an operation's events
	// before those of an operation that committed earlier.
	flush := func() { buf.FlushTo(h.emitter) }
	emitted := buf.Events()
	if err := tx.Commit(flush); err != nil {
		if errors.Is(err, state.ErrConflict) {
			h.metrics.ObserveConflict(op)
		}
		return err
	}
	for _, evt := range emitted {
		h.metrics.ObserveEvent(evt.EventType())
	}
	span.SetAttributes(attribute.Int("events", len(emitted)))
	return nil
}

// View runs fn against a read-only snapshot transaction.
func (h *Host) View(ctx context.Context, fn func(tx *state.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.store.View(fn)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, state.ErrConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "rejected"
	}
}
