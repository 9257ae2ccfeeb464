package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

const (
	defaultQueueSize     = 256
	defaultWriteTimeout  = 5 * time.Second
	defaultPruneInterval = 6 * time.Hour
)

// Logger is the logging interface used by the recorder.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Retention is how long entries are kept. Zero disables pruning.
	Retention time.Duration

	QueueSize     int
	PruneInterval time.Duration
}

// Recorder persists supply events and zone claim transitions.
//
// It implements heating.SupplyObserver and heating.ZoneObserver. The
// observer methods never block: entries are queued and written by Run.
// When the queue is full the entry is dropped and counted.
type Recorder struct {
	repo   Repository
	cfg    RecorderConfig
	logger Logger

	queue chan func(context.Context) error

	// lastClaim is only touched from the dispatch loop.
	lastClaim map[string]bool

	dropped atomic.Uint64
	written atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository, cfg RecorderConfig) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = defaultPruneInterval
	}
	return &Recorder{
		repo:      repo,
		cfg:       cfg,
		logger:    noopLogger{},
		queue:     make(chan func(context.Context) error, cfg.QueueSize),
		lastClaim: make(map[string]bool),
		done:      make(chan struct{}),
	}
}

// SetLogger sets the logger.
func (r *Recorder) SetLogger(l Logger) {
	if l != nil {
		r.logger = l
	}
}

// SupplyEvaluated implements heating.SupplyObserver. Evaluations are not
// persisted; only discrete events are.
func (r *Recorder) SupplyEvaluated(heating.SupplySnapshot) {}

// SupplyEvent implements heating.SupplyObserver.
func (r *Recorder) SupplyEvent(ev heating.SupplyEvent) {
	e := &Event{
		Kind:         ev.Kind,
		Mode:         ev.Mode,
		PreviousMode: ev.PreviousMode,
		FlowTarget:   ev.FlowTarget,
		ActiveZones:  append([]string(nil), ev.ActiveZones...),
		OutdoorTemp:  ev.OutdoorTemp,
		Details:      ev.Details,
		CreatedAt:    ev.Time,
	}
	r.enqueue(func(ctx context.Context) error { return r.repo.CreateEvent(ctx, e) })
}

// ZoneEvaluated implements heating.ZoneObserver. Only claim transitions
// are recorded; the first evaluation of a zone records its initial claim.
func (r *Recorder) ZoneEvaluated(s heating.ZoneSnapshot) {
	prev, seen := r.lastClaim[s.Location]
	if seen && prev == s.Claim {
		return
	}
	r.lastClaim[s.Location] = s.Claim

	c := &ClaimChange{
		Location:    s.Location,
		Claim:       s.Claim,
		CurrentTemp: s.CurrentTemp,
		Target:      s.EffectiveTarget,
		CreatedAt:   s.EvaluatedAt,
	}
	r.enqueue(func(ctx context.Context) error { return r.repo.CreateClaim(ctx, c) })
}

func (r *Recorder) enqueue(write func(context.Context) error) {
	select {
	case r.queue <- write:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("history queue full, dropping entries")
		}
	}
}

// Run writes queued entries and prunes old ones until ctx is cancelled or
// Stop is called. Entries still queued at shutdown are flushed.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PruneInterval)
	defer ticker.Stop()

	r.prune(ctx)

	for {
		select {
		case write := <-r.queue:
			r.write(ctx, write)
		case <-ticker.C:
			r.prune(ctx)
		case <-ctx.Done():
			r.flush(context.Background())
			return
		case <-r.done:
			r.flush(ctx)
			return
		}
	}
}

// Stop ends Run after flushing the queue.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// Stats returns the number of written and dropped entries.
func (r *Recorder) Stats() (written, dropped uint64) {
	return r.written.Load(), r.dropped.Load()
}

func (r *Recorder) flush(ctx context.Context) {
	for {
		select {
		case write := <-r.queue:
			r.write(ctx, write)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, write func(context.Context) error) {
	wctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()
	if err := write(wctx); err != nil {
		r.logger.Error("writing history entry", "error", err)
		return
	}
	r.written.Add(1)
}

func (r *Recorder) prune(ctx context.Context) {
	if r.cfg.Retention <= 0 {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	n, err := r.repo.Prune(pctx, r.cfg.Retention)
	if err != nil {
		r.logger.Error("pruning history", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("pruned history", "rows", n, "retention", r.cfg.Retention.String())
	}
}
