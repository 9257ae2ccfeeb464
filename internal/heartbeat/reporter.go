package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultReportInterval is how often health is published.
const DefaultReportInterval = 30 * time.Second

const checkTimeout = 3 * time.Second

// Status is the overall health of the controller.
type Status string

// Health statuses.
const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusStarting Status = "starting"
	StatusStopping Status = "stopping"
)

// Checker is implemented by every component that can report its health
// (MQTT, SQLite, InfluxDB).
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck implements Checker.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Publisher publishes a retained payload.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Health is the published health document.
type Health struct {
	Service    string            `json:"service"`
	Version    string            `json:"version"`
	Status     Status            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Components map[string]string `json:"components"`
	Details    map[string]any    `json:"details,omitempty"`
	UptimeSecs int64             `json:"uptime_seconds"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ReporterConfig configures a Reporter.
type ReporterConfig struct {
	Service  string
	Version  string
	Topic    string
	Interval time.Duration

	// Publisher may be nil, in which case Evaluate still works for the API.
	Publisher Publisher

	// Details adds controller state (supply mode, flow target) to the
	// document. It must be safe to call from any goroutine.
	Details func() map[string]any
}

// Reporter evaluates component checks and publishes the result.
type Reporter struct {
	cfg       ReporterConfig
	startTime time.Time

	checks   map[string]Checker
	checksMu sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// NewReporter creates a reporter. Call Start to begin publishing.
func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReportInterval
	}
	return &Reporter{
		cfg:       cfg,
		startTime: time.Now(),
		checks:    make(map[string]Checker),
		done:      make(chan struct{}),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger.
func (r *Reporter) SetLogger(l Logger) {
	if l != nil {
		r.logger = l
	}
}

// Register adds a named component check. A failing check degrades the
// overall status.
func (r *Reporter) Register(name string, c Checker) {
	r.checksMu.Lock()
	r.checks[name] = c
	r.checksMu.Unlock()
}

// Start publishes a starting document, then the evaluated health every
// interval until ctx is cancelled or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	if err := r.publish(Health{Status: StatusStarting, Components: map[string]string{}}); err != nil {
		r.logger.Warn("failed to publish starting health", "error", err)
	}
	r.wg.Add(1)
	go r.reportLoop(ctx)
}

// Stop ends reporting and publishes a final stopping document.
// Safe to call more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		//nolint:errcheck // best effort during shutdown
		r.publish(Health{Status: StatusStopping, Components: map[string]string{}})
	})
}

// Evaluate runs every check and returns the current health.
func (r *Reporter) Evaluate(ctx context.Context) Health {
	r.checksMu.RLock()
	names := make([]string, 0, len(r.checks))
	checks := make(map[string]Checker, len(r.checks))
	for name, c := range r.checks {
		names = append(names, name)
		checks[name] = c
	}
	r.checksMu.RUnlock()
	sort.Strings(names)

	h := Health{Status: StatusHealthy, Components: make(map[string]string, len(names))}
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checks[name].HealthCheck(cctx)
		cancel()

		if err == nil {
			h.Components[name] = "ok"
			continue
		}
		h.Components[name] = err.Error()
		if h.Status == StatusHealthy {
			h.Status = StatusDegraded
			h.Reason = fmt.Sprintf("%s: %v", name, err)
		}
	}
	if r.cfg.Details != nil {
		h.Details = r.cfg.Details()
	}
	return r.stamp(h)
}

// PublishNow evaluates and publishes immediately.
func (r *Reporter) PublishNow(ctx context.Context) error {
	return r.publish(r.Evaluate(ctx))
}

func (r *Reporter) reportLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	if err := r.PublishNow(ctx); err != nil {
		r.logger.Warn("failed to publish health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.PublishNow(ctx); err != nil {
				r.logger.Warn("failed to publish health", "error", err)
			}
		}
	}
}

func (r *Reporter) stamp(h Health) Health {
	now := time.Now().UTC()
	h.Service = r.cfg.Service
	h.Version = r.cfg.Version
	h.UptimeSecs = int64(now.Sub(r.startTime).Seconds())
	h.Timestamp = now
	return h
}

func (r *Reporter) publish(h Health) error {
	if r.cfg.Publisher == nil || r.cfg.Topic == "" {
		return nil
	}
	if h.Timestamp.IsZero() {
		h = r.stamp(h)
	}
	payload, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encoding health: %w", err)
	}
	return r.cfg.Publisher.PublishRetained(r.cfg.Topic, payload)
}
