package heartbeat

import (
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/dispatch"
	"github.com/nerrad567/gray-logic-heating/internal/entity"
)

// DefaultPulseInterval is how often the pulse entity is refreshed.
const DefaultPulseInterval = 60 * time.Second

// AttrLastHeartbeat carries the RFC 3339 time of the last pulse.
const AttrLastHeartbeat = "last_heartbeat"

// Logger is the logging interface used by this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Pulse periodically sets an entity on. It runs on the dispatch loop.
type Pulse struct {
	entityID string
	interval time.Duration
	port     entity.Port
	sched    dispatch.Scheduler
	logger   Logger

	timer dispatch.TimerID
	beats uint64
	last  time.Time
}

// NewPulse creates a pulse for entityID.
func NewPulse(entityID string, interval time.Duration, port entity.Port, sched dispatch.Scheduler) *Pulse {
	if interval <= 0 {
		interval = DefaultPulseInterval
	}
	return &Pulse{
		entityID: entityID,
		interval: interval,
		port:     port,
		sched:    sched,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger.
func (p *Pulse) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// Start beats immediately and then every interval. Must be called on the
// loop.
func (p *Pulse) Start() {
	if p.timer != 0 {
		return
	}
	p.beat()
	p.timer = p.sched.Every(p.interval, p.beat)
	p.logger.Info("heartbeat started", "entity", p.entityID, "interval", p.interval.String())
}

// Stop cancels the pulse. The entity is left as is; its timestamp going
// stale is the alarm condition.
func (p *Pulse) Stop() {
	if p.timer != 0 {
		p.sched.Cancel(p.timer)
		p.timer = 0
	}
}

// Beats returns the number of pulses sent and the time of the last one.
func (p *Pulse) Beats() (uint64, time.Time) {
	return p.beats, p.last
}

func (p *Pulse) beat() {
	now := p.sched.Now()
	err := p.port.Set(p.entityID, "on", map[string]any{
		AttrLastHeartbeat: now.Format(time.RFC3339),
	})
	if err != nil {
		p.logger.Warn("heartbeat write failed", "entity", p.entityID, "error", err)
		return
	}
	p.beats++
	p.last = now
}
