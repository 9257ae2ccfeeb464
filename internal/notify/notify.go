package notify

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/mqtt"
)

const (
	defaultPerMinute = 6
	defaultBurst     = 3
)

var (
	// ErrNoTarget is returned when a notification has no target.
	ErrNoTarget = errors.New("notification target is empty")

	// ErrRateLimited is returned when the target's bucket is empty.
	ErrRateLimited = errors.New("notification rate limited")
)

// Publisher sends a JSON payload to a topic without blocking the caller.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Logger is the logging interface used by the notifier.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Message is the notification payload.
type Message struct {
	Title               string `json:"title"`
	Message             string `json:"message"`
	DisableNotification bool   `json:"disable_notification"`
}

// Config configures a Notifier.
type Config struct {
	// PerMinute is the sustained rate per target.
	PerMinute int
	Burst     int
}

// Notifier implements heating.Notifier on top of MQTT.
type Notifier struct {
	pub    Publisher
	topics mqtt.Topics
	limit  rate.Limit
	burst  int
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	logger     Logger
	sent       atomic.Uint64
	suppressed atomic.Uint64
}

// New creates a notifier publishing under topics.
func New(pub Publisher, topics mqtt.Topics, cfg Config) *Notifier {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = defaultPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	return &Notifier{
		pub:      pub,
		topics:   topics,
		limit:    rate.Every(time.Minute / time.Duration(cfg.PerMinute)),
		burst:    cfg.Burst,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger.
func (n *Notifier) SetLogger(l Logger) {
	if l != nil {
		n.logger = l
	}
}

// SetClock replaces the time source used for rate limiting.
func (n *Notifier) SetClock(now func() time.Time) {
	n.now = now
}

// Notify publishes a notification for target. Silent notifications are
// delivered without sound.
func (n *Notifier) Notify(target, title, message string, silent bool) error {
	if target == "" {
		return ErrNoTarget
	}

	if !n.limiter(target).AllowN(n.now(), 1) {
		if n.suppressed.Add(1)%10 == 1 {
			n.logger.Warn("notification rate limited", "target", target, "title", title)
		}
		return ErrRateLimited
	}

	msg := Message{Title: title, Message: message, DisableNotification: silent}
	if err := n.pub.PublishJSON(n.topics.Notify(target), msg, false); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	n.sent.Add(1)
	return nil
}

// Stats returns the number of sent and rate-limited notifications.
func (n *Notifier) Stats() (sent, suppressed uint64) {
	return n.sent.Load(), n.suppressed.Load()
}

func (n *Notifier) limiter(target string) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.limiters[target]
	if !ok {
		l = rate.NewLimiter(n.limit, n.burst)
		n.limiters[target] = l
	}
	return l
}
