package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/mqtt"
)

type published struct {
	topic string
	msg   Message
}

type fakePublisher struct {
	out []published
	err error
}

func (p *fakePublisher) PublishJSON(topic string, v any, _ bool) error {
	if p.err != nil {
		return p.err
	}
	p.out = append(p.out, published{topic: topic, msg: v.(Message)})
	return nil
}

func newTestNotifier(cfg Config) (*Notifier, *fakePublisher, *time.Time) {
	pub := &fakePublisher{}
	n := New(pub, mqtt.NewTopics(""), cfg)
	now := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	n.SetClock(func() time.Time { return now })
	return n, pub, &now
}

func TestNotifier_Publishes(t *testing.T) {
	n, pub, _ := newTestNotifier(Config{})

	require.NoError(t, n.Notify("telegram", "Valves Closed", "Valves are closed (15%).", true))

	require.Len(t, pub.out, 1)
	assert.Equal(t, "graylogic/heating/notify/telegram", pub.out[0].topic)
	assert.Equal(t, Message{
		Title:               "Valves Closed",
		Message:             "Valves are closed (15%).",
		DisableNotification: true,
	}, pub.out[0].msg)
}

func TestNotifier_EmptyTarget(t *testing.T) {
	n, pub, _ := newTestNotifier(Config{})
	assert.ErrorIs(t, n.Notify("", "t", "m", false), ErrNoTarget)
	assert.Empty(t, pub.out)
}

func TestNotifier_RateLimitedPerTarget(t *testing.T) {
	n, pub, now := newTestNotifier(Config{PerMinute: 6, Burst: 2})

	assert.NoError(t, n.Notify("telegram", "a", "", false))
	assert.NoError(t, n.Notify("telegram", "b", "", false))
	assert.ErrorIs(t, n.Notify("telegram", "c", "", false), ErrRateLimited)

	// Other targets have their own bucket.
	assert.NoError(t, n.Notify("mobile_app", "d", "", false))

	// One token refills every ten seconds.
	*now = now.Add(10 * time.Second)
	assert.NoError(t, n.Notify("telegram", "e", "", false))

	assert.Len(t, pub.out, 4)
	sent, suppressed := n.Stats()
	assert.Equal(t, uint64(4), sent)
	assert.Equal(t, uint64(1), suppressed)
}

func TestNotifier_PublishError(t *testing.T) {
	n, pub, _ := newTestNotifier(Config{})
	pub.err = errors.New("outbox full")

	err := n.Notify("telegram", "t", "m", false)
	assert.ErrorContains(t, err, "outbox full")
	sent, _ := n.Stats()
	assert.Zero(t, sent)
}
