package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

const defaultOutboxSize = 256

// Publisher is the MQTT surface the outbox publishes through.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// Outbox queues outbound messages and publishes them from its own
// goroutine. Enqueueing never blocks; a full queue rejects the message.
type Outbox struct {
	pub   Publisher
	qos   byte
	queue chan outbound

	closed   atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	logger Logger
}

// NewOutbox creates an outbox. size <= 0 uses the default capacity.
func NewOutbox(pub Publisher, qos byte, size int) *Outbox {
	if size <= 0 {
		size = defaultOutboxSize
	}
	return &Outbox{
		pub:    pub,
		qos:    qos,
		queue:  make(chan outbound, size),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (o *Outbox) SetLogger(l Logger) {
	if l != nil {
		o.logger = l
	}
}

// Enqueue queues a raw payload.
func (o *Outbox) Enqueue(topic string, payload []byte, retained bool) error {
	if o.closed.Load() {
		return ErrOutboxClosed
	}
	select {
	case o.queue <- outbound{topic: topic, payload: payload, retained: retained}:
		return nil
	default:
		o.dropped.Add(1)
		return fmt.Errorf("%w: %s", ErrOutboxFull, topic)
	}
}

// PublishJSON encodes v and queues it.
func (o *Outbox) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", topic, err)
	}
	return o.Enqueue(topic, payload, retained)
}

// Start launches the publishing goroutine.
func (o *Outbox) Start(ctx context.Context) {
	o.wg.Add(1)
	go o.run(ctx)
}

// Stop publishes what is still queued and waits for the goroutine.
func (o *Outbox) Stop() {
	o.stopOnce.Do(func() {
		o.closed.Store(true)
		close(o.done)
		o.wg.Wait()
	})
}

// Stats returns published, failed and dropped message counts.
func (o *Outbox) Stats() (published, failed, dropped uint64) {
	return o.published.Load(), o.failed.Load(), o.dropped.Load()
}

func (o *Outbox) run(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case msg := <-o.queue:
			o.publish(msg)
		case <-ctx.Done():
			o.drain()
			return
		case <-o.done:
			o.drain()
			return
		}
	}
}

func (o *Outbox) drain() {
	for {
		select {
		case msg := <-o.queue:
			o.publish(msg)
		default:
			return
		}
	}
}

func (o *Outbox) publish(msg outbound) {
	if err := o.pub.Publish(msg.topic, msg.payload, o.qos, msg.retained); err != nil {
		o.failed.Add(1)
		o.logger.Warn("publish failed", "topic", msg.topic, "error", err)
		return
	}
	o.published.Add(1)
}
