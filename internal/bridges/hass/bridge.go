package hass

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-heating/internal/dispatch"
	"github.com/nerrad567/gray-logic-heating/internal/heating"
	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/mqtt"
)

const (
	// DefaultStatestreamPrefix is the mqtt_statestream base topic.
	DefaultStatestreamPrefix = "homeassistant/statestream"

	// DefaultRequestTimeout bounds schedule lookups.
	DefaultRequestTimeout = 10 * time.Second

	// stateSuffix is the statestream leaf carrying the raw state.
	stateSuffix = "state"

	subscribeQoS = 1
)

// Subscriber is the MQTT subscription surface used by the bridge.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Sink receives host state and events. *entity.Store implements it.
type Sink interface {
	ApplyState(key, state string)
	ApplyAttribute(key, attr string, value any)
	FireEvent(name string, data map[string]any)
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures a Bridge.
type Config struct {
	StatestreamPrefix string
	Topics            mqtt.Topics
	RequestTimeout    time.Duration
}

// Loop is the dispatch loop surface the bridge needs.
type Loop interface {
	dispatch.Poster
	dispatch.Scheduler
}

type pendingRequest struct {
	entityID string
	cb       func(heating.WeekRules, error)
	timer    dispatch.TimerID
}

// Bridge translates between MQTT and the entity store.
//
// It implements entity.Writer for outbound writes and heating.RuleSource
// for schedule lookups. MQTT handlers may run on any goroutine; everything
// they produce is posted to the loop. WriteEntity and FetchSchedule must be
// called on the loop.
type Bridge struct {
	cfg    Config
	sub    Subscriber
	outbox *Outbox
	sink   Sink
	loop   Loop
	logger Logger

	// pending is only touched on the loop.
	pending map[string]*pendingRequest

	statesIn atomic.Uint64
	eventsIn atomic.Uint64
	commands atomic.Uint64
}

// NewBridge creates a bridge. Call Start to subscribe.
func NewBridge(cfg Config, sub Subscriber, outbox *Outbox, sink Sink, loop Loop) *Bridge {
	if cfg.StatestreamPrefix == "" {
		cfg.StatestreamPrefix = DefaultStatestreamPrefix
	}
	cfg.StatestreamPrefix = strings.TrimSuffix(cfg.StatestreamPrefix, "/")
	if cfg.Topics.Prefix == "" {
		cfg.Topics = mqtt.NewTopics("")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Bridge{
		cfg:     cfg,
		sub:     sub,
		outbox:  outbox,
		sink:    sink,
		loop:    loop,
		logger:  noopLogger{},
		pending: make(map[string]*pendingRequest),
	}
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(l Logger) {
	if l != nil {
		b.logger = l
	}
}

// Start subscribes to the state stream, host events and request responses.
func (b *Bridge) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{mqtt.Statestream(b.cfg.StatestreamPrefix), b.HandleState},
		{b.cfg.Topics.AllEvents(), b.HandleEvent},
		{b.cfg.Topics.AllResponses(), b.HandleResponse},
	}
	for _, s := range subs {
		if err := b.sub.Subscribe(s.topic, subscribeQoS, s.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.topic, err)
		}
		b.logger.Info("subscribed", "topic", s.topic)
	}
	return nil
}

// HandleState applies a statestream message.
func (b *Bridge) HandleState(topic string, payload []byte) error {
	entityID, leaf, err := b.parseStateTopic(topic)
	if err != nil {
		return err
	}
	b.statesIn.Add(1)

	if leaf == stateSuffix {
		state := string(payload)
		b.loop.Post(func() { b.sink.ApplyState(entityID, state) })
		return nil
	}

	value := decodeAttribute(payload)
	b.loop.Post(func() { b.sink.ApplyAttribute(entityID, leaf, value) })
	return nil
}

// HandleEvent fires a host event on the loop. The payload is an optional
// JSON object.
func (b *Bridge) HandleEvent(topic string, payload []byte) error {
	name := topic[strings.LastIndexByte(topic, '/')+1:]
	if name == "" {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	data := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &data); err != nil {
			return fmt.Errorf("decoding event %s: %w", name, err)
		}
	}
	b.eventsIn.Add(1)
	b.loop.Post(func() { b.sink.FireEvent(name, data) })
	return nil
}

// HandleResponse resolves a pending schedule request.
func (b *Bridge) HandleResponse(_ string, payload []byte) error {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	b.loop.Post(func() { b.resolve(resp) })
	return nil
}

// WriteEntity implements entity.Writer.
func (b *Bridge) WriteEntity(key, state string, attrs map[string]any) error {
	if err := b.outbox.PublishJSON(b.cfg.Topics.Command(key), NewCommand(key, state, attrs), false); err != nil {
		return err
	}
	b.commands.Add(1)
	return nil
}

// FetchSchedule implements heating.RuleSource. cb runs on the loop exactly
// once, with the rules or an error.
func (b *Bridge) FetchSchedule(entityID string, cb func(heating.WeekRules, error)) {
	id := uuid.NewString()
	req := &pendingRequest{entityID: entityID, cb: cb}
	req.timer = b.loop.After(b.cfg.RequestTimeout, func() {
		if _, ok := b.pending[id]; !ok {
			return
		}
		delete(b.pending, id)
		cb(nil, fmt.Errorf("%w: %s", ErrRequestTimeout, entityID))
	})
	b.pending[id] = req

	msg := Request{ID: id, Service: ScheduleService, EntityID: entityID}
	if err := b.outbox.PublishJSON(b.cfg.Topics.Request(id), msg, false); err != nil {
		b.loop.Cancel(req.timer)
		delete(b.pending, id)
		cb(nil, err)
	}
}

// Pending returns the number of unanswered schedule requests. Loop only.
func (b *Bridge) Pending() int {
	return len(b.pending)
}

// Stats returns inbound state messages, inbound events and outbound commands.
func (b *Bridge) Stats() (states, events, commands uint64) {
	return b.statesIn.Load(), b.eventsIn.Load(), b.commands.Load()
}

func (b *Bridge) resolve(resp Response) {
	req, ok := b.pending[resp.ID]
	if !ok {
		b.logger.Debug("response for unknown request", "id", resp.ID)
		return
	}
	delete(b.pending, resp.ID)
	b.loop.Cancel(req.timer)

	if resp.Error != "" {
		req.cb(nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error))
		return
	}
	rules, ok := resp.Response[req.entityID]
	if !ok {
		req.cb(nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, req.entityID))
		return
	}
	req.cb(rules, nil)
}

// parseStateTopic splits "<prefix>/<domain>/<object_id>/<leaf>".
func (b *Bridge) parseStateTopic(topic string) (entityID, leaf string, err error) {
	rest, ok := strings.CutPrefix(topic, b.cfg.StatestreamPrefix+"/")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return parts[0] + "." + parts[1], parts[2], nil
}

// decodeAttribute decodes a JSON attribute value. Payloads that are not
// valid JSON are kept as raw strings.
func decodeAttribute(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return string(payload)
	}
	return v
}
