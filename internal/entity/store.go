package entity

import (
	"maps"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/dispatch"
)

// State is a snapshot of one entity.
type State struct {
	Key         string         `json:"entity_id"`
	Value       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

type subscription struct {
	id      SubscriptionID
	key     string
	attr    string
	handler Handler
}

// Store is an in-memory mirror of host entities implementing Port.
//
// Inbound updates from the host arrive through ApplyState and
// ApplyAttribute. Local writes through Set go to the Writer first and
// update the mirror once accepted; the host's echo is then a no-op.
// Change handlers are posted to the dispatch loop, never called inline.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Store struct {
	poster dispatch.Poster
	now    func() time.Time

	mu       sync.RWMutex
	writer   Writer
	states   map[string]*State
	subs     map[string][]subscription
	nextSub  SubscriptionID
	events   map[string][]EventHandler
	onChange func(Change)
}

// NewStore creates a Store that delivers handlers through poster and
// stamps changes with clock.Now.
func NewStore(poster dispatch.Poster, clock dispatch.Clock) *Store {
	return &Store{
		poster: poster,
		now:    clock.Now,
		states: make(map[string]*State),
		subs:   make(map[string][]subscription),
		events: make(map[string][]EventHandler),
	}
}

// SetWriter sets the writer that forwards Set calls to the host.
// A nil writer keeps writes local.
func (s *Store) SetWriter(w Writer) {
	s.mu.Lock()
	s.writer = w
	s.mu.Unlock()
}

// OnChange registers a callback invoked (on the loop) for every observed change.
// Used for live fan-out; only one callback is kept.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// State returns the entity's state string and whether the entity exists.
func (s *Store) State(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	if !ok {
		return "", false
	}
	return st.Value, true
}

// Attribute returns a single attribute value.
func (s *Store) Attribute(key, attr string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	if !ok {
		return nil, false
	}
	v, ok := st.Attributes[attr]
	return v, ok
}

// Exists reports whether the entity has been seen.
func (s *Store) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.states[key]
	return ok
}

// Get returns a copy of the entity's full state.
func (s *Store) Get(key string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	if !ok {
		return State{}, false
	}
	return copyState(st), true
}

// Snapshot returns copies of all entities, sorted by key.
func (s *Store) Snapshot() []State {
	s.mu.RLock()
	out := make([]State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, copyState(st))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Set forwards the write to the host, then records state and merges attrs.
// A failed write leaves the mirror untouched so write-if-changed callers
// retry on their next evaluation. Change handlers fire only for values
// that actually changed.
func (s *Store) Set(key, state string, attrs map[string]any) error {
	s.mu.RLock()
	w := s.writer
	s.mu.RUnlock()

	if w != nil {
		if err := w.WriteEntity(key, state, attrs); err != nil {
			return err
		}
	}

	s.dispatch(s.apply(key, &state, attrs))
	return nil
}

// ApplyState records a state reported by the host.
func (s *Store) ApplyState(key, state string) {
	s.dispatch(s.apply(key, &state, nil))
}

// ApplyAttribute records a single attribute reported by the host.
func (s *Store) ApplyAttribute(key, attr string, value any) {
	s.dispatch(s.apply(key, nil, map[string]any{attr: value}))
}

// apply mutates the mirror and returns the resulting changes.
func (s *Store) apply(key string, state *string, attrs map[string]any) []Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st, exists := s.states[key]
	if !exists {
		st = &State{Key: key, Attributes: make(map[string]any)}
		s.states[key] = st
	}

	var changes []Change
	if state != nil && (!exists || st.Value != *state) {
		changes = append(changes, Change{Key: key, Attribute: StateAttribute, Old: st.Value, New: *state})
		st.Value = *state
		st.LastChanged = now
	}
	for k, v := range attrs {
		old, had := st.Attributes[k]
		if had && reflect.DeepEqual(old, v) {
			continue
		}
		changes = append(changes, Change{Key: key, Attribute: k, Old: old, New: v})
		st.Attributes[k] = v
	}
	st.LastUpdated = now

	return changes
}

func (s *Store) dispatch(changes []Change) {
	if len(changes) == 0 {
		return
	}
	key := changes[0].Key

	s.mu.RLock()
	subs := append([]subscription(nil), s.subs[key]...)
	onChange := s.onChange
	state := ""
	if st, ok := s.states[key]; ok {
		state = st.Value
	}
	s.mu.RUnlock()

	// Old state value for "all" subscribers.
	oldState := state
	for _, c := range changes {
		if c.Attribute == StateAttribute {
			oldState = c.OldString()
		}
	}

	for _, sub := range subs {
		h := sub.handler
		if sub.attr == AllAttributes {
			c := Change{Key: key, Attribute: AllAttributes, Old: oldState, New: state}
			s.poster.Post(func() { h(c) })
			continue
		}
		for _, c := range changes {
			if c.Attribute == sub.attr {
				s.poster.Post(func() { h(c) })
			}
		}
	}

	if onChange != nil {
		for _, c := range changes {
			s.poster.Post(func() { onChange(c) })
		}
	}
}

// Subscribe registers h for changes of key.
func (s *Store) Subscribe(key, attr string, h Handler) SubscriptionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	s.subs[key] = append(s.subs[key], subscription{id: s.nextSub, key: key, attr: attr, handler: h})
	return s.nextSub
}

// Unsubscribe removes a subscription.
func (s *Store) Unsubscribe(id SubscriptionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, subs := range s.subs {
		for i, sub := range subs {
			if sub.id == id {
				s.subs[key] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// ListenEvent registers h for events named name.
func (s *Store) ListenEvent(name string, h EventHandler) {
	s.mu.Lock()
	s.events[name] = append(s.events[name], h)
	s.mu.Unlock()
}

// FireEvent posts every listener of name to the loop.
func (s *Store) FireEvent(name string, data map[string]any) {
	s.mu.RLock()
	handlers := append([]EventHandler(nil), s.events[name]...)
	s.mu.RUnlock()

	for _, h := range handlers {
		payload := maps.Clone(data)
		s.poster.Post(func() { h(name, payload) })
	}
}

func copyState(st *State) State {
	out := *st
	out.Attributes = maps.Clone(st.Attributes)
	return out
}
