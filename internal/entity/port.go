package entity

// StateAttribute subscribes to the entity's state value.
const StateAttribute = ""

// AllAttributes subscribes to any change of state or attributes.
const AllAttributes = "all"

// Change describes a single observed change of an entity.
//
// Attribute is "" for a state change, the attribute name for an attribute
// change, or AllAttributes when delivered to an "all" subscriber (Old and
// New then carry the state values).
type Change struct {
	Key       string
	Attribute string
	Old       any
	New       any
}

// OldString returns Old as a string, or "" when it is not one.
func (c Change) OldString() string {
	s, _ := c.Old.(string)
	return s
}

// NewString returns New as a string, or "" when it is not one.
func (c Change) NewString() string {
	s, _ := c.New.(string)
	return s
}

// Handler is called with each change an entity subscription matches.
type Handler func(Change)

// EventHandler is called for each host event a listener matches.
type EventHandler func(name string, data map[string]any)

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

// Port is the narrow view of the home automation host used by the heating
// components. Implementations deliver handlers on the dispatch loop.
type Port interface {
	// State returns the entity's state string and whether the entity exists.
	State(key string) (string, bool)

	// Attribute returns a single attribute value.
	Attribute(key, attr string) (any, bool)

	// Exists reports whether the host knows the entity.
	Exists(key string) bool

	// Set writes state and merges attrs into the entity's attributes.
	Set(key, state string, attrs map[string]any) error

	// Subscribe registers h for changes of key. attr is StateAttribute,
	// AllAttributes, or an attribute name.
	Subscribe(key, attr string, h Handler) SubscriptionID

	// Unsubscribe removes a subscription. Unknown IDs are ignored.
	Unsubscribe(id SubscriptionID)

	// ListenEvent registers h for host events named name.
	ListenEvent(name string, h EventHandler)

	// FireEvent delivers an event to every listener of name.
	FireEvent(name string, data map[string]any)
}

// Writer forwards entity writes to the host.
type Writer interface {
	WriteEntity(key, state string, attrs map[string]any) error
}
