package api

import (
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
	"github.com/nerrad567/gray-logic-heating/internal/modbus"
)

// WebSocket channels the Board broadcasts on.
const (
	ChannelSupplyEvaluated = "supply.evaluated"
	ChannelSupplyEvent     = "supply.event"
	ChannelZoneEvaluated   = "zone.evaluated"
	ChannelKeepAlive       = "keepalive.status"
)

// recentEventsLimit bounds the in-memory supply event log.
const recentEventsLimit = 20

// Broadcaster pushes a payload to WebSocket subscribers of channel.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Board holds the latest controller state for HTTP readers.
//
// The observer methods are called on the dispatch loop; the getters may be
// called from any goroutine. Getters return copies.
type Board struct {
	mu        sync.RWMutex
	supply    heating.SupplySnapshot
	hasSupply bool
	zones     map[string]heating.ZoneSnapshot
	events    []heating.SupplyEvent
	keepAlive *modbus.Status

	out Broadcaster
}

// NewBoard creates a board. out may be nil.
func NewBoard(out Broadcaster) *Board {
	return &Board{
		zones: make(map[string]heating.ZoneSnapshot),
		out:   out,
	}
}

// ZoneEvaluated implements heating.ZoneObserver.
func (b *Board) ZoneEvaluated(s heating.ZoneSnapshot) {
	b.mu.Lock()
	b.zones[s.Location] = s
	b.mu.Unlock()
	b.broadcast(ChannelZoneEvaluated, s)
}

// SupplyEvaluated implements heating.SupplyObserver.
func (b *Board) SupplyEvaluated(s heating.SupplySnapshot) {
	b.mu.Lock()
	b.supply = s
	b.hasSupply = true
	b.mu.Unlock()
	b.broadcast(ChannelSupplyEvaluated, s)
}

// SupplyEvent implements heating.SupplyObserver.
func (b *Board) SupplyEvent(e heating.SupplyEvent) {
	b.mu.Lock()
	b.events = append(b.events, e)
	if len(b.events) > recentEventsLimit {
		b.events = b.events[len(b.events)-recentEventsLimit:]
	}
	b.mu.Unlock()
	b.broadcast(ChannelSupplyEvent, e)
}

// KeepAlive records the boiler keep-alive status.
func (b *Board) KeepAlive(s modbus.Status) {
	b.mu.Lock()
	b.keepAlive = &s
	b.mu.Unlock()
	b.broadcast(ChannelKeepAlive, s)
}

// Supply returns the latest supply snapshot and whether one exists.
func (b *Board) Supply() (heating.SupplySnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.supply
	s.ActiveZones = append([]string(nil), s.ActiveZones...)
	s.ClaimingZones = append([]string(nil), s.ClaimingZones...)
	return s, b.hasSupply
}

// Zones returns every evaluated zone ordered by location.
func (b *Board) Zones() []heating.ZoneSnapshot {
	b.mu.RLock()
	out := make([]heating.ZoneSnapshot, 0, len(b.zones))
	for _, z := range b.zones {
		out = append(out, z)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

// Zone returns one zone's latest snapshot.
func (b *Board) Zone(location string) (heating.ZoneSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	z, ok := b.zones[location]
	return z, ok
}

// RecentEvents returns the latest supply events, oldest first.
func (b *Board) RecentEvents() []heating.SupplyEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]heating.SupplyEvent(nil), b.events...)
}

// KeepAliveStatus returns the keep-alive status, or nil when the boiler
// link is not configured.
func (b *Board) KeepAliveStatus() *modbus.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.keepAlive == nil {
		return nil
	}
	s := *b.keepAlive
	return &s
}

// Replay returns the current values of a channel for a new WebSocket
// subscriber. Supply events are not replayed.
func (b *Board) Replay(channel string) []any {
	switch channel {
	case ChannelSupplyEvaluated:
		if s, ok := b.Supply(); ok {
			return []any{s}
		}
	case ChannelZoneEvaluated:
		zones := b.Zones()
		out := make([]any, len(zones))
		for i, z := range zones {
			out[i] = z
		}
		return out
	case ChannelKeepAlive:
		if s := b.KeepAliveStatus(); s != nil {
			return []any{*s}
		}
	}
	return nil
}

func (b *Board) broadcast(channel string, payload any) {
	if b.out != nil {
		b.out.Broadcast(channel, payload)
	}
}
