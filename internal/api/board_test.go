package api

import (
	"fmt"
	"testing"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
	"github.com/nerrad567/gray-logic-heating/internal/modbus"
)

type recordingBroadcaster struct {
	channels []string
}

func (r *recordingBroadcaster) Broadcast(channel string, _ any) {
	r.channels = append(r.channels, channel)
}

func TestBoard_Broadcasts(t *testing.T) {
	out := &recordingBroadcaster{}
	b := NewBoard(out)

	b.ZoneEvaluated(heating.ZoneSnapshot{Location: "bad"})
	b.SupplyEvaluated(heating.SupplySnapshot{})
	b.SupplyEvent(heating.SupplyEvent{Kind: heating.EventFlowTarget})
	b.KeepAlive(modbus.Status{Active: true})

	want := []string{ChannelZoneEvaluated, ChannelSupplyEvaluated, ChannelSupplyEvent, ChannelKeepAlive}
	if fmt.Sprint(out.channels) != fmt.Sprint(want) {
		t.Errorf("channels = %v, want %v", out.channels, want)
	}
}

func TestBoard_RecentEventsBounded(t *testing.T) {
	b := NewBoard(nil)
	for i := 0; i < recentEventsLimit+5; i++ {
		b.SupplyEvent(heating.SupplyEvent{FlowTarget: float64(i)})
	}

	events := b.RecentEvents()
	if len(events) != recentEventsLimit {
		t.Fatalf("len = %d, want %d", len(events), recentEventsLimit)
	}
	if events[0].FlowTarget != 5 {
		t.Errorf("oldest kept = %v, want 5", events[0].FlowTarget)
	}
}

func TestBoard_SupplyReturnsCopy(t *testing.T) {
	b := NewBoard(nil)
	if _, ok := b.Supply(); ok {
		t.Error("Supply() before any evaluation should report false")
	}

	b.SupplyEvaluated(heating.SupplySnapshot{ActiveZones: []string{"bad"}})
	s, _ := b.Supply()
	s.ActiveZones[0] = "keller"

	again, _ := b.Supply()
	if again.ActiveZones[0] != "bad" {
		t.Error("caller mutation leaked into the board")
	}
}

func TestBoard_Replay(t *testing.T) {
	b := NewBoard(nil)
	if got := b.Replay(ChannelSupplyEvaluated); got != nil {
		t.Errorf("replay before evaluation = %v, want nil", got)
	}

	b.ZoneEvaluated(heating.ZoneSnapshot{Location: "kueche"})
	b.ZoneEvaluated(heating.ZoneSnapshot{Location: "bad"})
	b.SupplyEvaluated(heating.SupplySnapshot{})
	b.SupplyEvent(heating.SupplyEvent{})

	if got := b.Replay(ChannelZoneEvaluated); len(got) != 2 {
		t.Errorf("zone replay = %d entries, want 2", len(got))
	}
	if got := b.Replay(ChannelSupplyEvaluated); len(got) != 1 {
		t.Errorf("supply replay = %d entries, want 1", len(got))
	}
	if got := b.Replay(ChannelSupplyEvent); got != nil {
		t.Errorf("supply events are not replayed, got %v", got)
	}
	if got := b.Replay(ChannelKeepAlive); got != nil {
		t.Errorf("keepalive replay without status = %v", got)
	}
}
