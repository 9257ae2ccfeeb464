package heating

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/entity"
)

const (
	// ChainTolerance is how far a block's start may be from the cursor and
	// still continue the chain.
	ChainTolerance = 65 * time.Second

	// ChainHorizon bounds the forward search.
	ChainHorizon = 7 * 24 * time.Hour
)

// Block is one on-period of a schedule day, as the host reports it
// ("07:00:00" to "22:00:00"; an end of "23:59:59.999999" means midnight).
type Block struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WeekRules maps lowercase weekday names ("monday") to their blocks.
type WeekRules map[string][]Block

var eventLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
}

// ParseEventTime parses a schedule's next_event attribute.
func ParseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range eventLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidEventTime, s)
}

// FindChainEnd follows contiguous blocks from start and returns where the
// heating window really ends. beyondHorizon is true when the chain never
// breaks within ChainHorizon.
func FindChainEnd(start time.Time, rules WeekRules) (end time.Time, beyondHorizon bool) {
	cursor := start
	limit := start.Add(ChainHorizon)

	for cursor.Before(limit) {
		day := strings.ToLower(cursor.Weekday().String())
		next, ok := linkBlock(cursor, rules[day])
		if !ok || !next.After(cursor) {
			return cursor, false
		}
		cursor = next
	}
	return cursor, true
}

// linkBlock finds the block starting at cursor and returns its end.
func linkBlock(cursor time.Time, blocks []Block) (time.Time, bool) {
	for _, b := range blocks {
		from, ok := clockOn(cursor, b.From)
		if !ok {
			continue
		}
		diff := from.Sub(cursor)
		if diff < -ChainTolerance || diff > ChainTolerance {
			continue
		}

		if strings.Contains(b.To, ".999999") || strings.HasPrefix(b.To, "24:00") {
			y, m, d := cursor.Date()
			return time.Date(y, m, d+1, 0, 0, 0, 0, cursor.Location()), true
		}
		to, ok := clockOn(cursor, b.To)
		if !ok {
			continue
		}
		return to, true
	}
	return time.Time{}, false
}

// clockOn places a "15:04" or "15:04:05" clock time on day's date.
func clockOn(day time.Time, clock string) (time.Time, bool) {
	layout := "15:04"
	if len(clock) > 5 {
		layout = "15:04:05"
	}
	if i := strings.IndexByte(clock, '.'); i >= 0 {
		clock = clock[:i]
	}
	t, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, day.Location()), true
}

// FormatEventTime renders t relative to now: "HH:MM.", "HH:MM tomorrow."
// or "HH:MM on DD.MM.".
func FormatEventTime(t, now time.Time) string {
	now = now.In(t.Location())
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	tomorrow := time.Date(ny, nm, nd+1, 0, 0, 0, 0, t.Location())
	wy, wm, wd := tomorrow.Date()

	switch {
	case ty == ny && tm == nm && td == nd:
		return t.Format("15:04.")
	case ty == wy && tm == wm && td == wd:
		return t.Format("15:04") + " tomorrow."
	default:
		return t.Format("15:04 on 02.01.")
	}
}

// NextEventMessage builds the dashboard text for a zone. active reports
// whether the zone's schedule is currently on; nextEvent is the schedule's
// next_event attribute.
func NextEventMessage(active bool, nextEvent string, rules WeekRules, now time.Time, loc *time.Location) (string, error) {
	if len(rules) == 0 || !entity.IsValid(nextEvent) {
		return NoHeatingMessage, nil
	}

	event, err := ParseEventTime(nextEvent)
	if err != nil {
		return "", err
	}
	if loc == nil {
		loc = time.Local
	}
	event = event.In(loc)

	if !active {
		return "Heating starts at " + FormatEventTime(event, now), nil
	}

	end, beyond := FindChainEnd(event, rules)
	if beyond {
		return PowerCutMessage, nil
	}
	return "Heating stops at " + FormatEventTime(end, now), nil
}
