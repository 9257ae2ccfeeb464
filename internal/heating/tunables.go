package heating

import (
	"reflect"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/entity"
)

// Tunables are the fallbacks used when a helper entity is missing or holds
// no number.
type Tunables struct {
	BaseTemp        float64
	HeatTemp        float64
	OffTemp         float64
	Delta           float64
	Margin          float64
	BoostFactor     float64
	BoostThreshold  float64
	BaselineZeroDeg float64
	BaselineAdjust  float64
	MaxFlowTemp     float64
	ClaimDuration   float64 // seconds
	MultiRoomOffset float64
}

// DefaultTunables returns the stock fallbacks.
func DefaultTunables() Tunables {
	return Tunables{
		BaseTemp:        5.0,
		HeatTemp:        21.0,
		OffTemp:         5.0,
		Delta:           2.0,
		Margin:          0.5,
		BoostFactor:     1.0,
		BoostThreshold:  4.0,
		BaselineZeroDeg: 36.0,
		BaselineAdjust:  0.4,
		MaxFlowTemp:     45.0,
		ClaimDuration:   10.0,
		MultiRoomOffset: 0.0,
	}
}

// claimDuration converts a helper value in seconds to a Duration.
func claimDuration(seconds float64) time.Duration {
	if seconds < 0 {
		seconds = 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// formatNumber renders a number the way the host expects in a state.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeIfChanged sets an entity unless it already holds state and attrs.
// It reports whether a write was issued.
func writeIfChanged(p entity.Port, key, state string, attrs map[string]any) (bool, error) {
	if cur, ok := p.State(key); ok && cur == state && attrsMatch(p, key, attrs) {
		return false, nil
	}
	return true, p.Set(key, state, attrs)
}

func attrsMatch(p entity.Port, key string, attrs map[string]any) bool {
	for k, v := range attrs {
		cur, ok := p.Attribute(key, k)
		if !ok || !reflect.DeepEqual(cur, v) {
			return false
		}
	}
	return true
}

// writeNumberIfChanged writes a numeric state unless the entity already
// holds that value. An unparseable current value counts as different.
func writeNumberIfChanged(p entity.Port, key string, v float64) (bool, error) {
	if cur, ok := entity.Float(p, key); ok && cur == v {
		return false, nil
	}
	return true, p.Set(key, formatNumber(v), nil)
}
