package heating

import "math"

// Calibration used when a zone's SolarConfig leaves it unset.
const (
	DefaultSolarActivation = 20.0
	DefaultSolarPeak       = 35.0
)

// SolarConfig enables sun compensation for a zone. Sensor is the outdoor
// "greenhouse" sensor; the offset ramps linearly from 0 at Activation to
// the configured maximum at Peak.
type SolarConfig struct {
	Sensor     string
	Activation float64
	Peak       float64
}

// SolarOffset returns how far a zone's target is lowered for solar gain.
// reading is nil when the sensor has no valid value.
func SolarOffset(reading *float64, maxComp, activation, peak float64) float64 {
	if maxComp <= 0 || reading == nil {
		return 0
	}

	factor := 0.0
	if peak != activation {
		factor = (*reading - activation) / (peak - activation)
	}
	factor = math.Max(0, math.Min(1, factor))

	return roundTo(factor*maxComp, 2)
}

// roundTo rounds v to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// roundStep rounds v to the nearest multiple of step.
func roundStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
