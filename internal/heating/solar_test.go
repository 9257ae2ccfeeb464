package heating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestSolarOffset(t *testing.T) {
	tests := []struct {
		name    string
		reading *float64
		maxComp float64
		want    float64
	}{
		{"no reading", nil, 2, 0},
		{"no compensation configured", ptr(30), 0, 0},
		{"negative compensation", ptr(30), -1, 0},
		{"below activation", ptr(15), 2, 0},
		{"at activation", ptr(20), 2, 0},
		{"halfway", ptr(27.5), 2, 1},
		{"at peak", ptr(35), 2, 2},
		{"above peak clamps", ptr(50), 2, 2},
		{"rounded to two decimals", ptr(21), 1, 0.07},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SolarOffset(tt.reading, tt.maxComp, DefaultSolarActivation, DefaultSolarPeak)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSolarOffset_DegenerateCalibration(t *testing.T) {
	assert.Equal(t, 0.0, SolarOffset(ptr(30), 2, 25, 25))
}

func TestRoundStep(t *testing.T) {
	tests := []struct {
		v, step, want float64
	}{
		{34.24, 0.5, 34.0},
		{34.25, 0.5, 34.5},
		{34.74, 0.5, 34.5},
		{34.5, 1, 35},
		{34.49, 1, 34},
		{34.3, 0, 34.3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, roundStep(tt.v, tt.step), 1e-9, "roundStep(%v, %v)", tt.v, tt.step)
	}
}
