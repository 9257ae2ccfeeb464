package entity

import (
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"21.5", true},
		{"on", true},
		{"", false},
		{"  ", false},
		{"unavailable", false},
		{"unknown", false},
		{"None", false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.input); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"21.5", 21.5, true},
		{" 7 ", 7, true},
		{"-3.25", -3.25, true},
		{"abc", 0, false},
		{"unavailable", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseFloat(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseFloat(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAsFloat(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   float64
		wantOK bool
	}{
		{"float64", 2.5, 2.5, true},
		{"int", 3, 3, true},
		{"numeric string", "4.5", 4.5, true},
		{"bad string", "x", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsFloat(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("AsFloat(%v) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	tests := map[string]string{
		"input_number.target_flow_temp": "input_number",
		"schedule.standard_bad":         "schedule",
		"nodot":                         "",
	}
	for in, want := range tests {
		if got := Domain(in); got != want {
			t.Errorf("Domain(%q) = %q, want %q", in, got, want)
		}
	}
}
