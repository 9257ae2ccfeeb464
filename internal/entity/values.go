package entity

import (
	"math"
	"strconv"
	"strings"
)

// IsValid reports whether a raw state carries data. Empty strings and the
// host's placeholders for missing readings are invalid.
func IsValid(state string) bool {
	switch strings.TrimSpace(state) {
	case "", "unavailable", "unknown", "None", "none", "null":
		return false
	}
	return true
}

// ParseFloat parses a valid state as a finite float.
func ParseFloat(state string) (float64, bool) {
	if !IsValid(state) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(state), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// AsFloat converts an attribute value (JSON number or numeric string) to a float.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		return ParseFloat(n)
	}
	return 0, false
}

// AsString converts an attribute value to a string. Non-string values
// report false.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Float reads an entity's state as a float.
func Float(p Port, key string) (float64, bool) {
	s, ok := p.State(key)
	if !ok {
		return 0, false
	}
	return ParseFloat(s)
}

// FloatOr reads an entity's state as a float, returning def when the
// entity is missing or its state is not numeric.
func FloatOr(p Port, key string, def float64) float64 {
	if f, ok := Float(p, key); ok {
		return f
	}
	return def
}

// AttrFloat reads a numeric attribute.
func AttrFloat(p Port, key, attr string) (float64, bool) {
	v, ok := p.Attribute(key, attr)
	if !ok {
		return 0, false
	}
	return AsFloat(v)
}

// ValidState returns the entity's state when it exists and carries data.
func ValidState(p Port, key string) (string, bool) {
	s, ok := p.State(key)
	if !ok || !IsValid(s) {
		return "", false
	}
	return s, true
}

// Domain returns the part of an entity id before the first dot.
func Domain(key string) string {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i]
	}
	return ""
}
