package heating

import (
	"sort"
	"time"
)

// ClaimRegistry tracks when each zone's claim turned on. An entry exists
// only while the claim is on.
type ClaimRegistry struct {
	starts map[string]time.Time
}

// NewClaimRegistry creates an empty registry.
func NewClaimRegistry() *ClaimRegistry {
	return &ClaimRegistry{starts: make(map[string]time.Time)}
}

// Update records a zone's current claim. A claim seen on for the first
// time starts its clock at now; a claim seen off is forgotten.
func (r *ClaimRegistry) Update(zone string, on bool, now time.Time) {
	if !on {
		delete(r.starts, zone)
		return
	}
	if _, tracked := r.starts[zone]; !tracked {
		r.starts[zone] = now
	}
}

// Active returns the zones whose claim has been on for at least d, sorted.
func (r *ClaimRegistry) Active(now time.Time, d time.Duration) []string {
	var out []string
	for zone, start := range r.starts {
		if now.Sub(start) >= d {
			out = append(out, zone)
		}
	}
	sort.Strings(out)
	return out
}

// Claiming returns every tracked zone, sorted.
func (r *ClaimRegistry) Claiming() []string {
	out := make([]string, 0, len(r.starts))
	for zone := range r.starts {
		out = append(out, zone)
	}
	sort.Strings(out)
	return out
}

// NextMaturity returns how long until the next pending claim becomes active.
func (r *ClaimRegistry) NextMaturity(now time.Time, d time.Duration) (time.Duration, bool) {
	var (
		next  time.Duration
		found bool
	)
	for _, start := range r.starts {
		remaining := start.Add(d).Sub(now)
		if remaining <= 0 {
			continue
		}
		if !found || remaining < next {
			next, found = remaining, true
		}
	}
	return next, found
}

// Len returns the number of tracked claims.
func (r *ClaimRegistry) Len() int { return len(r.starts) }
