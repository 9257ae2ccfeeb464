package history

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

// Event is a persisted supply decision.
type Event struct {
	ID           string            `json:"id"`
	Kind         heating.EventKind `json:"kind"`
	Mode         heating.Mode      `json:"mode"`
	PreviousMode heating.Mode      `json:"previous_mode,omitempty"`
	FlowTarget   float64           `json:"flow_target"`
	ActiveZones  []string          `json:"active_zones,omitempty"`
	OutdoorTemp  *float64          `json:"outdoor_temp,omitempty"`
	Details      string            `json:"details,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ClaimChange is a persisted zone claim transition.
type ClaimChange struct {
	ID          string    `json:"id"`
	Location    string    `json:"location"`
	Claim       bool      `json:"claim"`
	CurrentTemp *float64  `json:"current_temp,omitempty"`
	Target      float64   `json:"target"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Kind     heating.EventKind // optional, events only
	Location string            // optional, claims only
	Since    time.Time         // optional lower bound on created_at
	Limit    int               // default 50, max 200
	Offset   int
}

// EventPage is a page of supply events.
type EventPage struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ClaimPage is a page of claim transitions.
type ClaimPage struct {
	Claims []ClaimChange `json:"claims"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Repository stores and queries history. Implementations must be safe for
// concurrent use.
type Repository interface {
	CreateEvent(ctx context.Context, e *Event) error
	CreateClaim(ctx context.Context, c *ClaimChange) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context, filter Filter) (*EventPage, error)
	ListClaims(ctx context.Context, filter Filter) (*ClaimPage, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
