package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SQLiteRepository stores history in the supply_events and zone_claims tables.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// CreateEvent inserts a supply event. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) CreateEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = "sev-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	var zonesJSON *string
	if len(e.ActiveZones) > 0 {
		b, err := json.Marshal(e.ActiveZones)
		if err != nil {
			return fmt.Errorf("marshalling active zones: %w", err)
		}
		s := string(b)
		zonesJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO supply_events (id, kind, mode, previous_mode, flow_target, active_zones, outdoor_temp, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), string(e.Mode),
		nullableString(string(e.PreviousMode)), e.FlowTarget,
		zonesJSON, e.OutdoorTemp, nullableString(e.Details),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting supply event: %w", err)
	}
	return nil
}

// CreateClaim inserts a claim transition. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) CreateClaim(ctx context.Context, c *ClaimChange) error {
	if c.Location == "" {
		return fmt.Errorf("claim location is required")
	}
	if c.ID == "" {
		c.ID = "clm-" + uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO zone_claims (id, location, claim, current_temp, target, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Location, boolToInt(c.Claim), c.CurrentTemp, c.Target,
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting zone claim: %w", err)
	}
	return nil
}

const eventColumns = "id, kind, mode, previous_mode, flow_target, active_zones, outdoor_temp, details, created_at"

// GetEvent returns a single supply event.
func (r *SQLiteRepository) GetEvent(ctx context.Context, id string) (*Event, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM supply_events WHERE id = ?", id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEvents returns supply events matching the filter, newest first.
func (r *SQLiteRepository) ListEvents(ctx context.Context, filter Filter) (*EventPage, error) {
	filter = clampFilter(filter)

	var conditions []string
	var args []any
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	where := whereClause(conditions)

	var total int
	countQuery := "SELECT COUNT(*) FROM supply_events " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting supply events: %w", err)
	}

	query := "SELECT " + eventColumns + " FROM supply_events " + where + //nolint:gosec // WHERE built from parameterised conditions
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying supply events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, filter.Limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating supply events: %w", err)
	}

	return &EventPage{Events: events, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// ListClaims returns claim transitions matching the filter, newest first.
func (r *SQLiteRepository) ListClaims(ctx context.Context, filter Filter) (*ClaimPage, error) {
	filter = clampFilter(filter)

	var conditions []string
	var args []any
	if filter.Location != "" {
		conditions = append(conditions, "location = ?")
		args = append(args, filter.Location)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	where := whereClause(conditions)

	var total int
	countQuery := "SELECT COUNT(*) FROM zone_claims " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting zone claims: %w", err)
	}

	query := "SELECT id, location, claim, current_temp, target, created_at FROM zone_claims " + where + //nolint:gosec // WHERE built from parameterised conditions
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying zone claims: %w", err)
	}
	defer rows.Close()

	claims := make([]ClaimChange, 0, filter.Limit)
	for rows.Next() {
		var c ClaimChange
		var claim int
		var current sql.NullFloat64
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Location, &claim, &current, &c.Target, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning zone claim: %w", err)
		}
		c.Claim = claim != 0
		if current.Valid {
			v := current.Float64
			c.CurrentTemp = &v
		}
		if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zone claims: %w", err)
	}

	return &ClaimPage{Claims: claims, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Prune deletes entries older than olderThan from both tables.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}
	cutoff := formatTime(r.now().Add(-olderThan))

	var deleted int64
	for _, table := range []string{"supply_events", "zone_claims"} {
		result, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < ?", cutoff) //nolint:gosec // fixed table names
		if err != nil {
			return deleted, fmt.Errorf("pruning %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("checking rows affected: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*Event, error) {
	var e Event
	var kind, mode string
	var previous, zones, details sql.NullString
	var outdoor sql.NullFloat64
	var createdAt string

	if err := s.Scan(&e.ID, &kind, &mode, &previous, &e.FlowTarget, &zones, &outdoor, &details, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning supply event: %w", err)
	}

	e.Kind = heating.EventKind(kind)
	e.Mode = heating.Mode(mode)
	e.PreviousMode = heating.Mode(previous.String)
	e.Details = details.String
	if zones.Valid && zones.String != "" {
		var list []string
		if json.Unmarshal([]byte(zones.String), &list) == nil {
			e.ActiveZones = list
		}
	}
	if outdoor.Valid {
		v := outdoor.Float64
		e.OutdoorTemp = &v
	}

	t, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = t
	return &e, nil
}

func clampFilter(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}

// nullableString maps "" to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Timestamps are stored with millisecond precision so ordering within a
// second is stable.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at %q: %w", value, err)
	}
	return t, nil
}
