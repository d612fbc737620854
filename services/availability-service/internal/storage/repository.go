package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/purelife/meetings/libs/db"
	"github.com/purelife/meetings/services/availability-service/internal/model"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *Repository) GetOrCreateProfile(ctx context.Context, hostID string) (model.HostProfile, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO host_profiles (host_id)
		VALUES ($1)
		ON CONFLICT (host_id) DO NOTHING
	`, hostID)
	if err != nil {
		return model.HostProfile{}, err
	}

	var p model.HostProfile
	err = r.pool.QueryRow(ctx, `
		SELECT host_id::text, name, timezone
		FROM host_profiles
		WHERE host_id = $1
	`, hostID).Scan(&p.HostID, &p.Name, &p.Timezone)
	return p, err
}

func (r *Repository) UpdateProfile(ctx context.Context, hostID, name, timezone string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO host_profiles (host_id, name, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (host_id) DO UPDATE
		SET name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			updated_at = now()
	`, hostID, name, timezone)
	return err
}

func (r *Repository) CreateRule(ctx context.Context, rule model.AvailabilityRule) (string, error) {
	id := uuid.NewString()
	var date *time.Time
	if rule.Kind == model.RuleKindDate {
		d := rule.Date
		date = &d
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_rules
			(id, host_id, kind, weekday, rule_date, start_minute, end_minute, slot_minutes, meeting_type, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, rule.HostID, string(rule.Kind), rule.Weekday, date,
		rule.StartMinute, rule.EndMinute, rule.SlotMinutes, rule.MeetingType, rule.Active)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListRules(ctx context.Context, hostID string) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, host_id::text, kind, weekday, rule_date, start_minute, end_minute,
			slot_minutes, meeting_type, active, created_at
		FROM availability_rules
		WHERE host_id = $1
		ORDER BY kind, weekday, rule_date, start_minute
	`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// RulesForDate loads the active rules that can apply to one calendar day:
// recurring rules on its weekday plus date rules pinned to it.
func (r *Repository) RulesForDate(ctx context.Context, hostID string, date time.Time) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, host_id::text, kind, weekday, rule_date, start_minute, end_minute,
			slot_minutes, meeting_type, active, created_at
		FROM availability_rules
		WHERE host_id = $1
			AND active
			AND ((kind = 'recurring' AND weekday = $2) OR (kind = 'date' AND rule_date = $3))
		ORDER BY start_minute
	`, hostID, int(date.Weekday()), date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *Repository) SetRuleActive(ctx context.Context, hostID, ruleID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_rules
		SET active = $3, updated_at = now()
		WHERE host_id = $1 AND id = $2
	`, hostID, ruleID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) DeleteRule(ctx context.Context, hostID, ruleID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_rules
		WHERE host_id = $1 AND id = $2
	`, hostID, ruleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) CreateException(ctx context.Context, ex model.DateException) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO date_exceptions (id, host_id, exception_date, reason, meeting_type)
		VALUES ($1, $2, $3, $4, $5)
	`, id, ex.HostID, ex.Date, ex.Reason, ex.MeetingType)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListExceptions(ctx context.Context, hostID string, from, to time.Time) ([]model.DateException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, host_id::text, exception_date, reason, meeting_type, created_at
		FROM date_exceptions
		WHERE host_id = $1 AND exception_date >= $2 AND exception_date < $3
		ORDER BY exception_date
	`, hostID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DateException
	for rows.Next() {
		var ex model.DateException
		if err := rows.Scan(&ex.ID, &ex.HostID, &ex.Date, &ex.Reason, &ex.MeetingType, &ex.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) ExceptionsForDate(ctx context.Context, hostID string, date time.Time) ([]model.DateException, error) {
	return r.ListExceptions(ctx, hostID, date, date.AddDate(0, 0, 1))
}

func (r *Repository) DeleteException(ctx context.Context, hostID, exceptionID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM date_exceptions
		WHERE host_id = $1 AND id = $2
	`, hostID, exceptionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRules(rows pgx.Rows) ([]model.AvailabilityRule, error) {
	var out []model.AvailabilityRule
	for rows.Next() {
		var rule model.AvailabilityRule
		var kind string
		var date *time.Time
		if err := rows.Scan(
			&rule.ID,
			&rule.HostID,
			&kind,
			&rule.Weekday,
			&date,
			&rule.StartMinute,
			&rule.EndMinute,
			&rule.SlotMinutes,
			&rule.MeetingType,
			&rule.Active,
			&rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		rule.Kind = model.RuleKind(kind)
		if date != nil {
			rule.Date = *date
		}
		out = append(out, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
