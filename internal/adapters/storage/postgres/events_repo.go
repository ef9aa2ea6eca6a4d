package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"medication-adherence/internal/domain/events"
)

type EventsRepo struct {
	db *sql.DB
}

func NewEventsRepo(db *sql.DB) *EventsRepo {
	return &EventsRepo{db: db}
}

const eventColumns = `
	id, patient_id,
	type, occurred_at, recorded_at,
	subject, notes,
	actor_type, actor_id,
	source
`

func (r *EventsRepo) Create(ctx context.Context, e events.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO adherence_events (`+eventColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		e.ID,
		e.PatientID,
		string(e.Type),
		e.OccurredAt,
		e.RecordedAt,
		e.Subject,
		e.Notes,
		string(e.Actor.Type),
		e.Actor.ID,
		string(e.Source),
	)
	return err
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (events.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return events.Event{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM adherence_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return events.Event{}, ErrNotFound
		}
		return events.Event{}, err
	}
	return e, nil
}

func (r *EventsRepo) ListByPatient(ctx context.Context, patientID string, filter events.ListFilter) ([]events.Event, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + eventColumns + ` FROM adherence_events WHERE patient_id = $1`)

	args := []any{patientID}
	argN := 2

	if len(filter.Types) > 0 {
		placeholders := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argN))
			args = append(args, string(t))
			argN++
		}
		sb.WriteString(" AND type IN (" + strings.Join(placeholders, ",") + ")")
	}

	if filter.From != nil {
		sb.WriteString(fmt.Sprintf(" AND occurred_at >= $%d", argN))
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		sb.WriteString(fmt.Sprintf(" AND occurred_at <= $%d", argN))
		args = append(args, *filter.To)
		argN++
	}

	// q: búsqueda simple en subject + notes
	if strings.TrimSpace(filter.Query) != "" {
		sb.WriteString(fmt.Sprintf(" AND (subject ILIKE $%d OR notes ILIKE $%d)", argN, argN))
		args = append(args, "%"+strings.TrimSpace(filter.Query)+"%")
		argN++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	sb.WriteString(" ORDER BY occurred_at DESC, recorded_at DESC")
	sb.WriteString(fmt.Sprintf(" LIMIT $%d", argN))
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]events.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(s scanner) (events.Event, error) {
	var (
		e                      events.Event
		typ, actorType, source string
	)
	if err := s.Scan(
		&e.ID,
		&e.PatientID,
		&typ,
		&e.OccurredAt,
		&e.RecordedAt,
		&e.Subject,
		&e.Notes,
		&actorType,
		&e.Actor.ID,
		&source,
	); err != nil {
		return events.Event{}, err
	}
	e.Type = events.EventType(typ)
	e.Actor.Type = events.ActorType(actorType)
	e.Source = events.Source(source)
	return e, nil
}
