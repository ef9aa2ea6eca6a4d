package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"medication-adherence/internal/domain/events"
)

type eventRepo struct {
	mu   sync.RWMutex
	byID map[string]events.Event
}

func NewEventRepo() events.Repository {
	return &eventRepo{
		byID: make(map[string]events.Event),
	}
}

func (r *eventRepo) Create(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return errors.New("event id required")
	}
	if _, exists := r.byID[e.ID]; exists {
		return errors.New("event already exists")
	}

	r.byID[e.ID] = e
	return nil
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (events.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return events.Event{}, ErrNotFound
	}
	return e, nil
}

func (r *eventRepo) ListByPatient(ctx context.Context, patientID string, filter events.ListFilter) ([]events.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	out := make([]events.Event, 0)
	for _, e := range r.byID {
		if e.PatientID != patientID {
			continue
		}

		if len(filter.Types) > 0 && !hasType(filter.Types, e.Type) {
			continue
		}

		// occurred_at en [from, to]
		if filter.From != nil && e.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.OccurredAt.After(*filter.To) {
			continue
		}

		if q := strings.TrimSpace(filter.Query); q != "" {
			hay := strings.ToLower(e.Subject + " " + e.Notes)
			if !strings.Contains(hay, strings.ToLower(q)) {
				continue
			}
		}

		out = append(out, e)
	}

	// Más reciente primero
	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func hasType(types []events.EventType, t events.EventType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
