package events

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, e Event) error
	GetByID(ctx context.Context, id string) (Event, error)
	ListByPatient(ctx context.Context, patientID string, filter ListFilter) ([]Event, error)
}

type ListFilter struct {
	Types []EventType
	From  *time.Time
	To    *time.Time
	Query string
	Limit int
}
