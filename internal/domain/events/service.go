package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Type       EventType
	OccurredAt time.Time
	Subject    string
	Notes      string
	Source     Source
}

func (s *Service) Record(ctx context.Context, patientID string, actor Actor, in CreateInput) (Event, error) {
	if strings.TrimSpace(patientID) == "" {
		return Event{}, ErrInvalidInput
	}
	if in.Type == "" {
		return Event{}, ErrInvalidInput
	}
	if actor.Type == "" || strings.TrimSpace(actor.ID) == "" {
		return Event{}, ErrInvalidInput
	}

	now := s.now()
	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	src := in.Source
	if src == "" {
		src = SourceAPI
	}

	e := Event{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		Type:       in.Type,
		OccurredAt: occurred,
		RecordedAt: now,
		Subject:    strings.TrimSpace(in.Subject),
		Notes:      strings.TrimSpace(in.Notes),
		Actor:      actor,
		Source:     src,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Event{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, filter ListFilter) ([]Event, error) {
	return s.repo.ListByPatient(ctx, patientID, filter)
}
