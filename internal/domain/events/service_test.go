package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRepo struct {
	items []Event
}

func (r *testRepo) Create(_ context.Context, e Event) error {
	r.items = append(r.items, e)
	return nil
}

func (r *testRepo) GetByID(_ context.Context, id string) (Event, error) {
	for _, e := range r.items {
		if e.ID == id {
			return e, nil
		}
	}
	return Event{}, errors.New("not found")
}

func (r *testRepo) ListByPatient(_ context.Context, patientID string, _ ListFilter) ([]Event, error) {
	var out []Event
	for _, e := range r.items {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestRecord_DefaultsAndValidation(t *testing.T) {
	repo := &testRepo{}
	svc := NewService(repo)
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	e, err := svc.Record(context.Background(), "p-1", SystemActor, CreateInput{
		Type:    EventTypeDoseEscalated,
		Subject: " Lisinopril|2026-03-02|08:00 ",
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, e.OccurredAt)
	assert.Equal(t, SourceAPI, e.Source)
	assert.Equal(t, "Lisinopril|2026-03-02|08:00", e.Subject)
	assert.NotEmpty(t, e.ID)

	_, err = svc.Record(context.Background(), "", SystemActor, CreateInput{Type: EventTypeDoseSnoozed})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Record(context.Background(), "p-1", Actor{}, CreateInput{Type: EventTypeDoseConfirmed})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestActorFromContext(t *testing.T) {
	assert.Equal(t, SystemActor, ActorFrom(context.Background()))

	a := Actor{Type: ActorTypeCaregiverUser, ID: "cg"}
	assert.Equal(t, a, ActorFrom(WithActor(context.Background(), a)))
}

func TestSourceFromContext(t *testing.T) {
	assert.Equal(t, SourceAPI, SourceFrom(context.Background()))
	assert.Equal(t, SourceImport, SourceFrom(WithSource(context.Background(), SourceImport)))
}
