package memory

import (
	"context"
	"testing"
	"time"

	"medication-adherence/internal/domain/patients"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatientRepo_ListByCaregiver(t *testing.T) {
	ctx := context.Background()
	r := NewPatientRepo()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, r.Create(ctx, patients.Patient{ID: "p-1", OwnerUserID: "u-1", CaregiverUserIDs: []string{"c-1"}, CreatedAt: now}))
	require.NoError(t, r.Create(ctx, patients.Patient{ID: "p-2", OwnerUserID: "u-2", CaregiverUserIDs: []string{"c-1", "c-2"}, CreatedAt: now.Add(time.Hour)}))
	require.Error(t, r.Create(ctx, patients.Patient{ID: "p-1"}))

	got, err := r.ListByCaregiver(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p-1", got[0].ID)

	got, err = r.ListByOwner(ctx, "u-2")
	require.NoError(t, err)
	require.Len(t, got, 1)

	// las copias devueltas no comparten el slice
	got[0].CaregiverUserIDs[0] = "mutated"
	p, err := r.GetByID(ctx, "p-2")
	require.NoError(t, err)
	assert.Equal(t, "c-1", p.CaregiverUserIDs[0])

	assert.ErrorIs(t, r.Update(ctx, patients.Patient{ID: "p-9"}), ErrNotFound)
}
