package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-adherence/internal/domain/adherence"
)

// Corre contra un Redis real: REDIS_TEST_URL=redis://localhost:6379/15
func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	client, err := Open(url)
	require.NoError(t, err)

	prefix := "adherence-test-" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			_ = client.Del(ctx, keys...).Err()
		}
		_ = client.Close()
	})
	return NewStateStore(client, prefix)
}

func TestCreate_WritesStateAndIndexTogether(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, adherence.NewState("p-1", "UTC")))
	ids, err := s.ListPatients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, ids)

	err = s.Create(ctx, adherence.NewState("p-1", "UTC"))
	assert.True(t, errors.Is(err, adherence.ErrAlreadyExists))
}

func TestCreate_RepairsMissingIndexEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, adherence.NewState("p-2", "UTC")))
	require.NoError(t, s.client.SRem(ctx, s.indexKey(), "p-2").Err())

	err := s.Create(ctx, adherence.NewState("p-2", "UTC"))
	assert.True(t, errors.Is(err, adherence.ErrAlreadyExists))
	ids, err := s.ListPatients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-2"}, ids)
}

func TestUpdate_ReadModifyWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, adherence.NewState("p-3", "UTC")))

	require.NoError(t, s.Update(ctx, "p-3", func(st *adherence.State) error {
		st.Timezone = "Asia/Kolkata"
		return nil
	}))
	st, err := s.Load(ctx, "p-3")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", st.Timezone)

	_, err = s.Load(ctx, "missing")
	assert.True(t, errors.Is(err, adherence.ErrNotFound))
}
