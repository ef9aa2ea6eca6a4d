package doses

import (
	"testing"
	"time"

	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/domain/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var w = schedule.DefaultWindows()

func newInstance(scheduled time.Time) Instance {
	key := NewKey("Lisinopril", scheduled, medications.Slot{Hour: scheduled.Hour(), Minute: scheduled.Minute()})
	return New(key, scheduled, scheduled.Add(-12*time.Hour))
}

func TestKey_RoundTrip(t *testing.T) {
	k := Key{Medication: "Lisinopril", Day: "2026-03-02", Slot: medications.Slot{Hour: 8}}
	assert.Equal(t, "Lisinopril|2026-03-02|08:00", k.String())

	back, err := ParseKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, back)

	for _, bad := range []string{"", "a|b", "x|2026-13-01|08:00", "x|2026-03-02|25:00", "|2026-03-02|08:00"} {
		_, err := ParseKey(bad)
		assert.ErrorIsf(t, err, ErrInvalidKey, "key %q", bad)
	}
}

func TestAdvance_WalksTheLifecycle(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	inst := newInstance(at)

	steps := []struct {
		now  time.Time
		want State
	}{
		{at.Add(-time.Hour), Pending},
		{at.Add(-20 * time.Minute), Due},
		{at.Add(time.Minute), Missed},
		{at.Add(2 * time.Hour), Urgent},
	}
	prev := inst.State
	for _, s := range steps {
		_, err := inst.Advance(s.now, w)
		require.NoError(t, err)
		assert.Equal(t, s.want, inst.State)
		assert.GreaterOrEqual(t, inst.State.Rank(), prev.Rank())
		prev = inst.State
	}

	tr, ok := inst.Escalate(at.Add(2 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, Urgent, tr.From)
	assert.Equal(t, Escalated, tr.To)

	_, ok = inst.Escalate(at.Add(3 * time.Hour))
	assert.False(t, ok, "escalation happens once")

	tr2, err := inst.Confirm(at.Add(3 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Resolved, tr2.To)
	assert.Equal(t, Confirmed, inst.Resolution)
}

func TestAdvance_SkipsIntermediateStatesWithOneTransition(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	inst := newInstance(at)

	tr, err := inst.Advance(at.Add(3*time.Hour), w)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, Pending, tr.From)
	assert.Equal(t, Urgent, tr.To)
}

func TestAdvance_RejectsBackwardsClock(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	inst := newInstance(at)

	_, err := inst.Advance(at.Add(time.Hour), w)
	require.NoError(t, err)
	require.Equal(t, Missed, inst.State)

	_, err = inst.Advance(at.Add(-time.Hour), w)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, Missed, inst.State)
}

func TestConfirmBeforeEscalationPreventsEscalation(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	inst := newInstance(at)

	_, err := inst.Advance(at.Add(30*time.Minute), w)
	require.NoError(t, err)
	_, err = inst.Confirm(at.Add(40 * time.Minute))
	require.NoError(t, err)

	for _, d := range []time.Duration{2 * time.Hour, 5 * time.Hour, 20 * time.Hour} {
		tr, err := inst.Advance(at.Add(d), w)
		require.NoError(t, err)
		assert.Nil(t, tr)
		_, ok := inst.Escalate(at.Add(d))
		assert.False(t, ok)
	}
	assert.Equal(t, Resolved, inst.State)
	assert.Nil(t, inst.EscalatedAt)

	_, err = inst.Confirm(at.Add(time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestClose_ForcedMissed(t *testing.T) {
	at := time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)
	inst := newInstance(at)
	_, _ = inst.Advance(at.Add(time.Hour), w)

	midnight := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	tr, ok := inst.Close(midnight)
	require.True(t, ok)
	assert.Equal(t, Missed, tr.From)
	assert.Equal(t, ForcedMissed, inst.Resolution)
	assert.Equal(t, midnight, *inst.ResolvedAt)

	_, ok = inst.Close(midnight)
	assert.False(t, ok)
	assert.ErrorIs(t, inst.Snooze(midnight.Add(time.Hour)), ErrAlreadyResolved)
}

func TestSnoozeDoesNotChangeState(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	inst := newInstance(at)
	_, _ = inst.Advance(at.Add(-10*time.Minute), w)

	require.NoError(t, inst.Snooze(at.Add(20*time.Minute)))
	assert.Equal(t, Due, inst.State)
	assert.True(t, inst.Snoozed(at))
	assert.False(t, inst.Snoozed(at.Add(20*time.Minute)))

	// El escalamiento sigue corriendo aunque haya snooze.
	require.NoError(t, inst.Snooze(at.Add(10*time.Hour)))
	_, err := inst.Advance(at.Add(2*time.Hour), w)
	require.NoError(t, err)
	assert.Equal(t, Urgent, inst.State)
}

func TestDeriveIsReproducible(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	inst := newInstance(at)
	for _, d := range []time.Duration{-time.Hour, -5 * time.Minute, 90 * time.Minute, 150 * time.Minute} {
		now := at.Add(d)
		_, err := inst.Advance(now, w)
		require.NoError(t, err)
		assert.Equal(t, Derive(inst, now, w), inst.State)
	}
}
