package alerts

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("a-%02d", n)
	}
}

func TestSeverityMapping(t *testing.T) {
	sched := now.Add(-3 * time.Hour)

	assert.Equal(t, Critical, UrgentMissedDoseAlert("Lisinopril", "k", sched, now).Severity)
	assert.Equal(t, Medium, MissedDoseAlert("Lisinopril", "k", sched, now).Severity)
	assert.Equal(t, Medium, LowInventoryAlert("Lisinopril", StockFacts{Remaining: 2, Threshold: 3}, now).Severity)
	assert.Equal(t, High, LowInventoryAlert("Lisinopril", StockFacts{Remaining: 0, Threshold: 3}, now).Severity)

	assert.Equal(t, High, DeviationAlert("heart-rate", DeviationFacts{SpreadMultiple: 3}, 0, now).Severity)
	assert.Equal(t, Medium, DeviationAlert("heart-rate", DeviationFacts{SpreadMultiple: 2.5}, 0, now).Severity)
	assert.Equal(t, Medium, DriftAlert("weight", "increasing", 0.4, 0.06, 4, now).Severity)
	assert.Equal(t, High, LimitAlert("blood-sugar", "max", 180, 210, now).Severity)
}

func TestMissedDoseFacts(t *testing.T) {
	a := MissedDoseAlert("Lisinopril", "Lisinopril|2026-03-02|08:00", now.Add(-75*time.Minute), now)
	late, ok := a.Facts.Number(FactMinutesLate)
	require.True(t, ok)
	assert.InDelta(t, 75.0, late, 1e-9)
	assert.Equal(t, SubjectMedication, a.Subject.Type)
	assert.Equal(t, "Lisinopril|2026-03-02|08:00", a.DoseKey)
}

func TestRankAndOverall(t *testing.T) {
	agg := NewAggregatorWithIDs(seqIDs())
	hist, added := agg.Collect(nil,
		MissedDoseAlert("A", "k1", now.Add(-time.Hour), now),
		LowInventoryAlert("B", StockFacts{Remaining: 0}, now.Add(-time.Minute)),
		UrgentMissedDoseAlert("C", "k2", now.Add(-3*time.Hour), now),
		MissedDoseAlert("D", "k3", now.Add(-time.Hour), now),
	)
	require.Len(t, added, 4)
	assert.Equal(t, "a-01", added[0].ID)

	ranked := Rank(hist)
	got := []string{}
	for _, a := range ranked {
		got = append(got, a.Subject.Ref)
	}
	assert.Equal(t, []string{"C", "B", "A", "D"}, got)
	assert.Equal(t, Critical, Overall(hist))

	_, err := Acknowledge(hist, "a-03", "caregiver-1", now)
	require.NoError(t, err)
	assert.Equal(t, High, Overall(hist))
	assert.Len(t, Active(hist), 3)
	assert.Len(t, hist, 4, "acknowledged alerts stay in history")
}

func TestOverall_LowWhenNothingActive(t *testing.T) {
	assert.Equal(t, Low, Overall(nil))
}

func TestAcknowledge_Idempotent(t *testing.T) {
	hist, _ := NewAggregatorWithIDs(seqIDs()).Collect(nil, MissedDoseAlert("A", "k", now, now))

	first, err := Acknowledge(hist, "a-01", "u1", now)
	require.NoError(t, err)
	second, err := Acknowledge(hist, "a-01", "u2", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "u1", second.AcknowledgedBy)

	_, err = Acknowledge(hist, "nope", "u1", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollect_SkipsKnownIDs(t *testing.T) {
	agg := NewAggregatorWithIDs(seqIDs())
	hist, added := agg.Collect(nil, MissedDoseAlert("A", "k", now, now))
	require.Len(t, added, 1)

	hist, added = agg.Collect(hist, hist[0], LowInventoryAlert("A", StockFacts{Remaining: 1, Threshold: 3}, now))
	assert.Len(t, hist, 2)
	require.Len(t, added, 1)
	assert.Equal(t, "a-02", added[0].ID)
}

func TestPrune_DropsOnlyOldAcknowledged(t *testing.T) {
	hist, _ := NewAggregatorWithIDs(seqIDs()).Collect(nil,
		MissedDoseAlert("A", "k1", now, now),
		MissedDoseAlert("B", "k2", now, now),
		MissedDoseAlert("C", "k3", now, now),
	)
	_, err := Acknowledge(hist, "a-01", "u1", now.AddDate(0, 0, -100))
	require.NoError(t, err)
	_, err = Acknowledge(hist, "a-02", "u1", now.AddDate(0, 0, -1))
	require.NoError(t, err)

	kept := Prune(hist, now.AddDate(0, 0, -90))
	ids := []string{}
	for _, a := range kept {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"a-02", "a-03"}, ids)
}
