package adherence

import (
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"medication-adherence/internal/domain/alerts"
	"medication-adherence/internal/domain/doses"
	"medication-adherence/internal/domain/inventory"
	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/domain/schedule"
	"medication-adherence/internal/domain/vitals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tz = "Asia/Kolkata"

var ist = mustLoc(tz)

func mustLoc(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// at: 2 de marzo de 2026, hora local del paciente.
func at(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, ist) }

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("al-%02d", n)
	}
}

const lisinoprilKey = "Lisinopril|2026-03-02|08:00"

func lisinoprilState(t *testing.T) State {
	t.Helper()
	st := NewState("p-1", tz)
	plan, _, err := st.Medications.Upsert(medications.Input{
		Name:   "Lisinopril",
		Dosage: "10mg",
		Times:  []string{"08:00"},
		Food:   "after",
	}, at(6, 0))
	require.NoError(t, err)
	st.Medications = plan
	return st
}

func runTick(st *State, now time.Time, agg *alerts.Aggregator) TickResult {
	rules := DefaultRules()
	return Tick(Observe(*st, now, rules), st, rules, agg)
}

func actionKinds(in []Action) []string {
	out := []string{}
	for _, a := range in {
		out = append(out, string(a.Kind)+":"+a.Reason)
	}
	return out
}

func TestTick_LisinoprilDay(t *testing.T) {
	st := lisinoprilState(t)
	agg := alerts.NewAggregatorWithIDs(seqIDs())

	// 07:00: todavía fuera de la ventana
	res := runTick(&st, at(7, 0), agg)
	assert.Empty(t, res.Actions)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, doses.Pending, st.Doses[lisinoprilKey].State)

	// 07:45: due, recordatorio
	res = runTick(&st, at(7, 45), agg)
	assert.Equal(t, []string{"notify:due"}, actionKinds(res.Actions))
	require.Len(t, res.DoseUpdates, 1)
	assert.Equal(t, doses.Due, res.DoseUpdates[0].To)

	// 09:15: missed
	res = runTick(&st, at(9, 15), agg)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, alerts.MissedDose, res.Alerts[0].Kind)
	assert.Equal(t, alerts.Medium, res.Alerts[0].Severity)
	assert.Equal(t, lisinoprilKey, res.Alerts[0].DoseKey)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, ActionNotify, res.Actions[0].Kind)
	assert.Equal(t, res.Alerts[0].ID, res.Actions[0].AlertID)
	require.Len(t, res.Statuses, 1)
	assert.Equal(t, schedule.OverdueRecent, res.Statuses[0].Relation)

	// 10:01: urgente y escalado
	res = runTick(&st, at(10, 1), agg)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, alerts.UrgentMissedDose, res.Alerts[0].Kind)
	assert.Equal(t, alerts.Critical, res.Alerts[0].Severity)
	assert.Equal(t, []string{"escalate:urgent"}, actionKinds(res.Actions))
	require.Len(t, res.DoseUpdates, 2)
	assert.Equal(t, doses.Urgent, res.DoseUpdates[0].To)
	assert.Equal(t, doses.Escalated, res.DoseUpdates[1].To)
	assert.Equal(t, alerts.Critical, res.Overall)
	require.NotNil(t, res.Next)
	assert.Equal(t, schedule.OverdueUrgent, res.Next.Relation)

	// 10:30: nada nuevo, no se re-escala
	res = runTick(&st, at(10, 30), agg)
	assert.Empty(t, res.Actions)
	assert.Empty(t, res.Alerts)
	assert.Empty(t, res.DoseUpdates)
	assert.Len(t, st.Alerts, 2)
}

func TestTick_JumpStraightToMissedSkipsDueReminder(t *testing.T) {
	st := lisinoprilState(t)
	res := runTick(&st, at(9, 15), alerts.NewAggregatorWithIDs(seqIDs()))

	require.Len(t, res.DoseUpdates, 1)
	assert.Equal(t, doses.Pending, res.DoseUpdates[0].From)
	assert.Equal(t, doses.Missed, res.DoseUpdates[0].To)
	assert.Equal(t, []string{"notify:missed"}, actionKinds(res.Actions))
}

func TestTick_ConfirmedDoseNeverEscalates(t *testing.T) {
	st := lisinoprilState(t)
	agg := alerts.NewAggregatorWithIDs(seqIDs())
	runTick(&st, at(7, 45), agg)

	inst := st.Doses[lisinoprilKey]
	_, err := inst.Confirm(at(8, 5))
	require.NoError(t, err)
	st.Doses[lisinoprilKey] = inst

	res := runTick(&st, at(10, 30), agg)
	assert.Empty(t, res.Actions)
	assert.Empty(t, res.Alerts)
	require.Len(t, res.Statuses, 1)
	assert.Equal(t, schedule.Taken, res.Statuses[0].Relation)
	assert.Nil(t, res.Next)
	assert.Equal(t, alerts.Low, res.Overall)
}

func TestTick_SnoozeDefersReminder(t *testing.T) {
	st := lisinoprilState(t)
	agg := alerts.NewAggregatorWithIDs(seqIDs())
	runTick(&st, at(7, 0), agg)

	inst := st.Doses[lisinoprilKey]
	require.NoError(t, inst.Snooze(at(7, 55)))
	inst.NotifyPending = true
	st.Doses[lisinoprilKey] = inst

	res := runTick(&st, at(7, 45), agg)
	assert.Empty(t, res.Actions)
	assert.True(t, st.Doses[lisinoprilKey].NotifyPending)

	res = runTick(&st, at(7, 58), agg)
	assert.Equal(t, []string{"notify:snooze-elapsed"}, actionKinds(res.Actions))
	assert.False(t, st.Doses[lisinoprilKey].NotifyPending)

	res = runTick(&st, at(7, 59), agg)
	assert.Empty(t, res.Actions)
}

func TestTick_SnoozeNeverHoldsBackEscalation(t *testing.T) {
	st := lisinoprilState(t)
	agg := alerts.NewAggregatorWithIDs(seqIDs())
	runTick(&st, at(7, 45), agg)

	inst := st.Doses[lisinoprilKey]
	require.NoError(t, inst.Snooze(at(12, 0)))
	st.Doses[lisinoprilKey] = inst

	res := runTick(&st, at(10, 1), agg)
	assert.Equal(t, []string{"escalate:urgent"}, actionKinds(res.Actions))
	assert.Equal(t, doses.Escalated, st.Doses[lisinoprilKey].State)
	// missed + urgent se registran aunque el notify quede diferido
	assert.Len(t, res.Alerts, 2)
	assert.True(t, st.Doses[lisinoprilKey].NotifyPending)
}

func TestTick_RolloverClosesPreviousDay(t *testing.T) {
	st := lisinoprilState(t)
	agg := alerts.NewAggregatorWithIDs(seqIDs())
	runTick(&st, at(9, 15), agg)

	next := at(7, 0).AddDate(0, 0, 1)
	res := runTick(&st, next, agg)

	require.NotEmpty(t, res.DoseUpdates)
	closed := res.DoseUpdates[0]
	assert.Equal(t, lisinoprilKey, closed.Key.String())
	assert.Equal(t, doses.Resolved, closed.To)
	assert.True(t, closed.At.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, ist)))

	_, stillOpen := st.Doses[lisinoprilKey]
	assert.False(t, stillOpen)
	arch, ok := st.findArchived(lisinoprilKey)
	require.True(t, ok)
	assert.Equal(t, doses.ForcedMissed, arch.Resolution)

	_, today := st.Doses["Lisinopril|2026-03-03|08:00"]
	assert.True(t, today)
}

func TestTick_LowInventoryOncePerDayUntilDepleted(t *testing.T) {
	st := lisinoprilState(t)
	rec, err := inventory.NewRecord("Lisinopril", 2, 0, 1, 3, at(6, 0))
	require.NoError(t, err)
	st.Inventory["Lisinopril"] = rec
	agg := alerts.NewAggregatorWithIDs(seqIDs())

	res := runTick(&st, at(7, 0), agg)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, alerts.LowInventory, res.Alerts[0].Kind)
	assert.Equal(t, alerts.Medium, res.Alerts[0].Severity)
	assert.Equal(t, []string{"suggest-reorder:low_stock"}, actionKinds(res.Actions))
	require.NotNil(t, st.Inventory["Lisinopril"].PredictedRunOut)

	res = runTick(&st, at(7, 5), agg)
	assert.Empty(t, res.Alerts)

	rec = st.Inventory["Lisinopril"]
	rec.Remaining = 0
	st.Inventory["Lisinopril"] = rec
	res = runTick(&st, at(7, 10), agg)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, alerts.High, res.Alerts[0].Severity)
}

func TestTick_ClockBackwardsSkipsDose(t *testing.T) {
	st := lisinoprilState(t)
	agg := alerts.NewAggregatorWithIDs(seqIDs())
	runTick(&st, at(9, 15), agg)

	res := runTick(&st, at(7, 0), agg)
	assert.Equal(t, []string{lisinoprilKey}, res.Skipped)
	assert.Equal(t, doses.Missed, st.Doses[lisinoprilKey].State)
}

func TestTick_TwoSlotsPicksOverdueFirst(t *testing.T) {
	st := NewState("p-1", tz)
	plan, _, err := st.Medications.Upsert(medications.Input{Name: "Metformin", Dosage: "500mg", Times: []string{"08:00", "20:00"}}, at(6, 0))
	require.NoError(t, err)
	plan, _, err = plan.Upsert(medications.Input{Name: "Atorvastatin", Dosage: "20mg", Times: []string{"09:30"}}, at(6, 0))
	require.NoError(t, err)
	st.Medications = plan

	res := runTick(&st, at(9, 15), alerts.NewAggregatorWithIDs(seqIDs()))
	assert.Len(t, st.Doses, 3)
	require.NotNil(t, res.Next)
	assert.Equal(t, "Atorvastatin", res.Next.Medication)
	assert.Equal(t, schedule.Due, res.Next.Relation)
}

func TestObserve_FiltersResolvedAndOldVitals(t *testing.T) {
	st := lisinoprilState(t)
	agg := alerts.NewAggregatorWithIDs(seqIDs())
	runTick(&st, at(7, 0), agg)

	st.Vitals = []vitals.Reading{
		{Type: vitals.HeartRate, Value: 70, RecordedAt: at(8, 0).AddDate(0, 0, -10)},
		{Type: vitals.HeartRate, Value: 72, RecordedAt: at(8, 0).AddDate(0, 0, -1)},
	}

	obs := Observe(st, at(7, 30), DefaultRules())
	assert.Equal(t, "p-1", obs.PatientID)
	assert.Len(t, obs.Medications, 1)
	assert.Len(t, obs.RecentVitals, 1)
	assert.Len(t, obs.PendingDoses, 1)

	inst := st.Doses[lisinoprilKey]
	_, err := inst.Confirm(at(7, 40))
	require.NoError(t, err)
	st.Doses[lisinoprilKey] = inst

	obs = Observe(st, at(7, 45), DefaultRules())
	assert.Empty(t, obs.PendingDoses)
}

func TestTick_BaselinesAreInformational(t *testing.T) {
	st := lisinoprilState(t)
	for i, v := range []float64{70, 72, 71, 120} {
		st.Vitals = append(st.Vitals, vitals.Reading{Type: vitals.HeartRate, Value: v, RecordedAt: at(6, 0).Add(time.Duration(i-4) * time.Hour)})
	}

	res := runTick(&st, at(7, 0), alerts.NewAggregatorWithIDs(seqIDs()))
	require.Len(t, res.Baselines, 1)
	assert.Equal(t, vitals.HeartRate, res.Baselines[0].Type)
	assert.Equal(t, 4, res.Baselines[0].Count)
	assert.Empty(t, res.Alerts)
}
