package schedule

import (
	"sort"
	"time"

	"medication-adherence/internal/domain/medications"
)

// Classify ubica un instante programado respecto de now (sin considerar tomas).
// Un snooze vigente suprime "due" pero nunca la clasificación de atraso.
func Classify(instant, now time.Time, w Windows, snoozedUntil *time.Time) Relation {
	w = w.orDefault()
	d := now.Sub(instant)
	snoozed := snoozedUntil != nil && snoozedUntil.After(now)

	if d < -w.Lookahead {
		return Upcoming
	}
	if d <= w.Lookahead {
		if !snoozed {
			return Due
		}
		if d <= 0 {
			return Upcoming
		}
	}
	if d < w.Escalation {
		return OverdueRecent
	}
	return OverdueUrgent
}

// DueStatus clasifica cada slot del día local de now. now debe venir ya en la
// zona del paciente. confirmations son los instantes de toma registrados para
// la medicación (en cualquier día).
func DueStatus(
	med medications.Medication,
	now time.Time,
	w Windows,
	confirmations []time.Time,
	snoozedUntil map[medications.Slot]time.Time,
) []SlotStatus {
	w = w.orDefault()
	if len(med.Slots) == 0 {
		return nil
	}

	taken := map[int64]time.Time{}
	for _, c := range confirmations {
		inst, ok := windowFor(med, c.In(now.Location()), w.Lookahead)
		if !ok {
			continue
		}
		if prev, dup := taken[inst.UnixNano()]; !dup || c.Before(prev) {
			taken[inst.UnixNano()] = c
		}
	}

	out := make([]SlotStatus, 0, len(med.Slots))
	for _, s := range med.Slots {
		instant := s.On(now)
		st := SlotStatus{
			Medication: med.Name,
			Slot:       s,
			Instant:    instant,
		}

		var su *time.Time
		if v, ok := snoozedUntil[s]; ok {
			su = &v
			st.Snoozed = v.After(now)
		}

		if c, ok := taken[instant.UnixNano()]; ok {
			c := c
			st.Relation = Taken
			st.ConfirmedAt = &c
		} else {
			st.Relation = Classify(instant, now, w, su)
		}
		out = append(out, st)
	}
	return out
}

// TargetInstant devuelve el instante programado cuya ventana
// [instant - lookahead, siguiente instante) contiene at.
func TargetInstant(med medications.Medication, at time.Time, lookahead time.Duration) (medications.Slot, time.Time, bool) {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	cands := candidates(med, at)
	best := -1
	for i, c := range cands {
		if !c.instant.Add(-lookahead).After(at) {
			best = i
		}
	}
	if best < 0 {
		return medications.Slot{}, time.Time{}, false
	}
	return cands[best].slot, cands[best].instant, true
}

func windowFor(med medications.Medication, at time.Time, lookahead time.Duration) (time.Time, bool) {
	_, inst, ok := TargetInstant(med, at, lookahead)
	return inst, ok
}

type candidate struct {
	slot    medications.Slot
	instant time.Time
}

// candidates: slots de ayer, hoy y mañana (local de at), ordenados.
func candidates(med medications.Medication, at time.Time) []candidate {
	out := make([]candidate, 0, 3*len(med.Slots))
	for _, off := range []int{-1, 0, 1} {
		day := at.AddDate(0, 0, off)
		for _, s := range med.Slots {
			out = append(out, candidate{slot: s, instant: s.On(day)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].instant.Before(out[j].instant) })
	return out
}

// NextActionable elige el slot a mostrar: overdue-urgent, luego due, luego
// menor |now - instant|, luego nombre de medicación. Los slots tomados no cuentan.
func NextActionable(statuses []SlotStatus, now time.Time) (SlotStatus, bool) {
	var (
		best  SlotStatus
		found bool
	)
	for _, s := range statuses {
		if s.Relation == Taken {
			continue
		}
		if !found || better(s, best, now) {
			best = s
			found = true
		}
	}
	return best, found
}

func better(a, b SlotStatus, now time.Time) bool {
	if ra, rb := priority(a.Relation), priority(b.Relation); ra != rb {
		return ra < rb
	}
	da, db := absDur(now.Sub(a.Instant)), absDur(now.Sub(b.Instant))
	if da != db {
		return da < db
	}
	if a.Medication != b.Medication {
		return a.Medication < b.Medication
	}
	return a.Instant.Before(b.Instant)
}

func priority(r Relation) int {
	switch r {
	case OverdueUrgent:
		return 0
	case Due:
		return 1
	default:
		return 2
	}
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
