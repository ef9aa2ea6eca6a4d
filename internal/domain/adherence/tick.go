package adherence

import (
	"sort"
	"time"

	"medication-adherence/internal/domain/alerts"
	"medication-adherence/internal/domain/doses"
	"medication-adherence/internal/domain/inventory"
	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/domain/schedule"
	"medication-adherence/internal/domain/vitals"
)

// Observe arma la observación de un paciente para el instante now.
func Observe(st State, now time.Time, rules Rules) Observation {
	rules = rules.withDefaults()
	now = now.In(st.Location())

	obs := Observation{
		PatientID:    st.PatientID,
		Now:          now,
		Timezone:     st.Timezone,
		Medications:  st.Medications.Active(),
		Inventory:    []inventory.Record{},
		RecentVitals: []vitals.Reading{},
		PendingDoses: []doses.Instance{},
	}

	for _, m := range obs.Medications {
		if rec, ok := st.Inventory[m.Name]; ok {
			obs.Inventory = append(obs.Inventory, rec)
		}
	}

	from := now.Add(-rules.RecentVitalsWindow)
	for _, r := range st.Vitals {
		if !r.RecordedAt.Before(from) && !r.RecordedAt.After(now) {
			obs.RecentVitals = append(obs.RecentVitals, r)
		}
	}

	for _, k := range st.sortedDoseKeys() {
		if d := st.Doses[k]; !d.Resolved() {
			obs.PendingDoses = append(obs.PendingDoses, d)
		}
	}
	return obs
}

// Tick aplica una observación sobre el estado: cierra el día anterior,
// materializa las dosis de hoy, avanza las máquinas de estado, revisa stock y
// genera alertas y acciones. No hace I/O; muta st y devuelve lo decidido.
func Tick(obs Observation, st *State, rules Rules, agg *alerts.Aggregator) TickResult {
	rules = rules.withDefaults()
	st.ensureMaps()

	loc := st.Location()
	now := obs.Now.In(loc)
	today := now.Format(doses.DayLayout)

	res := TickResult{
		PatientID:   st.PatientID,
		Now:         now,
		DoseUpdates: []doses.Transition{},
		Alerts:      []alerts.Alert{},
		Actions:     []Action{},
	}
	raise := func(a alerts.Alert) alerts.Alert {
		a = agg.Stamp(a)
		res.Alerts = append(res.Alerts, a)
		return a
	}

	res.DoseUpdates = append(res.DoseUpdates, rollover(st, today, loc, rules.ArchiveRetention, now)...)
	st.Alerts = alerts.Prune(st.Alerts, now.Add(-rules.ArchiveRetention))
	st.Movements = inventory.PruneMovements(st.Movements, now.Add(-rules.ArchiveRetention))

	for _, m := range obs.Medications {
		for _, s := range m.Slots {
			key := doses.Key{Medication: m.Name, Day: today, Slot: s}
			if _, ok := st.Doses[key.String()]; !ok {
				st.Doses[key.String()] = doses.New(key, s.On(now), now)
			}
		}
	}

	for _, k := range st.sortedDoseKeys() {
		inst := st.Doses[k]
		if inst.Resolved() {
			continue
		}

		before := inst.State
		tr, err := inst.Advance(now, rules.Windows)
		if err != nil {
			res.Skipped = append(res.Skipped, k)
			continue
		}

		if tr != nil {
			res.DoseUpdates = append(res.DoseUpdates, *tr)
			med := inst.Key.Medication

			if inst.State == doses.Due && before.Rank() < doses.Due.Rank() {
				notify(&res, &inst, now, "due", "")
			}
			if crossed(before, inst.State, doses.Missed) {
				a := raise(alerts.MissedDoseAlert(med, k, inst.ScheduledAt, now))
				notify(&res, &inst, now, "missed", a.ID)
			}
		}

		if inst.State == doses.Urgent {
			if etr, ok := inst.Escalate(now); ok {
				res.DoseUpdates = append(res.DoseUpdates, *etr)
				a := raise(alerts.UrgentMissedDoseAlert(inst.Key.Medication, k, inst.ScheduledAt, now))
				res.Actions = append(res.Actions, Action{
					Kind:       ActionEscalate,
					DoseKey:    k,
					Medication: inst.Key.Medication,
					AlertID:    a.ID,
					Severity:   a.Severity,
					Reason:     "urgent",
					At:         now,
				})
			}
		}

		if inst.NotifyPending && !inst.Snoozed(now) {
			inst.NotifyPending = false
			res.Actions = append(res.Actions, Action{
				Kind:       ActionNotify,
				DoseKey:    k,
				Medication: inst.Key.Medication,
				Reason:     "snooze-elapsed",
				At:         now,
			})
		}

		st.Doses[k] = inst
	}

	for _, m := range obs.Medications {
		rec, ok := st.Inventory[m.Name]
		if !ok {
			continue
		}
		rate := float64(m.DosesPerDay())
		rec.Refresh(rate, now)
		switch {
		case rec.MarkLowStock(today):
			a := raise(lowStockAlert(rec, rate, now, false, ""))
			res.Actions = append(res.Actions, reorderAction(rec, a, now))
		case rec.ReorderAlertID != "":
			// aviso levantado al confirmar: la sugerencia sale en este tick
			if a, ok := st.alert(rec.ReorderAlertID); ok {
				res.Actions = append(res.Actions, reorderAction(rec, a, now))
			}
		}
		rec.ReorderAlertID = ""
		st.Inventory[m.Name] = rec
	}

	analyzer := vitals.NewAnalyzer(rules.Trend)
	for _, t := range vitals.Types() {
		if !t.Numeric() {
			continue
		}
		if b, ok := analyzer.Baseline(st.Vitals, t, now); ok {
			res.Baselines = append(res.Baselines, b)
		}
	}

	res.Statuses = statuses(st, obs.Medications, now, rules.Windows)
	if next, ok := schedule.NextActionable(res.Statuses, now); ok {
		res.Next = &next
	}

	st.Alerts, _ = agg.Collect(st.Alerts, res.Alerts...)
	res.Overall = alerts.Overall(st.Alerts)
	return res
}

// notify emite la acción o la difiere si la dosis está en snooze.
func notify(res *TickResult, inst *doses.Instance, now time.Time, reason, alertID string) {
	if inst.Snoozed(now) {
		inst.NotifyPending = true
		return
	}
	res.Actions = append(res.Actions, Action{
		Kind:       ActionNotify,
		DoseKey:    inst.Key.String(),
		Medication: inst.Key.Medication,
		AlertID:    alertID,
		Reason:     reason,
		At:         now,
	})
}

func crossed(before, after, target doses.State) bool {
	return before.Rank() < target.Rank() && after.Rank() >= target.Rank() && after != doses.Resolved
}

// rollover cierra las dosis de días anteriores y las archiva.
func rollover(st *State, today string, loc *time.Location, retention time.Duration, now time.Time) []doses.Transition {
	var out []doses.Transition
	for _, k := range st.sortedDoseKeys() {
		inst := st.Doses[k]
		if inst.Key.Day >= today {
			continue
		}
		if tr, ok := inst.Close(nextDayStart(inst.Key.Day, loc)); ok {
			out = append(out, *tr)
		}
		st.DoseArchive = append(st.DoseArchive, inst)
		delete(st.Doses, k)
	}

	cutoff := now.Add(-retention).Format(doses.DayLayout)
	kept := st.DoseArchive[:0]
	for _, d := range st.DoseArchive {
		if d.Key.Day >= cutoff {
			kept = append(kept, d)
		}
	}
	st.DoseArchive = kept
	return out
}

func nextDayStart(day string, loc *time.Location) time.Time {
	d, err := time.ParseInLocation(doses.DayLayout, day, loc)
	if err != nil {
		return time.Time{}
	}
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
}

func statuses(st *State, meds []medications.Medication, now time.Time, w schedule.Windows) []schedule.SlotStatus {
	today := now.Format(doses.DayLayout)
	yesterday := now.AddDate(0, 0, -1).Format(doses.DayLayout)

	out := []schedule.SlotStatus{}
	for _, m := range meds {
		var confirmations []time.Time
		snoozes := map[medications.Slot]time.Time{}
		confirmedToday := map[medications.Slot]time.Time{}

		collect := func(d doses.Instance) {
			if d.Key.Medication != m.Name || d.ConfirmedAt == nil {
				return
			}
			confirmations = append(confirmations, *d.ConfirmedAt)
		}
		for _, d := range st.Doses {
			collect(d)
			if d.Key.Medication != m.Name || d.Key.Day != today {
				continue
			}
			if d.SnoozedUntil != nil {
				snoozes[d.Key.Slot] = *d.SnoozedUntil
			}
			if d.ConfirmedAt != nil {
				confirmedToday[d.Key.Slot] = *d.ConfirmedAt
			}
		}
		for _, d := range st.DoseArchive {
			if d.Key.Day >= yesterday {
				collect(d)
			}
		}
		sort.Slice(confirmations, func(i, j int) bool { return confirmations[i].Before(confirmations[j]) })

		for _, s := range schedule.DueStatus(m, now, w, confirmations, snoozes) {
			if c, ok := confirmedToday[s.Slot]; ok {
				c := c
				s.Relation = schedule.Taken
				s.ConfirmedAt = &c
			}
			out = append(out, s)
		}
	}
	return out
}

func lowStockAlert(rec inventory.Record, rate float64, now time.Time, rejected bool, doseKey string) alerts.Alert {
	sf := alerts.StockFacts{
		Remaining:            rec.Remaining,
		Threshold:            rec.LowStockThreshold,
		PredictedRunOut:      rec.PredictedRunOut,
		ConfirmationRejected: rejected,
		DoseKey:              doseKey,
	}
	if days, ok := inventory.DaysRemaining(rec, rate); ok {
		sf.DaysRemaining = &days
	}
	return alerts.LowInventoryAlert(rec.Medication, sf, now)
}

func reorderAction(rec inventory.Record, a alerts.Alert, now time.Time) Action {
	return Action{
		Kind:       ActionSuggestReorder,
		Medication: rec.Medication,
		AlertID:    a.ID,
		Severity:   a.Severity,
		Reason:     string(rec.Status()),
		At:         now,
	}
}
