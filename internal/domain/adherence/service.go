package adherence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"medication-adherence/internal/domain/alerts"
	"medication-adherence/internal/domain/doses"
	"medication-adherence/internal/domain/events"
	"medication-adherence/internal/domain/inventory"
	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/domain/patients"
	"medication-adherence/internal/domain/schedule"
	"medication-adherence/internal/domain/vitals"
	"medication-adherence/internal/platform/clock"
	"medication-adherence/internal/platform/logger"
	"medication-adherence/internal/ports/explainer"
)

// AuditRecorder es lo que el servicio necesita de events.Service.
type AuditRecorder interface {
	Record(ctx context.Context, patientID string, actor events.Actor, in events.CreateInput) (events.Event, error)
}

type Options struct {
	Rules      Rules
	Clock      clock.Clock
	Logger     logger.Logger
	Explainer  explainer.Explainer
	Audit      AuditRecorder
	Aggregator *alerts.Aggregator
}

type Service struct {
	store     Store
	rules     Rules
	log       logger.Logger
	explainer explainer.Explainer
	audit     AuditRecorder
	agg       *alerts.Aggregator
	analyzer  *vitals.Analyzer
	now       func() time.Time
}

func NewService(store Store, opts Options) *Service {
	rules := opts.Rules.withDefaults()
	s := &Service{
		store:     store,
		rules:     rules,
		log:       opts.Logger,
		explainer: opts.Explainer,
		audit:     opts.Audit,
		agg:       opts.Aggregator,
		analyzer:  vitals.NewAnalyzer(rules.Trend),
		now:       time.Now,
	}
	if opts.Clock != nil {
		s.now = opts.Clock.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.agg == nil {
		s.agg = alerts.NewAggregator()
	}
	return s
}

func (s *Service) Rules() Rules { return s.rules }

// update envuelve Store.Update y sella versión y fecha.
func (s *Service) update(ctx context.Context, patientID string, now time.Time, fn func(st *State) error) error {
	return s.store.Update(ctx, patientID, func(st *State) error {
		st.ensureMaps()
		if err := fn(st); err != nil {
			return err
		}
		st.Version++
		st.UpdatedAt = now
		return nil
	})
}

func (s *Service) record(ctx context.Context, patientID string, in events.CreateInput) {
	if s.audit == nil {
		return
	}
	if in.Source == "" {
		in.Source = events.SourceFrom(ctx)
	}
	if _, err := s.audit.Record(ctx, patientID, events.ActorFrom(ctx), in); err != nil {
		s.log.Warn("audit event not recorded", map[string]any{
			"patient_id": patientID,
			"type":       string(in.Type),
			"error":      err,
		})
	}
}

// EnsurePatient crea el estado vacío del paciente si todavía no existe.
func (s *Service) EnsurePatient(ctx context.Context, patientID, timezone string) error {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return ErrInvalidInput
	}
	st := NewState(patientID, timezone)
	st.UpdatedAt = s.now()
	err := s.store.Create(ctx, st)
	if errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	return err
}

// SyncPatient crea el estado si falta y alinea la zona horaria con el perfil.
// Se registra como hook de alta y edición de pacientes.
func (s *Service) SyncPatient(ctx context.Context, p patients.Patient) error {
	if err := s.EnsurePatient(ctx, p.ID, p.Timezone); err != nil {
		return err
	}
	st, err := s.store.Load(ctx, p.ID)
	if err != nil {
		return err
	}
	if st.Timezone == p.Timezone {
		return nil
	}
	return s.update(ctx, p.ID, s.now(), func(st *State) error {
		st.Timezone = p.Timezone
		return nil
	})
}

func (s *Service) ListPatients(ctx context.Context) ([]string, error) {
	return s.store.ListPatients(ctx)
}

func (s *Service) State(ctx context.Context, patientID string) (State, error) {
	return s.store.Load(ctx, patientID)
}

// PlanItem es una medicación del plan con su stock inicial opcional.
type PlanItem struct {
	medications.Input `yaml:",inline"`
	Stock             *int `json:"stock,omitempty" yaml:"stock"`
	LowStockThreshold int  `json:"low_stock_threshold,omitempty" yaml:"low_stock_threshold"`
}

// SetupPlan reemplaza el plan completo. Las medicaciones que no vienen se
// quitan (quedan como tombstone si tienen dosis registradas).
func (s *Service) SetupPlan(ctx context.Context, patientID string, items []PlanItem) ([]medications.Medication, error) {
	seen := map[string]bool{}
	for _, it := range items {
		m, err := medications.Normalize(it.Input)
		if err != nil {
			return nil, err
		}
		k := strings.ToLower(m.Name)
		if seen[k] {
			return nil, fmt.Errorf("%w: duplicate medication %s", ErrInvalidInput, m.Name)
		}
		seen[k] = true
		if it.Stock != nil && *it.Stock < 0 {
			return nil, fmt.Errorf("%w: stock must be >= 0", ErrInvalidInput)
		}
	}

	now := s.now()
	var active []medications.Medication
	err := s.update(ctx, patientID, now, func(st *State) error {
		plan := st.Medications
		for _, it := range items {
			var (
				m   medications.Medication
				err error
			)
			plan, m, err = plan.Upsert(it.Input, now)
			if err != nil {
				return err
			}
			if err := s.applyStock(st, m, it, now); err != nil {
				return err
			}
		}

		for _, m := range plan.Active() {
			if seen[strings.ToLower(m.Name)] {
				continue
			}
			var (
				tomb bool
				err  error
			)
			plan, tomb, err = plan.Remove(m.Name, st.hasHistory(m.Name), now)
			if err != nil {
				return err
			}
			if !tomb {
				delete(st.Inventory, m.Name)
			}
		}

		st.Medications = plan
		active = plan.Active()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, patientID, events.CreateInput{
		Type:    events.EventTypePlanUpdated,
		Subject: fmt.Sprintf("%d medications", len(active)),
	})
	return active, nil
}

// UpsertMedication agrega o edita una sola medicación del plan.
func (s *Service) UpsertMedication(ctx context.Context, patientID string, it PlanItem) (medications.Medication, error) {
	if _, err := medications.Normalize(it.Input); err != nil {
		return medications.Medication{}, err
	}
	if it.Stock != nil && *it.Stock < 0 {
		return medications.Medication{}, fmt.Errorf("%w: stock must be >= 0", ErrInvalidInput)
	}

	now := s.now()
	var out medications.Medication
	err := s.update(ctx, patientID, now, func(st *State) error {
		plan, m, err := st.Medications.Upsert(it.Input, now)
		if err != nil {
			return err
		}
		if err := s.applyStock(st, m, it, now); err != nil {
			return err
		}
		st.Medications = plan
		out = m
		return nil
	})
	if err != nil {
		return medications.Medication{}, err
	}

	s.record(ctx, patientID, events.CreateInput{Type: events.EventTypePlanUpdated, Subject: out.Name})
	return out, nil
}

func (s *Service) applyStock(st *State, m medications.Medication, it PlanItem, now time.Time) error {
	rec, ok := st.Inventory[m.Name]
	switch {
	case it.Stock != nil:
		threshold := it.LowStockThreshold
		if threshold <= 0 && ok {
			threshold = rec.LowStockThreshold
		}
		nr, err := inventory.NewRecord(m.Name, *it.Stock, threshold, m.DosesPerDay(), s.rules.LowStockCoverageDays, now)
		if err != nil {
			return err
		}
		if ok {
			nr.LastRestockedAt = rec.LastRestockedAt
		}
		rec = nr
	case ok && it.LowStockThreshold > 0:
		rec.LowStockThreshold = it.LowStockThreshold
		rec.UpdatedAt = now
	case !ok:
		return nil
	}
	rec.Refresh(float64(m.DosesPerDay()), now)
	st.Inventory[m.Name] = rec
	return nil
}

// RemoveMedication quita la medicación. Si ya tiene dosis queda como
// tombstone: sus dosis abiertas siguen su curso y el historial se conserva.
func (s *Service) RemoveMedication(ctx context.Context, patientID, name string) (bool, error) {
	now := s.now()
	var tomb bool
	err := s.update(ctx, patientID, now, func(st *State) error {
		m, ok := st.Medications.Find(name)
		if !ok {
			return fmt.Errorf("%w: medication %s", ErrNotFound, name)
		}
		plan, t, err := st.Medications.Remove(m.Name, st.hasHistory(m.Name), now)
		if err != nil {
			return err
		}
		if !t {
			delete(st.Inventory, m.Name)
		}
		st.Medications = plan
		tomb = t
		return nil
	})
	if err != nil {
		return false, err
	}

	s.record(ctx, patientID, events.CreateInput{Type: events.EventTypeMedicationRemoved, Subject: name})
	return tomb, nil
}

type Outcome string

const (
	OutcomeResolved          Outcome = "resolved"
	OutcomeAlreadyResolved   Outcome = "already_resolved"
	OutcomeInsufficientStock Outcome = "insufficient_stock"
	OutcomeSnoozed           Outcome = "snoozed"
)

type ConfirmInput struct {
	Medication string
	At         time.Time // zero = ahora
	Slot       string    // opcional, "HH:MM"
}

type ConfirmResult struct {
	Outcome   Outcome        `json:"outcome"`
	Dose      doses.Instance `json:"dose"`
	Remaining *int           `json:"remaining,omitempty"`
	Alerts    []alerts.Alert `json:"alerts,omitempty"`
}

// ConfirmDose registra la toma. Confirmar dos veces la misma dosis no vuelve
// a descontar stock. Sin stock la dosis queda abierta, se genera la alerta de
// inventario y se devuelve ErrInsufficientStock.
func (s *Service) ConfirmDose(ctx context.Context, patientID string, in ConfirmInput) (ConfirmResult, error) {
	if strings.TrimSpace(in.Medication) == "" {
		return ConfirmResult{}, fmt.Errorf("%w: medication is required", ErrInvalidInput)
	}
	var slot *medications.Slot
	if strings.TrimSpace(in.Slot) != "" {
		sl, err := medications.ParseSlot(in.Slot)
		if err != nil {
			return ConfirmResult{}, err
		}
		slot = &sl
	}

	now := s.now()
	if !in.At.IsZero() && in.At.After(now.Add(s.rules.Windows.Lookahead)) {
		return ConfirmResult{}, fmt.Errorf("%w: confirmation time is in the future", ErrInvalidInput)
	}
	var (
		res      ConfirmResult
		rejected bool
	)
	err := s.update(ctx, patientID, now, func(st *State) error {
		res = ConfirmResult{}
		rejected = false

		loc := st.Location()
		at := in.At
		if at.IsZero() {
			at = now
		}
		at = at.In(loc)
		local := now.In(loc)

		med, ok := st.Medications.Lookup(in.Medication)
		if !ok {
			return fmt.Errorf("%w: medication %s", ErrNotFound, in.Medication)
		}

		var (
			sl      medications.Slot
			instant time.Time
		)
		if slot != nil {
			if !med.HasSlot(*slot) {
				return fmt.Errorf("%w: %s has no dose at %s", ErrNotFound, med.Name, *slot)
			}
			sl, instant = *slot, slotInstant(*slot, at, s.rules.Windows.Lookahead)
		} else {
			sl, instant, ok = schedule.TargetInstant(med, at, s.rules.Windows.Lookahead)
			if !ok {
				return fmt.Errorf("%w: no open dose window for %s", ErrNotFound, med.Name)
			}
		}

		key := doses.NewKey(med.Name, instant, sl)
		k := key.String()
		inst, ok := st.Doses[k]
		if !ok {
			if arch, found := st.findArchived(k); found {
				res.Outcome = OutcomeAlreadyResolved
				res.Dose = arch
				return nil
			}
			if !med.Active() {
				return fmt.Errorf("%w: medication %s", ErrNotFound, med.Name)
			}
			inst = doses.New(key, instant, local)
		}
		if inst.Resolved() {
			res.Outcome = OutcomeAlreadyResolved
			res.Dose = inst
			return nil
		}

		if rec, has := st.Inventory[med.Name]; has {
			rate := float64(med.DosesPerDay())
			mv, err := rec.Decrement(local)
			if err != nil {
				if inst.StockRejectedAt == nil {
					t := local
					inst.StockRejectedAt = &t
					a := s.agg.Stamp(lowStockAlert(rec, rate, local, true, k))
					st.Alerts, _ = s.agg.Collect(st.Alerts, a)
					res.Alerts = append(res.Alerts, a)
					rec.ReorderAlertID = a.ID
					st.Inventory[med.Name] = rec
				}
				st.Doses[k] = inst
				res.Outcome = OutcomeInsufficientStock
				res.Dose = inst
				rejected = true
				return nil
			}
			st.Movements = append(st.Movements, mv)
			rec.Refresh(rate, local)
			if rec.MarkLowStock(local.Format(doses.DayLayout)) {
				a := s.agg.Stamp(lowStockAlert(rec, rate, local, false, ""))
				st.Alerts, _ = s.agg.Collect(st.Alerts, a)
				res.Alerts = append(res.Alerts, a)
				rec.ReorderAlertID = a.ID
			}
			st.Inventory[med.Name] = rec
			remaining := rec.Remaining
			res.Remaining = &remaining
		}

		if _, err := inst.Confirm(at); err != nil {
			return err
		}
		st.Doses[k] = inst
		res.Outcome = OutcomeResolved
		res.Dose = inst
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	switch {
	case rejected:
		s.record(ctx, patientID, events.CreateInput{
			Type:    events.EventTypeDoseConfirmRejected,
			Subject: res.Dose.Key.String(),
			Notes:   "insufficient stock",
		})
		return res, fmt.Errorf("%w: %s", ErrInsufficientStock, res.Dose.Key.Medication)
	case res.Outcome == OutcomeResolved:
		s.record(ctx, patientID, events.CreateInput{
			Type:       events.EventTypeDoseConfirmed,
			OccurredAt: *res.Dose.ConfirmedAt,
			Subject:    res.Dose.Key.String(),
		})
	}
	return res, nil
}

// slotInstant devuelve la ocurrencia más reciente de slot cuya ventana ya abrió.
func slotInstant(slot medications.Slot, at time.Time, lookahead time.Duration) time.Time {
	for _, off := range []int{1, 0, -1} {
		inst := slot.On(at.AddDate(0, 0, off))
		if !inst.Add(-lookahead).After(at) {
			return inst
		}
	}
	return slot.On(at.AddDate(0, 0, -1))
}

type SnoozeResult struct {
	Outcome Outcome        `json:"outcome"`
	Dose    doses.Instance `json:"dose"`
}

// SnoozeDose difiere las notificaciones de una dosis. No afecta el
// escalamiento.
func (s *Service) SnoozeDose(ctx context.Context, patientID, doseKey string, minutes int) (SnoozeResult, error) {
	if minutes <= 0 {
		return SnoozeResult{}, fmt.Errorf("%w: minutes must be positive", ErrInvalidInput)
	}
	key, err := doses.ParseKey(doseKey)
	if err != nil {
		return SnoozeResult{}, err
	}

	now := s.now()
	var res SnoozeResult
	err = s.update(ctx, patientID, now, func(st *State) error {
		res = SnoozeResult{}
		k := key.String()

		inst, ok := st.Doses[k]
		if !ok {
			if arch, found := st.findArchived(k); found {
				res = SnoozeResult{Outcome: OutcomeAlreadyResolved, Dose: arch}
				return nil
			}
			med, found := st.Medications.Find(key.Medication)
			if !found || !med.HasSlot(key.Slot) {
				return fmt.Errorf("%w: dose %s", ErrNotFound, k)
			}
			day, err := time.ParseInLocation(doses.DayLayout, key.Day, st.Location())
			if err != nil {
				return fmt.Errorf("%w: %s", doses.ErrInvalidKey, k)
			}
			key.Medication = med.Name
			k = key.String()
			inst = doses.New(key, key.Slot.On(day), now)
		}
		if inst.Resolved() {
			res = SnoozeResult{Outcome: OutcomeAlreadyResolved, Dose: inst}
			return nil
		}

		if err := inst.Snooze(now.Add(time.Duration(minutes) * time.Minute)); err != nil {
			return err
		}
		// antes de abrir la ventana no hubo aviso que repetir
		if inst.State.Rank() >= doses.Due.Rank() {
			inst.NotifyPending = true
		}
		st.Doses[k] = inst
		res = SnoozeResult{Outcome: OutcomeSnoozed, Dose: inst}
		return nil
	})
	if err != nil {
		return SnoozeResult{}, err
	}

	if res.Outcome == OutcomeSnoozed {
		s.record(ctx, patientID, events.CreateInput{
			Type:    events.EventTypeDoseSnoozed,
			Subject: res.Dose.Key.String(),
			Notes:   fmt.Sprintf("%d minutes", minutes),
		})
	}
	return res, nil
}

type VitalResult struct {
	AnomalyDetected  bool              `json:"anomaly_detected"`
	LimitBreached    bool              `json:"limit_breached"`
	WellbeingConcern bool              `json:"wellbeing_concern"`
	Assessment       vitals.Assessment `json:"assessment"`
	Alert            *alerts.Alert     `json:"alert,omitempty"`
	Drift            *vitals.Drift     `json:"drift,omitempty"`
	Alerts           []alerts.Alert    `json:"alerts,omitempty"`
}

// RecordVital guarda la lectura y la evalúa contra el historial previo.
func (s *Service) RecordVital(ctx context.Context, patientID string, r vitals.Reading) (VitalResult, error) {
	now := s.now()
	if r.RecordedAt.IsZero() {
		r.RecordedAt = now
	}
	t, err := vitals.ParseType(string(r.Type))
	if err != nil {
		return VitalResult{}, err
	}
	r.Type = t
	r.Text = strings.TrimSpace(r.Text)
	if err := r.Validate(); err != nil {
		return VitalResult{}, err
	}

	var res VitalResult
	err = s.update(ctx, patientID, now, func(st *State) error {
		res = VitalResult{}
		today := now.In(st.Location()).Format(doses.DayLayout)

		as := s.analyzer.Assess(st.Vitals, r)
		res.Assessment = as
		res.AnomalyDetected = as.Anomalous()
		res.LimitBreached = as.Breach != nil

		var fresh []alerts.Alert
		if as.Anomalous() {
			df := alerts.DeviationFacts{
				Value:          r.Value,
				Secondary:      r.Secondary,
				Deviation:      as.Deviation,
				SpreadMultiple: as.Multiple,
			}
			if as.Baseline != nil {
				df.BaselineMean = as.Baseline.Mean
				df.BaselineSpread = as.Baseline.Spread
				df.BaselineCount = as.Baseline.Count
			}
			fresh = append(fresh, alerts.DeviationAlert(string(t), df, s.rules.Trend.SevereMultiple, now))
		}
		if b := as.Breach; b != nil {
			fresh = append(fresh, alerts.LimitAlert(string(t), b.Bound, b.Limit, b.Value, now))
		}
		if n, repeated := s.analyzer.RepeatedLowWellbeing(st.Vitals, r); repeated {
			res.WellbeingConcern = true
			if st.WellbeingDay != today {
				st.WellbeingDay = today
				days := s.rules.Trend.WindowSpan.Hours() / 24
				fresh = append(fresh, alerts.WellbeingAlert(n, days, now))
			}
		}
		if d := as.Drift; d != nil && st.DriftDays[t] != today {
			st.DriftDays[t] = today
			res.Drift = d
			fresh = append(fresh, alerts.DriftAlert(string(t), string(d.Direction), d.SlopePerDay, d.Change, d.Readings, now))
		}

		for i := range fresh {
			fresh[i] = s.agg.Stamp(fresh[i])
		}
		st.Alerts, _ = s.agg.Collect(st.Alerts, fresh...)
		res.Alerts = fresh
		if len(fresh) > 0 && (res.AnomalyDetected || res.LimitBreached || res.WellbeingConcern) {
			a := fresh[0]
			res.Alert = &a
		}

		st.Vitals = insertReading(st.Vitals, r)
		return nil
	})
	if err != nil {
		return VitalResult{}, err
	}

	s.record(ctx, patientID, events.CreateInput{
		Type:       events.EventTypeVitalRecorded,
		OccurredAt: r.RecordedAt,
		Subject:    string(r.Type),
	})
	return res, nil
}

// insertReading mantiene el historial ordenado por RecordedAt.
func insertReading(in []vitals.Reading, r vitals.Reading) []vitals.Reading {
	i := sort.Search(len(in), func(i int) bool { return in[i].RecordedAt.After(r.RecordedAt) })
	out := make([]vitals.Reading, 0, len(in)+1)
	out = append(out, in[:i]...)
	out = append(out, r)
	return append(out, in[i:]...)
}

type RestockResult struct {
	Medication      string     `json:"medication"`
	NewRemaining    int        `json:"new_remaining"`
	PredictedRunOut *time.Time `json:"predicted_run_out,omitempty"`
	DaysRemaining   *float64   `json:"days_remaining,omitempty"`
}

// Restock suma unidades. Si la medicación no tenía registro de stock lo crea.
func (s *Service) Restock(ctx context.Context, patientID, medication string, units int) (RestockResult, error) {
	if units <= 0 {
		return RestockResult{}, fmt.Errorf("%w: units must be positive", ErrInvalidInput)
	}

	now := s.now()
	var res RestockResult
	err := s.update(ctx, patientID, now, func(st *State) error {
		med, ok := st.Medications.Find(medication)
		if !ok {
			return fmt.Errorf("%w: medication %s", ErrNotFound, medication)
		}
		rate := float64(med.DosesPerDay())

		rec, ok := st.Inventory[med.Name]
		if !ok {
			var err error
			rec, err = inventory.NewRecord(med.Name, 0, 0, med.DosesPerDay(), s.rules.LowStockCoverageDays, now)
			if err != nil {
				return err
			}
		}
		mv, err := rec.Restock(units, now)
		if err != nil {
			return err
		}
		rec.Refresh(rate, now)
		st.Inventory[med.Name] = rec
		st.Movements = append(st.Movements, mv)

		res = RestockResult{
			Medication:      med.Name,
			NewRemaining:    rec.Remaining,
			PredictedRunOut: rec.PredictedRunOut,
		}
		if days, ok := inventory.DaysRemaining(rec, rate); ok {
			res.DaysRemaining = &days
		}
		return nil
	})
	if err != nil {
		return RestockResult{}, err
	}

	s.record(ctx, patientID, events.CreateInput{
		Type:    events.EventTypeStockRestocked,
		Subject: res.Medication,
		Notes:   fmt.Sprintf("+%d units", units),
	})
	return res, nil
}

func (s *Service) AcknowledgeAlert(ctx context.Context, patientID, alertID, by string) (alerts.Alert, error) {
	now := s.now()
	var out alerts.Alert
	err := s.update(ctx, patientID, now, func(st *State) error {
		a, err := alerts.Acknowledge(st.Alerts, alertID, by, now)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return alerts.Alert{}, err
	}

	s.record(ctx, patientID, events.CreateInput{
		Type:    events.EventTypeAlertAcknowledged,
		Subject: out.ID,
		Notes:   string(out.Kind),
	})
	return out, nil
}

type AlertList struct {
	Overall alerts.Severity `json:"overall"`
	Alerts  []alerts.Alert  `json:"alerts"`
}

func (s *Service) ListAlerts(ctx context.Context, patientID string, activeOnly bool) (AlertList, error) {
	st, err := s.store.Load(ctx, patientID)
	if err != nil {
		return AlertList{}, err
	}
	list := st.Alerts
	if activeOnly {
		list = alerts.Active(list)
	}
	return AlertList{Overall: alerts.Overall(st.Alerts), Alerts: alerts.Rank(list)}, nil
}

type Summary struct {
	Overall      alerts.Severity `json:"overall"`
	ActiveAlerts int             `json:"active_alerts"`
	Text         string          `json:"text"`
	Generated    bool            `json:"generated"`
}

// Summary arma un resumen en prosa de las alertas activas. Si no hay
// explainer o falla, devuelve un texto fijo armado con los mismos datos.
func (s *Service) Summary(ctx context.Context, patientID string) (Summary, error) {
	st, err := s.store.Load(ctx, patientID)
	if err != nil {
		return Summary{}, err
	}
	active := alerts.Rank(alerts.Active(st.Alerts))
	out := Summary{Overall: alerts.Overall(st.Alerts), ActiveAlerts: len(active)}

	if len(active) == 0 {
		out.Text = "No active alerts."
		return out, nil
	}

	if s.explainer != nil {
		text, err := s.explainer.Summarize(ctx, toFacts(active))
		if err == nil && strings.TrimSpace(text) != "" {
			out.Text = strings.TrimSpace(text)
			out.Generated = true
			return out, nil
		}
		if err != nil {
			s.log.Warn("explainer failed, using fallback", map[string]any{"patient_id": patientID, "error": err})
		}
	}

	out.Text = fallbackSummary(active, out.Overall)
	return out, nil
}

func toFacts(in []alerts.Alert) []explainer.Facts {
	out := make([]explainer.Facts, 0, len(in))
	for _, a := range in {
		out = append(out, explainer.Facts{
			Kind:      string(a.Kind),
			Severity:  string(a.Severity),
			Subject:   a.Subject.Ref,
			Numbers:   a.Facts.Numbers,
			Labels:    a.Facts.Labels,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}

func fallbackSummary(active []alerts.Alert, overall alerts.Severity) string {
	parts := make([]string, 0, len(active))
	for _, a := range active {
		parts = append(parts, fmt.Sprintf("%s %s (%s)", a.Kind, a.Subject.Ref, a.Severity))
	}
	return fmt.Sprintf("%d active alerts, overall %s: %s.", len(active), overall, strings.Join(parts, "; "))
}

// Observe devuelve la observación actual sin modificar el estado.
func (s *Service) Observe(ctx context.Context, patientID string) (Observation, error) {
	st, err := s.store.Load(ctx, patientID)
	if err != nil {
		return Observation{}, err
	}
	return Observe(st, s.now(), s.rules), nil
}

func (s *Service) RunTick(ctx context.Context, patientID string) (TickResult, error) {
	return s.RunTickAt(ctx, patientID, s.now())
}

// RunTickAt corre un tick con un now explícito. El agent loop usa un mismo
// now para todos los pacientes de una vuelta.
func (s *Service) RunTickAt(ctx context.Context, patientID string, now time.Time) (TickResult, error) {
	var res TickResult
	err := s.update(ctx, patientID, now, func(st *State) error {
		obs := Observe(*st, now, s.rules)
		res = Tick(obs, st, s.rules, s.agg)
		return nil
	})
	if err != nil {
		return TickResult{}, err
	}

	actx := events.WithActor(ctx, events.SystemActor)
	for _, tr := range res.DoseUpdates {
		var typ events.EventType
		switch {
		case tr.To == doses.Escalated:
			typ = events.EventTypeDoseEscalated
		case tr.To == doses.Resolved:
			typ = events.EventTypeDoseClosedMissed
		default:
			continue
		}
		s.record(actx, patientID, events.CreateInput{
			Type:       typ,
			OccurredAt: tr.At,
			Subject:    tr.Key.String(),
			Source:     events.SourceAgent,
		})
	}
	return res, nil
}
