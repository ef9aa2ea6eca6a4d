package adherence

import (
	"errors"
	"sort"
	"time"

	"medication-adherence/internal/domain/alerts"
	"medication-adherence/internal/domain/doses"
	"medication-adherence/internal/domain/inventory"
	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/domain/schedule"
	"medication-adherence/internal/domain/vitals"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// Alias para que errors.Is funcione igual desde afuera del paquete.
	ErrInsufficientStock = inventory.ErrInsufficientStock
	ErrAlreadyResolved   = doses.ErrAlreadyResolved
	ErrInvalidSchedule   = medications.ErrInvalidSchedule
)

// IsInvalid agrupa los errores de validación de los paquetes del dominio.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, medications.ErrInvalidInput) ||
		errors.Is(err, medications.ErrInvalidSchedule) ||
		errors.Is(err, inventory.ErrInvalidInput) ||
		errors.Is(err, vitals.ErrInvalidInput) ||
		errors.Is(err, doses.ErrInvalidKey)
}

// IsNotFound agrupa los "no existe" del dominio.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, medications.ErrNotFound) ||
		errors.Is(err, alerts.ErrNotFound)
}

// Rules son los parámetros del engine (ventanas, tendencias, stock).
type Rules struct {
	Windows              schedule.Windows `json:"windows"`
	Trend                vitals.Config    `json:"trend"`
	LowStockCoverageDays int              `json:"low_stock_coverage_days"`
	RecentVitalsWindow   time.Duration    `json:"recent_vitals_window"`
	ArchiveRetention     time.Duration    `json:"archive_retention"`
}

func DefaultRules() Rules {
	return Rules{
		Windows:              schedule.DefaultWindows(),
		Trend:                vitals.DefaultConfig(),
		LowStockCoverageDays: inventory.DefaultCoverageDays,
		RecentVitalsWindow:   7 * 24 * time.Hour,
		ArchiveRetention:     90 * 24 * time.Hour,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.Windows.Lookahead <= 0 {
		r.Windows.Lookahead = d.Windows.Lookahead
	}
	if r.Windows.Escalation <= 0 {
		r.Windows.Escalation = d.Windows.Escalation
	}
	r.Trend = vitals.NewAnalyzer(r.Trend).Config()
	if r.LowStockCoverageDays <= 0 {
		r.LowStockCoverageDays = d.LowStockCoverageDays
	}
	if r.RecentVitalsWindow <= 0 {
		r.RecentVitalsWindow = d.RecentVitalsWindow
	}
	if r.ArchiveRetention <= 0 {
		r.ArchiveRetention = d.ArchiveRetention
	}
	return r
}

// State es el documento persistido por paciente. El store lo lee y escribe
// completo dentro de Update.
type State struct {
	PatientID   string                      `json:"patient_id"`
	Timezone    string                      `json:"timezone"`
	Medications medications.Plan            `json:"medications"`
	Inventory   map[string]inventory.Record `json:"inventory"`
	Movements   []inventory.Movement        `json:"movements,omitempty"`
	Vitals      []vitals.Reading            `json:"vitals"`
	Doses       map[string]doses.Instance   `json:"doses"`
	DoseArchive []doses.Instance            `json:"dose_archive,omitempty"`
	Alerts      []alerts.Alert              `json:"alerts"`

	// Último día local con alerta de drift por tipo de vital.
	DriftDays map[vitals.Type]string `json:"drift_days,omitempty"`
	// Último día local con alerta de malestar repetido.
	WellbeingDay string `json:"wellbeing_day,omitempty"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewState(patientID, timezone string) State {
	if timezone == "" {
		timezone = "UTC"
	}
	st := State{PatientID: patientID, Timezone: timezone}
	st.ensureMaps()
	return st
}

func (s *State) ensureMaps() {
	if s.Inventory == nil {
		s.Inventory = map[string]inventory.Record{}
	}
	if s.Doses == nil {
		s.Doses = map[string]doses.Instance{}
	}
	if s.DriftDays == nil {
		s.DriftDays = map[vitals.Type]string{}
	}
}

func (s State) Location() *time.Location {
	if loc, err := time.LoadLocation(s.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

func (s State) alert(id string) (alerts.Alert, bool) {
	for _, a := range s.Alerts {
		if a.ID == id {
			return a, true
		}
	}
	return alerts.Alert{}, false
}

// hasHistory: hay dosis (vigentes o archivadas) de la medicación.
func (s State) hasHistory(medication string) bool {
	for _, d := range s.Doses {
		if d.Key.Medication == medication {
			return true
		}
	}
	for _, d := range s.DoseArchive {
		if d.Key.Medication == medication {
			return true
		}
	}
	return false
}

func (s State) findArchived(key string) (doses.Instance, bool) {
	for i := len(s.DoseArchive) - 1; i >= 0; i-- {
		if s.DoseArchive[i].Key.String() == key {
			return s.DoseArchive[i], true
		}
	}
	return doses.Instance{}, false
}

func (s State) sortedDoseKeys() []string {
	keys := make([]string, 0, len(s.Doses))
	for k := range s.Doses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Observation es la foto que consume Tick.
type Observation struct {
	PatientID    string                   `json:"patient_id"`
	Now          time.Time                `json:"now"`
	Timezone     string                   `json:"timezone"`
	Medications  []medications.Medication `json:"medications"`
	Inventory    []inventory.Record       `json:"inventory"`
	RecentVitals []vitals.Reading         `json:"recent_vitals"`
	PendingDoses []doses.Instance         `json:"pending_doses"`
}

type ActionKind string

const (
	ActionNotify         ActionKind = "notify"
	ActionEscalate       ActionKind = "escalate"
	ActionSuggestReorder ActionKind = "suggest-reorder"
)

type Action struct {
	Kind       ActionKind      `json:"kind"`
	DoseKey    string          `json:"dose_key,omitempty"`
	Medication string          `json:"medication,omitempty"`
	AlertID    string          `json:"alert_id,omitempty"`
	Severity   alerts.Severity `json:"severity,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	At         time.Time       `json:"at"`
}

type TickResult struct {
	PatientID   string                `json:"patient_id"`
	Now         time.Time             `json:"now"`
	DoseUpdates []doses.Transition    `json:"dose_updates"`
	Alerts      []alerts.Alert        `json:"alerts"`
	Actions     []Action              `json:"actions"`
	Statuses    []schedule.SlotStatus `json:"statuses"`
	Next        *schedule.SlotStatus  `json:"next,omitempty"`
	Baselines   []vitals.Baseline     `json:"baselines,omitempty"`
	Overall     alerts.Severity       `json:"overall"`

	// Dosis que no se movieron por una transición ilegal (reloj hacia atrás).
	Skipped []string `json:"skipped,omitempty"`
}
