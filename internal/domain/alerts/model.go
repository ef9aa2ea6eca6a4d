package alerts

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("alert not found")

type Kind string

const (
	MissedDose       Kind = "missed-dose"
	UrgentMissedDose Kind = "urgent-missed-dose"
	LowInventory     Kind = "low-inventory"
	TrendAnomaly     Kind = "trend-anomaly"
)

type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

func (s Severity) Rank() int {
	switch s {
	case Low:
		return 1
	case Medium:
		return 2
	case High:
		return 3
	case Critical:
		return 4
	default:
		return 0
	}
}

type SubjectType string

const (
	SubjectMedication SubjectType = "medication"
	SubjectVital      SubjectType = "vital"
)

type Subject struct {
	Type SubjectType `json:"type"`
	Ref  string      `json:"ref"`
}

// Facts son los datos estructurados de la alerta. El explainer solo los resume.
type Facts struct {
	Numbers map[string]float64 `json:"numbers,omitempty"`
	Labels  map[string]string  `json:"labels,omitempty"`
}

func (f Facts) Number(k string) (float64, bool) {
	v, ok := f.Numbers[k]
	return v, ok
}

func (f Facts) Label(k string) string { return f.Labels[k] }

type Alert struct {
	ID             string     `json:"id"`
	Kind           Kind       `json:"kind"`
	Severity       Severity   `json:"severity"`
	Subject        Subject    `json:"subject"`
	DoseKey        string     `json:"dose_key,omitempty"`
	Facts          Facts      `json:"facts"`
	CreatedAt      time.Time  `json:"created_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
}

func (a Alert) Active() bool { return !a.Acknowledged }
