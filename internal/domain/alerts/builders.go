package alerts

import (
	"time"
)

// Claves de Facts.
const (
	FactScheduledAt          = "scheduled_at"
	FactMinutesLate          = "minutes_late"
	FactRemaining            = "remaining"
	FactThreshold            = "threshold"
	FactPredictedRunOut      = "predicted_run_out"
	FactDaysRemaining        = "days_remaining"
	FactConfirmationRejected = "confirmation_rejected"
	FactValue                = "value"
	FactSecondary            = "secondary"
	FactBaselineMean         = "baseline_mean"
	FactBaselineSpread       = "baseline_spread"
	FactBaselineCount        = "baseline_count"
	FactDeviation            = "deviation"
	FactSpreadMultiple       = "spread_multiple"
	FactSignal               = "signal"
	FactDirection            = "direction"
	FactSlopePerDay          = "slope_per_day"
	FactChange               = "relative_change"
	FactLimitBound           = "limit_bound"
	FactLimit                = "limit"
	FactLowReports           = "low_reports"
	FactWindowDays           = "window_days"
)

// Señales de trend-anomaly.
const (
	SignalDeviation = "deviation"
	SignalDrift     = "drift"
	SignalLimit     = "limit"
	SignalWellbeing = "wellbeing"
)

// SevereSpreadMultiple: a partir de acá una desviación es severidad high.
const SevereSpreadMultiple = 3.0

// SeverityFor aplica la tabla de severidades sobre kind + facts.
func SeverityFor(kind Kind, f Facts, severeMultiple float64) Severity {
	if severeMultiple <= 0 {
		severeMultiple = SevereSpreadMultiple
	}
	switch kind {
	case UrgentMissedDose:
		return Critical
	case MissedDose:
		return Medium
	case LowInventory:
		if r, ok := f.Number(FactRemaining); ok && r <= 0 {
			return High
		}
		return Medium
	case TrendAnomaly:
		switch f.Label(FactSignal) {
		case SignalLimit:
			return High
		case SignalDeviation:
			if m, ok := f.Number(FactSpreadMultiple); ok && m >= severeMultiple {
				return High
			}
		}
		return Medium
	default:
		return Low
	}
}

func newAlert(kind Kind, subject Subject, f Facts, now time.Time, severeMultiple float64) Alert {
	return Alert{
		Kind:      kind,
		Severity:  SeverityFor(kind, f, severeMultiple),
		Subject:   subject,
		Facts:     f,
		CreatedAt: now,
	}
}

func MissedDoseAlert(medication, doseKey string, scheduledAt, now time.Time) Alert {
	a := newAlert(MissedDose, Subject{Type: SubjectMedication, Ref: medication}, doseFacts(scheduledAt, now), now, 0)
	a.DoseKey = doseKey
	return a
}

func UrgentMissedDoseAlert(medication, doseKey string, scheduledAt, now time.Time) Alert {
	a := newAlert(UrgentMissedDose, Subject{Type: SubjectMedication, Ref: medication}, doseFacts(scheduledAt, now), now, 0)
	a.DoseKey = doseKey
	return a
}

func doseFacts(scheduledAt, now time.Time) Facts {
	return Facts{
		Numbers: map[string]float64{FactMinutesLate: now.Sub(scheduledAt).Minutes()},
		Labels:  map[string]string{FactScheduledAt: scheduledAt.Format(time.RFC3339)},
	}
}

type StockFacts struct {
	Remaining            int
	Threshold            int
	PredictedRunOut      *time.Time
	DaysRemaining        *float64
	ConfirmationRejected bool
	DoseKey              string
}

func LowInventoryAlert(medication string, sf StockFacts, now time.Time) Alert {
	f := Facts{
		Numbers: map[string]float64{
			FactRemaining: float64(sf.Remaining),
			FactThreshold: float64(sf.Threshold),
		},
		Labels: map[string]string{},
	}
	if sf.PredictedRunOut != nil {
		f.Labels[FactPredictedRunOut] = sf.PredictedRunOut.Format(time.RFC3339)
	}
	if sf.DaysRemaining != nil {
		f.Numbers[FactDaysRemaining] = *sf.DaysRemaining
	}
	if sf.ConfirmationRejected {
		f.Labels[FactConfirmationRejected] = "true"
	}
	a := newAlert(LowInventory, Subject{Type: SubjectMedication, Ref: medication}, f, now, 0)
	a.DoseKey = sf.DoseKey
	return a
}

type DeviationFacts struct {
	Value          float64
	Secondary      *float64
	BaselineMean   float64
	BaselineSpread float64
	BaselineCount  int
	Deviation      float64
	SpreadMultiple float64
}

func DeviationAlert(vital string, df DeviationFacts, severeMultiple float64, now time.Time) Alert {
	f := Facts{
		Numbers: map[string]float64{
			FactValue:          df.Value,
			FactBaselineMean:   df.BaselineMean,
			FactBaselineSpread: df.BaselineSpread,
			FactBaselineCount:  float64(df.BaselineCount),
			FactDeviation:      df.Deviation,
			FactSpreadMultiple: df.SpreadMultiple,
		},
		Labels: map[string]string{FactSignal: SignalDeviation},
	}
	if df.Secondary != nil {
		f.Numbers[FactSecondary] = *df.Secondary
	}
	return newAlert(TrendAnomaly, Subject{Type: SubjectVital, Ref: vital}, f, now, severeMultiple)
}

func DriftAlert(vital, direction string, slopePerDay, change float64, readings int, now time.Time) Alert {
	f := Facts{
		Numbers: map[string]float64{
			FactSlopePerDay:   slopePerDay,
			FactChange:        change,
			FactBaselineCount: float64(readings),
		},
		Labels: map[string]string{FactSignal: SignalDrift, FactDirection: direction},
	}
	return newAlert(TrendAnomaly, Subject{Type: SubjectVital, Ref: vital}, f, now, 0)
}

func LimitAlert(vital, bound string, limit, value float64, now time.Time) Alert {
	f := Facts{
		Numbers: map[string]float64{FactValue: value, FactLimit: limit},
		Labels:  map[string]string{FactSignal: SignalLimit, FactLimitBound: bound},
	}
	return newAlert(TrendAnomaly, Subject{Type: SubjectVital, Ref: vital}, f, now, 0)
}

// WellbeingAlert: malestar reportado varias veces dentro de la ventana.
func WellbeingAlert(lowReports int, windowDays float64, now time.Time) Alert {
	f := Facts{
		Numbers: map[string]float64{FactLowReports: float64(lowReports), FactWindowDays: windowDays},
		Labels:  map[string]string{FactSignal: SignalWellbeing},
	}
	return newAlert(TrendAnomaly, Subject{Type: SubjectVital, Ref: "wellbeing"}, f, now, 0)
}
