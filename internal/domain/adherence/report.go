package adherence

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"medication-adherence/internal/domain/doses"
	"medication-adherence/internal/domain/vitals"
)

const DefaultReportDays = 7

// trendThreshold: diferencia entre mitades, en porcentaje, para hablar de tendencia.
const trendThreshold = 5.0

const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

type MedicationAdherence struct {
	Medication string  `json:"medication"`
	Expected   int     `json:"expected"`
	Taken      int     `json:"taken"`
	Missed     int     `json:"missed"`
	Open       int     `json:"open"`
	Rate       float64 `json:"rate"`
}

type VitalComparison struct {
	Type    vitals.Type `json:"type"`
	Count   int         `json:"count"`
	Average float64     `json:"average"`
	Min     float64     `json:"min"`
	Max     float64     `json:"max"`
	Trend   string      `json:"trend"`

	PreviousAverage *float64 `json:"previous_average,omitempty"`
	ChangePercent   *float64 `json:"change_percent,omitempty"`
}

type WellbeingSummary struct {
	Entries  int  `json:"entries"`
	Low      int  `json:"low"`
	Repeated bool `json:"repeated"`
}

// Report es el informe para cuidadores sobre los últimos PeriodDays días.
type Report struct {
	PatientID    string                `json:"patient_id"`
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	PeriodDays   int                   `json:"period_days"`
	Expected     int                   `json:"expected"`
	Taken        int                   `json:"taken"`
	OverallRate  float64               `json:"overall_rate"`
	ByMedication []MedicationAdherence `json:"by_medication"`
	Vitals       []VitalComparison     `json:"vitals"`
	Wellbeing    WellbeingSummary      `json:"wellbeing"`
}

// Report arma el informe de adherencia. days <= 0 usa DefaultReportDays y no
// puede superar la retención del archivo de dosis.
func (s *Service) Report(ctx context.Context, patientID string, days int) (Report, error) {
	if days <= 0 {
		days = DefaultReportDays
	}
	if maxDays := int(s.rules.ArchiveRetention.Hours() / 24); days > maxDays {
		return Report{}, fmt.Errorf("%w: days must be <= %d", ErrInvalidInput, maxDays)
	}
	st, err := s.store.Load(ctx, patientID)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(st, s.now(), days, s.rules), nil
}

// BuildReport no hace I/O: cuenta dosis vigentes y archivadas y compara los
// vitales del período contra el período anterior de igual largo.
func BuildReport(st State, now time.Time, days int, rules Rules) Report {
	rules = rules.withDefaults()
	now = now.In(st.Location())
	span := time.Duration(days) * 24 * time.Hour
	from := now.Add(-span)

	rep := Report{
		PatientID:    st.PatientID,
		From:         from,
		To:           now,
		PeriodDays:   days,
		ByMedication: []MedicationAdherence{},
		Vitals:       []VitalComparison{},
	}

	byMed := map[string]*MedicationAdherence{}
	count := func(d doses.Instance) {
		if d.ScheduledAt.Before(from) || d.ScheduledAt.After(now) {
			return
		}
		m, ok := byMed[d.Key.Medication]
		if !ok {
			m = &MedicationAdherence{Medication: d.Key.Medication}
			byMed[d.Key.Medication] = m
		}
		switch {
		case d.Resolution == doses.Confirmed:
			m.Expected++
			m.Taken++
		case d.Resolved() || d.State.Rank() >= doses.Missed.Rank():
			m.Expected++
			m.Missed++
		default:
			// todavía dentro de su ventana
			m.Open++
		}
	}
	for _, d := range st.Doses {
		count(d)
	}
	for _, d := range st.DoseArchive {
		count(d)
	}

	for _, m := range byMed {
		m.Rate = rate(m.Taken, m.Expected)
		rep.Expected += m.Expected
		rep.Taken += m.Taken
		rep.ByMedication = append(rep.ByMedication, *m)
	}
	sort.Slice(rep.ByMedication, func(i, j int) bool { return rep.ByMedication[i].Medication < rep.ByMedication[j].Medication })
	rep.OverallRate = rate(rep.Taken, rep.Expected)

	current := map[vitals.Type][]float64{}
	previous := map[vitals.Type][]float64{}
	analyzer := vitals.NewAnalyzer(rules.Trend)
	for _, r := range st.Vitals {
		if r.RecordedAt.After(now) || r.RecordedAt.Before(from.Add(-span)) {
			continue
		}
		inPeriod := !r.RecordedAt.Before(from)
		if r.Type == vitals.Wellbeing {
			if inPeriod {
				rep.Wellbeing.Entries++
				if vitals.LowWellbeing(r) {
					rep.Wellbeing.Low++
				}
			}
			continue
		}
		if inPeriod {
			current[r.Type] = append(current[r.Type], r.Value)
		} else {
			previous[r.Type] = append(previous[r.Type], r.Value)
		}
	}
	rep.Wellbeing.Repeated = rep.Wellbeing.Low >= analyzer.Config().WellbeingLowCount

	for _, t := range vitals.Types() {
		vals := current[t]
		if len(vals) == 0 {
			continue
		}
		vc := VitalComparison{
			Type:    t,
			Count:   len(vals),
			Average: round1(average(vals)),
			Min:     vals[0],
			Max:     vals[0],
			Trend:   halvesTrend(vals),
		}
		for _, v := range vals[1:] {
			vc.Min = math.Min(vc.Min, v)
			vc.Max = math.Max(vc.Max, v)
		}
		if prev := previous[t]; len(prev) > 0 {
			pa := round1(average(prev))
			vc.PreviousAverage = &pa
			if pa > 0 {
				c := round1((vc.Average - pa) / pa * 100)
				vc.ChangePercent = &c
			}
		}
		rep.Vitals = append(rep.Vitals, vc)
	}
	return rep
}

// rate en porcentaje con un decimal; sin dosis esperadas es 100.
func rate(taken, expected int) float64 {
	if expected == 0 {
		return 100
	}
	return round1(float64(taken) / float64(expected) * 100)
}

// halvesTrend compara el promedio de la primera mitad contra la segunda.
func halvesTrend(vals []float64) string {
	if len(vals) < 2 {
		return TrendStable
	}
	mid := len(vals) / 2
	first, second := average(vals[:mid]), average(vals[mid:])
	if first <= 0 {
		return TrendStable
	}
	diff := (second - first) / first * 100
	switch {
	case diff > trendThreshold:
		return TrendIncreasing
	case diff < -trendThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
