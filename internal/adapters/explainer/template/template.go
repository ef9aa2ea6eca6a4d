// Package template arma resúmenes deterministas a partir de los facts, sin
// llamar a ningún proveedor externo.
package template

import (
	"context"
	"fmt"
	"strings"

	"medication-adherence/internal/domain/alerts"
	"medication-adherence/internal/ports/explainer"
)

type Explainer struct{}

func New() Explainer { return Explainer{} }

func (Explainer) Summarize(_ context.Context, facts []explainer.Facts) (string, error) {
	if len(facts) == 0 {
		return "No active alerts.", nil
	}
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, sentence(f))
	}
	return strings.Join(lines, " "), nil
}

func sentence(f explainer.Facts) string {
	num := func(k string) (float64, bool) {
		v, ok := f.Numbers[k]
		return v, ok
	}

	switch alerts.Kind(f.Kind) {
	case alerts.MissedDose:
		s := fmt.Sprintf("%s dose was missed", f.Subject)
		if late, ok := num(alerts.FactMinutesLate); ok {
			s += fmt.Sprintf(" (%.0f min late)", late)
		}
		return s + "."

	case alerts.UrgentMissedDose:
		s := fmt.Sprintf("%s dose is still not taken", f.Subject)
		if late, ok := num(alerts.FactMinutesLate); ok {
			s += fmt.Sprintf(" after %.0f min", late)
		}
		return s + "; caregivers were notified."

	case alerts.LowInventory:
		rem, _ := num(alerts.FactRemaining)
		if f.Labels[alerts.FactConfirmationRejected] == "true" {
			return fmt.Sprintf("%s is out of stock and a dose could not be recorded.", f.Subject)
		}
		s := fmt.Sprintf("%s stock is low: %.0f left", f.Subject, rem)
		if days, ok := num(alerts.FactDaysRemaining); ok {
			s += fmt.Sprintf(", about %.1f days remaining", days)
		}
		return s + "."

	case alerts.TrendAnomaly:
		switch f.Labels[alerts.FactSignal] {
		case alerts.SignalLimit:
			v, _ := num(alerts.FactValue)
			l, _ := num(alerts.FactLimit)
			bound := "above"
			if f.Labels[alerts.FactLimitBound] == "min" {
				bound = "below"
			}
			return fmt.Sprintf("%s reading %g is %s the limit %g.", f.Subject, v, bound, l)
		case alerts.SignalWellbeing:
			n, _ := num(alerts.FactLowReports)
			d, _ := num(alerts.FactWindowDays)
			return fmt.Sprintf("Patient reported feeling unwell %.0f times in the last %.0f days.", n, d)
		case alerts.SignalDrift:
			c, _ := num(alerts.FactChange)
			return fmt.Sprintf("%s is %s (%.1f%% change).", f.Subject, f.Labels[alerts.FactDirection], c*100)
		default:
			v, _ := num(alerts.FactValue)
			m, _ := num(alerts.FactBaselineMean)
			return fmt.Sprintf("%s reading %g is far from the usual %.1f.", f.Subject, v, m)
		}
	}
	return fmt.Sprintf("%s alert for %s (%s).", f.Kind, f.Subject, f.Severity)
}
