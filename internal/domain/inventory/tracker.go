package inventory

import (
	"fmt"
	"strings"
	"time"
)

func DefaultThreshold(dosesPerDay, coverageDays int) int {
	if coverageDays <= 0 {
		coverageDays = DefaultCoverageDays
	}
	return dosesPerDay * coverageDays
}

func NewRecord(medication string, remaining, threshold, dosesPerDay, coverageDays int, now time.Time) (Record, error) {
	if strings.TrimSpace(medication) == "" {
		return Record{}, fmt.Errorf("%w: medication is required", ErrInvalidInput)
	}
	if remaining < 0 {
		return Record{}, fmt.Errorf("%w: remaining must be >= 0", ErrInvalidInput)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold(dosesPerDay, coverageDays)
	}
	return Record{
		Medication:        medication,
		Remaining:         remaining,
		LowStockThreshold: threshold,
		UpdatedAt:         now,
	}, nil
}

// Decrement descuenta una unidad. En cero falla sin tocar el registro.
func (r *Record) Decrement(now time.Time) (Movement, error) {
	if r.Remaining <= 0 {
		return Movement{}, fmt.Errorf("%w: %s has 0 units", ErrInsufficientStock, r.Medication)
	}
	r.Remaining--
	r.UpdatedAt = now
	return Movement{Medication: r.Medication, Delta: -1, Remaining: r.Remaining, Reason: "dose_confirmed", At: now}, nil
}

func (r *Record) Restock(units int, now time.Time) (Movement, error) {
	if units <= 0 {
		return Movement{}, fmt.Errorf("%w: restock units must be positive", ErrInvalidInput)
	}
	r.Remaining += units
	t := now
	r.LastRestockedAt = &t
	r.UpdatedAt = now
	if !r.IsLow() {
		// La condición terminó; una nueva caída puede volver a avisar.
		r.LastLowStockDay = ""
		r.LastLowStockStatus = ""
		r.ReorderAlertID = ""
	}
	return Movement{Medication: r.Medication, Delta: units, Remaining: r.Remaining, Reason: "restock", At: now}, nil
}

func (r Record) IsLow() bool {
	return r.Remaining <= r.LowStockThreshold
}

// MarkLowStock devuelve true si corresponde avisar hoy: a lo sumo una vez por
// día local, salvo que el stock se haya agotado después del aviso.
func (r *Record) MarkLowStock(day string) bool {
	if !r.IsLow() {
		return false
	}
	st := r.Status()
	if r.LastLowStockDay == day && (st != OutOfStock || r.LastLowStockStatus == OutOfStock) {
		return false
	}
	r.LastLowStockDay = day
	r.LastLowStockStatus = st
	return true
}

func (r Record) Status() Status {
	switch {
	case r.Remaining <= 0:
		return OutOfStock
	case r.Remaining <= r.LowStockThreshold:
		return LowStock
	case r.Remaining <= 2*r.LowStockThreshold:
		return Adequate
	default:
		return WellStocked
	}
}

// PredictRunOut = now + remaining/rate días. Con rate 0 no hay predicción.
func PredictRunOut(r Record, dailyRate float64, now time.Time) (time.Time, bool) {
	if dailyRate <= 0 {
		return time.Time{}, false
	}
	days := float64(r.Remaining) / dailyRate
	return now.Add(time.Duration(days * float64(24*time.Hour))), true
}

// DaysRemaining es la misma cuenta expresada en días.
func DaysRemaining(r Record, dailyRate float64) (float64, bool) {
	if dailyRate <= 0 {
		return 0, false
	}
	return float64(r.Remaining) / dailyRate, true
}

// Refresh recalcula la predicción guardada en el registro.
func (r *Record) Refresh(dailyRate float64, now time.Time) {
	if t, ok := PredictRunOut(*r, dailyRate, now); ok {
		r.PredictedRunOut = &t
		return
	}
	r.PredictedRunOut = nil
}

// PruneMovements descarta los movimientos anteriores a cutoff.
func PruneMovements(in []Movement, cutoff time.Time) []Movement {
	out := in[:0]
	for _, m := range in {
		if !m.At.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out
}
