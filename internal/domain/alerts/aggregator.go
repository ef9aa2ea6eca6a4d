package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Aggregator asigna ids y mantiene el historial de alertas de un paciente.
type Aggregator struct {
	newID func() string
}

func NewAggregator() *Aggregator {
	return &Aggregator{newID: uuid.NewString}
}

// NewAggregatorWithIDs permite ids deterministas (tests / replays).
func NewAggregatorWithIDs(newID func() string) *Aggregator {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Aggregator{newID: newID}
}

// Stamp asigna id si falta.
func (a *Aggregator) Stamp(al Alert) Alert {
	if al.ID == "" {
		al.ID = a.newID()
	}
	return al
}

// Collect agrega alertas nuevas al historial y devuelve (historial, nuevas con id).
// Una alerta cuyo id ya está en el historial no se vuelve a agregar.
func (a *Aggregator) Collect(history []Alert, fresh ...Alert) ([]Alert, []Alert) {
	seen := make(map[string]bool, len(history))
	for _, h := range history {
		seen[h.ID] = true
	}
	added := make([]Alert, 0, len(fresh))
	for _, f := range fresh {
		f = a.Stamp(f)
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		added = append(added, f)
	}
	return append(history, added...), added
}

// Prune descarta las alertas reconocidas antes de cutoff. Las activas se
// conservan siempre.
func Prune(in []Alert, cutoff time.Time) []Alert {
	out := in[:0]
	for _, a := range in {
		if a.Acknowledged && a.AcknowledgedAt != nil && a.AcknowledgedAt.Before(cutoff) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Rank ordena por severidad desc, luego creación asc, luego id.
func Rank(in []Alert) []Alert {
	out := append([]Alert(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func Active(in []Alert) []Alert {
	out := make([]Alert, 0, len(in))
	for _, a := range in {
		if a.Active() {
			out = append(out, a)
		}
	}
	return out
}

// Overall es la severidad máxima entre alertas activas; low si no hay.
func Overall(in []Alert) Severity {
	best := Low
	for _, a := range in {
		if a.Active() && a.Severity.Rank() > best.Rank() {
			best = a.Severity
		}
	}
	return best
}

// Acknowledge marca la alerta. Reconocer dos veces no cambia nada.
func Acknowledge(in []Alert, id, by string, at time.Time) (Alert, error) {
	for i := range in {
		if in[i].ID != id {
			continue
		}
		if !in[i].Acknowledged {
			t := at
			in[i].Acknowledged = true
			in[i].AcknowledgedAt = &t
			in[i].AcknowledgedBy = by
		}
		return in[i], nil
	}
	return Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}
