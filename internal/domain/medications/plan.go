package medications

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Normalize valida un Input y devuelve la medicación con slots ordenados.
func Normalize(in Input) (Medication, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Medication{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.ContainsAny(name, "|/") {
		return Medication{}, fmt.Errorf("%w: name must not contain '|' or '/'", ErrInvalidInput)
	}
	dosage := strings.TrimSpace(in.Dosage)
	if dosage == "" {
		return Medication{}, fmt.Errorf("%w: dosage is required", ErrInvalidInput)
	}
	if len(in.Times) == 0 {
		return Medication{}, fmt.Errorf("%w: at least one time is required", ErrInvalidSchedule)
	}

	slots := make([]Slot, 0, len(in.Times))
	seen := map[Slot]bool{}
	for _, raw := range in.Times {
		s, err := ParseSlot(raw)
		if err != nil {
			return Medication{}, err
		}
		if seen[s] {
			return Medication{}, fmt.Errorf("%w: duplicate time %s", ErrInvalidSchedule, s)
		}
		seen[s] = true
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })

	food, err := ParseFoodRelation(in.Food)
	if err != nil {
		return Medication{}, err
	}

	return Medication{
		Name:   name,
		Dosage: dosage,
		Slots:  slots,
		Food:   food,
	}, nil
}

// Plan es la lista de medicaciones de un paciente (activas + tombstones).
type Plan []Medication

// Find busca por nombre (case-insensitive) solo entre activas.
func (p Plan) Find(name string) (Medication, bool) {
	i := p.index(name, true)
	if i < 0 {
		return Medication{}, false
	}
	return p[i], true
}

// Lookup incluye tombstones.
func (p Plan) Lookup(name string) (Medication, bool) {
	i := p.index(name, false)
	if i < 0 {
		return Medication{}, false
	}
	return p[i], true
}

func (p Plan) Active() []Medication {
	out := make([]Medication, 0, len(p))
	for _, m := range p {
		if m.Active() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Upsert agrega o edita una medicación. Reactivar un tombstone lo revive.
func (p Plan) Upsert(in Input, now time.Time) (Plan, Medication, error) {
	m, err := Normalize(in)
	if err != nil {
		return p, Medication{}, err
	}

	if i := p.index(m.Name, false); i >= 0 {
		cur := p[i]
		m.Name = cur.Name
		m.CreatedAt = cur.CreatedAt
		m.UpdatedAt = now
		out := append(Plan(nil), p...)
		out[i] = m
		return out, m, nil
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	return append(append(Plan(nil), p...), m), m, nil
}

// Remove borra la medicación o la deja como tombstone si tiene historia abierta.
func (p Plan) Remove(name string, hasHistory bool, now time.Time) (Plan, bool, error) {
	i := p.index(name, true)
	if i < 0 {
		return p, false, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	out := append(Plan(nil), p...)
	if hasHistory {
		t := now
		out[i].RemovedAt = &t
		out[i].UpdatedAt = now
		return out, true, nil
	}
	return append(out[:i], out[i+1:]...), false, nil
}

func (p Plan) index(name string, activeOnly bool) int {
	name = strings.TrimSpace(name)
	for i, m := range p {
		if activeOnly && !m.Active() {
			continue
		}
		if strings.EqualFold(m.Name, name) {
			return i
		}
	}
	return -1
}
