package medications

import "time"

type Medication struct {
	Name      string       `json:"name"`
	Dosage    string       `json:"dosage"`
	Slots     []Slot       `json:"slots"`
	Food      FoodRelation `json:"food"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	// RemovedAt marca un tombstone: el nombre sigue resolviendo dosis históricas.
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

func (m Medication) Active() bool { return m.RemovedAt == nil }

func (m Medication) DosesPerDay() int { return len(m.Slots) }

func (m Medication) HasSlot(s Slot) bool {
	for _, x := range m.Slots {
		if x == s {
			return true
		}
	}
	return false
}

// Input es la forma "cruda" que llega desde API / archivo de plan.
type Input struct {
	Name   string   `json:"name" yaml:"name"`
	Dosage string   `json:"dosage" yaml:"dosage"`
	Times  []string `json:"times" yaml:"times"`
	Food   string   `json:"food" yaml:"food"`
}
