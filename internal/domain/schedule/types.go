package schedule

import (
	"time"

	"medication-adherence/internal/domain/medications"
)

type Relation string

const (
	Upcoming      Relation = "upcoming"
	Due           Relation = "due"
	OverdueRecent Relation = "overdue-recent"
	OverdueUrgent Relation = "overdue-urgent"
	Taken         Relation = "taken"
)

const (
	DefaultLookahead  = 30 * time.Minute
	DefaultEscalation = 2 * time.Hour
)

// Windows agrupa las dos ventanas que gobiernan la clasificación de un slot.
type Windows struct {
	Lookahead  time.Duration `json:"lookahead"`
	Escalation time.Duration `json:"escalation"`
}

func DefaultWindows() Windows {
	return Windows{Lookahead: DefaultLookahead, Escalation: DefaultEscalation}
}

func (w Windows) orDefault() Windows {
	if w.Lookahead <= 0 {
		w.Lookahead = DefaultLookahead
	}
	if w.Escalation <= 0 {
		w.Escalation = DefaultEscalation
	}
	return w
}

type SlotStatus struct {
	Medication  string           `json:"medication"`
	Slot        medications.Slot `json:"slot"`
	Instant     time.Time        `json:"instant"`
	Relation    Relation         `json:"relation"`
	Snoozed     bool             `json:"snoozed,omitempty"`
	ConfirmedAt *time.Time       `json:"confirmed_at,omitempty"`
}
