package doses

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"medication-adherence/internal/domain/medications"
)

var (
	ErrIllegalTransition = errors.New("illegal dose transition")
	ErrAlreadyResolved   = errors.New("dose already resolved")
	ErrInvalidKey        = errors.New("invalid dose key")
)

type State string

const (
	Pending   State = "pending"
	Due       State = "due"
	Missed    State = "missed"
	Urgent    State = "urgent"
	Escalated State = "escalated"
	Resolved  State = "resolved"
)

// Rank ordena los estados; una transición legal nunca baja de rank.
func (s State) Rank() int {
	switch s {
	case Pending:
		return 0
	case Due:
		return 1
	case Missed:
		return 2
	case Urgent:
		return 3
	case Escalated:
		return 4
	case Resolved:
		return 5
	default:
		return -1
	}
}

func (s State) Terminal() bool { return s == Resolved }

type Resolution string

const (
	Confirmed    Resolution = "confirmed"
	ForcedMissed Resolution = "forced-missed"
)

// DayLayout es el formato del día calendario local en las keys.
const DayLayout = "2006-01-02"

// Key identifica una dosis: medicación + día local + slot.
type Key struct {
	Medication string
	Day        string
	Slot       medications.Slot
}

func NewKey(medication string, scheduledAt time.Time, slot medications.Slot) Key {
	return Key{Medication: medication, Day: scheduledAt.Format(DayLayout), Slot: slot}
}

func (k Key) String() string {
	return k.Medication + "|" + k.Day + "|" + k.Slot.String()
}

func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	if _, err := time.Parse(DayLayout, parts[1]); err != nil {
		return Key{}, fmt.Errorf("%w: bad day in %q", ErrInvalidKey, s)
	}
	slot, err := medications.ParseSlot(parts[2])
	if err != nil {
		return Key{}, fmt.Errorf("%w: bad slot in %q", ErrInvalidKey, s)
	}
	return Key{Medication: parts[0], Day: parts[1], Slot: slot}, nil
}

func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Key) UnmarshalText(b []byte) error {
	v, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

type Transition struct {
	Key  Key       `json:"key"`
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}
