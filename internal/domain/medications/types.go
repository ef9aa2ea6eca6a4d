package medications

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrNotFound        = errors.New("medication not found")
)

type FoodRelation string

const (
	FoodBefore  FoodRelation = "before"
	FoodAfter   FoodRelation = "after"
	FoodAnytime FoodRelation = "anytime"
)

func ParseFoodRelation(s string) (FoodRelation, error) {
	switch FoodRelation(strings.ToLower(strings.TrimSpace(s))) {
	case FoodBefore:
		return FoodBefore, nil
	case FoodAfter:
		return FoodAfter, nil
	case FoodAnytime, "":
		return FoodAnytime, nil
	default:
		return "", fmt.Errorf("%w: food relation must be before, after or anytime", ErrInvalidInput)
	}
}

// Slot es una hora local del día (HH:MM) en la que toca una dosis.
type Slot struct {
	Hour   int
	Minute int
}

func ParseSlot(s string) (Slot, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return Slot{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidSchedule, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Slot{}, fmt.Errorf("%w: hour out of range in %q", ErrInvalidSchedule, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Slot{}, fmt.Errorf("%w: minute out of range in %q", ErrInvalidSchedule, s)
	}
	return Slot{Hour: h, Minute: m}, nil
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

func (s Slot) Minutes() int { return s.Hour*60 + s.Minute }

func (s Slot) Before(o Slot) bool { return s.Minutes() < o.Minutes() }

// On devuelve el instante del slot en el día calendario (y zona) de day.
func (s Slot) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, s.Hour, s.Minute, 0, 0, day.Location())
}

func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Slot) UnmarshalText(b []byte) error {
	v, err := ParseSlot(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
