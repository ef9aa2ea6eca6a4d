package vitals

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

type Type string

const (
	BloodPressure Type = "blood-pressure"
	BloodSugar    Type = "blood-sugar"
	HeartRate     Type = "heart-rate"
	Weight        Type = "weight"
	Temperature   Type = "temperature"
	Wellbeing     Type = "wellbeing"
)

var allTypes = []Type{BloodPressure, BloodSugar, HeartRate, Weight, Temperature, Wellbeing}

func Types() []Type { return append([]Type(nil), allTypes...) }

func ParseType(s string) (Type, error) {
	v := Type(strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", "-"))))
	for _, t := range allTypes {
		if t == v {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown vital type %q", ErrInvalidInput, s)
}

// Numeric: wellbeing no entra en baseline ni drift.
func (t Type) Numeric() bool { return t != Wellbeing }

// Puntaje de wellbeing: 1 (muy mal) a 5 (muy bien).
const LowWellbeingScore = 2

var lowWellbeingWords = []string{"unwell", "not well", "bad", "poor", "low", "sick", "dizzy", "weak"}

// LowWellbeing: puntaje <= LowWellbeingScore o texto con alguna palabra de malestar.
func LowWellbeing(r Reading) bool {
	if r.Type != Wellbeing {
		return false
	}
	if r.Value > 0 && r.Value <= LowWellbeingScore {
		return true
	}
	text := strings.ToLower(r.Text)
	for _, w := range lowWellbeingWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

type Reading struct {
	Type       Type      `json:"type"`
	Value      float64   `json:"value"`
	Secondary  *float64  `json:"secondary,omitempty"`
	Text       string    `json:"text,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (r Reading) Validate() error {
	if _, err := ParseType(string(r.Type)); err != nil {
		return err
	}
	if r.RecordedAt.IsZero() {
		return fmt.Errorf("%w: recorded_at is required", ErrInvalidInput)
	}
	if r.Type == Wellbeing {
		if strings.TrimSpace(r.Text) == "" && r.Value == 0 {
			return fmt.Errorf("%w: wellbeing needs text or a score", ErrInvalidInput)
		}
		return nil
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) || r.Value <= 0 {
		return fmt.Errorf("%w: %s value must be a positive number", ErrInvalidInput, r.Type)
	}
	if r.Secondary != nil && (math.IsNaN(*r.Secondary) || *r.Secondary <= 0) {
		return fmt.Errorf("%w: secondary value must be a positive number", ErrInvalidInput)
	}
	return nil
}

// ParseBloodPressure acepta "120/80".
func ParseBloodPressure(s string) (float64, float64, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0, fmt.Errorf("%w: blood pressure must look like 120/80", ErrInvalidInput)
	}
	sys, err1 := strconv.ParseFloat(strings.TrimSpace(a), 64)
	dia, err2 := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err1 != nil || err2 != nil || sys <= 0 || dia <= 0 {
		return 0, 0, fmt.Errorf("%w: blood pressure must look like 120/80", ErrInvalidInput)
	}
	return sys, dia, nil
}

type Baseline struct {
	Type   Type      `json:"type"`
	Mean   float64   `json:"mean"`
	Spread float64   `json:"spread"`
	Count  int       `json:"count"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

type Verdict string

const (
	Normal              Verdict = "normal"
	Anomalous           Verdict = "anomalous"
	InsufficientHistory Verdict = "insufficient-history"
	NotApplicable       Verdict = "not-applicable"
)

type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
)

type Drift struct {
	Direction   Direction `json:"direction"`
	SlopePerDay float64   `json:"slope_per_day"`
	Change      float64   `json:"change"`
	Readings    int       `json:"readings"`
}

type Breach struct {
	Bound string  `json:"bound"`
	Limit float64 `json:"limit"`
	Value float64 `json:"value"`
}

type Assessment struct {
	Type      Type      `json:"type"`
	Reading   Reading   `json:"reading"`
	Verdict   Verdict   `json:"verdict"`
	Baseline  *Baseline `json:"baseline,omitempty"`
	Deviation float64   `json:"deviation"`
	Multiple  float64   `json:"multiple"`
	Drift     *Drift    `json:"drift,omitempty"`
	Breach    *Breach   `json:"breach,omitempty"`
}

func (a Assessment) Anomalous() bool { return a.Verdict == Anomalous }
