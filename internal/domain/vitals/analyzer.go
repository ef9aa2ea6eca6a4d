package vitals

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	WindowReadings int           `json:"window_readings"`
	WindowSpan     time.Duration `json:"window_span"`
	SpreadMultiple float64       `json:"spread_multiple"`
	SevereMultiple float64       `json:"severe_multiple"`
	MinHistory     int           `json:"min_history"`
	// MinSpreadFraction: piso opcional del spread como fracción de |media|.
	// 0 = spread es la desviación estándar muestral tal cual.
	MinSpreadFraction float64 `json:"min_spread_fraction,omitempty"`
	DriftMinReadings  int     `json:"drift_min_readings"`
	DriftMinChange    float64 `json:"drift_min_change"`
	WellbeingLowCount int     `json:"wellbeing_low_count"`
	Limits            Limits  `json:"limits,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		WindowReadings:    14,
		WindowSpan:        14 * 24 * time.Hour,
		SpreadMultiple:    2,
		SevereMultiple:    3,
		MinHistory:        3,
		DriftMinReadings:  4,
		DriftMinChange:    0.05,
		WellbeingLowCount: 2,
	}
}

// Limit: cotas absolutas opcionales (nil = sin cota).
type Limit struct {
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	SecondaryMax *float64 `json:"secondary_max,omitempty"`
}

type Limits map[Type]Limit

// ParseLimits lee "blood-sugar:70:180,blood-pressure::140:90".
func ParseLimits(s string) (Limits, error) {
	out := Limits{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 4 {
			return nil, fmt.Errorf("%w: limit %q must be type:min:max[:secondary_max]", ErrInvalidInput, item)
		}
		t, err := ParseType(parts[0])
		if err != nil {
			return nil, err
		}
		var l Limit
		for i, dst := range []**float64{&l.Min, &l.Max, &l.SecondaryMax} {
			if i+1 >= len(parts) || strings.TrimSpace(parts[i+1]) == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: limit %q: %v", ErrInvalidInput, item, err)
			}
			*dst = &v
		}
		out[t] = l
	}
	return out, nil
}

type Analyzer struct {
	cfg Config
}

func NewAnalyzer(cfg Config) *Analyzer {
	d := DefaultConfig()
	if cfg.WindowReadings <= 0 {
		cfg.WindowReadings = d.WindowReadings
	}
	if cfg.WindowSpan <= 0 {
		cfg.WindowSpan = d.WindowSpan
	}
	if cfg.SpreadMultiple <= 0 {
		cfg.SpreadMultiple = d.SpreadMultiple
	}
	if cfg.SevereMultiple <= 0 {
		cfg.SevereMultiple = d.SevereMultiple
	}
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = d.MinHistory
	}
	if cfg.MinSpreadFraction < 0 {
		cfg.MinSpreadFraction = 0
	}
	if cfg.DriftMinReadings <= 0 {
		cfg.DriftMinReadings = d.DriftMinReadings
	}
	if cfg.DriftMinChange <= 0 {
		cfg.DriftMinChange = d.DriftMinChange
	}
	if cfg.WellbeingLowCount <= 0 {
		cfg.WellbeingLowCount = d.WellbeingLowCount
	}
	return &Analyzer{cfg: cfg}
}

func (a *Analyzer) Config() Config { return a.cfg }

// Window devuelve las lecturas previas del mismo tipo que entran en la ventana
// de at: como máximo N lecturas, no posteriores a at y no más viejas que T.
func (a *Analyzer) Window(history []Reading, t Type, at time.Time) []Reading {
	from := at.Add(-a.cfg.WindowSpan)
	out := make([]Reading, 0, a.cfg.WindowReadings)
	for _, r := range history {
		if r.Type != t || r.RecordedAt.After(at) || r.RecordedAt.Before(from) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	if len(out) > a.cfg.WindowReadings {
		out = out[len(out)-a.cfg.WindowReadings:]
	}
	return out
}

// Baseline sobre el historial previo al instante at.
func (a *Analyzer) Baseline(history []Reading, t Type, at time.Time) (Baseline, bool) {
	w := a.Window(history, t, at)
	if len(w) == 0 {
		return Baseline{}, false
	}
	return ComputeBaseline(t, w), true
}

func ComputeBaseline(t Type, readings []Reading) Baseline {
	vals := make([]float64, len(readings))
	for i, r := range readings {
		vals[i] = r.Value
	}
	m := mean(vals)
	b := Baseline{Type: t, Mean: m, Spread: sampleStdDev(vals, m), Count: len(vals)}
	if len(readings) > 0 {
		b.From = readings[0].RecordedAt
		b.To = readings[len(readings)-1].RecordedAt
	}
	return b
}

// Assess evalúa una lectura nueva contra el historial (que no la incluye).
func (a *Analyzer) Assess(history []Reading, r Reading) Assessment {
	out := Assessment{Type: r.Type, Reading: r}
	if !r.Type.Numeric() {
		out.Verdict = NotApplicable
		return out
	}

	out.Breach = a.breach(r)

	prior := a.Window(history, r.Type, r.RecordedAt)
	if len(prior) > 0 {
		b := ComputeBaseline(r.Type, prior)
		out.Baseline = &b
	}

	if len(prior) < a.cfg.MinHistory {
		out.Verdict = InsufficientHistory
	} else {
		b := *out.Baseline
		spread := b.Spread
		if a.cfg.MinSpreadFraction > 0 {
			spread = math.Max(spread, math.Abs(b.Mean)*a.cfg.MinSpreadFraction)
		}
		out.Deviation = r.Value - b.Mean
		if spread == 0 {
			out.Verdict = Normal
		} else {
			out.Multiple = math.Abs(out.Deviation) / spread
			out.Verdict = Normal
			if out.Multiple > a.cfg.SpreadMultiple {
				out.Verdict = Anomalous
			}
		}
	}

	series := append(append([]Reading(nil), prior...), r)
	if len(series) > a.cfg.WindowReadings {
		series = series[len(series)-a.cfg.WindowReadings:]
	}
	out.Drift = a.drift(series)
	return out
}

// RepeatedLowWellbeing cuenta los reportes de malestar dentro de la ventana
// temporal, incluido r. Es repetido desde WellbeingLowCount reportes.
func (a *Analyzer) RepeatedLowWellbeing(history []Reading, r Reading) (int, bool) {
	if r.Type != Wellbeing || !LowWellbeing(r) {
		return 0, false
	}
	from := r.RecordedAt.Add(-a.cfg.WindowSpan)
	n := 1
	for _, h := range history {
		if h.Type != Wellbeing || h.RecordedAt.After(r.RecordedAt) || h.RecordedAt.Before(from) {
			continue
		}
		if LowWellbeing(h) {
			n++
		}
	}
	return n, n >= a.cfg.WellbeingLowCount
}

// Severe: desvío >= SevereMultiple veces el spread.
func (a *Analyzer) Severe(as Assessment) bool {
	return as.Verdict == Anomalous && as.Multiple >= a.cfg.SevereMultiple
}

func (a *Analyzer) breach(r Reading) *Breach {
	l, ok := a.cfg.Limits[r.Type]
	if !ok {
		return nil
	}
	switch {
	case l.Max != nil && r.Value > *l.Max:
		return &Breach{Bound: "max", Limit: *l.Max, Value: r.Value}
	case l.Min != nil && r.Value < *l.Min:
		return &Breach{Bound: "min", Limit: *l.Min, Value: r.Value}
	case l.SecondaryMax != nil && r.Secondary != nil && *r.Secondary > *l.SecondaryMax:
		return &Breach{Bound: "secondary_max", Limit: *l.SecondaryMax, Value: *r.Secondary}
	}
	return nil
}

// drift: las últimas DriftMinReadings+ lecturas estrictamente monótonas con
// cambio relativo total >= DriftMinChange. La pendiente es por mínimos cuadrados.
func (a *Analyzer) drift(series []Reading) *Drift {
	n := len(series)
	if n < a.cfg.DriftMinReadings {
		return nil
	}

	// racha monótona más larga que termina en la lectura nueva
	start := n - 1
	dir := 0
	for i := n - 1; i > 0; i-- {
		d := sign(series[i].Value - series[i-1].Value)
		if d == 0 || (dir != 0 && d != dir) {
			break
		}
		dir = d
		start = i - 1
	}
	run := series[start:]
	if len(run) < a.cfg.DriftMinReadings || dir == 0 {
		return nil
	}

	first, last := run[0].Value, run[len(run)-1].Value
	if first == 0 {
		return nil
	}
	change := (last - first) / math.Abs(first)
	if math.Abs(change) < a.cfg.DriftMinChange {
		return nil
	}

	d := &Drift{
		Direction:   Increasing,
		SlopePerDay: slopePerDay(run),
		Change:      change,
		Readings:    len(run),
	}
	if dir < 0 {
		d.Direction = Decreasing
	}
	return d
}

func slopePerDay(rs []Reading) float64 {
	t0 := rs[0].RecordedAt
	var sx, sy, sxx, sxy float64
	n := float64(len(rs))
	for _, r := range rs {
		x := r.RecordedAt.Sub(t0).Hours() / 24
		sx += x
		sy += r.Value
		sxx += x * x
		sxy += x * r.Value
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func sampleStdDev(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var s float64
	for _, v := range vals {
		s += (v - m) * (v - m)
	}
	return math.Sqrt(s / float64(len(vals)-1))
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}
