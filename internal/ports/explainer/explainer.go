package explainer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrEmpty: el proveedor respondió sin texto.
var ErrEmpty = errors.New("explainer returned no text")

// Facts es lo único que ve el explainer: datos ya decididos por el engine.
type Facts struct {
	Kind      string             `json:"kind"`
	Severity  string             `json:"severity"`
	Subject   string             `json:"subject"`
	Numbers   map[string]float64 `json:"numbers,omitempty"`
	Labels    map[string]string  `json:"labels,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Explainer convierte facts en prosa. La prosa nunca vuelve al engine.
type Explainer interface {
	Summarize(ctx context.Context, facts []Facts) (string, error)
}

// SystemPrompt es el mismo para todos los proveedores.
const SystemPrompt = `You summarize medication-adherence alerts for a patient and their caregivers.
You receive alerts as JSON facts that were already decided by the monitoring engine.
Write two to four short plain sentences. Mention the most severe items first.
Do not add medical advice, diagnoses or numbers that are not in the facts.`

// UserPrompt serializa los facts para el proveedor.
func UserPrompt(facts []Facts) (string, error) {
	b, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return "", err
	}
	return "Active alerts:\n" + string(b), nil
}

// Chain prueba cada explainer en orden y devuelve el primer texto no vacío.
type Chain []Explainer

func (c Chain) Summarize(ctx context.Context, facts []Facts) (string, error) {
	var errs []error
	for _, e := range c {
		if e == nil {
			continue
		}
		text, err := e.Summarize(ctx, facts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	if len(errs) == 0 {
		return "", ErrEmpty
	}
	return "", errors.Join(errs...)
}
