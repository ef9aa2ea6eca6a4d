package notify

import (
	"context"
	"errors"
	"time"
)

// Action es lo que el agent loop entrega hacia afuera (notificación, escalamiento, reorder).
type Action struct {
	Kind       string    `json:"kind"`
	PatientID  string    `json:"patient_id"`
	DoseKey    string    `json:"dose_key,omitempty"`
	Medication string    `json:"medication,omitempty"`
	AlertID    string    `json:"alert_id,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Dispatcher entrega acciones. Un error no deshace el tick ya comprometido.
type Dispatcher interface {
	Dispatch(ctx context.Context, patientID string, actions []Action) error
}

// Multi entrega a todos los dispatchers; un fallo no corta a los demás.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, patientID string, actions []Action) error {
	if len(actions) == 0 {
		return nil
	}
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, patientID, actions); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
