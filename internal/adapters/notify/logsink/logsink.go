// Package logsink entrega acciones como líneas de log estructurado.
package logsink

import (
	"context"

	"medication-adherence/internal/platform/logger"
	"medication-adherence/internal/ports/notify"
)

type Sink struct {
	log logger.Logger
}

func New(log logger.Logger) *Sink {
	if log == nil {
		log = logger.Nop()
	}
	return &Sink{log: log.With(map[string]any{"component": "notify"})}
}

func (s *Sink) Dispatch(_ context.Context, patientID string, actions []notify.Action) error {
	for _, a := range actions {
		fields := map[string]any{
			"patient_id": patientID,
			"kind":       a.Kind,
			"reason":     a.Reason,
			"at":         a.At,
		}
		if a.DoseKey != "" {
			fields["dose_key"] = a.DoseKey
		}
		if a.Medication != "" {
			fields["medication"] = a.Medication
		}
		if a.AlertID != "" {
			fields["alert_id"] = a.AlertID
			fields["severity"] = a.Severity
		}

		if a.Kind == "escalate" {
			s.log.Warn("action dispatched", fields)
			continue
		}
		s.log.Info("action dispatched", fields)
	}
	return nil
}
