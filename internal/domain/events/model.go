package events

import "time"

type Actor struct {
	Type ActorType
	ID   string
}

// Event es una entrada del log de auditoría de un paciente.
type Event struct {
	ID        string
	PatientID string

	Type EventType

	OccurredAt time.Time
	RecordedAt time.Time

	// Subject: medicación, dose key, tipo de vital o id de alerta.
	Subject string
	Notes   string

	Actor  Actor
	Source Source
}
