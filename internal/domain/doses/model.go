package doses

import "time"

// Instance es la ocurrencia de una dosis en un día concreto.
type Instance struct {
	Key            Key        `json:"key"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	State          State      `json:"state"`
	TransitionedAt time.Time  `json:"transitioned_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	Resolution     Resolution `json:"resolution,omitempty"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	EscalatedAt    *time.Time `json:"escalated_at,omitempty"`
	SnoozedUntil   *time.Time `json:"snoozed_until,omitempty"`

	// NotifyPending: hubo un notify suprimido por snooze que aún no salió.
	NotifyPending bool `json:"notify_pending,omitempty"`

	// StockRejectedAt: se rechazó una confirmación por falta de stock (dedupe de alerta).
	StockRejectedAt *time.Time `json:"stock_rejected_at,omitempty"`
}

func New(key Key, scheduledAt, now time.Time) Instance {
	return Instance{
		Key:            key,
		ScheduledAt:    scheduledAt,
		State:          Pending,
		TransitionedAt: now,
	}
}

func (i Instance) Resolved() bool { return i.ResolvedAt != nil }

func (i Instance) Snoozed(now time.Time) bool {
	return i.SnoozedUntil != nil && i.SnoozedUntil.After(now)
}
