package doses

import (
	"fmt"
	"time"

	"medication-adherence/internal/domain/schedule"
)

// Derive calcula el estado a partir de (instante programado, now, resolución,
// registro de escalamiento). Es la misma función que usa Advance, así que el
// estado guardado siempre se puede reconstruir.
func Derive(i Instance, now time.Time, w schedule.Windows) State {
	if i.ResolvedAt != nil {
		return Resolved
	}
	if i.EscalatedAt != nil {
		return Escalated
	}
	if w.Lookahead <= 0 || w.Escalation <= 0 {
		w = schedule.DefaultWindows()
	}

	d := now.Sub(i.ScheduledAt)
	switch {
	case d < -w.Lookahead:
		return Pending
	case d <= 0:
		return Due
	case d < w.Escalation:
		return Missed
	default:
		return Urgent
	}
}

// Advance mueve la instancia al estado que corresponde a now.
// Devuelve la transición aplicada (a lo sumo una) o ErrIllegalTransition si
// now implicaría retroceder (p.ej. reloj hacia atrás).
func (i *Instance) Advance(now time.Time, w schedule.Windows) (*Transition, error) {
	if i.State.Terminal() {
		return nil, nil
	}
	to := Derive(*i, now, w)
	if to == i.State {
		return nil, nil
	}
	tr, err := i.move(to, now)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// Escalate pasa Urgent -> Escalated una sola vez.
func (i *Instance) Escalate(now time.Time) (*Transition, bool) {
	if i.State != Urgent || i.EscalatedAt != nil {
		return nil, false
	}
	t := now
	i.EscalatedAt = &t
	tr, err := i.move(Escalated, now)
	if err != nil {
		return nil, false
	}
	return &tr, true
}

// Confirm resuelve la dosis como tomada. Cancela cualquier escalamiento pendiente.
func (i *Instance) Confirm(at time.Time) (Transition, error) {
	if i.Resolved() {
		return Transition{}, ErrAlreadyResolved
	}
	t := at
	i.ConfirmedAt = &t
	i.ResolvedAt = &t
	i.Resolution = Confirmed
	i.NotifyPending = false
	return i.move(Resolved, at)
}

// Close fuerza el cierre (rollover de día). No-op si ya está resuelta.
func (i *Instance) Close(at time.Time) (*Transition, bool) {
	if i.Resolved() {
		return nil, false
	}
	t := at
	i.ResolvedAt = &t
	i.Resolution = ForcedMissed
	i.NotifyPending = false
	tr, err := i.move(Resolved, at)
	if err != nil {
		return nil, false
	}
	return &tr, true
}

// Snooze difiere notificaciones; no cambia el estado.
func (i *Instance) Snooze(until time.Time) error {
	if i.Resolved() {
		return ErrAlreadyResolved
	}
	t := until
	i.SnoozedUntil = &t
	return nil
}

func (i *Instance) move(to State, at time.Time) (Transition, error) {
	if to.Rank() <= i.State.Rank() {
		return Transition{}, fmt.Errorf("%w: %s -> %s for %s", ErrIllegalTransition, i.State, to, i.Key)
	}
	tr := Transition{Key: i.Key, From: i.State, To: to, At: at}
	i.State = to
	i.TransitionedAt = at
	return tr, nil
}
