// Package agent corre el tick periódico sobre todos los pacientes y entrega
// las acciones resultantes al dispatcher.
package agent

import (
	"context"
	"time"

	"medication-adherence/internal/domain/adherence"
	"medication-adherence/internal/platform/clock"
	"medication-adherence/internal/platform/logger"
	"medication-adherence/internal/ports/notify"
)

const DefaultInterval = 30 * time.Second

// Engine es el subconjunto de adherence.Service que usa el loop.
type Engine interface {
	ListPatients(ctx context.Context) ([]string, error)
	RunTickAt(ctx context.Context, patientID string, now time.Time) (adherence.TickResult, error)
}

type Options struct {
	Interval   time.Duration
	Clock      clock.Clock
	Logger     logger.Logger
	Dispatcher notify.Dispatcher
}

type Loop struct {
	engine     Engine
	clock      clock.Clock
	interval   time.Duration
	log        logger.Logger
	dispatcher notify.Dispatcher
}

// Report resume un tick completo.
type Report struct {
	At       time.Time `json:"at"`
	Patients int       `json:"patients"`
	Ticked   int       `json:"ticked"`
	Failed   []string  `json:"failed,omitempty"`
	Actions  int       `json:"actions"`
	Alerts   int       `json:"alerts"`
}

func New(engine Engine, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Loop{
		engine:     engine,
		clock:      opts.Clock,
		interval:   opts.Interval,
		log:        opts.Logger.With(map[string]any{"component": "agent"}),
		dispatcher: opts.Dispatcher,
	}
}

// Run bloquea hasta que ctx se cancela.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Info("agent loop started", map[string]any{"interval": l.interval.String()})
	for {
		select {
		case <-ctx.Done():
			l.log.Info("agent loop stopped", nil)
			return ctx.Err()
		case <-ticker.C():
			l.TickOnce(ctx)
		}
	}
}

// TickOnce toma un único now y corre el tick para cada paciente conocido.
// Un paciente que falla se loguea y se salta; su tick no se comprometió.
func (l *Loop) TickOnce(ctx context.Context) Report {
	now := l.clock.Now()
	rep := Report{At: now}

	ids, err := l.engine.ListPatients(ctx)
	if err != nil {
		l.log.Error("list patients failed", map[string]any{"err": err})
		return rep
	}
	rep.Patients = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		res, err := l.tick(ctx, id, now)
		if err != nil {
			rep.Failed = append(rep.Failed, id)
			l.log.Error("tick failed", map[string]any{"patient_id": id, "err": err})
			continue
		}
		rep.Ticked++
		rep.Alerts += len(res.Alerts)
		rep.Actions += len(res.Actions)
	}

	if rep.Actions > 0 || len(rep.Failed) > 0 {
		l.log.Info("tick done", map[string]any{
			"patients": rep.Patients,
			"failed":   len(rep.Failed),
			"actions":  rep.Actions,
			"alerts":   rep.Alerts,
		})
	}
	return rep
}

// RunTick corre el tick de un solo paciente fuera del loop (API, CLI) y
// entrega sus acciones igual que TickOnce.
func (l *Loop) RunTick(ctx context.Context, patientID string) (adherence.TickResult, error) {
	return l.tick(ctx, patientID, l.clock.Now())
}

func (l *Loop) tick(ctx context.Context, patientID string, now time.Time) (adherence.TickResult, error) {
	res, err := l.engine.RunTickAt(ctx, patientID, now)
	if err != nil {
		return adherence.TickResult{}, err
	}
	l.dispatch(ctx, patientID, toNotify(patientID, res.Actions))
	if len(res.Skipped) > 0 {
		l.log.Warn("doses skipped", map[string]any{"patient_id": patientID, "dose_keys": res.Skipped})
	}
	return res, nil
}

func (l *Loop) dispatch(ctx context.Context, patientID string, actions []notify.Action) {
	if l.dispatcher == nil || len(actions) == 0 {
		return
	}
	if err := l.dispatcher.Dispatch(ctx, patientID, actions); err != nil {
		l.log.Warn("dispatch failed", map[string]any{"patient_id": patientID, "err": err})
	}
}

func toNotify(patientID string, in []adherence.Action) []notify.Action {
	out := make([]notify.Action, 0, len(in))
	for _, a := range in {
		out = append(out, notify.Action{
			Kind:       string(a.Kind),
			PatientID:  patientID,
			DoseKey:    a.DoseKey,
			Medication: a.Medication,
			AlertID:    a.AlertID,
			Severity:   string(a.Severity),
			Reason:     a.Reason,
			At:         a.At,
		})
	}
	return out
}
