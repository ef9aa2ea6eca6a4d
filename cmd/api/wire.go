package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"medication-adherence/internal/adapters/auth/jwtauth"
	"medication-adherence/internal/adapters/explainer/anthropic"
	"medication-adherence/internal/adapters/explainer/openai"
	"medication-adherence/internal/adapters/explainer/template"
	"medication-adherence/internal/adapters/notify/logsink"
	"medication-adherence/internal/adapters/notify/webhook"
	mem "medication-adherence/internal/adapters/storage/memory"
	pg "medication-adherence/internal/adapters/storage/postgres"
	"medication-adherence/internal/adapters/storage/redisstore"
	"medication-adherence/internal/domain/adherence"
	"medication-adherence/internal/domain/events"
	"medication-adherence/internal/domain/patients"
	"medication-adherence/internal/domain/schedule"
	"medication-adherence/internal/domain/vitals"
	"medication-adherence/internal/platform/clock"
	"medication-adherence/internal/platform/config"
	"medication-adherence/internal/platform/logger"
	"medication-adherence/internal/ports/auth"
	"medication-adherence/internal/ports/explainer"
	"medication-adherence/internal/ports/notify"
	"medication-adherence/internal/router"
)

// app reúne todo lo que comparten los subcomandos.
type app struct {
	cfg        *config.Config
	log        logger.Logger
	svcs       router.Services
	verifier   auth.AuthVerifier
	dispatcher notify.Dispatcher

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	a := &app{cfg: cfg, log: log}

	rules, err := rulesFrom(cfg)
	if err != nil {
		return nil, err
	}
	opts := adherence.Options{
		Rules:     rules,
		Clock:     clock.Real{},
		Logger:    log,
		Explainer: explainerFrom(cfg, log),
	}

	if err := a.wireStores(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}

	if cfg.JWTSecret != "" {
		v, err := jwtauth.NewVerifier(jwtauth.Options{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience, Leeway: 30 * time.Second})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.verifier = v
	} else {
		log.Warn("auth disabled, accepting X-Debug-User-ID", nil)
	}

	sinks := notify.Multi{logsink.New(log)}
	if cfg.WebhookURL != "" {
		wh, err := webhook.New(webhook.Options{URL: cfg.WebhookURL, Token: cfg.WebhookToken, Secret: cfg.WebhookSecret, Timeout: cfg.WebhookTimeout})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		sinks = append(sinks, wh)
	}
	a.dispatcher = sinks

	return a, nil
}

func (a *app) wireStores(ctx context.Context, opts adherence.Options) error {
	driver := a.cfg.ResolvedStoreDriver()
	a.log.Info("store selected", map[string]any{"driver": driver})

	var (
		patientRepo patients.Repository
		eventRepo   events.Repository
		stateStore  adherence.Store
	)

	switch driver {
	case "memory":
		a.svcs = router.MemoryServices(opts)
		return nil

	case "postgres":
		db, err := a.openPostgres(ctx)
		if err != nil {
			return err
		}
		patientRepo = pg.NewPatientsRepo(db)
		eventRepo = pg.NewEventsRepo(db)
		stateStore = pg.NewStateStore(db)

	case "redis":
		client, err := redisstore.Open(a.cfg.RedisURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		stateStore = redisstore.NewStateStore(client, a.cfg.RedisKeyPrefix)

		// Perfiles y auditoría no viven en Redis: Postgres si hay DSN.
		if a.cfg.DatabaseURL != "" {
			db, err := a.openPostgres(ctx)
			if err != nil {
				return err
			}
			patientRepo = pg.NewPatientsRepo(db)
			eventRepo = pg.NewEventsRepo(db)
		} else {
			a.log.Warn("redis store without DB_DSN: patients and audit events are in-memory", nil)
			patientRepo = mem.NewPatientRepo()
			eventRepo = mem.NewEventRepo()
		}

	default:
		return fmt.Errorf("unknown store driver %q", driver)
	}

	eventsSvc := events.NewService(eventRepo)
	opts.Audit = eventsSvc
	a.svcs = router.Services{
		Patients:  patients.NewService(patientRepo),
		Events:    eventsSvc,
		Adherence: adherence.NewService(stateStore, opts),
	}
	router.Link(a.svcs.Patients, a.svcs.Adherence)
	return nil
}

func (a *app) openPostgres(ctx context.Context) (*sql.DB, error) {
	db, err := pg.OpenWithPool(ctx, a.cfg.DatabaseURL, pg.DefaultPool)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := pg.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func rulesFrom(cfg *config.Config) (adherence.Rules, error) {
	limits, err := vitals.ParseLimits(cfg.VitalLimits)
	if err != nil {
		return adherence.Rules{}, err
	}

	r := adherence.DefaultRules()
	r.Windows = schedule.Windows{Lookahead: cfg.LookaheadWindow, Escalation: cfg.EscalationWindow}
	r.LowStockCoverageDays = cfg.LowStockCoverageDays
	r.Trend = vitals.Config{
		WindowReadings:    cfg.TrendWindowReadings,
		WindowSpan:        cfg.TrendWindowSpan,
		SpreadMultiple:    cfg.TrendSpreadMultiple,
		SevereMultiple:    cfg.TrendSevereMultiple,
		MinHistory:        cfg.TrendMinHistory,
		MinSpreadFraction: cfg.TrendMinSpreadFactor,
		WellbeingLowCount: cfg.WellbeingLowCount,
		DriftMinReadings:  cfg.DriftMinReadings,
		DriftMinChange:    cfg.DriftMinChange,
		Limits:            limits,
	}
	return r, nil
}

// explainerFrom arma el proveedor configurado con el template como respaldo.
func explainerFrom(cfg *config.Config, log logger.Logger) explainer.Explainer {
	fallback := template.New()
	model := strings.TrimSpace(cfg.ExplainerModel)

	switch strings.ToLower(cfg.ExplainerProvider) {
	case "anthropic":
		log.Info("explainer: anthropic", map[string]any{"model": model})
		return explainer.Chain{
			anthropic.New(func(o *anthropic.Options) {
				o.APIKey = cfg.AnthropicAPIKey
				if model != "" {
					o.Model = model
				}
			}),
			fallback,
		}
	case "openai":
		log.Info("explainer: openai", map[string]any{"model": model})
		return explainer.Chain{
			openai.New(func(o *openai.Options) {
				o.APIKey = cfg.OpenAIAPIKey
				if model != "" {
					o.Model = model
				}
			}),
			fallback,
		}
	default:
		return fallback
	}
}
