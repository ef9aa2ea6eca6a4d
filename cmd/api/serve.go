package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"medication-adherence/internal/agent"
	"medication-adherence/internal/router"
)

func serveCmd() *cobra.Command {
	var noAgent bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the agent loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return runServer(ctx, a, !noAgent)
		},
	}
	cmd.Flags().BoolVar(&noAgent, "no-agent", false, "No correr el tick periódico (solo API)")
	return cmd
}

func runServer(ctx context.Context, a *app, withAgent bool) error {
	h := router.NewRouter(router.Options{
		AuthVerifier: a.verifier,
		Logger:       a.log,
		CORSOrigins:  a.cfg.CORSOrigins,
		Dispatcher:   a.dispatcher,
		Patients:     a.svcs.Patients,
		Events:       a.svcs.Events,
		Adherence:    a.svcs.Adherence,
	})

	srv := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if withAgent {
		loop := agent.New(a.svcs.Adherence, agent.Options{
			Interval:   a.cfg.TickInterval,
			Logger:     a.log,
			Dispatcher: a.dispatcher,
		})
		go func() {
			_ = loop.Run(ctx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info("server stopped", nil)
	return nil
}
