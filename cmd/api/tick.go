package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"medication-adherence/internal/agent"
	"medication-adherence/internal/domain/events"
)

func tickCmd() *cobra.Command {
	var patientID string

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run a single tick (all patients, or one with --patient) and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := events.WithSource(cmd.Context(), events.SourceAgent)

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			loop := agent.New(a.svcs.Adherence, agent.Options{Logger: a.log, Dispatcher: a.dispatcher})
			var out any
			if patientID != "" {
				res, err := loop.RunTick(ctx, patientID)
				if err != nil {
					return err
				}
				out = res
			} else {
				out = loop.TickOnce(ctx)
			}

			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "ID del paciente (opcional)")
	return cmd
}
