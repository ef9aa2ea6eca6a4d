package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medication-adherence/internal/domain/adherence"
	"medication-adherence/internal/domain/events"
	"medication-adherence/internal/domain/patients"
)

func importPlanCmd() *cobra.Command {
	var (
		file  string
		owner string
		name  string
	)

	cmd := &cobra.Command{
		Use:   "import-plan",
		Short: "Load a YAML medication plan for a patient",
		Long:  "Reads a YAML plan (patient_id, timezone, medications) and replaces the patient's plan. Creates the patient when --owner is given and the patient does not exist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			plan, err := adherence.ParsePlanFile(f)
			if err != nil {
				return err
			}

			ctx := events.WithSource(cmd.Context(), events.SourceImport)
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.svcs.Patients.GetByID(ctx, plan.PatientID)
			switch {
			case err == nil:
				if err := a.svcs.Adherence.SyncPatient(ctx, p); err != nil {
					return err
				}
			case errors.Is(err, patients.ErrNotFound) && owner != "":
				if name == "" {
					name = plan.PatientID
				}
				if _, err := a.svcs.Patients.Create(ctx, owner, patients.CreateInput{
					ID:       plan.PatientID,
					Name:     name,
					Timezone: plan.Timezone,
				}); err != nil {
					return err
				}
			default:
				return fmt.Errorf("patient %s: %w (use --owner to create it)", plan.PatientID, err)
			}

			meds, err := a.svcs.Adherence.SetupPlan(ctx, plan.PatientID, plan.Medications)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d medications for %s\n", len(meds), plan.PatientID)
			for _, m := range meds {
				fmt.Fprintf(out, "  %s\t%s\t%v\t%s\n", m.Name, m.Dosage, m.Slots, m.Food)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Ruta del plan YAML")
	cmd.Flags().StringVar(&owner, "owner", "", "Usuario owner si hay que crear el paciente")
	cmd.Flags().StringVar(&name, "name", "", "Nombre del paciente al crearlo")
	return cmd
}
