// @title Medication Adherence API
// @version 1.0
// @description Motor de adherencia: dosis, escalamiento a cuidadores, stock y tendencias de signos vitales.
// @BasePath /
package main

import (
	"os"

	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "adherence",
		Short:         "Medication adherence engine and API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Archivo de config (.env, .yaml o .json)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(importPlanCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
