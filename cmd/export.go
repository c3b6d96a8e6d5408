/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tasktrack/apiserver/config"
	"github.com/tasktrack/apiserver/internal/logging"
	"github.com/tasktrack/apiserver/internal/server"
)

var exportUserID string

// exportCmd writes a workspace snapshot for one user to object storage.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's projects and tasks to object storage",
	Long: `Writes a JSON snapshot of a user's projects and tasks to the configured bucket.

	tasktrack export --user <id>
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportUserID == "" {
			return errors.New("--user is required")
		}

		cfg := config.LoadConfig()
		log := logging.New(cfg.Log)

		app, err := server.NewApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			_ = app.Close()
		}()

		result, err := app.Exports.Export(cmd.Context(), exportUserID)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"key":      result.Key,
			"projects": result.Projects,
			"tasks":    result.Tasks,
		}).Info("export written")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportUserID, "user", "", "ID of the user to export")
}
