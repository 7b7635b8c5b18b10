package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/gateway"
	"github.com/xiaot623/studybuddy/internal/observability"
	"github.com/xiaot623/studybuddy/internal/reminder"
	"github.com/xiaot623/studybuddy/internal/repository"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one reminder scan against the database and print the result",
	Long: `Runs a single reminder scan without a chat listener. Reminders are
logged instead of delivered, so no task is marked as notified.`,
	RunE: runScan,
}

var scanOutput string

func init() {
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "json", "output format (json, yaml)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	clk := clock.New(cfg.Location)

	db, err := repository.NewSQLiteStore(cfg.DatabaseURL, repository.WithClock(clk))
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	log := observability.WithFields("component", "scan")
	notifier := gateway.LogOnly{Log: func(recipient, text string) {
		log.Info("would send reminder", "participant", recipient, "text", text)
	}}

	scheduler, err := reminder.New(db, notifier, clk, reminder.Options{Interval: cfg.ReminderInterval})
	if err != nil {
		return err
	}

	res, err := scheduler.Scan(cmd.Context())
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), scanOutput, res)
}

func writeResult(w io.Writer, format string, v interface{}) error {
	var (
		out []byte
		err error
	)
	switch format {
	case "json":
		out, err = json.MarshalIndent(v, "", "  ")
	case "yaml":
		out, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(string(out), "\n"))
	return err
}
