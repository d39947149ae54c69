package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/career-mentor/internal/report"
	"github.com/spigell/career-mentor/internal/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Render a stored analysis run as a PDF",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		renderStoredReport(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringP("out", "o", "", "output path (default career_report_<run-id>.pdf)")
}

func renderStoredReport(cmd *cobra.Command, runID string) {
	ctx := context.Background()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	d, err := wire(ctx, logger, wiringOptions{store: true})
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer d.Close()

	run, err := d.store.GetRun(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Error("analysis run not found", zap.String("run_id", runID))
		return
	}
	if err != nil {
		logger.Error("loading the run", zap.String("run_id", runID), zap.Error(err))
		return
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = report.Filename(run.ID)
	}

	if err := writeReport(out, run); err != nil {
		logger.Error("writing the report", zap.Error(err))
		return
	}
	logger.Info("report written", zap.String("path", out), zap.String("run_id", run.ID))
}
