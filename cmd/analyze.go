package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/career-mentor/internal/analysis"
	"github.com/spigell/career-mentor/internal/report"
	"github.com/spigell/career-mentor/internal/roles"
	"github.com/spigell/career-mentor/internal/storage"
)

const promptCustomRole = "Other (type it)"

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a CV file against a target role",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("file", "f", "", "CV file to analyze (pdf, docx or txt)")
	analyzeCmd.Flags().StringP("role", "r", "", "target role; asked interactively when omitted")
	analyzeCmd.Flags().String("report", "", "write a PDF report to this path")
	analyzeCmd.Flags().Bool("save", false, "persist the run in the configured database")
	analyzeCmd.Flags().Bool("output-json", false, "print the full run as JSON")

	analyzeCmd.MarkFlagRequired("file")
}

func analyze(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	path, _ := cmd.Flags().GetString("file")
	role, _ := cmd.Flags().GetString("role")
	reportPath, _ := cmd.Flags().GetString("report")
	save, _ := cmd.Flags().GetBool("save")
	asJSON, _ := cmd.Flags().GetBool("output-json")

	d, err := wire(ctx, logger, wiringOptions{store: save, analysis: true})
	if err != nil {
		logger.Fatal("preparing the analysis", zap.Error(err))
	}
	defer d.Close()

	if strings.TrimSpace(role) == "" {
		role, err = pickRole(d.roles)
		if err != nil {
			logger.Fatal("choosing a target role", zap.Error(err))
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading the CV", zap.String("file", path), zap.Error(err))
	}

	run, err := d.analysis.Analyze(ctx, analysis.Upload{
		Filename:   filepath.Base(path),
		Data:       data,
		TargetRole: role,
	})
	if err != nil {
		var inputErr *analysis.InputError
		if errors.As(err, &inputErr) {
			logger.Fatal("invalid input", zap.String("reason", inputErr.Message))
		}
		logger.Fatal("analysis failed", zap.Error(err))
	}

	if reportPath != "" {
		if err := writeReport(reportPath, run); err != nil {
			logger.Fatal("writing the report", zap.Error(err))
		}
		logger.Info("report written", zap.String("path", reportPath))
	}

	if asJSON {
		pretty, _ := json.MarshalIndent(run, "", "  ")
		fmt.Println(string(pretty))
		return
	}
	printRun(run, save)
}

// pickRole asks for a role on a terminal. Outside a terminal a role must be passed.
func pickRole(registry *roles.Registry) (string, error) {
	if !isTerminal(os.Stdin) {
		return "", errors.New("--role is required when stdin is not a terminal")
	}

	items := append(registry.Names(), promptCustomRole)
	selector := promptui.Select{Label: "Target role", Items: items}
	_, choice, err := selector.Run()
	if err != nil {
		return "", err
	}
	if choice != promptCustomRole {
		return choice, nil
	}

	input := promptui.Prompt{
		Label: "Target role",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("role must not be empty")
			}
			return nil
		},
	}
	return input.Run()
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func writeReport(path string, run *storage.Run) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Render(f, run); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printRun(run *storage.Run, saved bool) {
	if saved {
		fmt.Printf("Run ID: %s\n", run.ID)
	}
	fmt.Printf("Target role: %s\n\n", run.TargetRole)
	fmt.Println(run.Gap.Summary)
	fmt.Println()
	fmt.Printf("Validated skills: %s\n", joinOrNone(run.Skills.ValidatedSkills))
	fmt.Printf("Strengths: %s\n", joinOrNone(run.Gap.Strengths))
	fmt.Printf("Missing core skills: %s\n", joinOrNone(run.Gap.MissingCore))
	fmt.Printf("Missing nice-to-have skills: %s\n\n", joinOrNone(run.Gap.MissingNiceToHave))

	fmt.Printf("Projects (%s):\n", run.ProjectsSource)
	for _, p := range run.Projects {
		fmt.Printf("- %s\n", p.Title)
	}
	fmt.Printf("\nRoadmap (%s):\n\n%s\n", run.RoadmapSource, run.Roadmap)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
