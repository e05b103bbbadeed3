package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [session-id...]",
	Short: "Analyse new history of sessions",
	Long: `Discovers revisions committed since the last run, translates them into
change groups and promotes them through the pipeline.
If no session ID is provided, every session is analysed.`,
	RunE: runAnalyze,
}

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the progress of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(analyzeCmd, statusCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analysisService == nil {
		return errAnalysisNotConfigured
	}

	ctx := context.Background()
	ids, err := sessionIDs(ctx, args)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		cmd.Println("No sessions configured.")
		return nil
	}

	var errs []error
	for _, id := range ids {
		cmd.Printf("Analysing session %s...\n", id)
		report, err := analysisService.Analyze(ctx, id)
		if report != nil {
			printReport(cmd, report)
		}
		if err != nil {
			cmd.Printf("Session %s failed: %v\n", id, err)
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("analysis failed: %w", errors.Join(errs...))
	}
	return nil
}

// sessionIDs returns args, or every configured session when args is empty.
func sessionIDs(ctx context.Context, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if sessionService == nil {
		return nil, errSessionsNotConfigured
	}
	sessions, err := sessionService.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func printReport(cmd *cobra.Command, r *domain.AnalysisReport) {
	cmd.Printf("  Discovered %d revisions, analysed %d, skipped %d\n", r.Discovered, r.Analyzed, r.Skipped)
	cmd.Printf("  Created %d groups with %d actions\n", r.GroupsCreated, r.ActionsCreated)
	cmd.Printf("  Generated %d instructions (%d backlogged)\n", r.Instructions, r.Backlogged)
	if r.Demoted > 0 {
		cmd.Printf("  Demoted %d in-progress instructions\n", r.Demoted)
	}
	if len(r.Gaps) > 0 {
		gaps := make([]string, 0, len(r.Gaps))
		for _, g := range r.Gaps {
			gaps = append(gaps, g.String())
		}
		cmd.Printf("  Missing revisions: %s\n", strings.Join(gaps, ", "))
	}
	cmd.Printf("  Last analysed revision: %s\n", revision(r.LastAnalyzed))
}

func runStatus(cmd *cobra.Command, args []string) error {
	if analysisService == nil {
		return errAnalysisNotConfigured
	}

	status, err := analysisService.Status(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	cmd.Printf("Session:        %s\n", status.SessionID)
	cmd.Printf("Last analysed:  %s\n", revision(status.LastAnalyzed))
	cmd.Printf("Last migrated:  %s\n", revision(status.LastMigrated))
	cmd.Printf("Active conflicts: %d\n", status.Conflicts)

	var rows [][]string
	for _, s := range domain.AllChangeGroupStatuses() {
		if n := status.Groups[s]; n > 0 {
			rows = append(rows, []string{p.status(s), fmt.Sprintf("%d", n)})
		}
	}
	if len(rows) == 0 {
		cmd.Println("No change groups.")
		return nil
	}
	p.table([]string{"STATUS", "GROUPS"}, rows)
	return nil
}
