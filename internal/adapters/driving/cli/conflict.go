package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

var conflictCmd = &cobra.Command{
	Use:   "conflict",
	Short: "Inspect and resolve conflicts",
}

var conflictListCmd = &cobra.Command{
	Use:   "list <session-id>",
	Short: "List the conflicts of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runConflictList,
}

var conflictResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id>",
	Short: "Resolve a conflict",
	Long: `Resolves a conflict and stores a rule for its scope, so conflicts of the
same type under that path are resolved automatically on the next analysis.

Resolutions:
  updated-conflicted-change-action  replay the change as an add of the destination
  manual                            keep the change in the backlog`,
	Args: cobra.ExactArgs(1),
	RunE: runConflictResolve,
}

var (
	conflictStatus     string
	conflictResolution string
	conflictScope      string
)

func init() {
	conflictListCmd.Flags().StringVar(&conflictStatus, "status", "", "active or resolved (default all)")
	conflictResolveCmd.Flags().StringVar(&conflictResolution, "resolution",
		string(domain.ResolutionUpdatedConflictedChangeAction), "resolution type")
	conflictResolveCmd.Flags().StringVar(&conflictScope, "scope", "", "path the rule applies to (defaults to the conflict's scope)")

	conflictCmd.AddCommand(conflictListCmd, conflictResolveCmd)
	rootCmd.AddCommand(conflictCmd)
}

func runConflictList(cmd *cobra.Command, args []string) error {
	if conflictService == nil {
		return errConflictsNotConfigured
	}

	status := domain.ConflictStatus(conflictStatus)
	if status != "" && status != domain.ConflictActive && status != domain.ConflictResolved {
		return fmt.Errorf("%w: status must be active or resolved", domain.ErrInvalidInput)
	}

	conflicts, err := conflictService.List(context.Background(), args[0], status)
	if err != nil {
		return fmt.Errorf("list conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		cmd.Println("No conflicts.")
		return nil
	}

	p := newPrinter(cmd.OutOrStdout())
	rows := make([][]string, 0, len(conflicts))
	for i := range conflicts {
		c := &conflicts[i]
		rows = append(rows, []string{
			c.ID, string(c.Type), c.Scope, revision(c.Revision),
			p.conflictStatus(c.Status), truncate(c.Details, 50),
		})
	}
	p.table([]string{"ID", "TYPE", "SCOPE", "REVISION", "STATUS", "DETAILS"}, rows)
	return nil
}

func runConflictResolve(cmd *cobra.Command, args []string) error {
	if conflictService == nil {
		return errConflictsNotConfigured
	}

	rule, err := conflictService.Resolve(context.Background(), args[0],
		domain.ResolutionType(conflictResolution), conflictScope)
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	cmd.Printf("Conflict %s resolved with %s; rule %s covers %s.\n",
		args[0], rule.Resolution, rule.ID, rule.Scope)
	if rule.Resolution == domain.ResolutionManual {
		cmd.Println("The change stays in the backlog until it is handled manually.")
	}
	return nil
}
