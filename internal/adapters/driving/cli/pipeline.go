package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Move migration instructions through the pipeline",
	Long: `Controls the state of migration instructions produced by analysis.
Consumers check out pending instructions, apply them on the peer and mark
them complete with the revision they produced.`,
}

var pipelineCheckoutCmd = &cobra.Command{
	Use:   "checkout <session-id>",
	Short: "Claim pending instructions for the peer",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineCheckout,
}

var pipelineCompleteCmd = &cobra.Command{
	Use:   "complete <session-id> <instruction-id> <target-revision>",
	Short: "Mark a claimed instruction applied",
	Args:  cobra.ExactArgs(3),
	RunE:  runPipelineComplete,
}

var pipelineDemoteCmd = &cobra.Command{
	Use:   "demote <session-id>",
	Short: "Return in-progress instructions to pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineDemote,
}

var pipelineRemoveInProgressCmd = &cobra.Command{
	Use:   "remove-in-progress <session-id>",
	Short: "Discard speculative work of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineRemoveInProgress,
}

var pipelineDiscardCmd = &cobra.Command{
	Use:   "discard <session-id> <instruction-id>",
	Short: "Obsolete an instruction and reactivate its delta",
	Args:  cobra.ExactArgs(2),
	RunE:  runPipelineDiscard,
}

var pipelineReactivateCmd = &cobra.Command{
	Use:   "reactivate <session-id> <instruction-id>",
	Short: "Restore a discarded instruction",
	Args:  cobra.ExactArgs(2),
	RunE:  runPipelineReactivate,
}

var checkoutLimit int

func init() {
	pipelineCheckoutCmd.Flags().IntVarP(&checkoutLimit, "limit", "n", 10, "maximum instructions to claim")

	pipelineCmd.AddCommand(
		pipelineCheckoutCmd,
		pipelineCompleteCmd,
		pipelineDemoteCmd,
		pipelineRemoveInProgressCmd,
		pipelineDiscardCmd,
		pipelineReactivateCmd,
	)
	rootCmd.AddCommand(pipelineCmd)
}

func runPipelineCheckout(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errPipelineNotConfigured
	}
	if checkoutLimit <= 0 {
		return fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}

	groups, err := pipelineService.Checkout(context.Background(), args[0], checkoutLimit)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if len(groups) == 0 {
		cmd.Println("No pending instructions.")
		return nil
	}

	p := newPrinter(cmd.OutOrStdout())
	rows := make([][]string, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		rows = append(rows, []string{g.ID, g.Name, fmt.Sprintf("%d", len(g.Actions)), truncate(g.Comment, 50)})
	}
	p.table([]string{"ID", "REVISION", "ACTIONS", "COMMENT"}, rows)
	cmd.Printf("Checked out %d instructions.\n", len(groups))
	return nil
}

func runPipelineComplete(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errPipelineNotConfigured
	}

	rev, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || rev <= 0 {
		return fmt.Errorf("%w: target revision must be a positive number", domain.ErrInvalidInput)
	}
	if err := pipelineService.Complete(context.Background(), args[0], args[1], domain.Revision(rev)); err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	cmd.Printf("Instruction %s completed at revision %d.\n", args[1], rev)
	return nil
}

func runPipelineDemote(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errPipelineNotConfigured
	}

	n, err := pipelineService.DemoteInProgress(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("demote: %w", err)
	}
	cmd.Printf("Demoted %d instructions.\n", n)
	return nil
}

func runPipelineRemoveInProgress(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errPipelineNotConfigured
	}

	n, err := pipelineService.RemoveInProgress(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("remove in-progress: %w", err)
	}
	cmd.Printf("Removed %d groups.\n", n)
	return nil
}

func runPipelineDiscard(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errPipelineNotConfigured
	}

	if err := pipelineService.Discard(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("discard: %w", err)
	}
	cmd.Printf("Instruction %s discarded.\n", args[1])
	return nil
}

func runPipelineReactivate(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errPipelineNotConfigured
	}

	if err := pipelineService.Reactivate(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("reactivate: %w", err)
	}
	cmd.Printf("Instruction %s reactivated.\n", args[1])
	return nil
}
