package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch [session-id...]",
	Short: "Keep sessions analysed as their repositories change",
	Long: `Analyses the sessions, then re-analyses them whenever a local repository
changes and at the configured polling interval. Runs until interrupted.
If no session ID is provided, every session is watched.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchService == nil {
		return errWatchNotConfigured
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Println("Watching for changes. Press Ctrl+C to stop.")
	err := watchService.Watch(ctx, args, func(id string, report *domain.AnalysisReport, err error) {
		stamp := time.Now().Format("15:04:05")
		if err != nil {
			cmd.Printf("[%s] %s: analysis failed: %v\n", stamp, id, err)
			return
		}
		if report == nil || report.Discovered == 0 {
			return
		}
		cmd.Printf("[%s] %s: %d revisions analysed, %d instructions, last revision %s\n",
			stamp, id, report.Analyzed, report.Instructions, revision(report.LastAnalyzed))
	})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	cmd.Println("Stopped.")
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
