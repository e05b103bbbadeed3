package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

var (
	version = "dev"
	verbose bool

	sessionService  driving.SessionService
	analysisService driving.AnalysisService
	pipelineService driving.PipelineService
	conflictService driving.ConflictService
	watchService    driving.WatchService
)

// Services holds the core services the commands drive.
type Services struct {
	Sessions  driving.SessionService
	Analysis  driving.AnalysisService
	Pipeline  driving.PipelineService
	Conflicts driving.ConflictService
	Watch     driving.WatchService
}

// SetServices wires the core services into the commands.
func SetServices(s Services) {
	sessionService = s.Sessions
	analysisService = s.Analysis
	pipelineService = s.Pipeline
	conflictService = s.Conflicts
	watchService = s.Watch
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "vcsbridge",
	Short: "Migrate and synchronise history between version control systems",
	Long: `vcsbridge analyses the history of a repository and turns every new
change-set into migration instructions for a peer system.

Sessions pair a source repository with a peer. Analysis is incremental:
each run resumes after the last analysed revision.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print analysis progress to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var (
	errSessionsNotConfigured  = errors.New("session service not configured")
	errAnalysisNotConfigured  = errors.New("analysis service not configured")
	errPipelineNotConfigured  = errors.New("pipeline service not configured")
	errConflictsNotConfigured = errors.New("conflict service not configured")
	errWatchNotConfigured     = errors.New("watch service not configured")
)
