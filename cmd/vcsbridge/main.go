// Command vcsbridge analyses repository history and produces migration
// instructions for a peer version control system.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/vcsbridge/internal/adapters/driven/auth"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driven/config/file"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/cli"
	"github.com/custodia-labs/vcsbridge/internal/connectors"
	"github.com/custodia-labs/vcsbridge/internal/core/services"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		// cobra has already printed command errors.
		os.Exit(1)
	}
}

func run() error {
	config, err := file.NewConfigStore(os.Getenv("VCSBRIDGE_HOME"))
	if err != nil {
		logger.Error("load config: %v", err)
		return err
	}
	if config.GetBool(file.KeyVerbose) {
		logger.SetVerbose(true)
	}

	store, err := sqlite.NewStore(config.DataDir())
	if err != nil {
		logger.Error("open store: %v", err)
		return err
	}
	defer store.Close()

	var authOpts []auth.Option
	if auth.CanPrompt() {
		authOpts = append(authOpts, auth.WithPrompt(os.Stderr))
	}
	tokens := auth.NewFactory(authOpts...)
	factory := connectors.NewDefaultFactory(tokens.CreateTokenProvider)

	sessions := services.NewSessionService(store.SessionStore(), factory)
	sessions.SetDefaults(config.GetInt(file.KeyPageSize), config.GetString(file.KeySkipComment))

	cache := services.NewGroupCache(services.DefaultGroupCacheCapacity)
	conflicts := services.NewConflictManager(store.ConflictStore())
	analysis := services.NewAnalysisEngine(
		store.SessionStore(),
		factory,
		store.ChangeGroupStore(),
		store.HighWaterMarkStore(),
		store.ConversionHistoryStore(),
		conflicts,
	).WithCache(cache)
	pipeline := services.NewPipelineManager(
		store.SessionStore(),
		store.ChangeGroupStore(),
		store.HighWaterMarkStore(),
		store.ConversionHistoryStore(),
	).WithCache(cache)
	watch := services.NewWatchManager(
		store.SessionStore(),
		analysis,
		connectors.WatchPaths,
		config.GetDuration(file.KeyWatchInterval),
	)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Sessions:  sessions,
		Analysis:  analysis,
		Pipeline:  pipeline,
		Conflicts: conflicts,
		Watch:     watch,
	})

	if err := cli.Execute(); err != nil {
		return fmt.Errorf("vcsbridge: %w", err)
	}
	return nil
}
