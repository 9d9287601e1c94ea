// Package cli provides the docpipe command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docpipe/internal/adapters/driven/metrics"
	"github.com/custodia-labs/docpipe/internal/config"
	"github.com/custodia-labs/docpipe/internal/core/ports/driving"
	"github.com/custodia-labs/docpipe/internal/logger"
)

// version is set by SetVersion from build flags.
var version = "dev"

// Services are the driving ports the commands call.
type Services struct {
	Catalog    driving.CatalogService
	Conversion driving.ConversionService
	Chunking   driving.ChunkingService
	Archive    driving.ArchiveService
	Batch      driving.BatchService

	// Metrics is optional. It backs --metrics-file and /metrics.
	Metrics *metrics.Metrics
}

// BootstrapFunc builds the services from the loaded configuration.
// The returned function releases them.
type BootstrapFunc func(cfg *config.Config) (*Services, func(), error)

var (
	catalogService    driving.CatalogService
	conversionService driving.ConversionService
	chunkingService   driving.ChunkingService
	archiveService    driving.ArchiveService
	batchService      driving.BatchService
	pipelineMetrics   *metrics.Metrics

	appConfig *config.Config
	bootstrap BootstrapFunc
	cleanup   func()
)

// Global flags.
var (
	flagVerbose bool
	flagConfig  string
	flagRoot    string
)

var rootCmd = &cobra.Command{
	Use:   "docpipe",
	Short: "Versioned document pipeline",
	Long: `docpipe stores documents in catalogs, converts them to Markdown and
splits the Markdown with pluggable chunkers. Every destructive change is
snapshotted first and can be restored.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $DOCPIPE_HOME/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "Data directory (overrides data_dir)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap registers the function that builds services on first use.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices installs the services used by every command.
func SetServices(s *Services) {
	catalogService = s.Catalog
	conversionService = s.Conversion
	chunkingService = s.Chunking
	archiveService = s.Archive
	batchService = s.Batch
	pipelineMetrics = s.Metrics
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer release()

	return rootCmd.ExecuteContext(ctx)
}

// setup loads configuration, configures logging and builds services.
func setup(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(flagVerbose)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagRoot != "" {
		cfg.DataDir = flagRoot
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	logger.SetJSON(cfg.Log.Format == "json")
	appConfig = cfg
	logger.Debug("data dir %s, archive dir %s", cfg.DataDir, cfg.ArchiveDir)

	if bootstrap == nil || catalogService != nil {
		return nil
	}
	svcs, closeFn, err := bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}
	SetServices(svcs)
	cleanup = closeFn
	return nil
}

func release() {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
}

// errNotConfigured reports a service that was never wired.
func errNotConfigured(name string) error {
	return errors.New(name + " service not configured")
}
