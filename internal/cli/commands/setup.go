package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapml/internal/catalog"
	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/internal/config"
	"github.com/leapstack-labs/leapml/internal/state"

	// Register storage backends for catalog entries.
	_ "github.com/leapstack-labs/leapml/pkg/backends/duckdb"
	_ "github.com/leapstack-labs/leapml/pkg/backends/file"
	_ "github.com/leapstack-labs/leapml/pkg/backends/memory"
	_ "github.com/leapstack-labs/leapml/pkg/backends/postgres"
	_ "github.com/leapstack-labs/leapml/pkg/backends/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the loaded config, the context logger, and
// a renderer bound to the command's streams.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// OpenCatalog loads the dataset catalog from the configured path.
func (c *CommandContext) OpenCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.FromFile(c.Cfg.CatalogPath, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", c.Cfg.CatalogPath, err)
	}
	return cat, nil
}

// OpenStore opens the run history store, creating its directory first.
func (c *CommandContext) OpenStore() (state.Store, error) {
	stateDir := filepath.Dir(c.Cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	return store, nil
}

// getConfig returns the current configuration, falling back to defaults
// when no config has been loaded (e.g. in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}
