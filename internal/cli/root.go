// Package cli implements the command-line interface.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gltg/bmp-api/internal/config"
	"github.com/gltg/bmp-api/internal/logger"
	"github.com/gltg/bmp-api/internal/ui"
)

var (
	// Global flags
	configPath   string
	dbDriverFlag string
	dbDSNFlag    string
	logLevelFlag string

	// Resolved values
	cfg       *config.Config
	appLogger *slog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bmp",
	Short: "bmp - paginated queries over conservation practice data",
	Long: `bmp serves and queries the best management practice (BMP) tables:
practices, assumptions, huc8 watersheds, and states.

Every listing can be filtered, grouped with aggregates, partitioned into
top-N rows per group, ordered, and paged. The same engine backs the HTTP API
(bmp serve) and the query command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "completion", "help", "version":
			return nil
		}
		if parent := cmd.Parent(); parent != nil {
			switch {
			case parent.Name() == "completion":
				return nil
			case parent.Name() == "config" && cmd.Name() == "init":
				return nil
			}
		}

		loaded, err := loadConfig(cmd)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "Check the config file and DB_*/API_* environment variables")
		}
		l, err := logger.New(logger.Config{Level: loaded.Log.Level, Format: loaded.Log.Format}, os.Stderr)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "Use one of DEBUG, INFO, WARN, ERROR")
		}
		cfg = loaded
		appLogger = l
		return nil
	},
}

// Execute runs the CLI. Errors already written as a JSON envelope are not
// printed again.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for agent/script use)")
	rootCmd.PersistentFlags().StringVar(&dbDriverFlag, "db-driver", "", "Database driver: sqlite or pgx (overrides config and DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&dbDSNFlag, "db-dsn", "", "Database DSN (overrides config and DB_DSN)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: DEBUG, INFO, WARN, ERROR")
}

// loadConfig resolves file, environment, then flags, and validates the
// result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loaded, err := config.LoadPath(configPath)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(loaded, cmd)
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

func applyFlagOverrides(c *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("db-driver") {
		c.Database.Driver = strings.TrimSpace(dbDriverFlag)
		// A DSN from a lower layer belongs to the other driver.
		if !flags.Changed("db-dsn") {
			c.Database.DSN = ""
		}
	}
	if flags.Changed("db-dsn") {
		c.Database.DSN = strings.TrimSpace(dbDSNFlag)
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevelFlag
	}
}

// getConfig returns the loaded config.
func getConfig() *config.Config {
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg
}

func getLogger() *slog.Logger {
	if appLogger == nil {
		return logger.Discard()
	}
	return appLogger
}
