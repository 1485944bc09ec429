// Package cli implements the sercha-rag command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// defaultEnvFile is loaded when present and --env-file is not given.
const defaultEnvFile = ".env"

var (
	verbose   bool
	logLevel  string
	configDir string
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Grounded question answering over your documents",
	Long: `sercha-rag indexes documents into a vector store and answers questions
using only the retrieved evidence, with citations and a confidence status.

Configure providers with 'sercha-rag settings', index documents with
'sercha-rag ingest', then ask with 'sercha-rag answer' or serve the HTTP
and MCP interfaces.`,
	SilenceUsage:      true,
	PersistentPreRunE: initGlobals,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "minimum log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.sercha-rag)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file (default .env if present)")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("closing services: %v", err)
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func initGlobals(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if logLevel != "" && !verbose {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	app.configDir = configDir
	return loadEnvFile(envFile)
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. An empty path loads .env when it exists.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	logger.Debug("loaded environment from %s", path)
	return nil
}
