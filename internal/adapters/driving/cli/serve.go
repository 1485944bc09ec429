package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

var (
	serveAddr  string
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serve the answer and ingest endpoints over HTTP:

  GET  /healthz
  POST /v1/ai/rag-answer
  POST /v1/ai/rag-ingest
  GET  /v1/ai/env-check   (only with --debug or RAG_DEBUG_ENDPOINTS)

Prompt templates in the config directory are reloaded when they change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "expose diagnostic endpoints")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger.SetTimestamps(true)
	if !verbose && logLevel == "" {
		logger.SetLevel(logger.LevelInfo)
	}
	if err := app.Init(cmd.Context()); err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = app.appSettings.Server.Addr
	}
	debug := serveDebug || app.appSettings.Server.DebugEndpoints

	server, err := httpapi.NewServer(&httpapi.Ports{
		Answer:      app.answer,
		Ingest:      app.ingest,
		Diagnostics: app.diagnostics,
	}, httpapi.WithDebugEndpoints(debug))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	if app.prompts != nil {
		// Load creates the prompt directory the watcher needs.
		if _, err := app.prompts.Load(driven.PromptRAGSystem); err != nil {
			logger.Warn("prompt templates unavailable: %v", err)
		}
		watcher := file.NewPromptWatcher(app.prompts)
		g.Go(func() error {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("prompt watcher stopped: %v", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		cmd.Printf("HTTP server listening on %s\n", addr)
		return server.ListenAndServe(ctx, addr)
	})
	return g.Wait()
}
