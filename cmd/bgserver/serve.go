package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/bgserver/internal/config"
	"github.com/yourusername/bgserver/internal/storage"
	"github.com/yourusername/bgserver/pkg/api"
	"github.com/yourusername/bgserver/pkg/session"
)

var (
	flagHost   string
	flagPort   int
	flagNoSave bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the match server",
	Long: `Start the HTTP server that hosts matches.

Finished matches are stored in SQLite unless storage is disabled in the
configuration or --no-save is given.

Examples:
  bgserver serve                     # Listen on localhost:8080
  bgserver serve --host 0.0.0.0      # Listen on all interfaces
  bgserver serve --config ./bg.yaml  # Use a specific config file`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagHost, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&flagNoSave, "no-save", false, "Do not store finished matches")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagHost != "" {
		cfg.Server.Host = flagHost
	}
	if flagPort != 0 {
		cfg.Server.Port = flagPort
	}
	if flagNoSave {
		cfg.Storage.Enabled = false
	}
	logger := newLogger(cfg.Log.Level)

	defaults := session.Options{
		MaxCube:     cfg.Match.MaxCube,
		QueueSize:   cfg.Match.ActionQueue,
		EventBuffer: cfg.Match.EventBuffer,
		Logger:      logger,
	}
	handlerCfg := api.HandlerConfig{
		Version:       version,
		DefaultTarget: cfg.Match.DefaultTarget,
		Logger:        logger,
	}

	if cfg.Storage.Enabled {
		store, err := storage.Open(cfg.Storage.DBPath)
		if err != nil {
			// Matches can still be played without history.
			logger.Warn("could not open results database", "path", cfg.Storage.DBPath, "error", err)
		} else {
			defer store.Close()
			defaults.Saver = store
			handlerCfg.History = store
			logger.Info("storing results", "path", cfg.Storage.DBPath)
		}
	}

	server := api.NewServer(session.NewRegistry(defaults), serverConfig(cfg), handlerCfg)
	logger.Info("starting", "version", version, "addr", cfg.Server.Addr())
	if err := server.ListenAndServeWithGracefulShutdown(cmd.Context()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// serverConfig maps the file configuration onto the API server settings.
func serverConfig(cfg config.Config) api.ServerConfig {
	return api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxRequests:     cfg.Server.MaxWorkers,
		MaxStreams:      cfg.Server.MaxStreams,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		PruneInterval:   cfg.Match.PruneInterval,
	}
}
