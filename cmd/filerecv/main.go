// Command filerecv accepts workbook uploads from field agents and stores them
// for opcworker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/plc-filebridge/backend/internal/api"
	"github.com/plc-filebridge/backend/internal/config"
	"github.com/plc-filebridge/backend/internal/journal"
	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/progress"
	"github.com/plc-filebridge/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath, listen string
	cmd := &cobra.Command{
		Use:           "filerecv",
		Short:         "Receive workbook uploads from field agents",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file path (json, toml or yaml)")
	cmd.Flags().StringVar(&listen, "listen", "", "Override the listen address")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	fileStore, err := storage.NewLocalStore(cfg.SavePath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	deps := &api.Dependencies{
		Store:    fileStore,
		Progress: progress.NewStore(cfg.ProgressFile, logger),
		SavePath: cfg.SavePath,
		Version:  Version,
		Logger:   logger,
	}
	if cfg.JournalPath != "" {
		// The worker holds the journal for writing while it runs.
		j, err := journal.OpenDuckReadOnly(cfg.JournalPath)
		if err != nil {
			logger.Warn("run history disabled", logging.Error(err))
		} else {
			defer j.Close()
			deps.Runs = j
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, logger, cfg.BodyLimit)
	api.RegisterRoutes(e, api.NewHandlers(deps))

	s := &http.Server{
		Addr:              cfg.Listen,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("file receiver listening",
			logging.String("listen", cfg.Listen),
			logging.String("save_path", cfg.SavePath),
			logging.String("version", Version),
			logging.String("build_time", BuildTime),
		)
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
