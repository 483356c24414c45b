package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/plc-filebridge/backend/internal/config"
	"github.com/plc-filebridge/backend/internal/journal"
	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/parser"
	"github.com/plc-filebridge/backend/internal/progress"
	"github.com/plc-filebridge/backend/internal/storage"
	"github.com/plc-filebridge/backend/internal/tagwriter"
	"github.com/plc-filebridge/backend/internal/worker"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, levelFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		levelFlag:  levelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.levelFlag != nil && strings.TrimSpace(*c.levelFlag) != "" {
			cfg.LogLevel = strings.TrimSpace(*c.levelFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// workerRuntime bundles a scheduler with the resources it holds open.
type workerRuntime struct {
	scheduler *worker.Scheduler
	journal   journal.Recorder
	logger    *slog.Logger
}

func (r *workerRuntime) Close() {
	if err := r.journal.Close(); err != nil {
		r.logger.Warn("close journal", logging.Error(err))
	}
}

func (c *commandContext) buildWorker() (*workerRuntime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	logger, err := c.logger(cfg)
	if err != nil {
		return nil, err
	}

	var rec journal.Recorder = journal.Nop{}
	if cfg.JournalPath != "" {
		duck, err := journal.OpenDuck(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		rec = duck
	}

	dialer := &tagwriter.OPCDialer{
		Endpoint:       cfg.OPCServerURL,
		RequestTimeout: cfg.RequestTimeout(),
	}
	processor := worker.NewProcessor(
		parser.NewNormalizer(nil, nil, logger),
		tagwriter.NewWriter(cfg.GenericSheetPrefixes, logger),
		dialer,
		logger,
	)
	scheduler := worker.NewScheduler(worker.Options{
		Scanner:   storage.NewScanner(cfg.SavePath, logger),
		Store:     progress.NewStore(cfg.ProgressFile, logger),
		Processor: processor,
		Pool:      worker.NewPool(cfg.MaxWorkers),
		Journal:   rec,
		Interval:  cfg.Interval(),
		Logger:    logger,
	})

	logger.Info("configuration loaded",
		logging.String("save_path", cfg.SavePath),
		logging.String("opc_server_url", cfg.OPCServerURL),
		logging.String("progress_file", cfg.ProgressFile),
		logging.Bool("journal", cfg.JournalPath != ""),
	)
	return &workerRuntime{scheduler: scheduler, journal: rec, logger: logger}, nil
}
