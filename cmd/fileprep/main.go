// Command fileprep prepares files for upload to the storage network and
// restores them from their fragments.
package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sunway910/api-sub001/internal/config"
	"github.com/sunway910/api-sub001/internal/erasure"
	"github.com/sunway910/api-sub001/internal/manifeststore"
	"github.com/sunway910/api-sub001/pkg/logging"
	"github.com/sunway910/api-sub001/pkg/pipeline"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logging.Logger.Error("fileprep failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App { // A
	return &cli.App{
		Name:  "fileprep",
		Usage: "split, encrypt and erasure-code files into content-addressed fragments",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides the config file)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable coloured log output",
			},
		},
		Commands: []*cli.Command{
			processCmd(),
			restoreCmd(),
			verifyCmd(),
			showCmd(),
			listCmd(),
			fidCmd(),
		},
	}
}

// env is what every command needs: settings, a logger and the pipeline.
type env struct {
	cfg  config.Config
	log  *slog.Logger
	pipe *pipeline.Pipeline
}

func setup(c *cli.Context) (*env, error) { // A
	path := c.String("config")
	cfg, err := config.Load(path, path != "")
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logging.New(os.Stderr, level, c.Bool("no-color"))
	logging.Logger = log

	coder, err := erasure.New(cfg.DataShards, cfg.ParShards, log)
	if err != nil {
		return nil, err
	}
	pipe, err := pipeline.New(pipeline.Options{
		SegmentSize:   cfg.SegmentSize,
		MinimumFreeGB: cfg.MinimumFreeGB,
		Workers:       cfg.Workers,
		Logger:        log,
		Coder:         coder,
	})
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, log: log, pipe: pipe}, nil
}

// openIndex opens the manifest index, or returns nil when none is set.
func (e *env) openIndex() (*manifeststore.Store, error) { // A
	if e.cfg.ManifestDB == "" {
		return nil, nil
	}
	return manifeststore.Open(manifeststore.StoreConfig{
		Path:   e.cfg.ManifestDB,
		Logger: e.log,
	})
}
