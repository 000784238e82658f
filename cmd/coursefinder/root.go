package main

import (
	"io"
	"log/slog"

	"github.com/FranksOps/coursefinder/internal/config"
	"github.com/FranksOps/coursefinder/internal/logging"
	"github.com/spf13/cobra"
)

// cli carries state shared by subcommands once the root has loaded it.
type cli struct {
	configPath string
	envFiles   []string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "coursefinder",
		Short:         "Find downloadable course material on public file hosts",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.logCloser != nil {
				return c.logCloser.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load (default .env)")

	root.AddCommand(newSearchCmd(c), newServeCmd(c))
	return root
}

func (c *cli) load() error {
	if err := config.LoadDotEnv(c.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	c.cfg = cfg
	c.logger = logger
	c.logCloser = closer
	return nil
}
