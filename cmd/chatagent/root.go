package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/martinemde/chatagent/config"
	"github.com/martinemde/chatagent/logging"
)

// cli carries state from the root command's pre-run to subcommands.
type cli struct {
	configPath string
	cfg        *config.Config
	logCloser  io.Closer
}

// persistentFlagKeys maps root flags to config keys.
var persistentFlagKeys = map[string]string{
	"log-level":   "log_level",
	"log-format":  "log_format",
	"log-file":    "log_file",
	"with-caller": "log_with_caller",
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "chatagent",
		Short:         "A chat backend whose agent can search the web",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logCloser != nil {
				_ = c.logCloser.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default ./.env when present)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("log-file", "", "rotating log file path")
	pf.Bool("with-caller", false, "log the caller file and line")

	root.AddCommand(newServeCommand(c), newAskCommand(c), newModelsCommand(c))
	return root
}

// load reads configuration, binds flags that were set, and initialises logging.
func (c *cli) load(cmd *cobra.Command) error {
	v, err := config.NewViper(c.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	for flag, key := range persistentFlagKeys {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return errors.Wrapf(err, "bind --%s", flag)
			}
		}
	}
	if f := flags.Lookup("listen"); f != nil && f.Changed {
		if err := v.BindPFlag("listen_address", f); err != nil {
			return errors.Wrap(err, "bind --listen")
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	closer, err := logging.Init(cfg.Log)
	if err != nil {
		return err
	}

	c.cfg, c.logCloser = cfg, closer
	return nil
}
