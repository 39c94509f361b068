package main

import (
	"fmt"
	"os"
	"path/filepath"

	"commlink/internal/config"
	"commlink/internal/logging"

	"github.com/spf13/cobra"
)

// cli holds the persistent flags and the loaded configuration.
type cli struct {
	configPath string
	verbose    bool
	token      string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "commlink",
		Short: "commlink - secure-channel chat with an assistant on the line",
		Long: `commlink is a terminal chat client.

Every message is routed: exact stock phrases are stored as compact tokens,
slash commands run locally or against the assistant, a few keywords trigger
intents (archive, weather) and everything else is chat.

Run without arguments to start the interactive chat interface.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runChat(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", filepath.Join(".commlink", "config.yaml"), "Path to config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&c.token, "token", "", "Session token (or set COMMLINK_TOKEN)")

	root.AddCommand(
		c.sendCmd(),
		c.historyCmd(),
		c.remindersCmd(),
		c.tokensCmd(),
	)
	return root
}

// load reads the config and initializes logging.
func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.token != "" {
		cfg.Session.Token = c.token
	}
	if c.verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	c.cfg = cfg

	return logging.Initialize(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
	})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
