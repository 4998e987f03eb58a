// Command mud runs and inspects active-inference agents in the locked-room world.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrlecko/macgyver-mud-sub001/internal/config"
	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
)

// #region globals

var (
	configPath string
	dbPath     string
	agentID    string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

// #endregion

// #region root

var rootCmd = &cobra.Command{
	Use:   "mud",
	Short: "Active-inference agent runner",
	Long: `mud plays episodes of the locked-room world with an active-inference agent.

The agent's generative model, episode log and skill outcomes live in one
SQLite database, keyed by agent id. Each run loads the agent's model, learns
from the episodes it plays and saves the model back.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Store.Path = dbPath
		}
		if agentID != "" {
			cfg.Agent.AgentID = agentID
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		logger, err = config.NewLogger(cfg.Logging)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mud.yaml", "config file (missing file uses defaults)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides store.path)")
	rootCmd.PersistentFlags().StringVar(&agentID, "agent", "", "agent id (overrides agent.agent_id)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides logging.level)")

	rootCmd.AddCommand(runCmd, inspectCmd)
}

// #endregion

// #region main

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// #endregion

func openStore() (*store.Store, error) {
	s, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return s, nil
}
