package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrlecko/macgyver-mud-sub001/internal/agent"
	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
	"github.com/mrlecko/macgyver-mud-sub001/internal/replay"
	"github.com/mrlecko/macgyver-mud-sub001/internal/skills"
	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
	"github.com/mrlecko/macgyver-mud-sub001/internal/world"
)

// #region flags

var (
	runEpisodes  int
	runSeed      uint64
	runBeamWidth int
	runPerStep   bool
	runTimeout   time.Duration
	runNoSave    bool
	runRecord    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play episodes of the locked-room world",
	Long: `Loads the agent's model (or the default room model when none is stored,
the stored one is from an older schema, or it fails validation), plays the
requested number of episodes, learning after each, and saves the model.`,
	Args: cobra.NoArgs,
	RunE: runEpisodesCmd,
}

func init() {
	runCmd.Flags().IntVarP(&runEpisodes, "episodes", "n", 1, "number of episodes to play")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 1, "world random seed")
	runCmd.Flags().IntVar(&runBeamWidth, "beam-width", -1, "beam width (0 = exhaustive, -1 = from config)")
	runCmd.Flags().BoolVar(&runPerStep, "per-step", false, "learn after every step instead of once per episode")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "stop after this long (0 = no limit)")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "do not save the learned model")
	runCmd.Flags().StringVar(&runRecord, "record", "", "write the first episode as a replay fixture to this path")
}

// #endregion

// #region run

func runEpisodesCmd(cmd *cobra.Command, args []string) error {
	if runEpisodes < 1 {
		return fmt.Errorf("--episodes must be at least 1, got %d", runEpisodes)
	}

	ac := cfg.Agent
	if runBeamWidth >= 0 {
		ac.Evaluator.BeamWidth = runBeamWidth
	}
	if runPerStep {
		ac.Learning.PerStep = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	mem, err := skills.NewMemory(st.DB(), cfg.Skills)
	if err != nil {
		return err
	}

	m, err := loadOrDefault(st, ac.AgentID)
	if err != nil {
		return err
	}

	runner := agent.NewRunner(m, ac, agent.Options{
		Sink:   st,
		Skills: mem,
		Logger: logger,
	})
	room := world.NewRoom(runSeed)
	rec := replay.NewRecorder(room)

	var escaped int
	for i := 0; i < runEpisodes; i++ {
		var env agent.Environment = room
		if i == 0 && runRecord != "" {
			env = rec
		}
		res, err := runner.RunEpisode(ctx, env)
		if err != nil {
			return fmt.Errorf("episode %d: %w", i+1, err)
		}
		if env == rec {
			desc := fmt.Sprintf("locked room, seed %d, episode 1", runSeed)
			if err := rec.Fixture(ac.AgentID, desc).Save(runRecord); err != nil {
				return err
			}
		}
		if res.Done {
			escaped++
		}
		fmt.Printf("episode %d: steps=%d reward=%.2f halt=%s state=%s trend=%+.4f%s\n",
			i+1, res.Steps, res.TotalReward, res.Halt, res.FinalState, res.Trend, rolledBackNote(res))
		if res.Halt == agent.HaltCanceled {
			break
		}
	}
	fmt.Printf("escaped %d/%d\n", escaped, runEpisodes)

	if runNoSave {
		return nil
	}
	if err := st.SaveModel(ac.AgentID, runner.Model()); err != nil {
		return err
	}
	logger.Info("model saved", zap.String("agent", ac.AgentID), zap.String("db", cfg.Store.Path))
	return nil
}

// loadOrDefault returns the stored model for agentID, or the default room
// model when none is usable.
func loadOrDefault(st *store.Store, agentID string) (*model.Model, error) {
	m, ok, err := st.LoadModel(agentID)
	switch {
	case errors.Is(err, model.ErrInvalidModel):
		logger.Warn("stored model is invalid, using default", zap.String("agent", agentID), zap.Error(err))
		return world.DefaultModel(), nil
	case err != nil:
		return nil, err
	case !ok:
		logger.Info("no stored model, using default", zap.String("agent", agentID))
		return world.DefaultModel(), nil
	}
	return m, nil
}

func rolledBackNote(res agent.EpisodeResult) string {
	if res.RolledBack {
		return " (learning rolled back)"
	}
	return ""
}

// #endregion
