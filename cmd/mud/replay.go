package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlecko/macgyver-mud-sub001/internal/model"
	"github.com/mrlecko/macgyver-mud-sub001/internal/replay"
	"github.com/mrlecko/macgyver-mud-sub001/internal/world"
)

// #region flags

var (
	replayDefaultModel bool
	replayJSON         bool
	exportOut          string
)

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.json>",
	Short: "Replay a recorded episode and compare decisions",
	Long: `Feeds a fixture's recorded observations to the agent and reports where its
actions differ from the recorded ones. Uses the agent's stored model unless
--default-model is given. Skill priors are not applied, so a fixture recorded
with skill memory can diverge where the priors tipped a decision. Exits
non-zero on any difference.`,
	Args: cobra.ExactArgs(1),
	RunE: replayRun,
}

var exportCmd = &cobra.Command{
	Use:   "export <episode>",
	Short: "Export a logged episode as a replay fixture",
	Args:  cobra.ExactArgs(1),
	RunE:  exportRun,
}

func init() {
	replayCmd.Flags().BoolVar(&replayDefaultModel, "default-model", false, "replay against the default room model")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "output as JSON instead of table")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output fixture path (required)")
	_ = exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(replayCmd, exportCmd)
}

// #endregion

// #region replay

func replayRun(cmd *cobra.Command, args []string) error {
	f, err := replay.LoadFixture(args[0])
	if err != nil {
		return err
	}

	var m *model.Model
	if replayDefaultModel {
		m = world.DefaultModel()
	} else {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if m, err = loadOrDefault(st, cfg.Agent.AgentID); err != nil {
			return err
		}
	}

	results, sum, err := replay.Replay(cmd.Context(), m, cfg.Agent, f)
	if err != nil {
		return err
	}

	if replayJSON {
		if err := printJSON(struct {
			Results []replay.Result `json:"results"`
			Summary replay.Summary  `json:"summary"`
		}{results, sum}); err != nil {
			return err
		}
	} else {
		fmt.Printf("%4s  %-10s  %-10s  %-5s  %s\n", "Step", "Expected", "Got", "Match", "State")
		for _, r := range results {
			mark := "ok"
			if !r.Match {
				mark = "DIFF"
			}
			fmt.Printf("%4d  %-10s  %-10s  %-5s  %s\n", r.Step, r.Expected, r.Got, mark, r.State)
		}
		fmt.Printf("\nplayed %d/%d  matches=%d  mismatches=%d  halt=%s",
			sum.Played, sum.TotalSteps, sum.Matches, sum.Mismatches, sum.Halt)
		if sum.Overran {
			fmt.Print("  (ran past the fixture)")
		}
		fmt.Println()
	}

	if !sum.OK() {
		return fmt.Errorf("replay diverged from %s", args[0])
	}
	return nil
}

// #endregion

// #region export

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := resolveEpisode(st, args[0])
	if err != nil {
		return err
	}
	eps, err := st.ListEpisodes("", -1)
	if err != nil {
		return err
	}
	steps, err := st.ListSteps(id)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return fmt.Errorf("episode %s has no steps", id)
	}

	for _, ep := range eps {
		if ep.EpisodeID != id {
			continue
		}
		if err := replay.FromEpisode(ep, steps).Save(exportOut); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "exported %d steps of %s to %s\n", len(steps), id, exportOut)
		return nil
	}
	return fmt.Errorf("episode %q not found", id)
}

// #endregion
