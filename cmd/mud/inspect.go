package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrlecko/macgyver-mud-sub001/internal/store"
)

// #region flags

var (
	inspectLast    int
	inspectEpisode string
	inspectAll     bool
	inspectJSON    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show stored models, episodes and step traces",
	Long: `Without --episode, lists stored models and the agent's most recent episodes.
With --episode, prints that episode's step trace.`,
	Args: cobra.NoArgs,
	RunE: inspectRun,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent episodes")
	inspectCmd.Flags().StringVar(&inspectEpisode, "episode", "", "show one episode's steps (id or unique prefix)")
	inspectCmd.Flags().BoolVar(&inspectAll, "all", false, "list episodes of every agent")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of table")
}

// #endregion

func inspectRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if inspectEpisode != "" {
		return runStepsMode(st, inspectEpisode)
	}
	return runListMode(st)
}

// #region list-mode

type listOutput struct {
	Models   []modelRow   `json:"models"`
	Episodes []episodeRow `json:"episodes"`
}

type modelRow struct {
	AgentID       string   `json:"agent_id"`
	SchemaVersion int      `json:"schema_version"`
	Current       bool     `json:"current"`
	States        []string `json:"states"`
	Observations  []string `json:"observations"`
	Actions       []string `json:"actions"`
	UpdatedAt     string   `json:"updated_at"`
}

type episodeRow struct {
	EpisodeID   string  `json:"episode_id"`
	AgentID     string  `json:"agent_id"`
	Steps       int     `json:"steps"`
	TotalReward float64 `json:"total_reward"`
	Outcome     string  `json:"outcome"`
	HaltReason  string  `json:"halt_reason"`
	StartedAt   string  `json:"started_at"`
}

func runListMode(st *store.Store) error {
	sums, err := st.ListModels()
	if err != nil {
		return err
	}
	agent := cfg.Agent.AgentID
	if inspectAll {
		agent = ""
	}
	eps, err := st.ListEpisodes(agent, inspectLast)
	if err != nil {
		return err
	}

	out := listOutput{Models: []modelRow{}, Episodes: []episodeRow{}}
	for _, s := range sums {
		out.Models = append(out.Models, modelRow{
			AgentID:       s.AgentID,
			SchemaVersion: s.SchemaVersion,
			Current:       s.SchemaVersion == store.SchemaVersion,
			States:        s.States,
			Observations:  s.Observations,
			Actions:       s.Actions,
			UpdatedAt:     s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	for _, e := range eps {
		out.Episodes = append(out.Episodes, episodeRow{
			EpisodeID:   e.EpisodeID,
			AgentID:     e.AgentID,
			Steps:       e.Steps,
			TotalReward: e.TotalReward,
			Outcome:     orDash(e.Outcome),
			HaltReason:  orDash(e.HaltReason),
			StartedAt:   e.StartedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	if inspectJSON {
		return printJSON(out)
	}

	if len(out.Models) == 0 {
		fmt.Fprintln(os.Stderr, "no models stored")
	} else {
		fmt.Printf("%-16s  %7s  %6s  %4s  %4s  %s\n", "Agent", "Schema", "States", "Obs", "Acts", "Updated")
		for _, r := range out.Models {
			schema := fmt.Sprintf("v%d", r.SchemaVersion)
			if !r.Current {
				schema += "*"
			}
			fmt.Printf("%-16s  %7s  %6d  %4d  %4d  %s\n",
				r.AgentID, schema, len(r.States), len(r.Observations), len(r.Actions), r.UpdatedAt)
		}
		fmt.Println()
	}

	if len(out.Episodes) == 0 {
		fmt.Fprintln(os.Stderr, "no episodes found")
		return nil
	}
	fmt.Printf("%-10s  %-16s  %5s  %8s  %-8s  %-10s  %s\n",
		"Episode", "Agent", "Steps", "Reward", "Outcome", "Halt", "Started")
	for _, r := range out.Episodes {
		fmt.Printf("%-10s  %-16s  %5d  %8.2f  %-8s  %-10s  %s\n",
			shortID(r.EpisodeID), r.AgentID, r.Steps, r.TotalReward, r.Outcome, r.HaltReason, r.StartedAt)
	}
	return nil
}

// #endregion

// #region steps-mode

type stepRow struct {
	Step            int     `json:"step"`
	Action          string  `json:"action"`
	Observation     string  `json:"observation"`
	Reward          float64 `json:"reward"`
	ReferenceBefore float64 `json:"reference_before"`
	ReferenceAfter  float64 `json:"reference_after"`
	Entropy         float64 `json:"entropy"`
	EFE             float64 `json:"efe"`
	CriticalState   string  `json:"critical_state"`
}

func runStepsMode(st *store.Store, idOrPrefix string) error {
	id, err := resolveEpisode(st, idOrPrefix)
	if err != nil {
		return err
	}
	steps, err := st.ListSteps(id)
	if err != nil {
		return err
	}

	rows := make([]stepRow, len(steps))
	for i, s := range steps {
		rows[i] = stepRow{
			Step:            s.Step,
			Action:          s.Action,
			Observation:     s.Observation,
			Reward:          s.Reward,
			ReferenceBefore: s.ReferenceBefore,
			ReferenceAfter:  s.ReferenceAfter,
			Entropy:         s.Entropy,
			EFE:             s.EFE,
			CriticalState:   s.CriticalState,
		}
	}

	if inspectJSON {
		return printJSON(rows)
	}

	fmt.Printf("Episode: %s\n\n", id)
	fmt.Printf("%4s  %-10s  %-14s  %7s  %15s  %7s  %8s  %s\n",
		"Step", "Action", "Observation", "Reward", "Reference", "Entropy", "EFE", "State")
	for _, r := range rows {
		fmt.Printf("%4d  %-10s  %-14s  %7.2f  %6.3f -> %5.3f  %7.4f  %8.4f  %s\n",
			r.Step, r.Action, r.Observation, r.Reward, r.ReferenceBefore, r.ReferenceAfter,
			r.Entropy, r.EFE, r.CriticalState)
	}
	return nil
}

// resolveEpisode expands a short id printed by the list view.
func resolveEpisode(st *store.Store, idOrPrefix string) (string, error) {
	eps, err := st.ListEpisodes("", -1)
	if err != nil {
		return "", err
	}
	var match string
	for _, e := range eps {
		if e.EpisodeID == idOrPrefix {
			return e.EpisodeID, nil
		}
		if strings.HasPrefix(e.EpisodeID, idOrPrefix) {
			if match != "" {
				return "", fmt.Errorf("episode prefix %q is ambiguous", idOrPrefix)
			}
			match = e.EpisodeID
		}
	}
	if match == "" {
		return "", fmt.Errorf("episode %q not found", idOrPrefix)
	}
	return match, nil
}

// #endregion

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion
