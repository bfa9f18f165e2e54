package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"doze/internal/clock"
	"doze/internal/signal"
)

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the evaluation as JSON")
	rootCmd.AddCommand(checkCmd)
}

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate all activity signals once",
	Long: `Poll every configured signal once and print the verdict with the
per-signal readings. Exits 0 when the system is idle, 1 when active.

The check is read-only: it does not advance idle tracking, so running it
never delays or hastens an automatic suspend.`,
	RunE: runCheck,
}

// checkResult is the machine-readable shape of one evaluation.
type checkResult struct {
	CheckedAt time.Time        `json:"checked_at"`
	Verdict   string           `json:"verdict"`
	Reasons   []string         `json:"reasons,omitempty"`
	Signals   []signal.Reading `json:"signals"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newInteractiveLogger()

	ctrl, ch, err := connectWorkload(cfg, logger)
	if err != nil {
		return err
	}

	// The wake record only matters for clamping the guest input counter;
	// a missing or unreadable store degrades to no clamping.
	sinceWake := time.Duration(-1)
	if store, serr := openStore(cfg, logger); serr == nil {
		if rec, found, lerr := store.LoadWakeRecord(); lerr == nil && found {
			sinceWake = time.Since(rec.WokeAt)
		}
		_ = store.Close()
	}

	signals := signal.FromConfig(cfg, ctrl, ch, clock.Real(), logger)
	aggregator := signal.NewAggregator(signals, cfg.Signals, logger)
	evaluation := aggregator.Evaluate(context.Background(), sinceWake)
	_ = ctrl.Close()

	if checkJSON {
		if err := printCheckJSON(evaluation); err != nil {
			return err
		}
	} else {
		printCheckText(evaluation)
	}

	if !evaluation.Idle() {
		os.Exit(1)
	}
	return nil
}

func printCheckJSON(evaluation signal.Evaluation) error {
	result := checkResult{
		CheckedAt: time.Now().UTC(),
		Verdict:   string(evaluation.Verdict),
		Reasons:   evaluation.Reasons,
		Signals:   evaluation.Readings,
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printCheckText(evaluation signal.Evaluation) {
	fmt.Printf("Verdict: %s\n", evaluation.Verdict)
	for _, reason := range evaluation.Reasons {
		fmt.Printf("  - %s\n", reason)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNAL\tSTATUS\tVALUE\tTHRESHOLD\tDETAIL")
	for _, r := range evaluation.Readings {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%s\n",
			r.Name, r.Status, r.Value, r.Threshold, r.Detail)
	}
	_ = w.Flush()
}
