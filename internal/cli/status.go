package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the agent's last published state",
	Long: `Report from the persisted records: the last evaluation snapshot, the
current idle tracking, the last wake, and any pending hibernation
intent. Reads only; no signal is polled and nothing is consumed.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newInteractiveLogger()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now()

	snapshot, found, err := store.LoadSnapshot()
	switch {
	case err != nil:
		fmt.Printf("Last evaluation: unreadable (%v)\n", err)
	case !found:
		fmt.Println("Last evaluation: none (is the agent running?)")
	default:
		fmt.Printf("Last evaluation: %s (%s ago)\n",
			snapshot.CheckedAt.Format(time.RFC3339), formatDuration(now.Sub(snapshot.CheckedAt)))
		fmt.Printf("Verdict:  %s\n", snapshot.Verdict)
		for _, reason := range snapshot.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
		fmt.Printf("Decision: %s\n", snapshot.Decision)
		if !snapshot.IdleSince.IsZero() {
			fmt.Printf("Idle for: %ds (threshold %ds)\n",
				snapshot.IdleForSeconds, snapshot.ThresholdSeconds)
		}
		if snapshot.GraceUntil.After(now) {
			fmt.Printf("Grace:    suspend suppressed until %s\n",
				snapshot.GraceUntil.Format(time.RFC3339))
		}

		if len(snapshot.Signals) > 0 {
			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNAL\tSTATUS\tVALUE\tTHRESHOLD\tDETAIL")
			for _, s := range snapshot.Signals {
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%s\n",
					s.Name, s.Status, s.Value, s.Threshold, s.Detail)
			}
			_ = w.Flush()
		}
	}

	fmt.Println()

	tracking, found, err := store.LoadIdleTracking()
	switch {
	case err != nil:
		fmt.Printf("Idle tracking: unreadable (%v)\n", err)
	case !found:
		fmt.Println("Idle tracking: none (workload active or agent not running)")
	default:
		fmt.Printf("Idle tracking: idle since %s (%s)\n",
			tracking.IdleSince.Format(time.RFC3339), formatDuration(now.Sub(tracking.IdleSince)))
	}

	wake, found, err := store.LoadWakeRecord()
	switch {
	case err != nil:
		fmt.Printf("Last wake:     unreadable (%v)\n", err)
	case !found:
		fmt.Println("Last wake:     none recorded")
	default:
		fmt.Printf("Last wake:     %s (%s ago, transition %s)\n",
			wake.WokeAt.Format(time.RFC3339), formatDuration(now.Sub(wake.WokeAt)), wake.TransitionID)
	}

	intent, found, err := store.LoadHibernationIntent()
	switch {
	case err != nil:
		fmt.Printf("Intent:        unreadable (%v)\n", err)
	case !found:
		fmt.Println("Intent:        none pending")
	default:
		fmt.Printf("Intent:        %s (recorded %s, transition %s; not yet consumed by a post-wake hook)\n",
			intent.Outcome, intent.RecordedAt.Format(time.RFC3339), intent.TransitionID)
	}

	return nil
}

// formatDuration renders a duration as compact h/m/s text.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
