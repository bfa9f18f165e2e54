// Package cli implements the doze command-line interface using Cobra.
// One binary carries every entry mode: the long-running agent, the
// sleep/wake hooks, and the one-shot inspection commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exitConfig is EX_CONFIG from sysexits.h. An unusable configuration is
// the one fatal condition; everything past validation degrades and keeps
// running.
const exitConfig = 78

var rootCmd = &cobra.Command{
	Use:   "doze",
	Short: "doze — idle-aware sleep manager for a passthrough-VM host",
	Long: `doze watches a libvirt workload VM and its host for activity, suspends
the host once everything has been idle long enough, and coordinates
guest hibernation around the host's sleep/wake transitions.

The agent runs under systemd; the hook subcommands are invoked from a
system-sleep script so the guest is parked before the host suspends and
restored after it resumes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
