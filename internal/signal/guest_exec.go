package signal

import (
	"context"
	"strings"

	"doze/internal/guest"
)

// guestExec runs a command through the guest channel and returns its
// stdout. Transport failures and non-zero exits both come back as an
// Unavailable reading with ok=false; a probe command that cannot run
// tells us nothing about activity.
func guestExec(ctx context.Context, ch guest.Channel, name, command string) (string, Reading, bool) {
	res, err := ch.Exec(ctx, command)
	if err != nil {
		return "", unavailable(name, err), false
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(res.Stdout)
		}
		return "", unavailablef(name, "command exited %d: %s", res.ExitCode, detail), false
	}
	return res.Stdout, Reading{}, true
}

// nonBlankLines splits output into trimmed, non-empty lines.
func nonBlankLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// matchAny reports whether s contains any of the patterns,
// case-insensitively.
func matchAny(s string, patterns []string) bool {
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
