// Package guesthelper installs the in-guest probe that the guest-input
// signal polls. The probe is a single script pushed over the guest
// channel, so the host never needs guest credentials beyond the channel
// it already has. Scripts are embedded at compile time; one flavor per
// guest OS.
package guesthelper

import (
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"doze/internal/config"
	"doze/internal/guest"
	"doze/internal/logging"
)

//go:embed scripts/doze-guest-probe.sh scripts/doze-guest-probe.ps1
var scripts embed.FS

const (
	linuxScript   = "scripts/doze-guest-probe.sh"
	windowsScript = "scripts/doze-guest-probe.ps1"
)

// Installer pushes and removes the probe through the guest channel.
type Installer struct {
	cfg    config.GuestHelperConfig
	ch     guest.Channel
	logger *logging.Logger
}

// NewInstaller creates an installer for the configured guest.
func NewInstaller(cfg config.GuestConfig, ch guest.Channel, logger *logging.Logger) *Installer {
	return &Installer{
		cfg:    cfg.Helper,
		ch:     ch,
		logger: logger,
	}
}

// Install writes the probe script into the guest and runs it once. A
// probe that installs but cannot answer is reported as a warning only:
// some idle sources need a logged-in desktop session.
func (i *Installer) Install(ctx context.Context) error {
	script, err := scriptFor(i.cfg.OS)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(script)
	result, err := i.ch.Exec(ctx, installCommand(i.cfg.OS, i.cfg.Path, encoded))
	if err != nil {
		return fmt.Errorf("install probe: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("install probe: command exited %d: %s", result.ExitCode, firstLine(result.Stderr))
	}

	i.logger.Info("guesthelper.installed", "Probe installed in guest", map[string]interface{}{
		"path":       i.cfg.Path,
		"os":         i.cfg.OS,
		"size_bytes": len(script),
	})

	if err := i.verify(ctx); err != nil {
		i.logger.Warn("guesthelper.verify.failed", "Probe installed but did not answer", map[string]interface{}{
			"path":  i.cfg.Path,
			"error": err.Error(),
		})
	}
	return nil
}

// Uninstall removes the probe from the guest.
func (i *Installer) Uninstall(ctx context.Context) error {
	result, err := i.ch.Exec(ctx, removeCommand(i.cfg.OS, i.cfg.Path))
	if err != nil {
		return fmt.Errorf("remove probe: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("remove probe: command exited %d: %s", result.ExitCode, firstLine(result.Stderr))
	}

	i.logger.Info("guesthelper.removed", "Probe removed from guest", map[string]interface{}{
		"path": i.cfg.Path,
	})
	return nil
}

// verify runs the freshly installed probe and checks it prints a
// millisecond count.
func (i *Installer) verify(ctx context.Context) error {
	result, err := i.ch.Exec(ctx, probeCommand(i.cfg.OS, i.cfg.Path))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("probe exited %d: %s", result.ExitCode, firstLine(result.Stderr))
	}

	fields := strings.Fields(result.Stdout)
	if len(fields) == 0 {
		return fmt.Errorf("probe printed nothing, want milliseconds")
	}
	if _, err := strconv.ParseInt(fields[0], 10, 64); err != nil {
		return fmt.Errorf("probe printed %q, want milliseconds", fields[0])
	}
	return nil
}

func scriptFor(osName string) ([]byte, error) {
	switch osName {
	case "windows":
		return scripts.ReadFile(windowsScript)
	case "linux", "":
		return scripts.ReadFile(linuxScript)
	default:
		return nil, fmt.Errorf("unknown guest os %q", osName)
	}
}

func installCommand(osName, path, encoded string) string {
	if osName == "windows" {
		return fmt.Sprintf(`powershell -NoProfile -Command "[IO.File]::WriteAllBytes('%s', [Convert]::FromBase64String('%s'))"`, path, encoded)
	}
	return fmt.Sprintf("printf '%%s' '%s' | base64 -d > '%s' && chmod 0755 '%s'", encoded, path, path)
}

func probeCommand(osName, path string) string {
	if osName == "windows" {
		return fmt.Sprintf(`powershell -NoProfile -ExecutionPolicy Bypass -File '%s' input-idle-ms`, path)
	}
	return fmt.Sprintf("'%s' input-idle-ms", path)
}

func removeCommand(osName, path string) string {
	if osName == "windows" {
		return fmt.Sprintf(`powershell -NoProfile -Command "Remove-Item -Force '%s'"`, path)
	}
	return fmt.Sprintf("rm -f '%s'", path)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
