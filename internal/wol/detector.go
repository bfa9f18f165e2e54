package wol

import (
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strings"

	"doze/internal/logging"
)

var (
	supportsPattern = regexp.MustCompile(`Supports Wake-on:\s*(\S+)`)
	currentPattern  = regexp.MustCompile(`^\s*Wake-on:\s*(\w+)`)
)

// Status is the Wake-on-LAN readiness of one interface.
type Status struct {
	Interface string `json:"interface"`
	MAC       string `json:"mac"`
	// Supported means the NIC advertises at least one wake mode.
	Supported bool `json:"supported"`
	// Enabled means magic packet wake ("g") is currently armed.
	Enabled bool `json:"enabled"`
	// Modes lists the advertised wake modes (p, u, m, b, a, g, d).
	Modes       []string `json:"modes"`
	CurrentMode string   `json:"current_mode"`
	// ErrorMessage explains why detection fell short, if it did.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Detector reads and arms Wake-on-LAN state through ethtool.
type Detector struct {
	logger *logging.Logger

	run      func(name string, args ...string) ([]byte, error)
	lookPath func(file string) (string, error)
}

// NewDetector creates a detector.
func NewDetector(logger *logging.Logger) *Detector {
	return &Detector{
		logger: logger,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
		lookPath: exec.LookPath,
	}
}

// Detect reports the Wake-on-LAN readiness of an interface. Failures
// land in Status.ErrorMessage rather than an error: callers treat a
// half-answered status the same way as a disarmed one.
func (d *Detector) Detect(iface string) Status {
	status := Status{
		Interface:   iface,
		Modes:       []string{},
		CurrentMode: "d",
	}

	netIface, err := net.InterfaceByName(iface)
	if err != nil {
		status.ErrorMessage = fmt.Sprintf("interface not found: %v", err)
		d.logger.Warn("wol.detect.interface_not_found", "Interface not found", map[string]interface{}{
			"interface": iface,
			"error":     err.Error(),
		})
		return status
	}
	status.MAC = netIface.HardwareAddr.String()

	if _, err := d.lookPath("ethtool"); err != nil {
		status.ErrorMessage = "ethtool not found in PATH"
		d.logger.Warn("wol.detect.ethtool_missing", "ethtool not available", map[string]interface{}{
			"interface": iface,
		})
		return status
	}

	output, err := d.run("ethtool", iface)
	if err != nil {
		status.ErrorMessage = fmt.Sprintf("ethtool failed: %v", err)
		d.logger.Warn("wol.detect.ethtool_failed", "ethtool command failed", map[string]interface{}{
			"interface": iface,
			"error":     err.Error(),
		})
		return status
	}

	parseEthtoolOutput(string(output), &status)

	d.logger.Debug("wol.detect.done", "Wake-on-LAN state read", map[string]interface{}{
		"interface":    iface,
		"supported":    status.Supported,
		"enabled":      status.Enabled,
		"current_mode": status.CurrentMode,
	})
	return status
}

// Arm enables magic packet wake on the interface.
func (d *Detector) Arm(iface string) error {
	return d.setMode(iface, "g")
}

// Disarm disables Wake-on-LAN on the interface.
func (d *Detector) Disarm(iface string) error {
	return d.setMode(iface, "d")
}

func (d *Detector) setMode(iface, mode string) error {
	if _, err := d.lookPath("ethtool"); err != nil {
		return fmt.Errorf("ethtool not found: %w", err)
	}

	output, err := d.run("ethtool", "-s", iface, "wol", mode)
	if err != nil {
		d.logger.Error("wol.mode.failed", "Could not set Wake-on-LAN mode", map[string]interface{}{
			"interface": iface,
			"mode":      mode,
			"error":     err.Error(),
			"output":    strings.TrimSpace(string(output)),
		})
		return fmt.Errorf("set wol mode %s on %s: %w (output: %s)", mode, iface, err, strings.TrimSpace(string(output)))
	}

	d.logger.Info("wol.mode.applied", "Wake-on-LAN mode applied", map[string]interface{}{
		"interface": iface,
		"mode":      mode,
	})
	return nil
}

// DefaultInterface picks the first up, non-loopback interface carrying
// an IPv4 address.
func (d *Detector) DefaultInterface() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list network interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.To4() != nil {
				return iface.Name, nil
			}
		}
	}
	return "", fmt.Errorf("no suitable network interface found")
}

// parseEthtoolOutput extracts wake mode information from ethtool's
// interface report.
func parseEthtoolOutput(output string, status *Status) {
	for _, line := range strings.Split(output, "\n") {
		if m := supportsPattern.FindStringSubmatch(line); m != nil {
			status.Modes = splitModes(m[1])
			// A NIC advertising only "d" cannot wake on anything.
			status.Supported = len(status.Modes) > 0 && !(len(status.Modes) == 1 && status.Modes[0] == "d")
			continue
		}
		if m := currentPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			status.CurrentMode = m[1]
			// Multiple modes can be armed at once ("ug"); magic packet
			// anywhere in the set counts.
			status.Enabled = strings.Contains(status.CurrentMode, "g")
		}
	}
}

func splitModes(modes string) []string {
	result := []string{}
	for _, r := range modes {
		if r != ' ' {
			result = append(result, string(r))
		}
	}
	return result
}
