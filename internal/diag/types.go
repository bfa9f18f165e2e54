// Package diag builds a support bundle: a ZIP with the effective
// configuration (secrets redacted), the persisted state records, a log
// tail and the wake readiness, plus a manifest with checksums. Operators
// attach the bundle to bug reports instead of hand-collecting files.
package diag

import (
	"time"

	"doze/internal/config"
)

// Manifest describes the bundle contents.
type Manifest struct {
	Timestamp   string         `json:"timestamp"`
	Host        string         `json:"host"`
	DozeVersion string         `json:"doze_version"`
	Files       []ManifestFile `json:"files"`
}

// ManifestFile is one bundle entry with its checksum.
type ManifestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Config selects what goes into the bundle.
type Config struct {
	// OutputPath is where the ZIP is written.
	OutputPath string
	// ConfigPaths are the candidate configuration files; missing ones
	// are skipped, present ones are redacted into the bundle.
	ConfigPaths []string
	// LogFile is the agent log file. Empty means logs go to the journal
	// and are not bundled.
	LogFile string
	// WoLInterface is the NIC whose wake status is recorded; empty
	// auto-detects.
	WoLInterface string
	// Domain is the managed libvirt domain name, recorded in the
	// system info.
	Domain string

	IncludeLogs   bool
	IncludeConfig bool
	IncludeState  bool

	Version string
}

// NewConfig returns the default bundle configuration.
func NewConfig(version string) *Config {
	return &Config{
		OutputPath:    defaultOutputPath(),
		ConfigPaths:   []string{config.SystemConfigPath(), config.UserConfigPath()},
		IncludeLogs:   true,
		IncludeConfig: true,
		IncludeState:  true,
		Version:       version,
	}
}

func defaultOutputPath() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	return "doze-diag-" + timestamp + ".zip"
}
