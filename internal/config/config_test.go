package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Verify defaults
	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"WorkloadName", cfg.Workload.Name, "workstation"},
		{"LibvirtSocket", cfg.Workload.LibvirtSocket, "/var/run/libvirt/libvirt-sock"},
		{"GuestChannel", cfg.Guest.Channel, "qga"},
		{"ExecTimeoutSeconds", cfg.Guest.ExecTimeoutSeconds, 10},
		{"ProviderTimeoutSeconds", cfg.Signals.ProviderTimeoutSeconds, 10},
		{"VCPUThreshold", cfg.Signals.VCPU.ThresholdPercent, 15},
		{"GuestGPUThreshold", cfg.Signals.GuestGPU.ThresholdPercent, 10},
		{"GuestInputIdleSeconds", cfg.Signals.GuestInput.IdleSeconds, 900},
		{"HostGPUEnabled", cfg.Signals.HostGPU.Enabled, false},
		{"PollIntervalSeconds", cfg.Idle.PollIntervalSeconds, 60},
		{"IdleThresholdSeconds", cfg.Idle.IdleThresholdSeconds, 1800},
		{"GracePeriodSeconds", cfg.Idle.GracePeriodSeconds, 300},
		{"StalenessFactor", cfg.Idle.StalenessFactor, 3},
		{"HibernateEnabled", cfg.Hibernate.Enabled, true},
		{"HibernateCommand", cfg.Hibernate.Command, "systemctl hibernate"},
		{"HibernateTimeout", cfg.Hibernate.TimeoutSeconds, 120},
		{"StoppedConfirmations", cfg.Hibernate.StoppedConfirmations, 3},
		{"SleepCommand", cfg.Sleep.Command, "systemctl suspend"},
		{"ResumeRaceWindow", cfg.Sleep.ResumeRaceWindowSeconds, 30},
		{"StoreBackend", cfg.Store.Backend, "file"},
		{"APIEnabled", cfg.API.Enabled, false},
		{"LogLevel", cfg.Logging.Level, "info"},
		{"LogFormat", cfg.Logging.Format, "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestValidation_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	errors := cfg.Validate()

	if len(errors) != 0 {
		t.Errorf("Validate() on default config returned errors: %v", errors)
	}
}

func TestValidation_EmptyWorkloadName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workload.Name = ""

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for empty workload name")
	}

	found := false
	for _, err := range errors {
		if err.Path == "workload.name" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Validate() should return error for workload.name field")
	}
}

func TestValidation_InvalidChannel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Guest.Channel = "serial"

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for invalid guest channel")
	}
}

func TestValidation_SSHChannelMissingFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Guest.Channel = ChannelSSH

	errors := cfg.Validate()
	if len(errors) < 3 {
		t.Errorf("Validate() should require ssh_host, ssh_user and ssh_key_file, got %v", errors)
	}

	cfg.Guest.SSHHost = "192.168.122.10"
	cfg.Guest.SSHUser = "doze"
	cfg.Guest.SSHKeyFile = "/etc/doze/id_ed25519"

	if errors := cfg.Validate(); len(errors) != 0 {
		t.Errorf("Validate() on complete ssh config returned errors: %v", errors)
	}
}

func TestValidation_ThresholdOutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
	}{
		{"negative", -1},
		{"too high", 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Signals.VCPU.ThresholdPercent = tt.threshold

			errors := cfg.Validate()
			if len(errors) == 0 {
				t.Errorf("Validate() should return error for vcpu threshold %d", tt.threshold)
			}
		})
	}
}

func TestValidation_GuestInputIdleSecondsTooSmall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Signals.GuestInput.IdleSeconds = 0

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for guest_input idle_seconds < 1")
	}
}

func TestValidation_EnabledWatchersNeedPatterns(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{
			name:   "guest processes",
			mutate: func(c *Config) { c.Signals.GuestProcesses.Enabled = true },
			path:   "signals.guest_processes.patterns",
		},
		{
			name:   "host processes",
			mutate: func(c *Config) { c.Signals.HostProcesses.Enabled = true },
			path:   "signals.host_processes.patterns",
		},
		{
			name:   "host units",
			mutate: func(c *Config) { c.Signals.HostUnits.Enabled = true },
			path:   "signals.host_units.units",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			errors := cfg.Validate()
			found := false
			for _, err := range errors {
				if err.Path == tt.path {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Validate() should return error for %s, got %v", tt.path, errors)
			}
		})
	}
}

func TestValidation_NoSignalsEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Signals.VCPU.Enabled = false
	cfg.Signals.GuestGPU.Enabled = false
	cfg.Signals.GuestInput.Enabled = false
	cfg.Signals.GuestPower.Enabled = false
	cfg.Signals.HostSessions.Enabled = false
	cfg.Signals.HostInhibitors.Enabled = false

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error when no signals are enabled")
	}
}

func TestValidation_PollIntervalTooSmall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Idle.PollIntervalSeconds = 2

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for poll_interval_seconds < 5")
	}
}

func TestValidation_IdleThresholdTooSmall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Idle.IdleThresholdSeconds = 30

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for idle_threshold_seconds < 60")
	}
}

func TestValidation_StalenessFactorTooSmall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Idle.StalenessFactor = 1

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for staleness_factor < 2")
	}
}

func TestValidation_HibernateTimeoutBelowPollInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hibernate.PollIntervalSeconds = 30
	cfg.Hibernate.TimeoutSeconds = 10

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error when hibernate timeout is below poll interval")
	}
}

func TestValidation_HibernateDisabledSkipsChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hibernate.Enabled = false
	cfg.Hibernate.Command = ""
	cfg.Hibernate.StoppedConfirmations = 0

	errors := cfg.Validate()
	if len(errors) != 0 {
		t.Errorf("Validate() should skip hibernate checks when disabled, got %v", errors)
	}
}

func TestValidation_EmptySleepCommand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sleep.Command = ""

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for empty sleep command")
	}
}

func TestValidation_InvalidStoreBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "redis"

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for invalid store backend")
	}
}

func TestValidation_APIEnabledEmptyListen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Enabled = true
	cfg.API.Listen = ""

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for empty api listen address")
	}
}

func TestValidation_InvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "trace"

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for invalid log level")
	}
}

func TestValidation_InvalidLogFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Format = "xml"

	errors := cfg.Validate()
	if len(errors) == 0 {
		t.Error("Validate() should return error for invalid log format")
	}
}

func TestLoadFrom_ValidFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
workload:
  name: gaming-vm
signals:
  vcpu:
    threshold_percent: 20
  guest_gpu:
    enabled: false
idle:
  idle_threshold_seconds: 900
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	// Verify overrides
	if cfg.Workload.Name != "gaming-vm" {
		t.Errorf("Workload.Name = %s, want gaming-vm", cfg.Workload.Name)
	}
	if cfg.Signals.VCPU.ThresholdPercent != 20 {
		t.Errorf("VCPU threshold = %d, want 20", cfg.Signals.VCPU.ThresholdPercent)
	}
	if cfg.Signals.GuestGPU.Enabled {
		t.Error("GuestGPU.Enabled = true, want false (explicit override)")
	}
	if cfg.Idle.IdleThresholdSeconds != 900 {
		t.Errorf("IdleThresholdSeconds = %d, want 900", cfg.Idle.IdleThresholdSeconds)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.Logging.Level)
	}

	// Verify defaults are preserved for unspecified fields
	if cfg.Idle.PollIntervalSeconds != 60 {
		t.Errorf("PollIntervalSeconds = %d, want 60 (default)", cfg.Idle.PollIntervalSeconds)
	}
	if !cfg.Signals.VCPU.Enabled {
		t.Error("VCPU.Enabled = false, want true (default preserved)")
	}
}

func TestLoadFrom_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidContent := `
guest:
  channel: telnet
store:
  backend: redis
`
	if err := os.WriteFile(configPath, []byte(invalidContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadFrom(configPath)
	if err == nil {
		t.Error("LoadFrom() should return error for invalid config")
	}
}

func TestLoadFrom_NonexistentFile(t *testing.T) {
	_, err := LoadFrom("/nonexistent/config.yaml")
	if err == nil {
		t.Error("LoadFrom() should return error for nonexistent file")
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	malformedContent := `
workload:
    name: vm
  invalid_indentation: value
`
	if err := os.WriteFile(configPath, []byte(malformedContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadFrom(configPath)
	if err == nil {
		t.Error("LoadFrom() should return error for malformed YAML")
	}
}

func TestMergeConfigFile_LayeredOverrides(t *testing.T) {
	tmpDir := t.TempDir()

	systemPath := filepath.Join(tmpDir, "system.yaml")
	systemContent := `
workload:
  name: system-vm
idle:
  idle_threshold_seconds: 600
signals:
  host_sessions:
    enabled: false
`
	if err := os.WriteFile(systemPath, []byte(systemContent), 0o600); err != nil {
		t.Fatalf("Failed to write system config: %v", err)
	}

	userPath := filepath.Join(tmpDir, "user.yaml")
	userContent := `
idle:
  idle_threshold_seconds: 1200
`
	if err := os.WriteFile(userPath, []byte(userContent), 0o600); err != nil {
		t.Fatalf("Failed to write user config: %v", err)
	}

	cfg := DefaultConfig()
	if err := mergeConfigFile(&cfg, systemPath); err != nil {
		t.Fatalf("mergeConfigFile(system) error = %v", err)
	}
	if err := mergeConfigFile(&cfg, userPath); err != nil {
		t.Fatalf("mergeConfigFile(user) error = %v", err)
	}

	// User layer wins where set
	if cfg.Idle.IdleThresholdSeconds != 1200 {
		t.Errorf("IdleThresholdSeconds = %d, want 1200 (user layer)", cfg.Idle.IdleThresholdSeconds)
	}
	// System layer survives where the user layer is silent
	if cfg.Workload.Name != "system-vm" {
		t.Errorf("Workload.Name = %s, want system-vm (system layer)", cfg.Workload.Name)
	}
	// Explicit false in a layer is preserved through later merges
	if cfg.Signals.HostSessions.Enabled {
		t.Error("HostSessions.Enabled = true, want false (system layer override)")
	}
}

func TestSystemConfigPath(t *testing.T) {
	path := SystemConfigPath()
	if path == "" {
		t.Error("SystemConfigPath() should not return empty string")
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("SystemConfigPath() basename = %s, want config.yaml", filepath.Base(path))
	}
}

func TestUserConfigPath(t *testing.T) {
	path := UserConfigPath()
	// May be empty if home dir not available
	if path != "" && filepath.Base(path) != "config.yaml" {
		t.Errorf("UserConfigPath() basename = %s, want config.yaml", filepath.Base(path))
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Path:    "idle.poll_interval_seconds",
		Message: "must be at least 5",
	}

	expected := "idle.poll_interval_seconds: must be at least 5"
	if err.Error() != expected {
		t.Errorf("ValidationError.Error() = %s, want %s", err.Error(), expected)
	}
}

func TestFormatValidationErrors_Single(t *testing.T) {
	errors := []ValidationError{
		{Path: "test.field", Message: "error message"},
	}

	result := formatValidationErrors(errors)
	expected := "test.field: error message"
	if result != expected {
		t.Errorf("formatValidationErrors() = %s, want %s", result, expected)
	}
}

func TestFormatValidationErrors_Multiple(t *testing.T) {
	errors := []ValidationError{
		{Path: "field1", Message: "error 1"},
		{Path: "field2", Message: "error 2"},
	}

	result := formatValidationErrors(errors)
	if result == "" {
		t.Error("formatValidationErrors() should not return empty string for multiple errors")
	}
	// Should contain count
	if len(result) < 10 {
		t.Errorf("formatValidationErrors() result too short: %s", result)
	}
}

func TestFormatValidationErrors_Empty(t *testing.T) {
	result := formatValidationErrors([]ValidationError{})
	if result != "" {
		t.Errorf("formatValidationErrors() = %s, want empty string", result)
	}
}
