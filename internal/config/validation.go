package config

import (
	"fmt"
)

const (
	// ChannelQGA identifies the QEMU guest agent channel option.
	ChannelQGA = "qga"
	// ChannelSSH identifies the SSH channel option.
	ChannelSSH = "ssh"

	// StoreFile identifies the JSON file store backend.
	StoreFile = "file"
	// StoreSQLite identifies the SQLite store backend.
	StoreSQLite = "sqlite"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateWorkload()...)
	errors = append(errors, c.validateGuest()...)
	errors = append(errors, c.validateSignals()...)
	errors = append(errors, c.validateIdle()...)
	errors = append(errors, c.validateHibernate()...)
	errors = append(errors, c.validateSleep()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateWorkload() []ValidationError {
	var errors []ValidationError

	if c.Workload.Name == "" {
		errors = append(errors, ValidationError{
			Path:    "workload.name",
			Message: "must name the libvirt domain to manage",
		})
	}

	if c.Workload.LibvirtSocket == "" {
		errors = append(errors, ValidationError{
			Path:    "workload.libvirt_socket",
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateGuest() []ValidationError {
	var errors []ValidationError

	if c.Guest.Channel != ChannelQGA && c.Guest.Channel != ChannelSSH {
		errors = append(errors, ValidationError{
			Path:    "guest.channel",
			Message: fmt.Sprintf("must be '%s' or '%s', got '%s'", ChannelQGA, ChannelSSH, c.Guest.Channel),
		})
	}

	if c.Guest.ExecTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "guest.exec_timeout_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Guest.ExecTimeoutSeconds),
		})
	}

	if c.Guest.Channel == ChannelSSH {
		if c.Guest.SSHHost == "" {
			errors = append(errors, ValidationError{
				Path:    "guest.ssh_host",
				Message: "required when guest.channel is 'ssh'",
			})
		}
		if c.Guest.SSHUser == "" {
			errors = append(errors, ValidationError{
				Path:    "guest.ssh_user",
				Message: "required when guest.channel is 'ssh'",
			})
		}
		if c.Guest.SSHKeyFile == "" {
			errors = append(errors, ValidationError{
				Path:    "guest.ssh_key_file",
				Message: "required when guest.channel is 'ssh'",
			})
		}
		if c.Guest.SSHPort < 1 || c.Guest.SSHPort > 65535 {
			errors = append(errors, ValidationError{
				Path:    "guest.ssh_port",
				Message: fmt.Sprintf("must be between 1 and 65535, got %d", c.Guest.SSHPort),
			})
		}
	}

	if c.Guest.Helper.OS != "linux" && c.Guest.Helper.OS != "windows" {
		errors = append(errors, ValidationError{
			Path:    "guest.helper.os",
			Message: fmt.Sprintf("must be 'linux' or 'windows', got '%s'", c.Guest.Helper.OS),
		})
	}
	if c.Guest.Helper.Path == "" {
		errors = append(errors, ValidationError{
			Path:    "guest.helper.path",
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateSignals() []ValidationError {
	var errors []ValidationError

	if c.Signals.ProviderTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "signals.provider_timeout_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Signals.ProviderTimeoutSeconds),
		})
	}

	errors = append(errors, validatePercent("signals.vcpu.threshold_percent", c.Signals.VCPU.ThresholdPercent)...)
	errors = append(errors, validatePercent("signals.guest_gpu.threshold_percent", c.Signals.GuestGPU.ThresholdPercent)...)
	errors = append(errors, validatePercent("signals.host_gpu.threshold_percent", c.Signals.HostGPU.ThresholdPercent)...)

	if c.Signals.GuestInput.Enabled && c.Signals.GuestInput.IdleSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "signals.guest_input.idle_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Signals.GuestInput.IdleSeconds),
		})
	}

	if c.Signals.GuestGPU.Enabled && c.Signals.GuestGPU.Command == "" {
		errors = append(errors, ValidationError{
			Path:    "signals.guest_gpu.command",
			Message: "must not be empty when enabled",
		})
	}

	if c.Signals.GuestInput.Enabled && c.Signals.GuestInput.Command == "" {
		errors = append(errors, ValidationError{
			Path:    "signals.guest_input.command",
			Message: "must not be empty when enabled",
		})
	}

	if c.Signals.GuestProcesses.Enabled && c.Signals.GuestProcesses.Command == "" {
		errors = append(errors, ValidationError{
			Path:    "signals.guest_processes.command",
			Message: "must not be empty when enabled",
		})
	}

	if c.Signals.GuestPower.Enabled && c.Signals.GuestPower.Command == "" {
		errors = append(errors, ValidationError{
			Path:    "signals.guest_power.command",
			Message: "must not be empty when enabled",
		})
	}

	if c.Signals.GuestProcesses.Enabled && len(c.Signals.GuestProcesses.Patterns) == 0 {
		errors = append(errors, ValidationError{
			Path:    "signals.guest_processes.patterns",
			Message: "must list at least one pattern when enabled",
		})
	}

	if c.Signals.HostProcesses.Enabled && len(c.Signals.HostProcesses.Patterns) == 0 {
		errors = append(errors, ValidationError{
			Path:    "signals.host_processes.patterns",
			Message: "must list at least one pattern when enabled",
		})
	}

	if c.Signals.HostUnits.Enabled && len(c.Signals.HostUnits.Units) == 0 {
		errors = append(errors, ValidationError{
			Path:    "signals.host_units.units",
			Message: "must list at least one unit when enabled",
		})
	}

	if !c.anySignalEnabled() {
		errors = append(errors, ValidationError{
			Path:    "signals",
			Message: "at least one signal must be enabled",
		})
	}

	return errors
}

func (c *Config) anySignalEnabled() bool {
	s := c.Signals
	return s.VCPU.Enabled || s.GuestGPU.Enabled || s.GuestInput.Enabled ||
		s.GuestProcesses.Enabled || s.GuestPower.Enabled || s.HostSessions.Enabled ||
		s.HostInhibitors.Enabled || s.HostProcesses.Enabled || s.HostUnits.Enabled ||
		s.HostGPU.Enabled
}

func (c *Config) validateIdle() []ValidationError {
	var errors []ValidationError

	if c.Idle.PollIntervalSeconds < 5 {
		errors = append(errors, ValidationError{
			Path:    "idle.poll_interval_seconds",
			Message: fmt.Sprintf("must be at least 5, got %d", c.Idle.PollIntervalSeconds),
		})
	}

	if c.Idle.IdleThresholdSeconds < 60 {
		errors = append(errors, ValidationError{
			Path:    "idle.idle_threshold_seconds",
			Message: fmt.Sprintf("must be at least 60, got %d", c.Idle.IdleThresholdSeconds),
		})
	}

	if c.Idle.GracePeriodSeconds < 0 {
		errors = append(errors, ValidationError{
			Path:    "idle.grace_period_seconds",
			Message: fmt.Sprintf("must be non-negative, got %d", c.Idle.GracePeriodSeconds),
		})
	}

	if c.Idle.StalenessFactor < 2 {
		errors = append(errors, ValidationError{
			Path:    "idle.staleness_factor",
			Message: fmt.Sprintf("must be at least 2, got %d", c.Idle.StalenessFactor),
		})
	}

	return errors
}

func (c *Config) validateHibernate() []ValidationError {
	if !c.Hibernate.Enabled {
		return nil
	}

	var errors []ValidationError

	if c.Hibernate.Command == "" {
		errors = append(errors, ValidationError{
			Path:    "hibernate.command",
			Message: "must not be empty when hibernate is enabled",
		})
	}

	if c.Hibernate.ProbeTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "hibernate.probe_timeout_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Hibernate.ProbeTimeoutSeconds),
		})
	}

	if c.Hibernate.PollIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "hibernate.poll_interval_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Hibernate.PollIntervalSeconds),
		})
	}

	if c.Hibernate.TimeoutSeconds < c.Hibernate.PollIntervalSeconds {
		errors = append(errors, ValidationError{
			Path:    "hibernate.timeout_seconds",
			Message: fmt.Sprintf("must be at least poll_interval_seconds (%d), got %d",
				c.Hibernate.PollIntervalSeconds, c.Hibernate.TimeoutSeconds),
		})
	}

	if c.Hibernate.StoppedConfirmations < 1 {
		errors = append(errors, ValidationError{
			Path:    "hibernate.stopped_confirmations",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Hibernate.StoppedConfirmations),
		})
	}

	if c.Hibernate.ShutdownTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "hibernate.shutdown_timeout_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Hibernate.ShutdownTimeoutSeconds),
		})
	}

	return errors
}

func (c *Config) validateSleep() []ValidationError {
	var errors []ValidationError

	if c.Sleep.Command == "" {
		errors = append(errors, ValidationError{
			Path:    "sleep.command",
			Message: "must not be empty",
		})
	}

	if c.Sleep.ResumeRaceWindowSeconds < 0 {
		errors = append(errors, ValidationError{
			Path:    "sleep.resume_race_window_seconds",
			Message: fmt.Sprintf("must be non-negative, got %d", c.Sleep.ResumeRaceWindowSeconds),
		})
	}

	if c.Sleep.StabilizeDelaySeconds < 0 {
		errors = append(errors, ValidationError{
			Path:    "sleep.stabilize_delay_seconds",
			Message: fmt.Sprintf("must be non-negative, got %d", c.Sleep.StabilizeDelaySeconds),
		})
	}

	return errors
}

func (c *Config) validateStore() []ValidationError {
	if c.Store.Backend == StoreFile || c.Store.Backend == StoreSQLite {
		return nil
	}

	return []ValidationError{{
		Path:    "store.backend",
		Message: fmt.Sprintf("must be '%s' or '%s', got '%s'", StoreFile, StoreSQLite, c.Store.Backend),
	}}
}

func (c *Config) validateAPI() []ValidationError {
	if !c.API.Enabled {
		return nil
	}

	if c.API.Listen == "" {
		return []ValidationError{{
			Path:    "api.listen",
			Message: "must not be empty when api is enabled",
		}}
	}

	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validLevels, c.Logging.Level),
		})
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Logging.Format) {
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, c.Logging.Format),
		})
	}

	return errors
}

func validatePercent(path string, value int) []ValidationError {
	if value >= 0 && value <= 100 {
		return nil
	}
	return []ValidationError{{
		Path:    path,
		Message: fmt.Sprintf("must be between 0 and 100, got %d", value),
	}}
}

// contains checks if a string is in a slice
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
