package config

// Config represents the complete doze configuration
type Config struct {
	Workload  WorkloadConfig  `yaml:"workload"`
	Guest     GuestConfig     `yaml:"guest"`
	Signals   SignalsConfig   `yaml:"signals"`
	Idle      IdleConfig      `yaml:"idle"`
	Hibernate HibernateConfig `yaml:"hibernate"`
	Sleep     SleepConfig     `yaml:"sleep"`
	WoL       WoLConfig       `yaml:"wol"`
	Store     StoreConfig     `yaml:"store"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WorkloadConfig identifies the guest VM under management
type WorkloadConfig struct {
	// Name is the libvirt domain name of the managed VM.
	Name string `yaml:"name"`
	// LibvirtSocket is the local libvirtd socket path.
	LibvirtSocket string `yaml:"libvirt_socket"`
}

// GuestConfig configures the command channel into the guest
type GuestConfig struct {
	// Channel selects how commands reach the guest: "qga" talks to the
	// QEMU guest agent through libvirt, "ssh" connects directly.
	Channel            string `yaml:"channel"`
	ExecTimeoutSeconds int    `yaml:"exec_timeout_seconds"`

	SSHHost    string `yaml:"ssh_host"`
	SSHPort    int    `yaml:"ssh_port"`
	SSHUser    string `yaml:"ssh_user"`
	SSHKeyFile string `yaml:"ssh_key_file"`

	// Helper locates the in-guest probe managed by
	// `doze guest-helper install`.
	Helper GuestHelperConfig `yaml:"helper"`
}

// GuestHelperConfig locates the in-guest probe script
type GuestHelperConfig struct {
	// OS selects the script flavor: "linux" or "windows".
	OS string `yaml:"os"`
	// Path is the install destination inside the guest.
	Path string `yaml:"path"`
}

// SignalsConfig holds per-provider settings
type SignalsConfig struct {
	// ProviderTimeoutSeconds bounds every provider poll.
	ProviderTimeoutSeconds int `yaml:"provider_timeout_seconds"`

	VCPU           VCPUSignalConfig           `yaml:"vcpu"`
	GuestGPU       GuestGPUSignalConfig       `yaml:"guest_gpu"`
	GuestInput     GuestInputSignalConfig     `yaml:"guest_input"`
	GuestProcesses GuestProcessesSignalConfig `yaml:"guest_processes"`
	GuestPower     GuestPowerSignalConfig     `yaml:"guest_power"`
	HostSessions   HostSessionsSignalConfig   `yaml:"host_sessions"`
	HostInhibitors HostInhibitorsSignalConfig `yaml:"host_inhibitors"`
	HostProcesses  HostProcessesSignalConfig  `yaml:"host_processes"`
	HostUnits      HostUnitsSignalConfig      `yaml:"host_units"`
	HostGPU        HostGPUSignalConfig        `yaml:"host_gpu"`
}

// VCPUSignalConfig configures guest vCPU utilization sampling
type VCPUSignalConfig struct {
	Enabled          bool `yaml:"enabled"`
	ThresholdPercent int  `yaml:"threshold_percent"`
}

// GuestGPUSignalConfig configures GPU utilization sampling inside the guest
type GuestGPUSignalConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ThresholdPercent int    `yaml:"threshold_percent"`
	Command          string `yaml:"command"`
}

// GuestInputSignalConfig configures guest input idle time
type GuestInputSignalConfig struct {
	Enabled     bool `yaml:"enabled"`
	IdleSeconds int  `yaml:"idle_seconds"`
	// Command must print milliseconds since the last user input.
	Command string `yaml:"command"`
}

// GuestProcessesSignalConfig watches for named processes inside the guest
type GuestProcessesSignalConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
	// Command must print one process name per line.
	Command string `yaml:"command"`
}

// GuestPowerSignalConfig configures the guest power-request signal
type GuestPowerSignalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
	// Patterns filter the command output; with no patterns any
	// non-blank line counts as an active power request.
	Patterns []string `yaml:"patterns"`
}

// HostSessionsSignalConfig watches interactive login sessions on the host
type HostSessionsSignalConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HostInhibitorsSignalConfig watches systemd sleep inhibitor locks
type HostInhibitorsSignalConfig struct {
	Enabled bool `yaml:"enabled"`
	// What lists the inhibitor operations that count as activity.
	What []string `yaml:"what"`
	// Ignore drops inhibitors whose "who" matches, so tools that hold a
	// permanent lock do not pin the host awake.
	Ignore []string `yaml:"ignore"`
}

// HostProcessesSignalConfig watches for named processes on the host
type HostProcessesSignalConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

// HostUnitsSignalConfig watches systemd units on the host
type HostUnitsSignalConfig struct {
	Enabled bool     `yaml:"enabled"`
	Units   []string `yaml:"units"`
}

// HostGPUSignalConfig configures host-side GPU utilization sampling.
// Only meaningful when the host retains a GPU that is not passed through.
type HostGPUSignalConfig struct {
	Enabled          bool `yaml:"enabled"`
	ThresholdPercent int  `yaml:"threshold_percent"`
}

// IdleConfig governs the idle decision state machine
type IdleConfig struct {
	PollIntervalSeconds  int `yaml:"poll_interval_seconds"`
	IdleThresholdSeconds int `yaml:"idle_threshold_seconds"`
	GracePeriodSeconds   int `yaml:"grace_period_seconds"`
	// StalenessFactor marks a persisted idle-since record stale when it
	// is older than StalenessFactor * PollIntervalSeconds.
	StalenessFactor int `yaml:"staleness_factor"`
}

// HibernateConfig governs guest hibernation before host sleep
type HibernateConfig struct {
	Enabled bool `yaml:"enabled"`
	// Command is executed inside the guest to initiate hibernation.
	Command                string `yaml:"command"`
	ProbeTimeoutSeconds    int    `yaml:"probe_timeout_seconds"`
	PollIntervalSeconds    int    `yaml:"poll_interval_seconds"`
	TimeoutSeconds         int    `yaml:"timeout_seconds"`
	StoppedConfirmations   int    `yaml:"stopped_confirmations"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// SleepConfig governs host suspension and wake handling
type SleepConfig struct {
	// Command suspends the host once pre-sleep preparation finishes.
	Command                 string `yaml:"command"`
	DryRun                  bool   `yaml:"dry_run"`
	ResumeRaceWindowSeconds int    `yaml:"resume_race_window_seconds"`
	StabilizeDelaySeconds   int    `yaml:"stabilize_delay_seconds"`
}

// WoLConfig controls Wake-on-LAN readiness handling at agent startup
type WoLConfig struct {
	// Interface is the NIC whose wake capability is checked and armed.
	// Empty selects the first routable interface automatically.
	Interface string `yaml:"interface"`
	// ArmOnStart enables magic packet wake on the interface when the
	// agent starts, so a suspended host stays reachable.
	ArmOnStart bool `yaml:"arm_on_start"`
}

// StoreConfig selects the state persistence backend
type StoreConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `yaml:"backend"`
}

// APIConfig configures the local status endpoint
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File, when set, redirects agent logs from stderr to this path.
	File string `yaml:"file"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
