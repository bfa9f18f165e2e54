package config

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Workload: WorkloadConfig{
			Name:          "workstation",
			LibvirtSocket: "/var/run/libvirt/libvirt-sock",
		},
		Guest: GuestConfig{
			Channel:            "qga",
			ExecTimeoutSeconds: 10,
			SSHPort:            22,
			Helper: GuestHelperConfig{
				OS:   "linux",
				Path: "/usr/local/bin/doze-guest-probe",
			},
		},
		Signals: SignalsConfig{
			ProviderTimeoutSeconds: 10,
			VCPU: VCPUSignalConfig{
				Enabled:          true,
				ThresholdPercent: 15,
			},
			GuestGPU: GuestGPUSignalConfig{
				Enabled:          true,
				ThresholdPercent: 10,
				Command:          "nvidia-smi --query-gpu=utilization.gpu --format=csv,noheader,nounits",
			},
			GuestInput: GuestInputSignalConfig{
				Enabled:     true,
				IdleSeconds: 900, // 15 minutes
				Command:     "doze-guest-probe input-idle-ms",
			},
			GuestProcesses: GuestProcessesSignalConfig{
				Enabled: false,
				Command: "ps -eo comm=",
			},
			GuestPower: GuestPowerSignalConfig{
				Enabled: true,
				Command: "systemd-inhibit --list --no-legend",
			},
			HostSessions: HostSessionsSignalConfig{
				Enabled: true,
			},
			HostInhibitors: HostInhibitorsSignalConfig{
				Enabled: true,
				What:    []string{"sleep", "shutdown"},
			},
			HostProcesses: HostProcessesSignalConfig{
				Enabled: false,
			},
			HostUnits: HostUnitsSignalConfig{
				Enabled: false,
			},
			HostGPU: HostGPUSignalConfig{
				Enabled:          false,
				ThresholdPercent: 10,
			},
		},
		Idle: IdleConfig{
			PollIntervalSeconds:  60,
			IdleThresholdSeconds: 1800, // 30 minutes
			GracePeriodSeconds:   300,  // 5 minutes
			StalenessFactor:      3,
		},
		Hibernate: HibernateConfig{
			Enabled:                true,
			Command:                "systemctl hibernate",
			ProbeTimeoutSeconds:    3,
			PollIntervalSeconds:    5,
			TimeoutSeconds:         120,
			StoppedConfirmations:   3,
			ShutdownTimeoutSeconds: 60,
		},
		Sleep: SleepConfig{
			Command:                 "systemctl suspend",
			DryRun:                  false,
			ResumeRaceWindowSeconds: 30,
			StabilizeDelaySeconds:   5,
		},
		WoL: WoLConfig{
			Interface:  "",
			ArmOnStart: false,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9772",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
