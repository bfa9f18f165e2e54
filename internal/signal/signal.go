// Package signal turns the heterogeneous activity sources (hypervisor
// counters, guest commands, host introspection) into uniform readings
// and folds them into a single idle/active verdict per polling cycle.
package signal

import (
	"context"
	"fmt"

	"doze/internal/clock"
	"doze/internal/config"
	"doze/internal/guest"
	"doze/internal/hypervisor"
	"doze/internal/logging"
)

// Status classifies one signal reading.
type Status string

const (
	// StatusActive means the signal observed workload or user activity.
	StatusActive Status = "active"
	// StatusIdle means the signal observed no activity.
	StatusIdle Status = "idle"
	// StatusUnavailable means the provider could not be read. An
	// unavailable signal is excluded from the verdict; it never counts
	// as active or idle.
	StatusUnavailable Status = "unavailable"
)

// Signal names, used in readings, reasons and logs.
const (
	NameVCPU           = "vcpu"
	NameGuestGPU       = "guest-gpu"
	NameGuestInput     = "guest-input"
	NameGuestProcesses = "guest-processes"
	NameGuestPower     = "guest-power"
	NameHostSessions   = "host-sessions"
	NameHostInhibitors = "host-inhibitors"
	NameHostProcesses  = "host-processes"
	NameHostUnits      = "host-units"
	NameHostGPU        = "host-gpu"
)

// Reading is one provider observation. Value and Threshold carry the
// provider's native unit (percent, seconds, count); Detail is free text
// for logs and status output.
type Reading struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	Value     float64 `json:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

// Signal is one activity source. Implementations map their own failures
// to an Unavailable reading instead of returning errors, so a broken
// provider can never block or skew the verdict.
type Signal interface {
	// Name identifies the signal.
	Name() string
	// Poll takes one reading. ctx carries the per-provider deadline.
	Poll(ctx context.Context) Reading
}

// active builds an Active reading.
func active(name string, value, threshold float64, detail string) Reading {
	return Reading{Name: name, Status: StatusActive, Value: value, Threshold: threshold, Detail: detail}
}

// idle builds an Idle reading.
func idle(name string, value, threshold float64, detail string) Reading {
	return Reading{Name: name, Status: StatusIdle, Value: value, Threshold: threshold, Detail: detail}
}

// unavailable builds an Unavailable reading carrying the failure cause.
func unavailable(name string, err error) Reading {
	return Reading{Name: name, Status: StatusUnavailable, Detail: err.Error()}
}

// unavailablef builds an Unavailable reading from a format string.
func unavailablef(name, format string, args ...interface{}) Reading {
	return Reading{Name: name, Status: StatusUnavailable, Detail: fmt.Sprintf(format, args...)}
}

// FromConfig assembles the enabled providers in verdict order. Disabled
// signals are never constructed, so they cost nothing per cycle.
func FromConfig(cfg config.Config, ctrl hypervisor.Controller, ch guest.Channel, clk clock.Clock, logger *logging.Logger) []Signal {
	signals := make([]Signal, 0, 10)

	if cfg.Signals.VCPU.Enabled {
		signals = append(signals, NewVCPUSignal(cfg.Signals.VCPU, ctrl, clk))
	}
	if cfg.Signals.GuestGPU.Enabled {
		signals = append(signals, NewGuestGPUSignal(cfg.Signals.GuestGPU, ch))
	}
	if cfg.Signals.GuestInput.Enabled {
		signals = append(signals, NewGuestInputSignal(cfg.Signals.GuestInput, ch))
	}
	if cfg.Signals.GuestProcesses.Enabled {
		signals = append(signals, NewGuestProcessesSignal(cfg.Signals.GuestProcesses, ch))
	}
	if cfg.Signals.GuestPower.Enabled {
		signals = append(signals, NewGuestPowerSignal(cfg.Signals.GuestPower, ch))
	}
	if cfg.Signals.HostSessions.Enabled {
		signals = append(signals, NewHostSessionsSignal())
	}
	if cfg.Signals.HostInhibitors.Enabled {
		signals = append(signals, NewHostInhibitorsSignal(cfg.Signals.HostInhibitors))
	}
	if cfg.Signals.HostProcesses.Enabled {
		signals = append(signals, NewHostProcessesSignal(cfg.Signals.HostProcesses))
	}
	if cfg.Signals.HostUnits.Enabled {
		signals = append(signals, NewHostUnitsSignal(cfg.Signals.HostUnits))
	}
	if cfg.Signals.HostGPU.Enabled {
		signals = append(signals, NewHostGPUSignal(cfg.Signals.HostGPU, logger))
	}

	return signals
}
