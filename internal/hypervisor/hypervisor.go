// Package hypervisor wraps the libvirt control plane behind a small
// interface so signal providers and the sleep orchestrator never touch
// the RPC client directly.
package hypervisor

import (
	"errors"

	"github.com/digitalocean/go-libvirt"
)

// ErrNoAgent marks agent commands that failed because no guest agent
// answered.
var ErrNoAgent = errors.New("guest agent unavailable")

// State is the simplified domain state doze acts on.
type State string

const (
	// StateRunning means the domain is executing.
	StateRunning State = "running"
	// StateStopped means the domain is cleanly shut off. A hibernated
	// guest reports this state once its image is written out.
	StateStopped State = "stopped"
	// StateOther covers paused, crashed, pmsuspended and transitional
	// states. None of them count as a confirmed stop.
	StateOther State = "other"
)

// Info captures the scheduling counters used for vCPU utilization
// sampling.
type Info struct {
	State State
	// VCPUs is the number of virtual CPUs allocated to the domain.
	VCPUs uint
	// CPUTimeNanos is cumulative CPU time consumed by the domain.
	CPUTimeNanos uint64
	// MemoryKB is the current memory balloon size.
	MemoryKB uint64
}

// Controller is the hypervisor surface doze needs: observe the managed
// domain, start and stop it, and pass commands to its guest agent.
//
// Methods block for the duration of the underlying RPC; the client has
// no context support, so callers bound waiting with their own deadlines.
type Controller interface {
	// State reports the current domain state.
	State() (State, error)
	// Info reports state plus scheduling counters.
	Info() (Info, error)
	// Start boots the domain.
	Start() error
	// Shutdown requests a graceful guest shutdown (ACPI).
	Shutdown() error
	// Destroy hard-stops the domain. Last resort when a graceful
	// shutdown does not complete in time.
	Destroy() error
	// AgentCommand sends a raw QEMU guest agent command and returns the
	// JSON response. timeoutSeconds bounds the agent-side wait.
	AgentCommand(cmd string, timeoutSeconds int) (string, error)
	// Close releases the connection.
	Close() error
}

// simplifyState maps libvirt domain states onto doze's three states.
func simplifyState(s int32) State {
	switch libvirt.DomainState(s) {
	case libvirt.DomainRunning:
		return StateRunning
	case libvirt.DomainShutoff:
		return StateStopped
	default:
		return StateOther
	}
}
