package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"doze/internal/clock"
	"doze/internal/config"
	"doze/internal/hypervisor"
)

// VCPUSignal samples guest CPU utilization from the hypervisor's
// cumulative CPU time counter. Utilization is the counter delta between
// two polls divided by wall time and vCPU count, so the first poll after
// startup (and after a domain restart) only establishes a baseline and
// reports Unavailable.
type VCPUSignal struct {
	ctrl      hypervisor.Controller
	clk       clock.Clock
	threshold float64

	mu        sync.Mutex
	baselined bool
	lastCPU   uint64
	lastAt    time.Time
}

// NewVCPUSignal builds the vCPU utilization provider.
func NewVCPUSignal(cfg config.VCPUSignalConfig, ctrl hypervisor.Controller, clk clock.Clock) *VCPUSignal {
	return &VCPUSignal{
		ctrl:      ctrl,
		clk:       clk,
		threshold: float64(cfg.ThresholdPercent),
	}
}

// Name implements Signal.
func (s *VCPUSignal) Name() string { return NameVCPU }

// Poll implements Signal.
func (s *VCPUSignal) Poll(ctx context.Context) Reading {
	info, err := s.ctrl.Info()
	if err != nil {
		return unavailable(NameVCPU, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if info.State != hypervisor.StateRunning {
		// Counters restart from zero on the next boot; the stale
		// baseline must not survive.
		s.baselined = false
		return idle(NameVCPU, 0, s.threshold, "domain not running")
	}

	now := s.clk.Now()
	if !s.baselined || info.CPUTimeNanos < s.lastCPU {
		s.baselined = true
		s.lastCPU = info.CPUTimeNanos
		s.lastAt = now
		return unavailablef(NameVCPU, "no utilization baseline yet")
	}

	elapsed := now.Sub(s.lastAt)
	delta := info.CPUTimeNanos - s.lastCPU
	s.lastCPU = info.CPUTimeNanos
	s.lastAt = now

	if elapsed <= 0 {
		return unavailablef(NameVCPU, "no wall time elapsed since previous sample")
	}

	vcpus := info.VCPUs
	if vcpus == 0 {
		vcpus = 1
	}
	percent := float64(delta) / (float64(elapsed.Nanoseconds()) * float64(vcpus)) * 100

	detail := fmt.Sprintf("%.1f%% across %d vCPUs", percent, vcpus)
	if percent > s.threshold {
		return active(NameVCPU, percent, s.threshold, detail)
	}
	return idle(NameVCPU, percent, s.threshold, detail)
}
