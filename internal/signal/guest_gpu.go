package signal

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"doze/internal/config"
	"doze/internal/guest"
)

// GuestGPUSignal samples GPU utilization inside the guest. The probe
// command prints one utilization percentage per GPU (the nvidia-smi
// csv,noheader,nounits format); multiple GPUs are averaged.
type GuestGPUSignal struct {
	ch        guest.Channel
	command   string
	threshold float64
}

// NewGuestGPUSignal builds the guest GPU utilization provider.
func NewGuestGPUSignal(cfg config.GuestGPUSignalConfig, ch guest.Channel) *GuestGPUSignal {
	return &GuestGPUSignal{
		ch:        ch,
		command:   cfg.Command,
		threshold: float64(cfg.ThresholdPercent),
	}
}

// Name implements Signal.
func (s *GuestGPUSignal) Name() string { return NameGuestGPU }

// Poll implements Signal.
func (s *GuestGPUSignal) Poll(ctx context.Context) Reading {
	out, bad, ok := guestExec(ctx, s.ch, NameGuestGPU, s.command)
	if !ok {
		return bad
	}

	var sum float64
	var gpus int
	for _, line := range nonBlankLines(out) {
		line = strings.TrimSpace(strings.TrimSuffix(line, "%"))
		value, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		sum += value
		gpus++
	}
	if gpus == 0 {
		return unavailablef(NameGuestGPU, "no utilization figures in output %q", strings.TrimSpace(out))
	}

	percent := sum / float64(gpus)
	detail := fmt.Sprintf("%.0f%% across %d GPUs", percent, gpus)
	if gpus == 1 {
		detail = fmt.Sprintf("%.0f%%", percent)
	}
	if percent > s.threshold {
		return active(NameGuestGPU, percent, s.threshold, detail)
	}
	return idle(NameGuestGPU, percent, s.threshold, detail)
}
