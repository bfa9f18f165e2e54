package signal

import (
	"context"
	"fmt"

	"doze/internal/config"
	"doze/internal/gpu"
	"doze/internal/logging"
)

// HostGPUSignal samples utilization of GPUs still owned by the host.
// Only meaningful on hosts that keep a GPU outside the passthrough set;
// in builds without the cuda tag it always reads Unavailable.
type HostGPUSignal struct {
	sampler   *gpu.Sampler
	threshold float64
}

// NewHostGPUSignal builds the host GPU utilization provider.
func NewHostGPUSignal(cfg config.HostGPUSignalConfig, logger *logging.Logger) *HostGPUSignal {
	return &HostGPUSignal{
		sampler:   gpu.NewSampler(logger),
		threshold: float64(cfg.ThresholdPercent),
	}
}

// Name implements Signal.
func (s *HostGPUSignal) Name() string { return NameHostGPU }

// Poll implements Signal.
func (s *HostGPUSignal) Poll(ctx context.Context) Reading {
	percent, devices, err := s.sampler.Utilization()
	if err != nil {
		return unavailable(NameHostGPU, err)
	}

	detail := fmt.Sprintf("%.0f%% across %d GPUs", percent, devices)
	if devices == 1 {
		detail = fmt.Sprintf("%.0f%%", percent)
	}
	if percent > s.threshold {
		return active(NameHostGPU, percent, s.threshold, detail)
	}
	return idle(NameHostGPU, percent, s.threshold, detail)
}
