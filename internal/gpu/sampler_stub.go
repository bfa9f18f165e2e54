//go:build !cuda

package gpu

import (
	"doze/internal/logging"
)

// Sampler is a no-op GPU sampler for builds without CUDA support.
type Sampler struct {
	logger *logging.Logger
}

// NewSampler creates a sampler that reports NVML as unavailable.
func NewSampler(logger *logging.Logger) *Sampler {
	return &Sampler{logger: logger}
}

// NewSamplerWithNVML is provided for API compatibility; the binding is
// ignored when CUDA support is disabled.
func NewSamplerWithNVML(_ NVMLInterface, logger *logging.Logger) *Sampler {
	return NewSampler(logger)
}

// Utilization always fails in builds without the cuda tag.
func (s *Sampler) Utilization() (float64, int, error) {
	return 0, 0, ErrNVMLDisabled
}

// Snapshot reports that NVML is unavailable in this build.
func (s *Sampler) Snapshot() Report {
	return Report{
		GPUs:         []Info{},
		ErrorMessage: ErrNVMLDisabled.Error(),
	}
}
