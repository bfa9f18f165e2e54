//go:build cuda

package gpu

import (
	"errors"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"doze/internal/logging"
)

// Sampler reads utilization and inventory from host-visible GPUs. NVML
// is initialized per call; the signal poll interval is long enough that
// holding the library open between polls buys nothing.
type Sampler struct {
	nvml   NVMLInterface
	logger *logging.Logger
}

// NewSampler creates a sampler backed by the real NVML library.
func NewSampler(logger *logging.Logger) *Sampler {
	return &Sampler{
		nvml:   NewRealNVML(),
		logger: logger,
	}
}

// NewSamplerWithNVML creates a sampler with a custom NVML binding (for testing).
func NewSamplerWithNVML(nvmlInterface NVMLInterface, logger *logging.Logger) *Sampler {
	return &Sampler{
		nvml:   nvmlInterface,
		logger: logger,
	}
}

// Utilization returns the mean GPU utilization percentage across
// host-visible devices and how many devices answered.
func (s *Sampler) Utilization() (float64, int, error) {
	ret := s.nvml.Init()
	if ret != nvml.SUCCESS {
		return 0, 0, fmt.Errorf("NVML init failed: %s", nvml.ErrorString(ret))
	}
	defer s.nvml.Shutdown()

	count, ret := s.nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, 0, fmt.Errorf("device count failed: %s", nvml.ErrorString(ret))
	}
	if count == 0 {
		return 0, 0, errors.New("no host-visible GPUs")
	}

	var sum float64
	sampled := 0
	for i := 0; i < count; i++ {
		device, ret := s.nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			s.logger.Warn("gpu.device.handle.failed", "Failed to get device handle", map[string]interface{}{
				"index": i,
				"error": nvml.ErrorString(ret),
			})
			continue
		}
		util, ret := device.GetUtilizationRates()
		if ret != nvml.SUCCESS {
			s.logger.Warn("gpu.device.utilization.failed", "Failed to read utilization", map[string]interface{}{
				"index": i,
				"error": nvml.ErrorString(ret),
			})
			continue
		}
		sum += float64(util.Gpu)
		sampled++
	}
	if sampled == 0 {
		return 0, 0, errors.New("no device answered the utilization query")
	}

	return sum / float64(sampled), sampled, nil
}

// Snapshot inventories host-visible GPUs for diagnostics.
func (s *Sampler) Snapshot() Report {
	report := Report{GPUs: make([]Info, 0)}

	ret := s.nvml.Init()
	if ret != nvml.SUCCESS {
		report.ErrorMessage = fmt.Sprintf("NVML init failed: %s", nvml.ErrorString(ret))
		return report
	}
	defer s.nvml.Shutdown()
	report.NVMLOk = true

	if version, ret := s.nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		report.DriverVersion = version
	}

	count, ret := s.nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		report.ErrorMessage = fmt.Sprintf("device count failed: %s", nvml.ErrorString(ret))
		return report
	}

	for i := 0; i < count; i++ {
		device, ret := s.nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			continue
		}
		info := Info{Index: i}
		if name, ret := device.GetName(); ret == nvml.SUCCESS {
			info.Name = name
		}
		if uuid, ret := device.GetUUID(); ret == nvml.SUCCESS {
			info.UUID = uuid
		}
		if mem, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
			info.MemoryMB = mem.Total / (1024 * 1024)
		}
		if util, ret := device.GetUtilizationRates(); ret == nvml.SUCCESS {
			info.UtilizationPercent = float64(util.Gpu)
		}
		report.GPUs = append(report.GPUs, info)
	}

	return report
}
