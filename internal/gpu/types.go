// Package gpu samples NVIDIA GPUs owned by the host through NVML. A
// passthrough GPU is invisible here while the guest holds it; only
// devices still bound to host drivers show up. Builds without the cuda
// tag compile a stub that reports NVML as unavailable.
package gpu

import "errors"

// ErrNVMLDisabled is returned by builds without the cuda tag.
var ErrNVMLDisabled = errors.New("NVML disabled: rebuild with -tags cuda")

// Info describes one host-visible GPU.
type Info struct {
	Index              int     `json:"index"`
	Name               string  `json:"name"`
	UUID               string  `json:"uuid"`
	MemoryMB           uint64  `json:"memory_mb"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// Report is a point-in-time inventory of host-visible GPUs. Diagnostic
// bundles include it so passthrough problems are visible from the
// host's perspective.
type Report struct {
	NVMLOk        bool   `json:"nvml_ok"`
	DriverVersion string `json:"driver_version,omitempty"`
	GPUs          []Info `json:"gpus"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
