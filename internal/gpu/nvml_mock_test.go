//go:build cuda

package gpu

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// MockNVML is a mock implementation of NVMLInterface for testing
type MockNVML struct {
	InitReturn          nvml.Return
	ShutdownReturn      nvml.Return
	DeviceCount         int
	DeviceCountReturn   nvml.Return
	DriverVersion       string
	DriverVersionReturn nvml.Return
	Devices             []MockDevice
	HandleReturn        nvml.Return
}

// MockDevice represents a mock GPU device
type MockDevice struct {
	Name              string
	NameReturn        nvml.Return
	UUID              string
	UUIDReturn        nvml.Return
	MemoryTotal       uint64
	MemoryInfoReturn  nvml.Return
	GPUUtil           uint32
	UtilizationReturn nvml.Return
}

// NewMockNVML creates a mock with all calls succeeding.
func NewMockNVML() *MockNVML {
	return &MockNVML{
		InitReturn:          nvml.SUCCESS,
		ShutdownReturn:      nvml.SUCCESS,
		DeviceCountReturn:   nvml.SUCCESS,
		DriverVersionReturn: nvml.SUCCESS,
		HandleReturn:        nvml.SUCCESS,
		Devices:             make([]MockDevice, 0),
	}
}

func (m *MockNVML) Init() nvml.Return {
	return m.InitReturn
}

func (m *MockNVML) Shutdown() nvml.Return {
	return m.ShutdownReturn
}

func (m *MockNVML) DeviceGetCount() (int, nvml.Return) {
	return m.DeviceCount, m.DeviceCountReturn
}

func (m *MockNVML) DeviceGetHandleByIndex(index int) (DeviceInterface, nvml.Return) {
	if index < 0 || index >= len(m.Devices) {
		return nil, nvml.ERROR_INVALID_ARGUMENT
	}
	return mockDeviceImpl{device: &m.Devices[index]}, m.HandleReturn
}

func (m *MockNVML) SystemGetDriverVersion() (string, nvml.Return) {
	return m.DriverVersion, m.DriverVersionReturn
}

// mockDeviceImpl implements DeviceInterface for testing
type mockDeviceImpl struct {
	device *MockDevice
}

func (m mockDeviceImpl) GetName() (string, nvml.Return) {
	return m.device.Name, m.device.NameReturn
}

func (m mockDeviceImpl) GetUUID() (string, nvml.Return) {
	return m.device.UUID, m.device.UUIDReturn
}

func (m mockDeviceImpl) GetMemoryInfo() (nvml.Memory, nvml.Return) {
	return nvml.Memory{Total: m.device.MemoryTotal}, m.device.MemoryInfoReturn
}

func (m mockDeviceImpl) GetUtilizationRates() (nvml.Utilization, nvml.Return) {
	return nvml.Utilization{Gpu: m.device.GPUUtil}, m.device.UtilizationReturn
}
