package match

import (
	"errors"
	"fmt"
)

// Device names the hardware a coarse correlation ran on.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// AdapterInfo describes the GPU adapter the accelerated strategy would use.
type AdapterInfo struct {
	Name    string `json:"name"`
	Backend string `json:"backend"`
	Type    string `json:"type"`
}

// DetectGPU opens and immediately releases the GPU adapter the accelerated
// strategy would use. The error wraps ErrAcceleratedDeviceUnavailable when
// no usable adapter exists.
func DetectGPU() (AdapterInfo, error) {
	m, err := newGPUMatcher()
	if err != nil {
		return AdapterInfo{}, err
	}
	defer m.Close()
	if a, ok := m.(interface{ Adapter() AdapterInfo }); ok {
		return a.Adapter(), nil
	}
	return AdapterInfo{}, nil
}

// unavailable wraps err so that errors.Is(err, ErrAcceleratedDeviceUnavailable)
// holds for every failure of the accelerated strategy.
func unavailable(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if errors.Is(err, ErrAcceleratedDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrAcceleratedDeviceUnavailable, err)
}
