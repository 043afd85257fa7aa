package render

import "github.com/gogpu/wgpu/hal"

// Device is the GPU handle render pipelines execute against. A Device with
// nil HAL fields selects the software transform path.
type Device struct {
	Device hal.Device
	Queue  hal.Queue
}

func (d *Device) hasGPU() bool {
	return d != nil && d.Device != nil && d.Queue != nil
}
