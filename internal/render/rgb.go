package render

import (
	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/frame"
)

// RGBPipeline renders RGB frames on the CPU. No numeric remapping is
// needed; samples only move from planar or interleaved component order
// into RGBA with an opaque alpha.
type RGBPipeline struct {
	initialized bool
}

var _ Pipeline = (*RGBPipeline)(nil)

func (p *RGBPipeline) Initialize(_ *Device) error {
	p.initialized = true
	return nil
}

func (p *RGBPipeline) Render(f *frame.ImageFrame) ([]byte, error) {
	if !p.initialized {
		return nil, ErrPipelineNotInitialized
	}
	pixels := f.Rows * f.Columns
	out := make([]byte, pixels*4)
	if f.PlanarConfiguration == 1 {
		// Three full component planes: R, G, B.
		for i := 0; i < pixels; i++ {
			idx := i * 4
			out[idx+0] = uint8(f.Pixels.At(i))
			out[idx+1] = uint8(f.Pixels.At(pixels + i))
			out[idx+2] = uint8(f.Pixels.At(2*pixels + i))
			out[idx+3] = 255
		}
		return out, nil
	}
	for i := 0; i < pixels; i++ {
		idx := i * 4
		out[idx+0] = uint8(f.Pixels.At(i * 3))
		out[idx+1] = uint8(f.Pixels.At(i*3 + 1))
		out[idx+2] = uint8(f.Pixels.At(i*3 + 2))
		out[idx+3] = 255
	}
	return out, nil
}

func (p *RGBPipeline) Destroy() {
	p.initialized = false
}
