// Package render converts assembled image frames to RGBA pixels. Each
// photometric-interpretation category has its own pipeline: monochrome
// frames run a GPU compute transform (with a software path when no device
// is available), RGB frames are reordered on the CPU.
package render

import (
	"errors"
	"fmt"

	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/frame"
)

var (
	// ErrUnsupportedPhotometricInterpretation reports a photometric
	// interpretation with no pipeline.
	ErrUnsupportedPhotometricInterpretation = errors.New("render: unsupported photometric interpretation")
	// ErrPipelineNotInitialized reports a Render call before Initialize.
	ErrPipelineNotInitialized = errors.New("render: pipeline not initialized")
)

// Pipeline transforms frames of one photometric-interpretation category
// into RGBA bytes. Initialize is one-time and idempotent; Render never
// mutates pipeline state, only scratch buffers scoped to the call.
type Pipeline interface {
	Initialize(dev *Device) error
	Render(f *frame.ImageFrame) ([]byte, error)
	Destroy()
}

// New selects the pipeline variant for a photometric interpretation.
func New(photometricInterpretation string) (Pipeline, error) {
	switch photometricInterpretation {
	case "MONOCHROME1":
		return &Grayscale{invert: true}, nil
	case "MONOCHROME2":
		return &Grayscale{}, nil
	case "RGB":
		return &RGBPipeline{}, nil
	}
	return nil, fmt.Errorf("%w: %q",
		ErrUnsupportedPhotometricInterpretation, photometricInterpretation)
}
