// Package frame assembles decoded pixel samples and container attributes
// into immutable, display-ready image frames.
package frame

import (
	"errors"
	"fmt"

	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/codec"
)

// ErrPixelDataLength reports a decoded buffer whose sample count does not
// match rows x columns x samplesPerPixel.
var ErrPixelDataLength = errors.New("frame: pixel data length mismatch")

// Attributes carries the display-mapping values read from the container.
// Multi-valued attributes keep their full value lists; empty slices mean
// the attribute was absent.
type Attributes struct {
	Rows             int
	Columns          int
	RescaleSlope     []float64
	RescaleIntercept []float64
	WindowCenter     []float64
	WindowWidth      []float64
}

// ImageFrame is one fully assembled frame. It is never mutated after
// construction; the frame cache holds the single canonical copy while
// cached.
type ImageFrame struct {
	Rows                      int
	Columns                   int
	SamplesPerPixel           int
	PhotometricInterpretation string
	PlanarConfiguration       int
	BitsAllocated             int
	BitsStored                int
	HighBit                   int
	PixelRepresentation       int

	RescaleSlope     float64
	RescaleIntercept float64
	WindowCenter     float64
	WindowWidth      float64

	MinValue int
	MaxValue int

	Pixels TypedView
}

// Assemble combines a decode result with the container's display attributes.
// The decoded buffer is reinterpreted through a typed view, scanned for its
// min/max, and the window is resolved from explicit metadata or derived from
// the rescaled sample range.
func Assemble(res *codec.Result, attrs Attributes) (*ImageFrame, error) {
	view, err := NewTypedView(res.DecodedBuffer,
		res.BitsAllocated, res.BitsStored, res.HighBit, res.PixelRepresentation)
	if err != nil {
		return nil, err
	}
	want := attrs.Rows * attrs.Columns * res.SamplesPerPixel
	if view.Len() < want {
		return nil, fmt.Errorf("%w: have %d samples, want %d",
			ErrPixelDataLength, view.Len(), want)
	}

	f := &ImageFrame{
		Rows:                      attrs.Rows,
		Columns:                   attrs.Columns,
		SamplesPerPixel:           res.SamplesPerPixel,
		PhotometricInterpretation: res.PhotometricInterpretation,
		PlanarConfiguration:       res.PlanarConfiguration,
		BitsAllocated:             res.BitsAllocated,
		BitsStored:                res.BitsStored,
		HighBit:                   res.HighBit,
		PixelRepresentation:       res.PixelRepresentation,
		RescaleSlope:              firstOr(attrs.RescaleSlope, 1.0),
		RescaleIntercept:          firstOr(attrs.RescaleIntercept, 0.0),
		Pixels:                    view,
	}
	f.MinValue, f.MaxValue = MinMax(view)
	f.WindowCenter, f.WindowWidth = resolveWindow(attrs, f)
	return f, nil
}

// resolveWindow prefers explicit window metadata; without it the window
// spans the rescaled sample range so the frame is always displayable.
// The VOI transform divides by width-1, so the resolved width is always
// strictly greater than 1; degenerate explicit widths fall back to the
// range-derived window.
func resolveWindow(attrs Attributes, f *ImageFrame) (center, width float64) {
	if len(attrs.WindowCenter) > 0 && len(attrs.WindowWidth) > 0 && attrs.WindowWidth[0] > 1 {
		return attrs.WindowCenter[0], attrs.WindowWidth[0]
	}
	voiMin := float64(f.MinValue)*f.RescaleSlope + f.RescaleIntercept
	voiMax := float64(f.MaxValue)*f.RescaleSlope + f.RescaleIntercept
	width = voiMax - voiMin
	center = (voiMax + voiMin) / 2
	if width <= 1 {
		// Flat and near-flat frames still need a usable ramp.
		width = 2
	}
	return center, width
}

func firstOr(vals []float64, def float64) float64 {
	if len(vals) > 0 {
		return vals[0]
	}
	return def
}
