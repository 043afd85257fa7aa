package dcmimg

import (
	"errors"

	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/codec"
	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/dcm"
	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/frame"
	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/render"
)

// Configuration errors.
var (
	// ErrMissingDevice is returned by Render when no device handle is
	// supplied.
	ErrMissingDevice = errors.New("dcmimg: missing GPU device")

	// ErrMissingContainer is returned by Render when no container bytes
	// are supplied.
	ErrMissingContainer = errors.New("dcmimg: missing container data")

	// ErrBackendNotInitialized is returned when a compressed transfer
	// syntax is decoded before Initialize wired a codec backend.
	ErrBackendNotInitialized = codec.ErrNoBackend
)

// Input errors.
var (
	// ErrNotDICOM is returned when the container is not a DICOM Part 10
	// stream.
	ErrNotDICOM = dcm.ErrNotDICOM

	// ErrMissingTransferSyntax is returned when the container's file meta
	// group carries no transfer syntax UID.
	ErrMissingTransferSyntax = errors.New("dcmimg: missing transfer syntax")

	// ErrMissingAttributes is returned when rows, columns or bits
	// allocated are absent or invalid.
	ErrMissingAttributes = errors.New("dcmimg: missing or invalid image attributes")

	// ErrMissingPixelData is returned when the container has no pixel
	// data element.
	ErrMissingPixelData = errors.New("dcmimg: missing pixel data")

	// ErrFrameOutOfRange is returned when the requested frame index
	// cannot be located in the stored pixel data.
	ErrFrameOutOfRange = dcm.ErrFrameOutOfRange
)

// Unsupported-format errors.
var (
	// ErrUnsupportedTransferSyntax is returned for a transfer syntax UID
	// outside the dispatch table.
	ErrUnsupportedTransferSyntax = codec.ErrUnsupportedTransferSyntax

	// ErrUnsupportedPhotometricInterpretation is returned when no render
	// pipeline exists for the frame's photometric interpretation.
	ErrUnsupportedPhotometricInterpretation = render.ErrUnsupportedPhotometricInterpretation

	// ErrUnsupportedBitsStored is returned for a bits-stored combination
	// outside the supported 8-bit and 16-bit layouts.
	ErrUnsupportedBitsStored = frame.ErrUnsupportedBitsStored
)

// Decode and pipeline errors.
var (
	// ErrDecodeFailed wraps any failure reported by the codec backend.
	ErrDecodeFailed = codec.ErrDecodeFailed

	// ErrPipelineNotInitialized is returned when a render pipeline runs
	// before its one-time initialization.
	ErrPipelineNotInitialized = render.ErrPipelineNotInitialized
)
