package codec

import (
	"fmt"

	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/dcm"
)

// Dispatcher maps transfer syntax UIDs to decode strategies.
type Dispatcher struct {
	backend Backend
}

// NewDispatcher creates a dispatcher delegating compressed syntaxes to
// the given backend. A nil backend restricts decoding to uncompressed
// transfer syntaxes.
func NewDispatcher(backend Backend) *Dispatcher {
	return &Dispatcher{backend: backend}
}

// Decode normalizes one frame's stored bytes to an uncompressed sample
// buffer. The dispatch is exhaustive over the supported transfer
// syntaxes; anything else fails with ErrUnsupportedTransferSyntax.
func (d *Dispatcher) Decode(transferSyntax string, req *Request) (*Result, error) {
	if len(req.EncodedBuffer) == 0 {
		return nil, ErrMissingEncodedBuffer
	}
	req.TransferSyntax = transferSyntax

	switch transferSyntax {
	case dcm.ImplicitVRLittleEndian,
		dcm.ExplicitVRLittleEndian,
		dcm.DeflatedExplicitVRLittleEndian:
		// Stored bytes already are the little-endian sample buffer.
		res := resultFrom(req)
		res.DecodedBuffer = req.EncodedBuffer
		return res, nil

	case dcm.ExplicitVRBigEndian:
		res := resultFrom(req)
		if req.BitsAllocated > 8 && req.BitsAllocated <= 16 {
			res.DecodedBuffer = swapBytes16(req.EncodedBuffer)
		} else {
			res.DecodedBuffer = req.EncodedBuffer
		}
		return res, nil

	case dcm.RLELossless:
		return d.delegate(req, Backend.DecodeRLE)

	case dcm.JPEGBaseline8Bit, dcm.JPEGExtended12Bit:
		// Baseline/extended streams may carry YCbCr data that the
		// backend must convert to RGB.
		req.ConvertColorspaceToRGB = true
		return d.delegate(req, Backend.DecodeJPEG)

	case dcm.JPEGLossless, dcm.JPEGLosslessSV1:
		return d.delegate(req, Backend.DecodeJPEG)

	case dcm.JPEGLSLossless, dcm.JPEGLSNearLossless:
		return d.delegate(req, Backend.DecodeJPEGLS)

	case dcm.JPEG2000Lossless, dcm.JPEG2000,
		dcm.HTJ2KLossless, dcm.HTJ2KLosslessRPCL, dcm.HTJ2K:
		return d.delegate(req, Backend.DecodeJPEG2000)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransferSyntax, transferSyntax)
}

// delegate invokes one backend entry point, mapping every backend
// failure to ErrDecodeFailed with no partial result.
func (d *Dispatcher) delegate(req *Request, fn func(Backend, *Request) (*Result, error)) (*Result, error) {
	if d.backend == nil {
		return nil, ErrNoBackend
	}
	res, err := fn(d.backend, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return res, nil
}

// swapBytes16 returns a copy of buf with every 2-byte unit swapped.
// Applying it twice restores the original buffer.
func swapBytes16(buf []byte) []byte {
	out := make([]byte, len(buf))
	for i := 0; i+1 < len(buf); i += 2 {
		out[i] = buf[i+1]
		out[i+1] = buf[i]
	}
	if len(buf)%2 == 1 {
		out[len(buf)-1] = buf[len(buf)-1]
	}
	return out
}
