// Package codec turns one frame's stored bytes into an uncompressed
// sample buffer. A dispatch table keyed by transfer syntax UID routes
// uncompressed data through passthrough or byte-swap paths and
// compressed data to a Backend, the narrow boundary in front of the
// actual codec implementations.
package codec

import "errors"

var (
	// ErrUnsupportedTransferSyntax is returned for a transfer syntax UID
	// outside the dispatch table.
	ErrUnsupportedTransferSyntax = errors.New("codec: unsupported transfer syntax")

	// ErrMissingEncodedBuffer is returned when a request carries no
	// stored bytes.
	ErrMissingEncodedBuffer = errors.New("codec: missing encoded buffer")

	// ErrNoBackend is returned when a compressed transfer syntax is
	// dispatched without a configured backend.
	ErrNoBackend = errors.New("codec: no codec backend configured")

	// ErrDecodeFailed wraps any failure reported by the backend. The
	// request yields no partial result.
	ErrDecodeFailed = errors.New("codec: decode failed")
)

// Request carries one frame's stored bytes plus the image attributes a
// codec needs. The backend may revise the scalar attributes, notably
// the photometric interpretation after a colorspace conversion.
type Request struct {
	TransferSyntax string

	Width                     int
	Height                    int
	BitsAllocated             int
	BitsStored                int
	HighBit                   int
	SamplesPerPixel           int
	PixelRepresentation       int
	PlanarConfiguration       int
	PhotometricInterpretation string

	// ConvertColorspaceToRGB asks the backend to convert YCbCr samples
	// to RGB. Set only for baseline/extended JPEG.
	ConvertColorspaceToRGB bool

	EncodedBuffer []byte
}

// Result is the uncompressed outcome of one decode. Scalar attributes
// start as copies of the request and reflect any backend revisions.
type Result struct {
	Width                     int
	Height                    int
	BitsAllocated             int
	BitsStored                int
	HighBit                   int
	SamplesPerPixel           int
	PixelRepresentation       int
	PlanarConfiguration       int
	PhotometricInterpretation string

	DecodedBuffer []byte
}

// resultFrom copies the request attributes into a fresh result.
func resultFrom(req *Request) *Result {
	return &Result{
		Width:                     req.Width,
		Height:                    req.Height,
		BitsAllocated:             req.BitsAllocated,
		BitsStored:                req.BitsStored,
		HighBit:                   req.HighBit,
		SamplesPerPixel:           req.SamplesPerPixel,
		PixelRepresentation:       req.PixelRepresentation,
		PlanarConfiguration:       req.PlanarConfiguration,
		PhotometricInterpretation: req.PhotometricInterpretation,
	}
}

// Backend decodes compressed pixel data, one method per codec family.
// All numeric marshaling to the underlying codec implementations lives
// behind this boundary. A failed decode returns an error and no result.
type Backend interface {
	DecodeRLE(req *Request) (*Result, error)
	DecodeJPEG(req *Request) (*Result, error)
	DecodeJPEGLS(req *Request) (*Result, error)
	DecodeJPEG2000(req *Request) (*Result, error)
}
