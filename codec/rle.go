package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBadRLE is returned for malformed DICOM RLE streams.
var ErrBadRLE = errors.New("codec: malformed RLE data")

// rleHeaderSize is the fixed segment-offset header: segment count plus
// fifteen offsets, 16 uint32 values.
const rleHeaderSize = 64

// decodeRLE decodes DICOM RLE lossless pixel data (PS3.5 Annex G):
// a 64-byte offset header followed by PackBits-compressed byte
// segments, one segment per sample byte plane, most significant byte
// first. The output is sample-interleaved with little-endian sample
// bytes, so the result always reports planar configuration 0.
func decodeRLE(req *Request) (*Result, error) {
	data := req.EncodedBuffer
	if len(data) < rleHeaderSize {
		return nil, fmt.Errorf("%w: %d header bytes", ErrBadRLE, len(data))
	}

	le := binary.LittleEndian
	segments := int(le.Uint32(data[0:4]))
	bytesPerSample := req.BitsAllocated / 8
	if bytesPerSample < 1 {
		bytesPerSample = 1
	}
	wantSegments := req.SamplesPerPixel * bytesPerSample
	if segments < 1 || segments > 15 || segments != wantSegments {
		return nil, fmt.Errorf("%w: %d segments for %d sample bytes", ErrBadRLE, segments, wantSegments)
	}

	pixels := req.Width * req.Height
	out := make([]byte, pixels*wantSegments)

	for s := 0; s < segments; s++ {
		start := int(le.Uint32(data[4+s*4 : 8+s*4]))
		end := len(data)
		if s+1 < segments {
			end = int(le.Uint32(data[8+s*4 : 12+s*4]))
		}
		if start < rleHeaderSize || start > end || end > len(data) {
			return nil, fmt.Errorf("%w: segment %d range [%d,%d)", ErrBadRLE, s, start, end)
		}

		plane, err := unpackBits(data[start:end], pixels)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", s, err)
		}

		// Segment order is component-major, most significant byte
		// first; the output is interleaved little endian.
		component := s / bytesPerSample
		byteIdx := bytesPerSample - 1 - s%bytesPerSample
		for i := 0; i < pixels; i++ {
			out[(i*req.SamplesPerPixel+component)*bytesPerSample+byteIdx] = plane[i]
		}
	}

	res := resultFrom(req)
	res.PlanarConfiguration = 0
	res.DecodedBuffer = out
	return res, nil
}

// unpackBits decodes one PackBits-compressed segment to exactly n
// bytes. Trailing output beyond n (producers pad to even length) is
// discarded; producing fewer than n bytes is an error.
func unpackBits(data []byte, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	p := 0
	for p < len(data) && len(out) < n {
		ctrl := int8(data[p])
		p++
		switch {
		case ctrl >= 0:
			count := int(ctrl) + 1
			if p+count > len(data) {
				return nil, fmt.Errorf("%w: literal run past end", ErrBadRLE)
			}
			out = append(out, data[p:p+count]...)
			p += count
		case ctrl == -128:
			// No-op control byte.
		default:
			if p >= len(data) {
				return nil, fmt.Errorf("%w: replicate run past end", ErrBadRLE)
			}
			count := int(-ctrl) + 1
			b := data[p]
			p++
			for i := 0; i < count; i++ {
				out = append(out, b)
			}
		}
	}
	if len(out) < n {
		return nil, fmt.Errorf("%w: segment yields %d of %d bytes", ErrBadRLE, len(out), n)
	}
	return out[:n], nil
}
