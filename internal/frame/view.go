package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnsupportedBitsStored reports a bits-stored/high-bit/bits-allocated
// combination outside the supported 8-bit and 16-bit layouts.
var ErrUnsupportedBitsStored = errors.New("frame: unsupported bits stored")

// TypedView reads numeric samples out of a raw little-endian byte buffer
// without copying it. Views are immutable.
type TypedView interface {
	// Len returns the number of samples in the view.
	Len() int
	// At returns sample i as a widened integer.
	At(i int) int
	// Bytes returns the underlying raw buffer.
	Bytes() []byte
}

// NewTypedView wraps raw decoded bytes in a typed sample view. 8-bit data
// passes through only in the canonical layout (bitsStored 8, highBit 7,
// bitsAllocated 8); everything else must be 16-bit, signed when
// pixelRepresentation is 1.
func NewTypedView(data []byte, bitsAllocated, bitsStored, highBit, pixelRepresentation int) (TypedView, error) {
	switch {
	case bitsAllocated == 8 && bitsStored == 8 && highBit == 7:
		return view8{data}, nil
	case bitsAllocated == 16:
		if pixelRepresentation == 1 {
			return view16s{data}, nil
		}
		return view16u{data}, nil
	}
	return nil, fmt.Errorf("%w: allocated=%d stored=%d high=%d",
		ErrUnsupportedBitsStored, bitsAllocated, bitsStored, highBit)
}

// MinMax scans the view once and returns its smallest and largest sample.
// An empty view yields (0, 0).
func MinMax(v TypedView) (min, max int) {
	n := v.Len()
	if n == 0 {
		return 0, 0
	}
	min = v.At(0)
	max = min
	for i := 1; i < n; i++ {
		s := v.At(i)
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max
}

type view8 struct{ data []byte }

func (v view8) Len() int      { return len(v.data) }
func (v view8) At(i int) int  { return int(v.data[i]) }
func (v view8) Bytes() []byte { return v.data }

type view16u struct{ data []byte }

func (v view16u) Len() int      { return len(v.data) / 2 }
func (v view16u) At(i int) int  { return int(binary.LittleEndian.Uint16(v.data[i*2:])) }
func (v view16u) Bytes() []byte { return v.data }

type view16s struct{ data []byte }

func (v view16s) Len() int      { return len(v.data) / 2 }
func (v view16s) At(i int) int  { return int(int16(binary.LittleEndian.Uint16(v.data[i*2:]))) }
func (v view16s) Bytes() []byte { return v.data }
