package dcm

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameOutOfRange is returned when a frame index or its computed
	// byte range falls outside the stored pixel data.
	ErrFrameOutOfRange = errors.New("dcm: frame out of range")

	// ErrBadBitsAllocated is returned for native pixel data whose
	// bits-allocated is neither 8 nor 16.
	ErrBadBitsAllocated = errors.New("dcm: bits allocated must be 8 or 16")
)

// FrameGeometry carries the attributes needed to slice one frame out of
// the pixel-data element.
type FrameGeometry struct {
	Rows            int
	Columns         int
	SamplesPerPixel int
	BitsAllocated   int
	NumberOfFrames  int
}

// FrameBytes returns exactly the raw stored bytes for one zero-based
// frame, for both native and encapsulated pixel data. The returned
// slice aliases the element for native data and single-fragment frames;
// multi-fragment frames are concatenated into a fresh buffer.
func FrameBytes(elem *Element, geom FrameGeometry, index int) ([]byte, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: index %d", ErrFrameOutOfRange, index)
	}
	if elem.Encapsulated {
		return encapsulatedFrame(elem, geom, index)
	}
	return nativeFrame(elem, geom, index)
}

// nativeFrame slices an uncompressed frame by pure offset arithmetic.
func nativeFrame(elem *Element, geom FrameGeometry, index int) ([]byte, error) {
	if geom.BitsAllocated != 8 && geom.BitsAllocated != 16 {
		return nil, fmt.Errorf("%w: got %d", ErrBadBitsAllocated, geom.BitsAllocated)
	}
	pixelsPerFrame := geom.Rows * geom.Columns * geom.SamplesPerPixel
	frameLen := pixelsPerFrame * (geom.BitsAllocated / 8)
	offset := index * frameLen
	if frameLen <= 0 || offset+frameLen > len(elem.Data) {
		return nil, fmt.Errorf("%w: frame %d needs bytes [%d,%d) of %d",
			ErrFrameOutOfRange, index, offset, offset+frameLen, len(elem.Data))
	}
	return elem.Data[offset : offset+frameLen], nil
}

// encapsulatedFrame locates a compressed frame's fragments.
//
// Producers inconsistently populate the basic offset table. When it is
// present it is authoritative. When it is empty and fragments map 1:1
// to frames, the scanned fragment offsets stand in for it. Otherwise
// all fragments are assumed to belong to a single frame; any other
// index cannot be located.
func encapsulatedFrame(elem *Element, geom FrameGeometry, index int) ([]byte, error) {
	frames := geom.NumberOfFrames
	if frames < 1 {
		frames = 1
	}

	offsets := elem.BasicOffsetTable
	if len(offsets) == 0 {
		if len(elem.Fragments) == frames {
			offsets = elem.FragmentOffsets
		} else {
			if index != 0 {
				return nil, fmt.Errorf("%w: frame %d of fragmented data without offset table",
					ErrFrameOutOfRange, index)
			}
			return concatFragments(elem.Fragments), nil
		}
	}

	if index >= len(offsets) {
		return nil, fmt.Errorf("%w: frame %d, offset table has %d entries",
			ErrFrameOutOfRange, index, len(offsets))
	}

	start := offsets[index]
	end := uint32(0xFFFFFFFF)
	if index+1 < len(offsets) {
		end = offsets[index+1]
	}

	var parts [][]byte
	for i, off := range elem.FragmentOffsets {
		if off >= start && off < end {
			parts = append(parts, elem.Fragments[i])
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no fragments for frame %d", ErrFrameOutOfRange, index)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return concatFragments(parts), nil
}

func concatFragments(parts [][]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
