package dcm

import (
	"bytes"
	"errors"
	"testing"
)

func TestNativeFrameOffsets(t *testing.T) {
	// Two 2x2 single-sample 16-bit frames.
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	elem := &Element{Tag: TagPixelData, Data: data}
	geom := FrameGeometry{Rows: 2, Columns: 2, SamplesPerPixel: 1, BitsAllocated: 16, NumberOfFrames: 2}

	f0, err := FrameBytes(elem, geom, 0)
	if err != nil {
		t.Fatalf("frame 0: %v", err)
	}
	if !bytes.Equal(f0, data[:8]) {
		t.Errorf("frame 0 = %v", f0)
	}
	f1, err := FrameBytes(elem, geom, 1)
	if err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if !bytes.Equal(f1, data[8:]) {
		t.Errorf("frame 1 = %v", f1)
	}
}

func TestNativeFrameRangeErrors(t *testing.T) {
	elem := &Element{Tag: TagPixelData, Data: make([]byte, 8)}
	geom := FrameGeometry{Rows: 2, Columns: 2, SamplesPerPixel: 1, BitsAllocated: 16}

	tests := []struct {
		name  string
		geom  FrameGeometry
		index int
	}{
		{"negative index", geom, -1},
		{"past end", geom, 1},
		{"bad bits", FrameGeometry{Rows: 2, Columns: 2, SamplesPerPixel: 1, BitsAllocated: 12}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FrameBytes(elem, tt.geom, tt.index); err == nil {
				t.Error("FrameBytes succeeded, want error")
			}
		})
	}
}

func TestEncapsulatedFrameWithOffsetTable(t *testing.T) {
	// Frame 0 spans two fragments at offsets 0 and 12; frame 1 is one
	// fragment at offset 22.
	elem := &Element{
		Tag:              TagPixelData,
		Encapsulated:     true,
		BasicOffsetTable: []uint32{0, 22},
		Fragments:        [][]byte{{1, 2, 3, 4}, {5, 6}, {7, 8}},
		FragmentOffsets:  []uint32{0, 12, 22},
	}
	geom := FrameGeometry{NumberOfFrames: 2}

	f0, err := FrameBytes(elem, geom, 0)
	if err != nil {
		t.Fatalf("frame 0: %v", err)
	}
	if !bytes.Equal(f0, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("frame 0 = %v", f0)
	}
	f1, err := FrameBytes(elem, geom, 1)
	if err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if !bytes.Equal(f1, []byte{7, 8}) {
		t.Errorf("frame 1 = %v", f1)
	}
	if _, err := FrameBytes(elem, geom, 2); !errors.Is(err, ErrFrameOutOfRange) {
		t.Errorf("frame 2 error = %v", err)
	}
}

func TestEncapsulatedEmptyTableOneToOne(t *testing.T) {
	// No offset table, fragment count equals frame count: fragments map
	// 1:1 and the scanned offsets stand in for the table.
	elem := &Element{
		Tag:             TagPixelData,
		Encapsulated:    true,
		Fragments:       [][]byte{{1, 2}, {3, 4}},
		FragmentOffsets: []uint32{0, 10},
	}
	geom := FrameGeometry{NumberOfFrames: 2}

	f1, err := FrameBytes(elem, geom, 1)
	if err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if !bytes.Equal(f1, []byte{3, 4}) {
		t.Errorf("frame 1 = %v", f1)
	}
}

func TestEncapsulatedEmptyTableSingleFrame(t *testing.T) {
	// No table, three fragments, one frame: all fragments concatenate.
	elem := &Element{
		Tag:             TagPixelData,
		Encapsulated:    true,
		Fragments:       [][]byte{{1}, {2}, {3}},
		FragmentOffsets: []uint32{0, 9, 18},
	}
	geom := FrameGeometry{NumberOfFrames: 1}

	f0, err := FrameBytes(elem, geom, 0)
	if err != nil {
		t.Fatalf("frame 0: %v", err)
	}
	if !bytes.Equal(f0, []byte{1, 2, 3}) {
		t.Errorf("frame 0 = %v", f0)
	}

	// A second frame cannot be located without a table.
	geom.NumberOfFrames = 2
	if _, err := FrameBytes(elem, geom, 1); !errors.Is(err, ErrFrameOutOfRange) {
		t.Errorf("frame 1 error = %v", err)
	}
}

func TestBothTablePathsAgree(t *testing.T) {
	// A populated table and the empty-table 1:1 heuristic must yield
	// byte-identical frames for well-formed input.
	frags := [][]byte{{0xA, 0xB}, {0xC, 0xD}}
	offsets := []uint32{0, 10}
	withTable := &Element{
		Tag: TagPixelData, Encapsulated: true,
		BasicOffsetTable: offsets, Fragments: frags, FragmentOffsets: offsets,
	}
	withoutTable := &Element{
		Tag: TagPixelData, Encapsulated: true,
		Fragments: frags, FragmentOffsets: offsets,
	}
	geom := FrameGeometry{NumberOfFrames: 2}

	for i := 0; i < 2; i++ {
		a, err := FrameBytes(withTable, geom, i)
		if err != nil {
			t.Fatalf("with table, frame %d: %v", i, err)
		}
		b, err := FrameBytes(withoutTable, geom, i)
		if err != nil {
			t.Fatalf("without table, frame %d: %v", i, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("frame %d: table %v != heuristic %v", i, a, b)
		}
	}
}
