package dcm

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"testing"
)

// le appends little-endian fixed-width values.
func le(buf []byte, vals ...any) []byte {
	for _, v := range vals {
		switch x := v.(type) {
		case uint16:
			buf = binary.LittleEndian.AppendUint16(buf, x)
		case uint32:
			buf = binary.LittleEndian.AppendUint32(buf, x)
		case []byte:
			buf = append(buf, x...)
		case string:
			buf = append(buf, x...)
		default:
			panic("unsupported value")
		}
	}
	return buf
}

// explicitShort encodes an explicit-VR element with a 16-bit length.
func explicitShort(tag Tag, vr string, value []byte) []byte {
	if len(value)%2 == 1 {
		pad := byte(' ')
		if vr == "UI" {
			pad = 0
		}
		value = append(append([]byte{}, value...), pad)
	}
	return le(nil, tag.Group, tag.Element, vr, uint16(len(value)), value)
}

// explicitLong encodes an explicit-VR element with a 32-bit length.
func explicitLong(tag Tag, vr string, value []byte) []byte {
	return le(nil, tag.Group, tag.Element, vr, uint16(0), uint32(len(value)), value)
}

func usElement(tag Tag, v uint16) []byte {
	return explicitShort(tag, "US", binary.LittleEndian.AppendUint16(nil, v))
}

func dsElement(tag Tag, s string) []byte {
	return explicitShort(tag, "DS", []byte(s))
}

// part10 wraps a dataset body in preamble, DICM prefix and a meta group
// holding the transfer syntax.
func part10(ts string, body []byte) []byte {
	buf := make([]byte, 128)
	buf = append(buf, "DICM"...)
	buf = append(buf, explicitShort(TagTransferSyntaxUID, "UI", []byte(ts))...)
	return append(buf, body...)
}

func TestParseRejectsNonDICOM(t *testing.T) {
	for _, tc := range [][]byte{nil, []byte("short"), make([]byte, 200)} {
		if _, err := Parse(tc); err == nil {
			t.Errorf("Parse accepted %d non-DICOM bytes", len(tc))
		}
	}
}

func TestParseExplicitLittleEndian(t *testing.T) {
	body := usElement(TagRows, 16)
	body = append(body, usElement(TagColumns, 32)...)
	body = append(body, dsElement(TagWindowCenter, "40\\400")...)
	body = append(body, explicitShort(TagPhotometricInterpretation, "CS", []byte("MONOCHROME2"))...)

	ds, err := Parse(part10(ExplicitVRLittleEndian, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ds.TransferSyntax != ExplicitVRLittleEndian {
		t.Errorf("TransferSyntax = %q", ds.TransferSyntax)
	}
	if v, ok := ds.GetUint16(TagRows); !ok || v != 16 {
		t.Errorf("Rows = %d, %v", v, ok)
	}
	if v, ok := ds.GetUint16(TagColumns); !ok || v != 32 {
		t.Errorf("Columns = %d, %v", v, ok)
	}
	if s, _ := ds.GetString(TagPhotometricInterpretation); s != "MONOCHROME2" {
		t.Errorf("PhotometricInterpretation = %q", s)
	}
	if got := ds.GetFloats(TagWindowCenter); len(got) != 2 || got[0] != 40 || got[1] != 400 {
		t.Errorf("WindowCenter = %v", got)
	}
	if _, ok := ds.GetUint16(TagBitsAllocated); ok {
		t.Error("absent attribute reported present")
	}
}

func TestParseImplicitVR(t *testing.T) {
	// Implicit VR: tag + 32-bit length.
	body := le(nil, TagRows.Group, TagRows.Element, uint32(2), uint16(8))
	body = le(body, TagColumns.Group, TagColumns.Element, uint32(2), uint16(8))

	ds, err := Parse(part10(ImplicitVRLittleEndian, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := ds.GetUint16(TagRows); !ok || v != 8 {
		t.Errorf("Rows = %d, %v", v, ok)
	}
}

func TestParseBigEndian(t *testing.T) {
	be := binary.BigEndian
	body := be.AppendUint16(nil, TagRows.Group)
	body = be.AppendUint16(body, TagRows.Element)
	body = append(body, "US"...)
	body = be.AppendUint16(body, 2)
	body = be.AppendUint16(body, 512)

	ds, err := Parse(part10(ExplicitVRBigEndian, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := ds.GetUint16(TagRows); !ok || v != 512 {
		t.Errorf("Rows = %d, %v", v, ok)
	}
}

func TestParseDeflated(t *testing.T) {
	body := usElement(TagRows, 4)

	var compressed bytes.Buffer
	w, _ := flate.NewWriter(&compressed, flate.DefaultCompression)
	w.Write(body)
	w.Close()

	stream := part10(DeflatedExplicitVRLittleEndian, compressed.Bytes())

	if _, err := Parse(stream); err == nil {
		t.Fatal("Parse without inflate hook succeeded")
	}

	inflate := func(b []byte) ([]byte, error) {
		return io.ReadAll(flate.NewReader(bytes.NewReader(b)))
	}
	ds, err := Parse(stream, WithInflate(inflate))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := ds.GetUint16(TagRows); !ok || v != 4 {
		t.Errorf("Rows = %d, %v", v, ok)
	}
}

func TestParseNativePixelData(t *testing.T) {
	pixels := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	body := explicitLong(TagPixelData, "OB", pixels)

	ds, err := Parse(part10(ExplicitVRLittleEndian, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	elem, ok := ds.GetElement(TagPixelData)
	if !ok {
		t.Fatal("pixel data element missing")
	}
	if elem.Encapsulated {
		t.Error("native pixel data marked encapsulated")
	}
	if !bytes.Equal(elem.Data, pixels) {
		t.Errorf("Data = %v, want %v", elem.Data, pixels)
	}
}

// encapsulate builds an undefined-length pixel data element with a
// basic offset table (possibly empty) and one item per fragment.
func encapsulate(bot []uint32, fragments ...[]byte) []byte {
	buf := le(nil, TagPixelData.Group, TagPixelData.Element, "OB", uint16(0), uint32(undefinedLength))
	buf = le(buf, tagItem.Group, tagItem.Element, uint32(len(bot)*4))
	for _, off := range bot {
		buf = binary.LittleEndian.AppendUint32(buf, off)
	}
	for _, frag := range fragments {
		buf = le(buf, tagItem.Group, tagItem.Element, uint32(len(frag)), frag)
	}
	return le(buf, tagSequenceDelimitation.Group, tagSequenceDelimitation.Element, uint32(0))
}

func TestParseEncapsulatedPixelData(t *testing.T) {
	f0 := []byte{0xAA, 0xBB}
	f1 := []byte{0xCC, 0xDD, 0xEE, 0xFF}
	body := encapsulate([]uint32{0, 10}, f0, f1)

	ds, err := Parse(part10(JPEGBaseline8Bit, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	elem, ok := ds.GetElement(TagPixelData)
	if !ok || !elem.Encapsulated {
		t.Fatal("encapsulated pixel data not detected")
	}
	if len(elem.Fragments) != 2 {
		t.Fatalf("Fragments = %d, want 2", len(elem.Fragments))
	}
	if !bytes.Equal(elem.Fragments[0], f0) || !bytes.Equal(elem.Fragments[1], f1) {
		t.Error("fragment bytes do not round trip")
	}
	if len(elem.BasicOffsetTable) != 2 || elem.BasicOffsetTable[1] != 10 {
		t.Errorf("BasicOffsetTable = %v", elem.BasicOffsetTable)
	}
	// Scanned offsets: fragment 0 at 0, fragment 1 after 8+2 bytes.
	if len(elem.FragmentOffsets) != 2 || elem.FragmentOffsets[0] != 0 || elem.FragmentOffsets[1] != 10 {
		t.Errorf("FragmentOffsets = %v", elem.FragmentOffsets)
	}
}

func TestParseSkipsUndefinedSequence(t *testing.T) {
	// (0008,1140) SQ of undefined length holding one defined-length item,
	// followed by Rows.
	seq := le(nil, uint16(0x0008), uint16(0x1140), "SQ", uint16(0), uint32(undefinedLength))
	item := usElement(TagColumns, 1)
	seq = le(seq, tagItem.Group, tagItem.Element, uint32(len(item)), item)
	seq = le(seq, tagSequenceDelimitation.Group, tagSequenceDelimitation.Element, uint32(0))
	body := append(seq, usElement(TagRows, 7)...)

	ds, err := Parse(part10(ExplicitVRLittleEndian, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := ds.GetUint16(TagRows); !ok || v != 7 {
		t.Errorf("Rows after sequence = %d, %v", v, ok)
	}
	// The item's content must not leak into the top-level dataset.
	if v, ok := ds.GetUint16(TagColumns); ok && v == 1 {
		t.Error("sequence item content leaked into dataset")
	}
}

func TestParseSkipsUndefinedLengthItem(t *testing.T) {
	// (0008,1140) SQ of undefined length holding an undefined-length
	// item whose content is explicit-VR elements, including a nested
	// undefined-length sequence. Short-VR headers inside the item must
	// be read with their VR, not as implicit tag+length records.
	nested := le(nil, uint16(0x0008), uint16(0x9215), "SQ", uint16(0), uint32(undefinedLength))
	nestedItem := dsElement(TagWindowWidth, "80")
	nested = le(nested, tagItem.Group, tagItem.Element, uint32(len(nestedItem)), nestedItem)
	nested = le(nested, tagSequenceDelimitation.Group, tagSequenceDelimitation.Element, uint32(0))

	item := dsElement(TagWindowCenter, "40")
	item = append(item, explicitLong(Tag{0x0008, 0x2112}, "OB", []byte{1, 2, 3, 4})...)
	item = append(item, nested...)

	seq := le(nil, uint16(0x0008), uint16(0x1140), "SQ", uint16(0), uint32(undefinedLength))
	seq = le(seq, tagItem.Group, tagItem.Element, uint32(undefinedLength), item)
	seq = le(seq, tagItemDelimitation.Group, tagItemDelimitation.Element, uint32(0))
	seq = le(seq, tagSequenceDelimitation.Group, tagSequenceDelimitation.Element, uint32(0))
	body := append(seq, usElement(TagRows, 7)...)

	ds, err := Parse(part10(ExplicitVRLittleEndian, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := ds.GetUint16(TagRows); !ok || v != 7 {
		t.Errorf("Rows after sequence = %d, %v", v, ok)
	}
	if got := ds.GetFloats(TagWindowCenter); got != nil {
		t.Errorf("item content leaked into dataset: WindowCenter = %v", got)
	}
}

func TestParseSkipsUndefinedLengthItemImplicitVR(t *testing.T) {
	// Same shape in implicit VR: item content is tag+length records.
	inner := le(nil, TagWindowCenter.Group, TagWindowCenter.Element, uint32(2), "40")
	seq := le(nil, uint16(0x0008), uint16(0x1140), uint32(undefinedLength))
	seq = le(seq, tagItem.Group, tagItem.Element, uint32(undefinedLength), inner)
	seq = le(seq, tagItemDelimitation.Group, tagItemDelimitation.Element, uint32(0))
	seq = le(seq, tagSequenceDelimitation.Group, tagSequenceDelimitation.Element, uint32(0))
	body := le(seq, TagRows.Group, TagRows.Element, uint32(2), uint16(7))

	ds, err := Parse(part10(ImplicitVRLittleEndian, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := ds.GetUint16(TagRows); !ok || v != 7 {
		t.Errorf("Rows after sequence = %d, %v", v, ok)
	}
}

func TestGetInt(t *testing.T) {
	body := explicitShort(TagNumberOfFrames, "IS", []byte("3 "))
	ds, err := Parse(part10(ExplicitVRLittleEndian, body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := ds.GetInt(TagNumberOfFrames); !ok || v != 3 {
		t.Errorf("NumberOfFrames = %d, %v", v, ok)
	}
}
