// Package dcm reads the DICOM container format far enough to feed the
// render pipeline: Part 10 framing, explicit and implicit VR datasets in
// both byte orders, deflated datasets via an injectable inflate hook,
// typed attribute getters, and raw access to the pixel-data element
// including encapsulated fragments.
//
// This is not a general-purpose DICOM implementation: sequences are
// skipped, there is no tag dictionary, and values are interpreted only
// when a getter asks for them.
package dcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotDICOM is returned when the Part 10 preamble or DICM prefix
	// is missing.
	ErrNotDICOM = errors.New("dcm: not a DICOM part 10 stream")

	// ErrTruncated is returned when an element header or value runs past
	// the end of the buffer.
	ErrTruncated = errors.New("dcm: truncated element")

	// ErrNoInflate is returned for a deflated transfer syntax when no
	// inflate hook was supplied.
	ErrNoInflate = errors.New("dcm: deflated stream and no inflate hook")

	// ErrBadEncapsulation is returned when encapsulated pixel data does
	// not follow the item/fragment structure.
	ErrBadEncapsulation = errors.New("dcm: malformed encapsulated pixel data")
)

const undefinedLength = 0xFFFFFFFF

// Element is one data element. For encapsulated pixel data, Data is nil
// and the fragment fields are populated instead.
type Element struct {
	Tag Tag
	VR  string

	// Data holds the value bytes of a defined-length element.
	Data []byte

	// Encapsulated marks compressed pixel data stored as fragments.
	Encapsulated bool

	// BasicOffsetTable holds the offsets from the basic offset table
	// item; empty when the producer left the table unpopulated.
	BasicOffsetTable []uint32

	// Fragments are the fragment value bytes in stream order.
	Fragments [][]byte

	// FragmentOffsets are byte offsets of each fragment's item header,
	// relative to the end of the basic offset table item. These are the
	// values a well-formed basic offset table would carry.
	FragmentOffsets []uint32
}

// Dataset is the parsed container: transfer syntax plus element lookup.
type Dataset struct {
	// TransferSyntax is the UID from the file meta group; empty when the
	// meta group carried none.
	TransferSyntax string

	elements map[Tag]*Element
	order    binary.ByteOrder
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	inflate func([]byte) ([]byte, error)
}

// WithInflate supplies the decompression hook used for the deflated
// explicit VR little endian transfer syntax.
func WithInflate(fn func([]byte) ([]byte, error)) ParseOption {
	return func(c *parseConfig) { c.inflate = fn }
}

// Parse reads a Part 10 stream into a Dataset.
func Parse(data []byte, opts ...ParseOption) (*Dataset, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(data) < 132 || string(data[128:132]) != "DICM" {
		return nil, ErrNotDICOM
	}

	ds := &Dataset{
		elements: make(map[Tag]*Element),
		order:    binary.LittleEndian,
	}

	// File meta group: always explicit VR little endian.
	off, err := ds.parseMeta(data, 132)
	if err != nil {
		return nil, err
	}

	body := data[off:]
	explicit := true
	switch ds.TransferSyntax {
	case ImplicitVRLittleEndian:
		explicit = false
	case ExplicitVRBigEndian:
		ds.order = binary.BigEndian
	case DeflatedExplicitVRLittleEndian:
		if cfg.inflate == nil {
			return nil, ErrNoInflate
		}
		body, err = cfg.inflate(body)
		if err != nil {
			return nil, fmt.Errorf("dcm: inflate dataset: %w", err)
		}
	}

	if err := ds.parseElements(body, explicit); err != nil {
		return nil, err
	}
	return ds, nil
}

// parseMeta walks the group 0x0002 elements and captures the transfer
// syntax UID. Returns the offset of the first dataset element.
func (ds *Dataset) parseMeta(data []byte, off int) (int, error) {
	le := binary.LittleEndian
	for off+8 <= len(data) {
		group := le.Uint16(data[off : off+2])
		if group != 0x0002 {
			return off, nil
		}
		elem := le.Uint16(data[off+2 : off+4])
		vr := string(data[off+4 : off+6])

		var length uint32
		var valOff int
		if longVRs[vr] {
			if off+12 > len(data) {
				return 0, ErrTruncated
			}
			length = le.Uint32(data[off+8 : off+12])
			valOff = off + 12
		} else {
			length = uint32(le.Uint16(data[off+6 : off+8]))
			valOff = off + 8
		}
		if valOff+int(length) > len(data) {
			return 0, ErrTruncated
		}

		if (Tag{group, elem}) == TagTransferSyntaxUID {
			ds.TransferSyntax = trimUID(string(data[valOff : valOff+int(length)]))
		}
		off = valOff + int(length)
	}
	return off, nil
}

// parseElements walks the dataset body and stores elements.
func (ds *Dataset) parseElements(data []byte, explicit bool) error {
	off := 0
	for off+8 <= len(data) {
		tag := Tag{
			ds.order.Uint16(data[off : off+2]),
			ds.order.Uint16(data[off+2 : off+4]),
		}

		var vr string
		var length uint32
		var valOff int
		if explicit {
			vr = string(data[off+4 : off+6])
			if longVRs[vr] {
				if off+12 > len(data) {
					return ErrTruncated
				}
				length = ds.order.Uint32(data[off+8 : off+12])
				valOff = off + 12
			} else {
				length = uint32(ds.order.Uint16(data[off+6 : off+8]))
				valOff = off + 8
			}
		} else {
			length = ds.order.Uint32(data[off+4 : off+8])
			valOff = off + 8
		}

		if length == undefinedLength {
			if tag == TagPixelData {
				elem := &Element{Tag: tag, VR: vr, Encapsulated: true}
				next, err := parseFragments(data, valOff, elem)
				if err != nil {
					return err
				}
				ds.elements[tag] = elem
				off = next
				continue
			}
			// Undefined-length sequence: skip to its delimiter.
			next, err := skipSequence(data, valOff, ds.order, explicit)
			if err != nil {
				return err
			}
			off = next
			continue
		}

		if valOff+int(length) > len(data) {
			return ErrTruncated
		}
		ds.elements[tag] = &Element{
			Tag:  tag,
			VR:   vr,
			Data: data[valOff : valOff+int(length)],
		}
		off = valOff + int(length)
		if length%2 == 1 {
			off++
		}
	}
	return nil
}

// skipSequence advances past an undefined-length sequence, handling
// nested undefined-length items and sequences by delimiter counting.
// Item content is encoded like the enclosing dataset, so inside an
// undefined-length item the element headers carry a VR when the
// dataset is explicit.
func skipSequence(data []byte, off int, order binary.ByteOrder, explicit bool) (int, error) {
	depth := 1
	for off+8 <= len(data) {
		tag := Tag{
			order.Uint16(data[off : off+2]),
			order.Uint16(data[off+2 : off+4]),
		}

		switch tag {
		case tagSequenceDelimitation:
			off += 8
			depth--
			if depth == 0 {
				return off, nil
			}
			continue
		case tagItem:
			length := order.Uint32(data[off+4 : off+8])
			off += 8
			if length != undefinedLength {
				off += int(length)
			}
			// Undefined-length items end at their item delimiter; the
			// scan just continues through their elements.
			continue
		case tagItemDelimitation:
			off += 8
			continue
		}

		// Element header inside an undefined-length item.
		var length uint32
		if explicit {
			vr := string(data[off+4 : off+6])
			if longVRs[vr] {
				if off+12 > len(data) {
					return 0, ErrTruncated
				}
				length = order.Uint32(data[off+8 : off+12])
				off += 12
			} else {
				length = uint32(order.Uint16(data[off+6 : off+8]))
				off += 8
			}
		} else {
			length = order.Uint32(data[off+4 : off+8])
			off += 8
		}
		if length == undefinedLength {
			depth++
		} else {
			off += int(length)
		}
	}
	return 0, ErrTruncated
}

// parseFragments reads the encapsulated pixel-data item sequence: the
// basic offset table item followed by fragment items, always little
// endian.
func parseFragments(data []byte, off int, elem *Element) (int, error) {
	le := binary.LittleEndian

	// Basic offset table item.
	if off+8 > len(data) {
		return 0, ErrTruncated
	}
	tag := Tag{le.Uint16(data[off : off+2]), le.Uint16(data[off+2 : off+4])}
	if tag != tagItem {
		return 0, fmt.Errorf("%w: expected offset table item, got %s", ErrBadEncapsulation, tag)
	}
	botLen := int(le.Uint32(data[off+4 : off+8]))
	off += 8
	if off+botLen > len(data) || botLen%4 != 0 {
		return 0, fmt.Errorf("%w: offset table length %d", ErrBadEncapsulation, botLen)
	}
	for i := 0; i < botLen; i += 4 {
		elem.BasicOffsetTable = append(elem.BasicOffsetTable, le.Uint32(data[off+i:off+i+4]))
	}
	off += botLen

	// Fragment offsets are measured from here, matching the values a
	// populated offset table would contain.
	base := off
	for off+8 <= len(data) {
		tag = Tag{le.Uint16(data[off : off+2]), le.Uint16(data[off+2 : off+4])}
		length := int(le.Uint32(data[off+4 : off+8]))
		if tag == tagSequenceDelimitation {
			return off + 8, nil
		}
		if tag != tagItem {
			return 0, fmt.Errorf("%w: unexpected tag %s in fragment sequence", ErrBadEncapsulation, tag)
		}
		if off+8+length > len(data) {
			return 0, ErrTruncated
		}
		elem.FragmentOffsets = append(elem.FragmentOffsets, uint32(off-base))
		elem.Fragments = append(elem.Fragments, data[off+8:off+8+length])
		off += 8 + length
	}
	return 0, ErrTruncated
}

// GetElement returns the element for a tag.
func (ds *Dataset) GetElement(tag Tag) (*Element, bool) {
	e, ok := ds.elements[tag]
	return e, ok
}

// GetString returns a text value, stripped of null and space padding.
func (ds *Dataset) GetString(tag Tag) (string, bool) {
	e, ok := ds.elements[tag]
	if !ok || e.Data == nil {
		return "", false
	}
	return strings.Trim(string(e.Data), "\x00 "), true
}

// GetUint16 returns a binary unsigned short value in the dataset's byte
// order.
func (ds *Dataset) GetUint16(tag Tag) (uint16, bool) {
	e, ok := ds.elements[tag]
	if !ok || len(e.Data) < 2 {
		return 0, false
	}
	return ds.order.Uint16(e.Data[:2]), true
}

// GetInt returns an integer-string value (VR IS).
func (ds *Dataset) GetInt(tag Tag) (int, bool) {
	s, ok := ds.GetString(tag)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return v, true
}

// GetFloats returns the numeric values of a decimal-string element
// (VR DS, backslash-separated multiplicity). Unparseable components are
// dropped; an element of only padding yields an empty slice.
func (ds *Dataset) GetFloats(tag Tag) []float64 {
	s, ok := ds.GetString(tag)
	if !ok {
		return nil
	}
	var out []float64
	for _, part := range strings.Split(s, "\\") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ByteOrder returns the byte order of binary values in this dataset.
func (ds *Dataset) ByteOrder() binary.ByteOrder { return ds.order }

func trimUID(s string) string {
	return strings.Trim(s, "\x00 ")
}
