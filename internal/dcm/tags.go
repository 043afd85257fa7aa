package dcm

import "fmt"

// Tag identifies a DICOM data element (group, element).
type Tag struct {
	Group   uint16
	Element uint16
}

// String returns the tag in (GGGG,EEEE) format.
func (t Tag) String() string {
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

// Tags consumed by the render pipeline. The reader carries no full
// dictionary; implicit-VR parsing classifies only what it needs.
var (
	TagTransferSyntaxUID         = Tag{0x0002, 0x0010}
	TagNumberOfFrames            = Tag{0x0028, 0x0008}
	TagRows                      = Tag{0x0028, 0x0010}
	TagColumns                   = Tag{0x0028, 0x0011}
	TagBitsAllocated             = Tag{0x0028, 0x0100}
	TagBitsStored                = Tag{0x0028, 0x0101}
	TagHighBit                   = Tag{0x0028, 0x0102}
	TagPixelRepresentation       = Tag{0x0028, 0x0103}
	TagSamplesPerPixel           = Tag{0x0028, 0x0002}
	TagPhotometricInterpretation = Tag{0x0028, 0x0004}
	TagPlanarConfiguration       = Tag{0x0028, 0x0006}
	TagRescaleIntercept          = Tag{0x0028, 0x1052}
	TagRescaleSlope              = Tag{0x0028, 0x1053}
	TagWindowCenter              = Tag{0x0028, 0x1050}
	TagWindowWidth               = Tag{0x0028, 0x1051}
	TagPixelData                 = Tag{0x7FE0, 0x0010}

	tagItem                 = Tag{0xFFFE, 0xE000}
	tagItemDelimitation     = Tag{0xFFFE, 0xE00D}
	tagSequenceDelimitation = Tag{0xFFFE, 0xE0DD}
)

// longVRs use the 12-byte explicit header (2 reserved bytes + 32-bit
// length); everything else uses the 8-byte header with 16-bit length.
var longVRs = map[string]bool{
	"OB": true, "OD": true, "OF": true, "OL": true, "OV": true,
	"OW": true, "SQ": true, "UC": true, "UN": true, "UR": true,
	"UT": true, "SV": true, "UV": true,
}
