package dcm

// DICOM transfer syntax UIDs, Part 5 §8 / Part 6 Annex A.4.
// Only the syntaxes the render pipeline dispatches on are listed.

// Uncompressed transfer syntaxes.
const (
	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
)

// RLE.
const (
	RLELossless = "1.2.840.10008.1.2.5"
)

// JPEG family.
const (
	JPEGBaseline8Bit  = "1.2.840.10008.1.2.4.50"
	JPEGExtended12Bit = "1.2.840.10008.1.2.4.51"
	JPEGLossless      = "1.2.840.10008.1.2.4.57"
	JPEGLosslessSV1   = "1.2.840.10008.1.2.4.70"
)

// JPEG-LS family.
const (
	JPEGLSLossless     = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless = "1.2.840.10008.1.2.4.81"
)

// JPEG 2000 family, including the high-throughput variants.
const (
	JPEG2000Lossless  = "1.2.840.10008.1.2.4.90"
	JPEG2000          = "1.2.840.10008.1.2.4.91"
	HTJ2KLossless     = "1.2.840.10008.1.2.4.201"
	HTJ2KLosslessRPCL = "1.2.840.10008.1.2.4.202"
	HTJ2K             = "1.2.840.10008.1.2.4.203"
)
