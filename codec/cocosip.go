package codec

import (
	"fmt"

	dicomcodec "github.com/cocosip/go-dicom-codec/codec"
	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	imagingcodec "github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	// Codec registration: each family package registers itself from
	// init. Baseline JPEG and lossless JPEG-LS land in the
	// go-dicom-codec string-keyed registry, every other family in
	// go-dicom's transfer-syntax-keyed global registry.
	_ "github.com/cocosip/go-dicom-codec/jpeg/baseline"
	_ "github.com/cocosip/go-dicom-codec/jpeg/extended"
	_ "github.com/cocosip/go-dicom-codec/jpeg/lossless"
	_ "github.com/cocosip/go-dicom-codec/jpeg/lossless14sv1"
	_ "github.com/cocosip/go-dicom-codec/jpeg2000/htj2k"
	_ "github.com/cocosip/go-dicom-codec/jpeg2000/lossless"
	_ "github.com/cocosip/go-dicom-codec/jpeg2000/lossy"
	_ "github.com/cocosip/go-dicom-codec/jpegls/lossless"
	_ "github.com/cocosip/go-dicom-codec/jpegls/nearlossless"

	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/dcm"
)

// syntaxByUID maps a transfer syntax UID onto the transfer.Syntax the
// family packages use as their global-registry key.
var syntaxByUID = map[string]*transfer.Syntax{
	dcm.JPEGExtended12Bit:  transfer.JPEGProcess2_4,
	dcm.JPEGLossless:       transfer.JPEGLossless,
	dcm.JPEGLosslessSV1:    transfer.JPEGLosslessSV1,
	dcm.JPEGLSNearLossless: transfer.JPEGLSNearLossless,
	dcm.JPEG2000Lossless:   transfer.JPEG2000Lossless,
	dcm.JPEG2000:           transfer.JPEG2000Lossy,
	dcm.HTJ2KLossless:      transfer.HTJ2KLossless,
	dcm.HTJ2KLosslessRPCL:  transfer.HTJ2KLosslessRPCL,
	dcm.HTJ2K:              transfer.HTJ2K,
}

// stringRegistryUIDs are the syntaxes decoded through the string-keyed
// registry instead of the global one.
var stringRegistryUIDs = []string{
	dcm.JPEGBaseline8Bit,
	dcm.JPEGLSLossless,
}

// RegistryBackend is the production Backend, delegating the JPEG
// families to the go-dicom-codec suite and decoding DICOM RLE natively
// (the suite carries no RLE codec). One instance is stateless and safe
// to share.
type RegistryBackend struct{}

// NewRegistryBackend creates the registry-backed codec backend.
func NewRegistryBackend() *RegistryBackend { return &RegistryBackend{} }

// Verify confirms that both codec registries hold a decoder for every
// compressed transfer syntax this backend claims. It stands in for the
// original's one-time backend module load: a missing registration is a
// startup failure, not a per-frame decode failure.
func (b *RegistryBackend) Verify() error {
	for _, uid := range stringRegistryUIDs {
		if _, err := dicomcodec.Get(uid); err != nil {
			return fmt.Errorf("codec backend: %s not registered: %w", uid, err)
		}
	}
	registry := imagingcodec.GetGlobalRegistry()
	for uid, ts := range syntaxByUID {
		if _, ok := registry.GetCodec(ts); !ok {
			return fmt.Errorf("codec backend: no codec registered for %s", uid)
		}
	}
	return nil
}

// DecodeRLE decodes RLE lossless pixel data.
func (b *RegistryBackend) DecodeRLE(req *Request) (*Result, error) {
	return decodeRLE(req)
}

// DecodeJPEG decodes baseline, extended and lossless JPEG streams.
func (b *RegistryBackend) DecodeJPEG(req *Request) (*Result, error) {
	if req.TransferSyntax == dcm.JPEGBaseline8Bit {
		return b.stringDecode(req)
	}
	return b.globalDecode(req)
}

// DecodeJPEGLS decodes JPEG-LS lossless and near-lossless streams.
func (b *RegistryBackend) DecodeJPEGLS(req *Request) (*Result, error) {
	if req.TransferSyntax == dcm.JPEGLSLossless {
		return b.stringDecode(req)
	}
	return b.globalDecode(req)
}

// DecodeJPEG2000 decodes JPEG 2000 and HTJ2K streams.
func (b *RegistryBackend) DecodeJPEG2000(req *Request) (*Result, error) {
	return b.globalDecode(req)
}

// stringDecode runs a codec from the string-keyed registry and folds
// the codec's revised attributes back into the result.
func (b *RegistryBackend) stringDecode(req *Request) (*Result, error) {
	c, err := dicomcodec.Get(req.TransferSyntax)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.TransferSyntax, err)
	}

	decoded, err := c.Decode(req.EncodedBuffer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	res := resultFrom(req)
	res.DecodedBuffer = decoded.PixelData
	if decoded.Width > 0 {
		res.Width = decoded.Width
	}
	if decoded.Height > 0 {
		res.Height = decoded.Height
	}
	if decoded.BitDepth > 0 {
		res.BitsStored = decoded.BitDepth
		if decoded.BitDepth > 8 {
			res.BitsAllocated = 16
			res.HighBit = decoded.BitDepth - 1
		} else {
			res.BitsAllocated = 8
			res.HighBit = 7
		}
	}
	if decoded.Components > 0 {
		res.SamplesPerPixel = decoded.Components
	}
	return b.foldColorspace(req, res), nil
}

// globalDecode runs a codec from go-dicom's global registry. The
// scalar attributes travel in through a FrameInfo and the decoded
// frame travels back out of the destination buffer.
func (b *RegistryBackend) globalDecode(req *Request) (*Result, error) {
	ts, ok := syntaxByUID[req.TransferSyntax]
	if !ok {
		return nil, fmt.Errorf("%s: %w", req.TransferSyntax, ErrUnsupportedTransferSyntax)
	}
	c, ok := imagingcodec.GetGlobalRegistry().GetCodec(ts)
	if !ok {
		return nil, fmt.Errorf("no codec registered for %s", req.TransferSyntax)
	}

	src := newFrameBuffer(req)
	if err := src.AddFrame(req.EncodedBuffer); err != nil {
		return nil, err
	}
	dst := newFrameBuffer(req)
	if err := c.Decode(src, dst, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	out, err := dst.GetFrame(0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	res := resultFrom(req)
	res.DecodedBuffer = out
	return b.foldColorspace(req, res), nil
}

// foldColorspace normalizes the color attributes after a decode. The
// codecs emit interleaved samples; a color decode with the conversion
// flag lands in RGB regardless of the stored colorspace.
func (b *RegistryBackend) foldColorspace(req *Request, res *Result) *Result {
	if res.SamplesPerPixel == 3 {
		res.PlanarConfiguration = 0
		if req.ConvertColorspaceToRGB {
			res.PhotometricInterpretation = "RGB"
		}
	}
	return res
}

// frameBuffer is the single-frame PixelData handed across the
// go-dicom codec boundary.
type frameBuffer struct {
	frames [][]byte
	info   *imagetypes.FrameInfo
}

func newFrameBuffer(req *Request) *frameBuffer {
	return &frameBuffer{
		info: &imagetypes.FrameInfo{
			Width:                     uint16(req.Width),
			Height:                    uint16(req.Height),
			BitsAllocated:             uint16(req.BitsAllocated),
			BitsStored:                uint16(req.BitsStored),
			HighBit:                   uint16(req.HighBit),
			SamplesPerPixel:           uint16(req.SamplesPerPixel),
			PixelRepresentation:       uint16(req.PixelRepresentation),
			PlanarConfiguration:       uint16(req.PlanarConfiguration),
			PhotometricInterpretation: req.PhotometricInterpretation,
		},
	}
}

func (p *frameBuffer) GetFrame(frameIndex int) ([]byte, error) {
	if frameIndex < 0 || frameIndex >= len(p.frames) {
		return nil, fmt.Errorf("frame %d out of range", frameIndex)
	}
	return p.frames[frameIndex], nil
}

func (p *frameBuffer) AddFrame(frameData []byte) error {
	p.frames = append(p.frames, frameData)
	return nil
}

func (p *frameBuffer) FrameCount() int {
	return len(p.frames)
}

func (p *frameBuffer) GetFrameInfo() *imagetypes.FrameInfo {
	return p.info
}

func (p *frameBuffer) IsEncapsulated() bool {
	return false
}
