package dcmimg

import (
	"fmt"

	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/codec"
	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/cache"
	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/dcm"
	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/frame"
	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/render"
)

// Device is the GPU handle Render executes against. A Device with nil
// HAL fields runs the monochrome transform on the CPU.
type Device = render.Device

// RenderOptions selects the frame and an optional frame-cache key.
type RenderOptions struct {
	// FrameIndex is the zero-based frame to render. Defaults to 0.
	FrameIndex int

	// CacheKey, when non-empty, caches the assembled frame so repeated
	// renders skip extraction, decoding and assembly. Keys are opaque;
	// the caller must ensure distinct containers get distinct keys.
	CacheKey string
}

// RenderOutput is one rendered frame: Width*Height RGBA values.
type RenderOutput struct {
	Pixels []byte
	Width  int
	Height int
}

// Renderer is the frame decode-and-render pipeline. All operations run
// to completion on the calling goroutine; concurrent Render calls with
// overlapping cache keys can redundantly decode the same frame (the
// result is still correct, the duplicate work is wasted).
type Renderer struct {
	opts       rendererOptions
	dispatcher *codec.Dispatcher
	frames     *cache.Cache[string, *frame.ImageFrame]
	pipelines  *cache.Cache[string, render.Pipeline]
}

// New creates a Renderer. Without Initialize only uncompressed transfer
// syntaxes can be rendered.
func New(opts ...Option) *Renderer {
	o := defaultRendererOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Renderer{
		opts:      o,
		frames:    cache.New[string, *frame.ImageFrame](o.frameCacheSize),
		pipelines: cache.New[string, render.Pipeline](o.pipelineCacheSize),
	}
	r.pipelines.OnEvict(func(_ string, p render.Pipeline) {
		p.Destroy()
	})
	if o.backend != nil {
		r.dispatcher = codec.NewDispatcher(o.backend)
	}
	return r
}

// Initialize wires the codec backend. It must complete before any
// compressed-transfer-syntax decode and is idempotent.
func (r *Renderer) Initialize() error {
	if r.dispatcher != nil {
		return nil
	}
	backend := codec.NewRegistryBackend()
	if err := backend.Verify(); err != nil {
		return fmt.Errorf("dcmimg: load codec backend: %w", err)
	}
	r.dispatcher = codec.NewDispatcher(backend)
	Logger().Info("codec backend wired", "backend", "registry")
	return nil
}

// Render produces the RGBA pixels of one frame. Either a complete
// buffer with matching dimensions is returned or the call fails; no
// partial results.
func (r *Renderer) Render(dev *Device, container []byte, opts *RenderOptions) (*RenderOutput, error) {
	if dev == nil {
		return nil, ErrMissingDevice
	}
	if len(container) == 0 {
		return nil, ErrMissingContainer
	}
	if opts == nil {
		opts = &RenderOptions{}
	}

	ds, err := dcm.Parse(container, dcm.WithInflate(r.opts.inflate))
	if err != nil {
		return nil, fmt.Errorf("dcmimg: parse container: %w", err)
	}
	if ds.TransferSyntax == "" {
		return nil, ErrMissingTransferSyntax
	}

	f, err := r.lookupOrAssemble(ds, opts)
	if err != nil {
		return nil, err
	}

	pixels, err := r.runPipeline(dev, f)
	if err != nil {
		return nil, err
	}
	return &RenderOutput{Pixels: pixels, Width: f.Columns, Height: f.Rows}, nil
}

// Close destroys all cached pipelines and drops cached frames. The
// Renderer can be reused afterwards; pipelines recompile on demand.
func (r *Renderer) Close() {
	r.pipelines.Clear()
	r.frames.Clear()
}

// lookupOrAssemble returns the cached frame for the options' cache key,
// or extracts, decodes and assembles it. A cache hit short-circuits
// everything upstream of the assembled frame.
func (r *Renderer) lookupOrAssemble(ds *dcm.Dataset, opts *RenderOptions) (*frame.ImageFrame, error) {
	if opts.CacheKey != "" {
		if f, ok := r.frames.Get(opts.CacheKey); ok {
			Logger().Debug("frame cache hit", "key", opts.CacheKey)
			return f, nil
		}
	}

	attrs, err := readImageAttributes(ds)
	if err != nil {
		return nil, err
	}

	elem, ok := ds.GetElement(dcm.TagPixelData)
	if !ok {
		return nil, ErrMissingPixelData
	}
	raw, err := dcm.FrameBytes(elem, attrs.geometry, opts.FrameIndex)
	if err != nil {
		return nil, err
	}

	dispatcher := r.dispatcher
	if dispatcher == nil {
		dispatcher = codec.NewDispatcher(nil)
	}
	res, err := dispatcher.Decode(ds.TransferSyntax, attrs.request(raw))
	if err != nil {
		return nil, err
	}

	f, err := frame.Assemble(res, attrs.display)
	if err != nil {
		return nil, err
	}
	if opts.CacheKey != "" {
		r.frames.Set(opts.CacheKey, f)
	}
	return f, nil
}

// runPipeline renders the frame through the pipeline cached for its
// photometric interpretation, compiling one on first use.
func (r *Renderer) runPipeline(dev *Device, f *frame.ImageFrame) ([]byte, error) {
	pi := f.PhotometricInterpretation
	p, ok := r.pipelines.Get(pi)
	if !ok {
		var err error
		p, err = render.New(pi)
		if err != nil {
			return nil, err
		}
		if err := p.Initialize(dev); err != nil {
			p.Destroy()
			return nil, fmt.Errorf("dcmimg: initialize %s pipeline: %w", pi, err)
		}
		r.pipelines.Set(pi, p)
	}
	return p.Render(f)
}

// imageAttributes bundles everything read from the container for one
// decode: frame geometry, codec scalars and display mapping.
type imageAttributes struct {
	geometry dcm.FrameGeometry
	display  frame.Attributes

	bitsStored                int
	highBit                   int
	pixelRepresentation       int
	planarConfiguration       int
	photometricInterpretation string
}

// readImageAttributes validates and collects the image attributes.
// Rows, columns and a bits-allocated of 8 or 16 are required; the rest
// carry standard defaults.
func readImageAttributes(ds *dcm.Dataset) (*imageAttributes, error) {
	rows, rowsOK := ds.GetUint16(dcm.TagRows)
	cols, colsOK := ds.GetUint16(dcm.TagColumns)
	bitsAllocated, bitsOK := ds.GetUint16(dcm.TagBitsAllocated)
	if !rowsOK || !colsOK || rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: rows/columns", ErrMissingAttributes)
	}
	if !bitsOK || (bitsAllocated != 8 && bitsAllocated != 16) {
		return nil, fmt.Errorf("%w: bits allocated %d", ErrMissingAttributes, bitsAllocated)
	}

	a := &imageAttributes{
		bitsStored:                int(bitsAllocated),
		highBit:                   int(bitsAllocated) - 1,
		photometricInterpretation: "MONOCHROME2",
	}
	if v, ok := ds.GetUint16(dcm.TagBitsStored); ok {
		a.bitsStored = int(v)
	}
	if v, ok := ds.GetUint16(dcm.TagHighBit); ok {
		a.highBit = int(v)
	}
	if v, ok := ds.GetUint16(dcm.TagPixelRepresentation); ok {
		a.pixelRepresentation = int(v)
	}
	if v, ok := ds.GetUint16(dcm.TagPlanarConfiguration); ok {
		a.planarConfiguration = int(v)
	}
	if s, ok := ds.GetString(dcm.TagPhotometricInterpretation); ok && s != "" {
		a.photometricInterpretation = s
	}

	samplesPerPixel := 1
	if v, ok := ds.GetUint16(dcm.TagSamplesPerPixel); ok && v > 0 {
		samplesPerPixel = int(v)
	}
	numberOfFrames := 1
	if v, ok := ds.GetInt(dcm.TagNumberOfFrames); ok && v > 0 {
		numberOfFrames = v
	}

	a.geometry = dcm.FrameGeometry{
		Rows:            int(rows),
		Columns:         int(cols),
		SamplesPerPixel: samplesPerPixel,
		BitsAllocated:   int(bitsAllocated),
		NumberOfFrames:  numberOfFrames,
	}
	a.display = frame.Attributes{
		Rows:             int(rows),
		Columns:          int(cols),
		RescaleSlope:     ds.GetFloats(dcm.TagRescaleSlope),
		RescaleIntercept: ds.GetFloats(dcm.TagRescaleIntercept),
		WindowCenter:     ds.GetFloats(dcm.TagWindowCenter),
		WindowWidth:      ds.GetFloats(dcm.TagWindowWidth),
	}
	return a, nil
}

// request builds the codec request for one frame's stored bytes.
func (a *imageAttributes) request(raw []byte) *codec.Request {
	return &codec.Request{
		Width:                     a.geometry.Columns,
		Height:                    a.geometry.Rows,
		BitsAllocated:             a.geometry.BitsAllocated,
		BitsStored:                a.bitsStored,
		HighBit:                   a.highBit,
		SamplesPerPixel:           a.geometry.SamplesPerPixel,
		PixelRepresentation:       a.pixelRepresentation,
		PlanarConfiguration:       a.planarConfiguration,
		PhotometricInterpretation: a.photometricInterpretation,
		EncodedBuffer:             raw,
	}
}
