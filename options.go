package dcmimg

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/codec"
)

// Default cache capacities. Both caches stay small: pipelines hold
// GPU-resident program state and frames hold full decoded sample
// buffers.
const (
	defaultFrameCacheSize    = 8
	defaultPipelineCacheSize = 4
)

// Option configures a Renderer during creation.
//
// Example:
//
//	r := dcmimg.New(dcmimg.WithFrameCacheSize(16))
type Option func(*rendererOptions)

type rendererOptions struct {
	frameCacheSize    int
	pipelineCacheSize int
	backend           codec.Backend
	inflate           func([]byte) ([]byte, error)
}

func defaultRendererOptions() rendererOptions {
	return rendererOptions{
		frameCacheSize:    defaultFrameCacheSize,
		pipelineCacheSize: defaultPipelineCacheSize,
		inflate:           inflateRaw,
	}
}

// WithFrameCacheSize bounds the number of decoded frames kept for
// cache-key lookups.
func WithFrameCacheSize(n int) Option {
	return func(o *rendererOptions) {
		o.frameCacheSize = n
	}
}

// WithPipelineCacheSize bounds the number of compiled render pipelines
// kept across Render calls.
func WithPipelineCacheSize(n int) Option {
	return func(o *rendererOptions) {
		o.pipelineCacheSize = n
	}
}

// WithBackend injects a custom codec backend instead of the registry
// backend wired by Initialize.
func WithBackend(b codec.Backend) Option {
	return func(o *rendererOptions) {
		o.backend = b
	}
}

// WithInflate replaces the decompression hook used for the deflated
// explicit VR little endian transfer syntax.
func WithInflate(fn func([]byte) ([]byte, error)) Option {
	return func(o *rendererOptions) {
		o.inflate = fn
	}
}

// inflateRaw decompresses a raw deflate stream.
func inflateRaw(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
