package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/naga"

	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/codec"
	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/frame"
)

func grayFrame(t *testing.T, samples []byte, rows, cols int, pi string, attrs frame.Attributes) *frame.ImageFrame {
	t.Helper()
	attrs.Rows = rows
	attrs.Columns = cols
	f, err := frame.Assemble(&codec.Result{
		SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8, HighBit: 7,
		PhotometricInterpretation: pi,
		DecodedBuffer:             samples,
	}, attrs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return f
}

func TestNewSelectsVariant(t *testing.T) {
	tests := []struct {
		pi     string
		invert bool
	}{
		{"MONOCHROME1", true},
		{"MONOCHROME2", false},
	}
	for _, tt := range tests {
		p, err := New(tt.pi)
		if err != nil {
			t.Fatalf("New(%q): %v", tt.pi, err)
		}
		g, ok := p.(*Grayscale)
		if !ok {
			t.Fatalf("New(%q) = %T, want *Grayscale", tt.pi, p)
		}
		if g.invert != tt.invert {
			t.Errorf("New(%q).invert = %v, want %v", tt.pi, g.invert, tt.invert)
		}
	}
	if p, err := New("RGB"); err != nil {
		t.Fatalf("New(RGB): %v", err)
	} else if _, ok := p.(*RGBPipeline); !ok {
		t.Fatalf("New(RGB) = %T, want *RGBPipeline", p)
	}
	if _, err := New("PALETTE COLOR"); !errors.Is(err, ErrUnsupportedPhotometricInterpretation) {
		t.Errorf("New(PALETTE COLOR) error = %v, want ErrUnsupportedPhotometricInterpretation", err)
	}
}

func TestRenderBeforeInitialize(t *testing.T) {
	f := grayFrame(t, []byte{1}, 1, 1, "MONOCHROME2", frame.Attributes{})
	if _, err := (&Grayscale{}).Render(f); !errors.Is(err, ErrPipelineNotInitialized) {
		t.Errorf("Grayscale error = %v, want ErrPipelineNotInitialized", err)
	}
	if _, err := (&RGBPipeline{}).Render(f); !errors.Is(err, ErrPipelineNotInitialized) {
		t.Errorf("RGBPipeline error = %v, want ErrPipelineNotInitialized", err)
	}
}

func TestGrayscaleSoftwareMidWindow(t *testing.T) {
	// Sample at the window center lands at mid-gray.
	f := grayFrame(t, []byte{128}, 1, 1, "MONOCHROME2", frame.Attributes{
		WindowCenter: []float64{128},
		WindowWidth:  []float64{256},
	})
	p := &Grayscale{}
	if err := p.Initialize(&Device{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	out, err := p.Render(f)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	if out[0] < 127 || out[0] > 128 {
		t.Errorf("level = %d, want 127 or 128", out[0])
	}
	if out[0] != out[1] || out[1] != out[2] {
		t.Errorf("channels differ: %v", out[:3])
	}
	if out[3] != 255 {
		t.Errorf("alpha = %d, want 255", out[3])
	}
}

func TestGrayscaleInversion(t *testing.T) {
	samples := []byte{0, 64, 128, 255}
	attrs := frame.Attributes{WindowCenter: []float64{128}, WindowWidth: []float64{256}}

	m2 := grayFrame(t, samples, 2, 2, "MONOCHROME2", attrs)
	plain := &Grayscale{}
	if err := plain.Initialize(&Device{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	outPlain, err := plain.Render(m2)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	m1 := grayFrame(t, samples, 2, 2, "MONOCHROME1", attrs)
	inverted := &Grayscale{invert: true}
	if err := inverted.Initialize(&Device{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	outInverted, err := inverted.Render(m1)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for i := 0; i < len(samples); i++ {
		got := outInverted[i*4]
		want := 255 - outPlain[i*4]
		if got != want {
			t.Errorf("pixel %d: inverted level %d, want %d", i, got, want)
		}
	}
}

func TestGrayscaleDeterministic(t *testing.T) {
	f := grayFrame(t, []byte{10, 90, 170, 250}, 2, 2, "MONOCHROME2", frame.Attributes{})
	p := &Grayscale{}
	if err := p.Initialize(&Device{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	first, err := p.Render(f)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := p.Render(f)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("repeated renders differ")
	}
}

func TestGrayscaleClamps(t *testing.T) {
	// Narrow window: low samples clamp to 0, high samples to 255.
	f := grayFrame(t, []byte{0, 255}, 1, 2, "MONOCHROME2", frame.Attributes{
		WindowCenter: []float64{128},
		WindowWidth:  []float64{2},
	})
	p := &Grayscale{}
	if err := p.Initialize(&Device{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	out, err := p.Render(f)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out[0] != 0 {
		t.Errorf("low sample level = %d, want 0", out[0])
	}
	if out[4] != 255 {
		t.Errorf("high sample level = %d, want 255", out[4])
	}
}

func rgbFrame(t *testing.T, data []byte, rows, cols, planar int) *frame.ImageFrame {
	t.Helper()
	f, err := frame.Assemble(&codec.Result{
		SamplesPerPixel: 3, BitsAllocated: 8, BitsStored: 8, HighBit: 7,
		PhotometricInterpretation: "RGB",
		PlanarConfiguration:       planar,
		DecodedBuffer:             data,
	}, frame.Attributes{Rows: rows, Columns: cols})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return f
}

func TestRGBInterleaved(t *testing.T) {
	f := rgbFrame(t, []byte{1, 2, 3, 4, 5, 6}, 1, 2, 0)
	p := &RGBPipeline{}
	if err := p.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	out, err := p.Render(f)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := []byte{1, 2, 3, 255, 4, 5, 6, 255}
	if !bytes.Equal(out, want) {
		t.Errorf("out = %v, want %v", out, want)
	}
}

func TestRGBPlanarMatchesInterleaved(t *testing.T) {
	interleaved := rgbFrame(t, []byte{1, 2, 3, 4, 5, 6}, 1, 2, 0)
	planar := rgbFrame(t, []byte{1, 4, 2, 5, 3, 6}, 1, 2, 1)
	p := &RGBPipeline{}
	if err := p.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	outI, err := p.Render(interleaved)
	if err != nil {
		t.Fatalf("Render interleaved: %v", err)
	}
	outP, err := p.Render(planar)
	if err != nil {
		t.Fatalf("Render planar: %v", err)
	}
	if !bytes.Equal(outI, outP) {
		t.Errorf("planar %v != interleaved %v", outP, outI)
	}
}

// TestGrayscaleShaderCompilation checks the WGSL kernel compiles to SPIR-V.
func TestGrayscaleShaderCompilation(t *testing.T) {
	if grayscaleShaderSource == "" {
		t.Fatal("grayscale shader source is empty")
	}
	spirvBytes, err := naga.Compile(grayscaleShaderSource)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "not yet implemented") || strings.Contains(errStr, "not supported") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		t.Fatalf("failed to compile grayscale shader: %v", err)
	}
	if len(spirvBytes) < 4 {
		t.Fatal("SPIR-V output is empty")
	}
	magic := uint32(spirvBytes[0]) | uint32(spirvBytes[1])<<8 |
		uint32(spirvBytes[2])<<16 | uint32(spirvBytes[3])<<24
	if magic != 0x07230203 {
		t.Errorf("SPIR-V magic = %#x, want 0x07230203", magic)
	}
}
