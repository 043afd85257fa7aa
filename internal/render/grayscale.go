package render

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/PantelisGeorgiadis/dicom-imaging-webgpu/internal/frame"
)

// frameHeaderSize is the fixed input-buffer header preceding the sample
// array. 32 bytes keeps the samples on a 16-byte boundary.
const frameHeaderSize = 32

// Grayscale renders MONOCHROME1/MONOCHROME2 frames through a GPU compute
// transform. Without a usable device it runs the identical transform on
// the CPU.
type Grayscale struct {
	invert bool

	device hal.Device
	queue  hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	initialized bool
	gpuReady    bool
}

var _ Pipeline = (*Grayscale)(nil)

// Initialize compiles the compute program against the given device. It is
// idempotent; a device without HAL handles leaves the pipeline on the
// software path.
func (g *Grayscale) Initialize(dev *Device) error {
	if g.initialized {
		return nil
	}
	if dev.hasGPU() {
		g.device = dev.Device
		g.queue = dev.Queue
		if err := g.createPipeline(); err != nil {
			log.Printf("render: grayscale GPU init failed, using software path: %v", err)
			g.destroyPipeline()
			g.device = nil
			g.queue = nil
		} else {
			g.gpuReady = true
		}
	}
	g.initialized = true
	return nil
}

// Render produces RGBA bytes for one monochrome frame. GPU failures fall
// back to the software transform for the failing call.
func (g *Grayscale) Render(f *frame.ImageFrame) ([]byte, error) {
	if !g.initialized {
		return nil, ErrPipelineNotInitialized
	}
	if g.gpuReady {
		out, err := g.renderGPU(f)
		if err == nil {
			return out, nil
		}
		log.Printf("render: grayscale GPU dispatch failed, using software path: %v", err)
	}
	return g.renderSoftware(f), nil
}

// Destroy releases the compiled GPU program. The device is shared and not
// destroyed here.
func (g *Grayscale) Destroy() {
	g.destroyPipeline()
	g.device = nil
	g.queue = nil
	g.initialized = false
	g.gpuReady = false
}

func (g *Grayscale) renderSoftware(f *frame.ImageFrame) []byte {
	pixels := f.Rows * f.Columns
	out := make([]byte, pixels*4)
	for i := 0; i < pixels; i++ {
		level := grayLevel(float64(f.Pixels.At(i)),
			f.RescaleSlope, f.RescaleIntercept, f.WindowCenter, f.WindowWidth, g.invert)
		idx := i * 4
		out[idx+0] = level
		out[idx+1] = level
		out[idx+2] = level
		out[idx+3] = 255
	}
	return out
}

// packFrameInput serializes the fixed header plus the samples as f32 for
// GPU upload.
func (g *Grayscale) packFrameInput(f *frame.ImageFrame) []byte {
	pixels := f.Rows * f.Columns
	buf := make([]byte, frameHeaderSize+pixels*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(f.Columns))
	binary.LittleEndian.PutUint32(buf[4:], uint32(f.Rows))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(f.RescaleSlope)))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(float32(f.RescaleIntercept)))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(float32(f.WindowCenter-0.5)))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(float32(f.WindowWidth-1)))
	binary.LittleEndian.PutUint32(buf[24:], 0)
	var invert uint32
	if g.invert {
		invert = 1
	}
	binary.LittleEndian.PutUint32(buf[28:], invert)
	for i := 0; i < pixels; i++ {
		binary.LittleEndian.PutUint32(buf[frameHeaderSize+i*4:],
			math.Float32bits(float32(f.Pixels.At(i))))
	}
	return buf
}

// renderGPU uploads the frame, dispatches the compute grid and reads the
// packed RGBA output back. All buffers are scoped to this call.
func (g *Grayscale) renderGPU(f *frame.ImageFrame) ([]byte, error) {
	w, h := uint32(f.Columns), uint32(f.Rows)
	inputBytes := g.packFrameInput(f)
	outputSize := uint64(w) * uint64(h) * 4

	inputBuf, err := g.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gray_input", Size: uint64(len(inputBytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create input buffer: %w", err)
	}
	defer g.device.DestroyBuffer(inputBuf)

	outputBuf, err := g.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gray_output", Size: outputSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create output buffer: %w", err)
	}
	defer g.device.DestroyBuffer(outputBuf)

	stagingBuf, err := g.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gray_staging", Size: outputSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer g.device.DestroyBuffer(stagingBuf)

	g.queue.WriteBuffer(inputBuf, 0, inputBytes)

	bindGroup, err := g.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "gray_bind", Layout: g.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: inputBuf.NativeHandle(), Offset: 0, Size: uint64(len(inputBytes))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: outputBuf.NativeHandle(), Offset: 0, Size: outputSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	defer g.device.DestroyBindGroup(bindGroup)

	encoder, err := g.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gray_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gray_render"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	computePass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "gray_pass"})
	computePass.SetPipeline(g.pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.Dispatch((w+7)/8, (h+7)/8, 1)
	computePass.End()
	encoder.CopyBufferToBuffer(outputBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: outputSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer g.device.FreeCommandBuffer(cmdBuf)

	fence, err := g.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer g.device.DestroyFence(fence)
	if err := g.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := g.device.Wait(fence, 1, 5*time.Second)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, outputSize)
	if err := g.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return unpackPixels(readback, int(w)*int(h)), nil
}

func (g *Grayscale) createPipeline() error {
	shader, err := g.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "gray_voi",
		Source: hal.ShaderSource{WGSL: grayscaleShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile grayscale shader: %w", err)
	}
	g.shader = shader

	bindLayout, err := g.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "gray_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	g.bindLayout = bindLayout

	pipeLayout, err := g.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "gray_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{g.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	g.pipeLayout = pipeLayout

	pipeline, err := g.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "gray_pipeline", Layout: g.pipeLayout,
		Compute: hal.ComputeState{Module: g.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	g.pipeline = pipeline

	return nil
}

func (g *Grayscale) destroyPipeline() {
	if g.device == nil {
		return
	}
	if g.pipeline != nil {
		g.device.DestroyComputePipeline(g.pipeline)
		g.pipeline = nil
	}
	if g.pipeLayout != nil {
		g.device.DestroyPipelineLayout(g.pipeLayout)
		g.pipeLayout = nil
	}
	if g.bindLayout != nil {
		g.device.DestroyBindGroupLayout(g.bindLayout)
		g.bindLayout = nil
	}
	if g.shader != nil {
		g.device.DestroyShaderModule(g.shader)
		g.shader = nil
	}
}

// unpackPixels expands packed RGBA u32 values into the output byte order.
func unpackPixels(packed []byte, pixelCount int) []byte {
	out := make([]byte, pixelCount*4)
	for i := 0; i < pixelCount; i++ {
		val := binary.LittleEndian.Uint32(packed[i*4:])
		idx := i * 4
		out[idx+0] = uint8(val & 0xFF)
		out[idx+1] = uint8((val >> 8) & 0xFF)
		out[idx+2] = uint8((val >> 16) & 0xFF)
		out[idx+3] = uint8((val >> 24) & 0xFF)
	}
	return out
}
