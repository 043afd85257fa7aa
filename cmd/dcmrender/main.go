// Command dcmrender renders one frame of a DICOM file to an image file.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	dcmimg "github.com/PantelisGeorgiadis/dicom-imaging-webgpu"
)

func main() {
	var (
		input   = flag.String("in", "", "input DICOM file")
		frame   = flag.Int("frame", 0, "zero-based frame index")
		output  = flag.String("out", "out.png", "output image file")
		format  = flag.String("format", "", "output format: png, bmp or tiff (default from -out extension)")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		dcmimg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	container, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	dev, cleanup := openDevice()
	defer cleanup()

	r := dcmimg.New()
	if err := r.Initialize(); err != nil {
		log.Fatalf("initialize codec backend: %v", err)
	}
	defer r.Close()

	out, err := r.Render(dev, container, &dcmimg.RenderOptions{FrameIndex: *frame})
	if err != nil {
		log.Fatalf("render frame %d: %v", *frame, err)
	}

	if err := writeImage(*output, pickFormat(*format, *output), out); err != nil {
		log.Fatalf("write output: %v", err)
	}
	log.Printf("rendered frame %d to %s (%dx%d)", *frame, *output, out.Width, out.Height)
}

// openDevice opens the first usable GPU adapter. Without one, rendering
// falls back to the software path.
func openDevice() (*dcmimg.Device, func()) {
	noop := func() {}
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		log.Printf("vulkan backend not available, using software path")
		return &dcmimg.Device{}, noop
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		log.Printf("create instance: %v, using software path", err)
		return &dcmimg.Device{}, noop
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		log.Printf("no GPU adapters found, using software path")
		return &dcmimg.Device{}, noop
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		log.Printf("open device: %v, using software path", err)
		return &dcmimg.Device{}, noop
	}
	log.Printf("using GPU adapter %s", selected.Info.Name)
	dev := &dcmimg.Device{Device: openDev.Device, Queue: openDev.Queue}
	return dev, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
}

func pickFormat(format, output string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".bmp":
		return "bmp"
	case ".tif", ".tiff":
		return "tiff"
	}
	return "png"
}

func writeImage(path, format string, out *dcmimg.RenderOutput) error {
	img := &image.NRGBA{
		Pix:    out.Pixels,
		Stride: out.Width * 4,
		Rect:   image.Rect(0, 0, out.Width, out.Height),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "png":
		err = png.Encode(f, img)
	case "bmp":
		err = bmp.Encode(f, img)
	case "tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
