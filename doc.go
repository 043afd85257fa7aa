// Package dcmimg renders single image frames from DICOM containers into
// RGBA pixels. It extracts the requested frame's stored bytes, decodes
// them through a pluggable codec backend, resolves the display mapping
// (rescale, window/level, inversion, color-plane layout) and executes a
// GPU compute transform, with bounded LRU caches in front of the decode
// and pipeline-compilation work.
//
// Basic usage:
//
//	r := dcmimg.New()
//	if err := r.Initialize(); err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//
//	out, err := r.Render(dev, containerBytes, &dcmimg.RenderOptions{FrameIndex: 0})
//	if err != nil {
//		log.Fatal(err)
//	}
//	// out.Pixels holds out.Width*out.Height RGBA values.
//
// A Device with nil HAL handles runs the monochrome transform on the
// CPU instead of the GPU; the output is identical.
package dcmimg
