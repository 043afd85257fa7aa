package render

// grayLevel applies rescale and the VOI LUT to one raw sample. The WGSL
// kernel implements the same arithmetic in f32; both paths truncate to an
// integer level.
func grayLevel(sample float64, slope, intercept, center, width float64, invert bool) uint8 {
	s := sample*slope + intercept
	v := ((s-(center-0.5))/(width-1) + 0.5) * 255
	if v < 0 {
		v = 0
	} else if v > 255 {
		v = 255
	}
	if invert {
		v = 255 - v
	}
	return uint8(v)
}
