package render

import _ "embed"

//go:embed shaders/grayscale.wgsl
var grayscaleShaderSource string
