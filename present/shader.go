// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/backingstore"
	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/tile_quad.wgsl
var tileQuadShaderWGSL string

// TileQuadVertexCount is the vertex count of one tile quad (triangle strip).
const TileQuadVertexCount = 4

// QuadUniformsSize is the byte size of QuadUniforms on the GPU.
const QuadUniformsSize = 32

// ShaderDevice is the part of hal.Device needed to build shader modules.
type ShaderDevice interface {
	CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error)
}

// TileShaderSource returns the WGSL source of the tile quad shader.
func TileShaderSource() string {
	return tileQuadShaderWGSL
}

// CompileTileShader compiles the tile quad shader to SPIR-V words.
func CompileTileShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(tileQuadShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("present: compile tile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return code, nil
}

// NewTileShaderModule creates the tile quad shader module on device. The
// shader is handed over as SPIR-V when naga can compile it, and as WGSL
// for the device to compile otherwise.
func NewTileShaderModule(device ShaderDevice) (hal.ShaderModule, error) {
	src := hal.ShaderSource{WGSL: tileQuadShaderWGSL}
	if code, err := CompileTileShader(); err == nil {
		src = hal.ShaderSource{SPIRV: code}
	} else {
		backingstore.Logger().Debug("tile shader left to the device compiler", "err", err)
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "tile_quad",
		Source: src,
	})
	if err != nil {
		return nil, fmt.Errorf("present: create tile shader module: %w", err)
	}
	return module, nil
}

// QuadUniforms is the uniform block of the tile quad shader.
// Must match QuadUniforms in tile_quad.wgsl.
type QuadUniforms struct {
	X, Y          float32 // top-left corner in clip space
	Width, Height float32 // extent in clip space; Height is negative
	Transparency  float32
	_             [3]float32
}

// NewQuadUniforms maps a destination rectangle in pixels to the shader's
// clip space for a viewport of the given size.
func NewQuadUniforms(rect geom.Rect, viewportWidth, viewportHeight int, transparency float64) (QuadUniforms, error) {
	if viewportWidth <= 0 || viewportHeight <= 0 {
		return QuadUniforms{}, fmt.Errorf("%w: %dx%d", ErrInvalidViewport, viewportWidth, viewportHeight)
	}
	vw := float64(viewportWidth)
	vh := float64(viewportHeight)
	return QuadUniforms{
		X:            float32(2*rect.X/vw - 1),
		Y:            float32(1 - 2*rect.Y/vh),
		Width:        float32(2 * rect.W / vw),
		Height:       float32(-2 * rect.H / vh),
		Transparency: float32(math.Max(0, math.Min(1, transparency))),
	}, nil
}

// Bytes serializes the uniforms for a buffer upload.
func (u QuadUniforms) Bytes() []byte {
	buf := make([]byte, QuadUniformsSize)
	for i, v := range [...]float32{u.X, u.Y, u.Width, u.Height, u.Transparency} {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
