// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/backingstore"
	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/texture"
	"github.com/gogpu/backingstore/tile"
)

var _ tile.DrawSink = (*GPUSink)(nil)

// GPUDevice is the part of hal.Device the GPU sink and target use.
// Every hal.Device satisfies it.
type GPUDevice interface {
	ShaderDevice
	DestroyShaderModule(module hal.ShaderModule)

	CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error)
	DestroyBuffer(buffer hal.Buffer)
	MapBuffer(buffer hal.Buffer, offset, size uint64) (hal.BufferMapping, error)
	UnmapBuffer(buffer hal.Buffer) error

	CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error)
	DestroyTexture(texture hal.Texture)
	CreateTextureView(texture hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error)
	DestroyTextureView(view hal.TextureView)

	CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error)
	DestroySampler(sampler hal.Sampler)

	CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error)
	DestroyBindGroupLayout(layout hal.BindGroupLayout)
	CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error)
	DestroyBindGroup(group hal.BindGroup)
	CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error)
	DestroyPipelineLayout(layout hal.PipelineLayout)
	CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error)
	DestroyRenderPipeline(pipeline hal.RenderPipeline)

	CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error)
	FreeCommandBuffer(cmdBuffer hal.CommandBuffer)
}

// GPUQueue is the part of hal.Queue the GPU sink and target use.
type GPUQueue interface {
	Submit(commandBuffers []hal.CommandBuffer) (submissionIndex uint64, err error)
	PollCompleted() uint64
	WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error
}

// gpuQuad holds the per-draw resources of one recorded quad.
type gpuQuad struct {
	uniforms hal.Buffer
	view     hal.TextureView
	group    hal.BindGroup
	scissor  [4]uint32
}

// gpuFrame is a submitted batch whose resources wait for the GPU.
type gpuFrame struct {
	index uint64
	quads []gpuQuad
}

// GPUStats reports GPU sink activity.
type GPUStats struct {
	Quads   uint64 // quads submitted
	Frames  uint64 // render passes submitted
	Pending int    // quads recorded but not yet flushed
	Waiting int    // submitted frames whose resources are not yet reclaimed
}

// GPUSink draws tiles with the tile quad shader into a render target.
//
// DrawQuad binds the slot's GPU texture (see texture.HALAllocator) and
// records one quad; Flush encodes every recorded quad into a single render
// pass and submits it. Per-quad resources are kept until the queue reports
// the submission complete.
//
// Thread safety: GPUSink is safe for concurrent use.
type GPUSink struct {
	device GPUDevice
	queue  GPUQueue
	target hal.TextureView
	width  int
	height int
	format gputypes.TextureFormat

	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler

	mu         sync.Mutex
	pending    []gpuQuad
	inflight   []gpuFrame
	clearNext  bool
	clearColor gputypes.Color
	closed     bool
	quads      uint64
	frames     uint64
}

// NewGPUSink creates a sink drawing into target, a view of a texture of
// the given size and format. A zero format selects RGBA8Unorm.
func NewGPUSink(device GPUDevice, queue GPUQueue, target hal.TextureView, width, height int, format gputypes.TextureFormat) (*GPUSink, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if target == nil {
		return nil, ErrNoTarget
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidViewport, width, height)
	}
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}
	s := &GPUSink{
		device: device,
		queue:  queue,
		target: target,
		width:  width,
		height: height,
		format: format,
	}
	if err := s.createPipeline(); err != nil {
		s.destroyPipeline()
		return nil, err
	}
	return s, nil
}

// createPipeline builds the shader, layouts, sampler and pipeline of the
// tile quad.
func (s *GPUSink) createPipeline() error {
	shader, err := NewTileShaderModule(s.device)
	if err != nil {
		return err
	}
	s.shader = shader

	// Binding 0: QuadUniforms (uniform buffer, vertex+fragment)
	// Binding 1: slot texture (texture_2d, fragment)
	// Binding 2: sampler (fragment)
	layout, err := s.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "tile_quad_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("present: create tile quad layout: %w", err)
	}
	s.layout = layout

	pipeLayout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "tile_quad_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.layout},
	})
	if err != nil {
		return fmt.Errorf("present: create tile quad pipeline layout: %w", err)
	}
	s.pipeLayout = pipeLayout

	sampler, err := s.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "tile_quad_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("present: create tile quad sampler: %w", err)
	}
	s.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "tile_quad_pipeline",
		Layout: s.pipeLayout,
		Vertex: hal.VertexState{
			Module:     s.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     s.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    s.format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("present: create tile quad pipeline: %w", err)
	}
	s.pipeline = pipeline
	return nil
}

// destroyPipeline releases pipeline resources in reverse creation order.
func (s *GPUSink) destroyPipeline() {
	if s.pipeline != nil {
		s.device.DestroyRenderPipeline(s.pipeline)
		s.pipeline = nil
	}
	if s.sampler != nil {
		s.device.DestroySampler(s.sampler)
		s.sampler = nil
	}
	if s.pipeLayout != nil {
		s.device.DestroyPipelineLayout(s.pipeLayout)
		s.pipeLayout = nil
	}
	if s.layout != nil {
		s.device.DestroyBindGroupLayout(s.layout)
		s.layout = nil
	}
	if s.shader != nil {
		s.device.DestroyShaderModule(s.shader)
		s.shader = nil
	}
}

// DrawQuad records tex for drawing into rect on the next Flush.
func (s *GPUSink) DrawQuad(rect geom.Rect, tex *texture.Info, transparency float64) error {
	if transparency <= 0 || rect.IsEmpty() {
		return nil
	}
	gpuTex := tex.GPU()
	if gpuTex == nil {
		return ErrNoTexture
	}
	scissor, ok := s.scissor(rect)
	if !ok {
		return nil
	}
	u, err := NewQuadUniforms(rect, s.width, s.height, transparency)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	q, err := s.createQuad(gpuTex, tex.Format, u)
	if err != nil {
		return fmt.Errorf("present: slot %d: %w", tex.SlotID, err)
	}
	q.scissor = scissor
	s.pending = append(s.pending, q)
	return nil
}

// DrawLayerQuad records tex for the axis-aligned bounds of rect under m.
func (s *GPUSink) DrawLayerQuad(m geom.Matrix, rect geom.Rect, tex *texture.Info, transparency float64, _ bool) error {
	return s.DrawQuad(m.TransformRect(rect), tex, transparency)
}

// scissor clips rect to the target in whole pixels.
func (s *GPUSink) scissor(rect geom.Rect) ([4]uint32, bool) {
	r := rect.RoundOut().Intersect(image.Rect(0, 0, s.width, s.height))
	if r.Empty() {
		return [4]uint32{}, false
	}
	return [4]uint32{uint32(r.Min.X), uint32(r.Min.Y), uint32(r.Dx()), uint32(r.Dy())}, true //nolint:gosec // clipped to the target
}

// createQuad allocates the uniform buffer, texture view and bind group of
// one quad. Called with s.mu held.
func (s *GPUSink) createQuad(gpuTex hal.Texture, format gputypes.TextureFormat, u QuadUniforms) (gpuQuad, error) {
	var q gpuQuad
	buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tile_quad_uniforms",
		Size:  QuadUniformsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return q, fmt.Errorf("create uniform buffer: %w", err)
	}
	q.uniforms = buf
	if err := s.queue.WriteBuffer(buf, 0, u.Bytes()); err != nil {
		s.releaseQuad(q)
		return gpuQuad{}, fmt.Errorf("write uniforms: %w", err)
	}

	if format == gputypes.TextureFormatUndefined {
		format = s.format
	}
	view, err := s.device.CreateTextureView(gpuTex, &hal.TextureViewDescriptor{
		Label:         "tile_quad_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		s.releaseQuad(q)
		return gpuQuad{}, fmt.Errorf("create texture view: %w", err)
	}
	q.view = view

	group, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "tile_quad_bind_group",
		Layout: s.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: buf.NativeHandle(), Offset: 0, Size: QuadUniformsSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: s.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		s.releaseQuad(q)
		return gpuQuad{}, fmt.Errorf("create bind group: %w", err)
	}
	q.group = group
	return q, nil
}

func (s *GPUSink) releaseQuad(q gpuQuad) {
	if q.group != nil {
		s.device.DestroyBindGroup(q.group)
	}
	if q.view != nil {
		s.device.DestroyTextureView(q.view)
	}
	if q.uniforms != nil {
		s.device.DestroyBuffer(q.uniforms)
	}
}

// Clear makes the next Flush clear the target to c before drawing.
func (s *GPUSink) Clear(c gputypes.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearNext = true
	s.clearColor = c
}

// Flush encodes the recorded quads into one render pass, preceded by a
// clear pass when Clear was called, and submits it.
// Resources of earlier submissions the queue reports complete are
// released. A Flush with nothing to draw or clear submits nothing.
func (s *GPUSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.reclaimLocked(s.queue.PollCompleted())
	if len(s.pending) == 0 && !s.clearNext {
		return nil
	}

	quads := s.pending
	s.pending = nil
	index, err := s.submitLocked(quads)
	if err != nil {
		for _, q := range quads {
			s.releaseQuad(q)
		}
		return err
	}
	s.clearNext = false
	s.quads += uint64(len(quads))
	s.frames++
	if len(quads) > 0 {
		s.inflight = append(s.inflight, gpuFrame{index: index, quads: quads})
	}
	return nil
}

func (s *GPUSink) submitLocked(quads []gpuQuad) (uint64, error) {
	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "tile_quad_encoder",
	})
	if err != nil {
		return 0, fmt.Errorf("present: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("tile_quad_frame"); err != nil {
		return 0, fmt.Errorf("present: begin encoding: %w", err)
	}

	// The clear gets a pass of its own so backends that replace pixels
	// under a quad still clear the uncovered area.
	if s.clearNext {
		encoder.BeginRenderPass(s.passDescriptor("tile_clear_pass", gputypes.LoadOpClear)).End()
	}
	if len(quads) > 0 {
		rp := encoder.BeginRenderPass(s.passDescriptor("tile_quad_pass", gputypes.LoadOpLoad))
		rp.SetPipeline(s.pipeline)
		for _, q := range quads {
			rp.SetScissorRect(q.scissor[0], q.scissor[1], q.scissor[2], q.scissor[3])
			rp.SetBindGroup(0, q.group, nil)
			rp.Draw(TileQuadVertexCount, 1, 0, 0)
		}
		rp.End()
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return 0, fmt.Errorf("present: end encoding: %w", err)
	}
	defer s.device.FreeCommandBuffer(cmdBuf)

	index, err := s.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return 0, fmt.Errorf("present: submit: %w", err)
	}
	return index, nil
}

func (s *GPUSink) passDescriptor(label string, load gputypes.LoadOp) *hal.RenderPassDescriptor {
	return &hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       s.target,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: s.clearColor,
		}},
	}
}

// reclaimLocked releases the resources of frames completed by index.
func (s *GPUSink) reclaimLocked(completed uint64) {
	keep := s.inflight[:0]
	for _, f := range s.inflight {
		if f.index > completed {
			keep = append(keep, f)
			continue
		}
		for _, q := range f.quads {
			s.releaseQuad(q)
		}
	}
	clear(s.inflight[len(keep):])
	s.inflight = keep
}

// Stats returns a snapshot of the sink counters.
func (s *GPUSink) Stats() GPUStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GPUStats{
		Quads:   s.quads,
		Frames:  s.frames,
		Pending: len(s.pending),
		Waiting: len(s.inflight),
	}
}

// Close releases every resource the sink holds. Unflushed quads are
// dropped. The caller must make sure submitted work has finished.
func (s *GPUSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.closed = true
	for _, q := range s.pending {
		s.releaseQuad(q)
	}
	s.pending = nil
	for _, f := range s.inflight {
		for _, q := range f.quads {
			s.releaseQuad(q)
		}
	}
	s.inflight = nil
	s.destroyPipeline()
	backingstore.Logger().Debug("gpu sink closed", "quads", s.quads, "frames", s.frames)
	return nil
}
