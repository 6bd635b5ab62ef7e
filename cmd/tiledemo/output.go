package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/software"

	"github.com/gogpu/backingstore/config"
	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/present"
	"github.com/gogpu/backingstore/texture"
	"github.com/gogpu/backingstore/tile"
)

// output is what the consumer composites the grid into.
type output interface {
	tile.DrawSink
	begin(bg color.RGBA)
	end() error
	read() (image.Image, error)
	quads() int
	close()
}

// cpuOutput composites into a present.Framebuffer.
type cpuOutput struct {
	fb *present.Framebuffer
}

func (o *cpuOutput) DrawQuad(rect geom.Rect, tex *texture.Info, transparency float64) error {
	return o.fb.DrawQuad(rect, tex, transparency)
}

func (o *cpuOutput) DrawLayerQuad(m geom.Matrix, rect geom.Rect, tex *texture.Info, transparency float64, isLayer bool) error {
	return o.fb.DrawLayerQuad(m, rect, tex, transparency, isLayer)
}

func (o *cpuOutput) begin(bg color.RGBA)        { o.fb.Clear(bg) }
func (o *cpuOutput) end() error                 { return nil }
func (o *cpuOutput) read() (image.Image, error) { return o.fb.Image(), nil }
func (o *cpuOutput) quads() int                 { return o.fb.Quads() }
func (o *cpuOutput) close()                     {}

// gpuOutput composites through a present.GPUSink into a GPUTarget.
type gpuOutput struct {
	*present.GPUSink
	target  *present.GPUTarget
	cleanup func()
}

func (o *gpuOutput) begin(bg color.RGBA) {
	o.Clear(gputypes.Color{
		R: float64(bg.R) / 0xff,
		G: float64(bg.G) / 0xff,
		B: float64(bg.B) / 0xff,
		A: float64(bg.A) / 0xff,
	})
}

func (o *gpuOutput) end() error                 { return o.Flush() }
func (o *gpuOutput) read() (image.Image, error) { return o.target.Read() }
func (o *gpuOutput) quads() int                 { return int(o.Stats().Quads) } //nolint:gosec // bounded by the frame count

func (o *gpuOutput) close() {
	_ = o.GPUSink.Close()
	_ = o.target.Close()
	o.cleanup()
}

// gpuDevice is an open software HAL device.
type gpuDevice struct {
	device  hal.Device
	queue   hal.Queue
	cleanup func()
}

// openSoftwareDevice opens the CPU-backed HAL device.
func openSoftwareDevice() (*gpuDevice, error) {
	instance, err := software.API{}.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("software backend has no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &gpuDevice{
		device: open.Device,
		queue:  open.Queue,
		cleanup: func() {
			open.Device.Destroy()
			instance.Destroy()
		},
	}, nil
}

// newOutput creates the output selected by cfg.Demo.Sink, width x height
// pixels, plus the pool options its slots need.
func newOutput(cfg config.Config, width, height int) (output, []texture.PoolOption, error) {
	if cfg.Demo.Sink != config.SinkGPU {
		fb, err := present.NewFramebuffer(width, height)
		if err != nil {
			return nil, nil, err
		}
		return &cpuOutput{fb: fb}, nil, nil
	}

	dev, err := openSoftwareDevice()
	if err != nil {
		return nil, nil, err
	}
	target, err := present.NewGPUTarget(dev.device, dev.queue, width, height)
	if err != nil {
		dev.cleanup()
		return nil, nil, err
	}
	sink, err := target.NewSink()
	if err != nil {
		_ = target.Close()
		dev.cleanup()
		return nil, nil, err
	}
	alloc := texture.NewHALAllocator(dev.device, dev.queue, gputypes.TextureFormatRGBA8Unorm)
	out := &gpuOutput{GPUSink: sink, target: target, cleanup: dev.cleanup}
	return out, []texture.PoolOption{texture.WithAllocator(alloc)}, nil
}
