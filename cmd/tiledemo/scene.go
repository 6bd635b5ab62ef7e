package main

import (
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"

	"github.com/gogpu/backingstore/raster"
	"github.com/gogpu/backingstore/region"
)

// scene is a checkerboard with one box moving across it.
type scene struct {
	raster.Placement

	bg     *raster.Checker
	bounds image.Rectangle

	mu      sync.RWMutex
	box     image.Rectangle
	fill    color.RGBA
	version uint32
}

func newScene(bounds image.Rectangle, box image.Point) *scene {
	return &scene{
		bg:      raster.NewChecker(32, color.RGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}),
		bounds:  bounds,
		box:     image.Rectangle{Max: box},
		fill:    color.RGBA{R: 0x1e, G: 0x6f, B: 0xd9, A: 0xff},
		version: 1,
	}
}

// step moves the box along a Lissajous path and returns the new content
// version with the damaged area: the old and new box positions.
func (s *scene) step(frame int) (uint32, region.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.box.Size()
	free := s.bounds.Size().Sub(size)
	t := float64(frame) / 30
	x := int(float64(free.X) * (0.5 + 0.5*math.Sin(t)))
	y := int(float64(free.Y) * (0.5 + 0.5*math.Sin(1.7*t)))
	next := image.Rectangle{Min: image.Pt(x, y), Max: image.Pt(x+size.X, y+size.Y)}.Add(s.bounds.Min)

	damage := region.FromRects(s.box, next)
	s.box = next
	s.version++
	return s.version, damage
}

// PaintTile implements raster.Content.
func (s *scene) PaintTile(dst draw.Image, area image.Rectangle, scale float64) uint32 {
	s.bg.PaintTile(dst, area, scale)

	s.mu.RLock()
	box, fill, version := s.box, s.fill, s.version
	s.mu.RUnlock()

	scaled := image.Rect(
		int(math.Floor(float64(box.Min.X)*scale)), int(math.Floor(float64(box.Min.Y)*scale)),
		int(math.Ceil(float64(box.Max.X)*scale)), int(math.Ceil(float64(box.Max.Y)*scale)),
	)
	if r := scaled.Intersect(area); !r.Empty() {
		r = r.Sub(area.Min).Add(dst.Bounds().Min)
		draw.Draw(dst, r, image.NewUniform(fill), image.Point{}, draw.Over)
	}
	return version
}
