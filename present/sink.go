// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/backingstore"
	"github.com/gogpu/backingstore/geom"
	"github.com/gogpu/backingstore/texture"
	"github.com/gogpu/backingstore/tile"
)

var _ tile.DrawSink = (*TextureSink)(nil)

// mirror is the host texture holding a copy of one slot's pixels.
type mirror struct {
	tex    gpucontext.Texture
	serial uint64
}

// TextureSink draws tiles through a gpucontext.TextureDrawer. Each slot
// gets a host texture created on first use; it is re-uploaded only when
// the slot has published new pixels since the last draw.
//
// The drawer places textures at their natural size, so quads are drawn at
// the top-left of their destination rectangle and transparency only
// decides whether the quad is drawn at all.
//
// Thread safety: TextureSink is safe for concurrent use.
type TextureSink struct {
	drawer gpucontext.TextureDrawer

	mu      sync.Mutex
	mirrors map[uint64]*mirror
	uploads int
}

// NewTextureSink creates a sink drawing through drawer.
func NewTextureSink(drawer gpucontext.TextureDrawer) (*TextureSink, error) {
	if drawer == nil {
		return nil, ErrNilDrawer
	}
	return &TextureSink{
		drawer:  drawer,
		mirrors: make(map[uint64]*mirror),
	}, nil
}

// DrawQuad uploads tex if needed and draws it at rect's origin.
func (s *TextureSink) DrawQuad(rect geom.Rect, tex *texture.Info, transparency float64) error {
	if transparency <= 0 || rect.IsEmpty() {
		return nil
	}
	host, err := s.sync(tex)
	if err != nil {
		return err
	}
	return s.drawer.DrawTexture(host, float32(rect.X), float32(rect.Y))
}

// DrawLayerQuad draws tex at the origin of the transformed bounds of rect.
func (s *TextureSink) DrawLayerQuad(m geom.Matrix, rect geom.Rect, tex *texture.Info, transparency float64, _ bool) error {
	return s.DrawQuad(m.TransformRect(rect), tex, transparency)
}

// Uploads returns how many texture creations and updates were issued.
func (s *TextureSink) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// Forget drops the host texture mirroring slot id, destroying it if the
// texture supports that.
func (s *TextureSink) Forget(id uint64) {
	s.mu.Lock()
	m := s.mirrors[id]
	delete(s.mirrors, id)
	s.mu.Unlock()
	if m != nil {
		destroy(m.tex)
	}
}

// Close destroys every host texture.
func (s *TextureSink) Close() {
	s.mu.Lock()
	mirrors := s.mirrors
	s.mirrors = make(map[uint64]*mirror)
	s.mu.Unlock()
	for _, m := range mirrors {
		destroy(m.tex)
	}
}

// sync returns the host texture for tex, creating or updating it when the
// slot's pixels changed.
func (s *TextureSink) sync(tex *texture.Info) (gpucontext.Texture, error) {
	px := tex.Pixels()
	if px == nil {
		return nil, ErrNoPixels
	}
	w, h := px.Bounds().Dx(), px.Bounds().Dy()

	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mirrors[tex.SlotID]
	if m != nil && m.serial == tex.Serial() && m.tex.Width() == w && m.tex.Height() == h {
		return m.tex, nil
	}

	if m != nil && m.tex.Width() == w && m.tex.Height() == h {
		if updater, ok := m.tex.(gpucontext.TextureUpdater); ok {
			if err := updater.UpdateData(px.Pix); err != nil {
				return nil, fmt.Errorf("present: update slot %d: %w", tex.SlotID, err)
			}
			m.serial = tex.Serial()
			s.uploads++
			return m.tex, nil
		}
	}

	creator := s.drawer.TextureCreator()
	if creator == nil {
		return nil, ErrNoCreator
	}
	created, err := creator.NewTextureFromRGBA(w, h, px.Pix)
	if err != nil {
		return nil, fmt.Errorf("present: create texture for slot %d: %w", tex.SlotID, err)
	}
	// Slot pixels are premultiplied.
	if pt, ok := created.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}
	if m != nil {
		destroy(m.tex)
	}
	s.mirrors[tex.SlotID] = &mirror{tex: created, serial: tex.Serial()}
	s.uploads++
	backingstore.Logger().Debug("host texture created", "slot", tex.SlotID, "width", w, "height", h)
	return created, nil
}

func destroy(tex gpucontext.Texture) {
	if d, ok := tex.(interface{ Destroy() }); ok {
		d.Destroy()
	}
}
