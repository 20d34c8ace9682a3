// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
)

// textureDestroyer matches the Destroy method of context textures.
type textureDestroyer interface {
	Destroy()
}

// textureBacking stores pixel content in a GPU texture created through a
// gpucontext.TextureCreator (typically supplied by the host's GPU context).
// The texture is created lazily on first write, since creation needs pixel
// data.
type textureBacking struct {
	creator   gpucontext.TextureCreator
	tex       any // created texture; nil until first write
	size      image.Point
	destroyed bool
}

func newTextureBacking(creator gpucontext.TextureCreator, size image.Point) *textureBacking {
	return &textureBacking{creator: creator, size: size}
}

func (t *textureBacking) kind() Kind       { return KindTexture }
func (t *textureBacking) stride() int      { return 0 }
func (t *textureBacking) sharedID() uint64 { return 0 }

func (t *textureBacking) write(src image.Image, rect image.Rectangle) error {
	if src == nil {
		return ErrNilSource
	}
	if t.destroyed {
		return ErrBufferDestroyed
	}
	// GPU textures are uploaded whole; partial rects would need a staging
	// copy that no current consumer asks for.
	data := convertToRGBA(src, t.size)

	if t.tex == nil {
		tex, err := t.creator.NewTextureFromRGBA(t.size.X, t.size.Y, data)
		if err != nil {
			return fmt.Errorf("texture creation failed: %w", err)
		}
		t.tex = tex
		return nil
	}

	updater, ok := t.tex.(gpucontext.TextureUpdater)
	if !ok {
		return fmt.Errorf("texture %T does not support updates", t.tex)
	}
	if err := updater.UpdateData(data); err != nil {
		return fmt.Errorf("texture update failed: %w", err)
	}
	return nil
}

func (t *textureBacking) destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	if d, ok := t.tex.(textureDestroyer); ok {
		d.Destroy()
	}
	t.tex = nil
}

// Texture returns the underlying context texture for compositor-side draws,
// or nil if nothing has been written yet.
func (t *textureBacking) Texture() any { return t.tex }
