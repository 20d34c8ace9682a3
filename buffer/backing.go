// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Kind identifies the backing behind a SharedBuffer.
type Kind uint8

const (
	// KindMemory is a CPU-visible memory backing (shared memory when the
	// platform supports it, heap memory otherwise). The compositor reads
	// it through the descriptor plus an explicit upload on its side.
	KindMemory Kind = iota

	// KindTexture is a platform GPU texture backing. Content is uploaded
	// from this process; the compositor samples it directly.
	KindTexture
)

// String returns the kind name for logs and errors.
func (k Kind) String() string {
	switch k {
	case KindMemory:
		return "memory"
	case KindTexture:
		return "texture"
	default:
		return "unknown"
	}
}

// backing is the storage behind a SharedBuffer. Implementations are not
// safe for concurrent use; SharedBuffer's lock discipline serializes access.
type backing interface {
	// kind reports the backing kind.
	kind() Kind

	// write converts and copies src into the backing. rect is the
	// destination rectangle in buffer coordinates.
	write(src image.Image, rect image.Rectangle) error

	// stride returns the row stride in bytes for CPU-visible backings,
	// 0 for GPU backings.
	stride() int

	// sharedID returns the shared-memory segment identity for backings
	// that have one, 0 otherwise.
	sharedID() uint64

	// destroy releases the backing's resources. Idempotent.
	destroy()
}

// rgbaView wraps a raw 4-bytes-per-pixel buffer as a draw target.
func rgbaView(pix []byte, strideBytes int, size image.Point) *image.RGBA {
	return &image.RGBA{
		Pix:    pix,
		Stride: strideBytes,
		Rect:   image.Rectangle{Max: size},
	}
}

// convertToRGBA returns pixel content of src as tightly packed RGBA bytes of
// the given size. When src is already a full-frame *image.RGBA with a tight
// stride its pixel slice is returned directly, avoiding a copy.
func convertToRGBA(src image.Image, size image.Point) []byte {
	if rgba, ok := src.(*image.RGBA); ok {
		if rgba.Rect.Size() == size && rgba.Stride == size.X*4 {
			return rgba.Pix
		}
	}
	dst := image.NewRGBA(image.Rectangle{Max: size})
	xdraw.Draw(dst, dst.Rect, src, src.Bounds().Min, xdraw.Src)
	return dst.Pix
}
