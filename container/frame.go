// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package container

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/imagebridge"
	"github.com/gogpu/imagebridge/buffer"
)

// frameSerials hands out per-frame identities. Serials are process-wide so
// frames from different containers never collide in a working set.
var frameSerials atomic.Uint64

// StaticFrame is a frame backed by an image.Image. It satisfies
// [imagebridge.FrameHandle].
//
// Producers that manage their own GPU resources can pre-bind a shared
// buffer per forwarder with [StaticFrame.BindBuffer]; publishers then skip
// the copy path entirely.
type StaticFrame struct {
	serial uint64
	img    image.Image

	mu      sync.Mutex
	rect    image.Rectangle
	invalid bool
	bound   map[imagebridge.Forwarder]*buffer.SharedBuffer
}

// NewStaticFrame wraps img as a publishable frame. The picture rect
// defaults to the image bounds.
func NewStaticFrame(img image.Image) *StaticFrame {
	f := &StaticFrame{
		serial: frameSerials.Add(1),
		img:    img,
	}
	if img != nil {
		f.rect = img.Bounds()
	}
	return f
}

// Serial returns the frame's identity.
func (f *StaticFrame) Serial() uint64 { return f.serial }

// Valid reports whether the frame can still be published.
func (f *StaticFrame) Valid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.invalid && f.img != nil
}

// Invalidate marks the frame unusable. Publishers filter it out on the
// next cycle; in-flight buffers are unaffected.
func (f *StaticFrame) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalid = true
}

// PictureRect returns the visible sub-rectangle.
func (f *StaticFrame) PictureRect() image.Rectangle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rect
}

// SetPictureRect overrides the visible sub-rectangle, for content with
// cropping or alignment padding.
func (f *StaticFrame) SetPictureRect(r image.Rectangle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rect = r
}

// BoundBuffer returns the buffer pre-bound for fwd, or nil.
func (f *StaticFrame) BoundBuffer(fwd imagebridge.Forwarder) *buffer.SharedBuffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bound[fwd]
}

// BindBuffer pre-binds a buffer for fwd. The frame holds its own reference;
// callers keep theirs.
func (f *StaticFrame) BindBuffer(fwd imagebridge.Forwarder, buf *buffer.SharedBuffer) {
	buf.Retain()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bound == nil {
		f.bound = make(map[imagebridge.Forwarder]*buffer.SharedBuffer)
	}
	if prev, ok := f.bound[fwd]; ok {
		prev.Release()
	}
	f.bound[fwd] = buf
}

// ReleaseBuffers drops every pre-bound buffer reference. Producers call it
// when retiring a frame.
func (f *StaticFrame) ReleaseBuffers() {
	f.mu.Lock()
	bound := f.bound
	f.bound = nil
	f.mu.Unlock()
	for _, buf := range bound {
		buf.Release()
	}
}

// Surface returns the frame's pixel content.
func (f *StaticFrame) Surface() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.img == nil {
		return nil, imagebridge.ErrNilSurface
	}
	return f.img, nil
}
