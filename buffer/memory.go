// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// Segment is a block of CPU-visible memory that can be shared with another
// process. Segments come from a ShmFactory; the heap fallback produces
// segments that are only visible in-process.
type Segment interface {
	// Bytes returns the mapped memory. Valid until Close.
	Bytes() []byte

	// ID returns a process-wide identity the remote side can use to map
	// the same memory, or 0 for segments that cannot be shared.
	ID() uint64

	// Close unmaps and releases the segment. Idempotent.
	Close() error
}

// ShmFactory creates sharable memory segments. A display connection
// typically supplies one backed by the platform's shared-memory mechanism;
// see NewMemfdFactory on Linux.
type ShmFactory interface {
	// Create returns a segment of at least size bytes.
	Create(size int) (Segment, error)
}

// heapSegment is the in-process fallback when no ShmFactory is configured.
// Heap memory cannot be mapped by the remote side, so its ID is 0.
type heapSegment struct {
	data []byte
}

func (s *heapSegment) Bytes() []byte { return s.data }
func (s *heapSegment) ID() uint64    { return 0 }
func (s *heapSegment) Close() error {
	s.data = nil
	return nil
}

// memoryBacking stores pixel content in a CPU-visible segment, 4 bytes per
// pixel, tightly packed rows.
type memoryBacking struct {
	seg       Segment
	size      image.Point
	rowStride int
	destroyed bool
}

func newMemoryBacking(factory ShmFactory, size image.Point) (*memoryBacking, error) {
	rowStride := size.X * 4
	total := rowStride * size.Y

	var seg Segment
	if factory != nil {
		s, err := factory.Create(total)
		if err != nil {
			return nil, fmt.Errorf("shared memory segment: %w", err)
		}
		seg = s
	} else {
		seg = &heapSegment{data: make([]byte, total)}
	}

	return &memoryBacking{seg: seg, size: size, rowStride: rowStride}, nil
}

func (m *memoryBacking) kind() Kind       { return KindMemory }
func (m *memoryBacking) stride() int      { return m.rowStride }
func (m *memoryBacking) sharedID() uint64 { return m.seg.ID() }

func (m *memoryBacking) write(src image.Image, rect image.Rectangle) error {
	if src == nil {
		return ErrNilSource
	}
	if m.destroyed {
		return ErrBufferDestroyed
	}
	dst := rgbaView(m.seg.Bytes(), m.rowStride, m.size)
	target := rect.Intersect(dst.Rect)
	if target.Empty() {
		return fmt.Errorf("%w: destination rect %v outside %v", ErrInvalidSize, rect, dst.Rect)
	}
	xdraw.Draw(dst, target, src, src.Bounds().Min, xdraw.Src)
	return nil
}

func (m *memoryBacking) destroy() {
	if m.destroyed {
		return
	}
	m.destroyed = true
	if err := m.seg.Close(); err != nil {
		logger().Warn("segment release failed", "err", err)
	}
}
