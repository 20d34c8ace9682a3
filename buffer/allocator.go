// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Usage hints how an allocated buffer will be consumed. The allocator may
// not be able to honor a preference; only UsageGPU turns an unavailable
// backing into an error.
type Usage uint8

const (
	// UsageAuto selects a GPU backing when one is configured, CPU shared
	// memory otherwise.
	UsageAuto Usage = iota

	// UsageCPU forces a CPU-visible backing, for compositors that upload
	// on their side or for content that is read back.
	UsageCPU

	// UsageGPU requires a GPU texture backing and fails with
	// ErrNoGPUBacking when none is configured.
	UsageGPU
)

// DefaultMaxDim bounds buffer dimensions when no explicit limit is set.
// It matches the guaranteed minimum 2D texture dimension of the WebGPU
// limit set the rest of the stack assumes.
const DefaultMaxDim = 8192

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithTextureCreator configures GPU texture backings created through the
// host context's texture creator.
func WithTextureCreator(creator gpucontext.TextureCreator) AllocatorOption {
	return func(a *Allocator) { a.creator = creator }
}

// WithHALDevice configures GPU texture backings allocated directly on a
// wgpu HAL device. Takes precedence over WithTextureCreator.
func WithHALDevice(device hal.Device, queue hal.Queue) AllocatorOption {
	return func(a *Allocator) {
		a.halDevice = device
		a.halQueue = queue
	}
}

// WithSharedMemory configures the factory used for CPU backings. Without
// one, CPU backings fall back to process-local heap memory.
func WithSharedMemory(factory ShmFactory) AllocatorOption {
	return func(a *Allocator) { a.shm = factory }
}

// WithMaxDim overrides the maximum width/height accepted by Allocate.
func WithMaxDim(dim int) AllocatorOption {
	return func(a *Allocator) { a.maxDim = dim }
}

// Allocator produces SharedBuffer instances appropriate to a requested
// pixel format, size and usage, choosing between CPU-backed and GPU-native
// backings.
//
// An Allocator is safe for concurrent use.
type Allocator struct {
	channel   Channel
	creator   gpucontext.TextureCreator
	halDevice hal.Device
	halQueue  hal.Queue
	shm       ShmFactory
	maxDim    int
}

// NewAllocator returns an allocator producing buffers shared over channel.
func NewAllocator(channel Channel, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		channel: channel,
		maxDim:  DefaultMaxDim,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Channel returns the cross-process channel buffers are shared over.
func (a *Allocator) Channel() Channel { return a.channel }

// GPUAvailable reports whether a GPU backing is configured.
func (a *Allocator) GPUAvailable() bool {
	return a.halDevice != nil || a.creator != nil
}

// Allocate creates a SharedBuffer for the given pixel format, dimensions
// and usage hint. The returned buffer has one reference owned by the caller.
//
// Allocate fails with an *AllocationError wrapping:
//   - ErrInvalidSize for zero or negative dimensions
//   - ErrSizeLimit when a dimension exceeds the configured maximum
//   - ErrChannelClosed when the remote endpoint is gone
//   - ErrNoGPUBacking for UsageGPU without a configured GPU backing
//   - the backing's own creation error otherwise
//
// A failed allocation aborts only the publish attempt for the frame that
// needed it; the allocator itself remains usable.
func (a *Allocator) Allocate(format gputypes.TextureFormat, size image.Point, usage Usage) (*SharedBuffer, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, a.failf(format, size, "%w: %dx%d", ErrInvalidSize, size.X, size.Y)
	}
	if size.X > a.maxDim || size.Y > a.maxDim {
		return nil, a.failf(format, size, "%w: %dx%d exceeds %d", ErrSizeLimit, size.X, size.Y, a.maxDim)
	}
	if !a.channel.Open() {
		return nil, a.failf(format, size, "%w", ErrChannelClosed)
	}

	back, err := a.newBacking(format, size, usage)
	if err != nil {
		return nil, &AllocationError{Format: format, Size: size, Err: err}
	}

	buf := &SharedBuffer{
		serial: serials.Add(1),
		format: format,
		size:   size,
		alloc:  a,
		back:   back,
		refs:   1,
	}
	logger().Debug("buffer allocated",
		"serial", buf.serial, "size", size, "kind", back.kind().String())
	return buf, nil
}

func (a *Allocator) newBacking(format gputypes.TextureFormat, size image.Point, usage Usage) (backing, error) {
	wantGPU := usage == UsageGPU || (usage == UsageAuto && a.GPUAvailable())
	if wantGPU {
		switch {
		case a.halDevice != nil:
			return newHALBacking(a.halDevice, a.halQueue, format, size)
		case a.creator != nil:
			return newTextureBacking(a.creator, size), nil
		default:
			return nil, ErrNoGPUBacking
		}
	}
	return newMemoryBacking(a.shm, size)
}

func (a *Allocator) failf(format gputypes.TextureFormat, size image.Point, msg string, args ...any) error {
	return &AllocationError{Format: format, Size: size, Err: fmt.Errorf(msg, args...)}
}
