// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
)

// Common errors returned by buffer operations.
var (
	// ErrChannelClosed is returned when the cross-process channel backing
	// the allocator has been torn down (compositor process restart).
	ErrChannelClosed = errors.New("buffer: channel closed")

	// ErrInvalidSize is returned when the requested dimensions are zero
	// or negative.
	ErrInvalidSize = errors.New("buffer: invalid size")

	// ErrSizeLimit is returned when the requested dimensions exceed the
	// allocator's configured limits.
	ErrSizeLimit = errors.New("buffer: size exceeds limit")

	// ErrNoGPUBacking is returned when a GPU backing was required but no
	// texture creator or HAL device is configured.
	ErrNoGPUBacking = errors.New("buffer: no GPU backing available")

	// ErrBufferLocked is returned when locking a buffer that already has
	// an outstanding lock.
	ErrBufferLocked = errors.New("buffer: already locked")

	// ErrBufferUnlocked is returned when unlocking a buffer that is not
	// locked.
	ErrBufferUnlocked = errors.New("buffer: not locked")

	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("buffer: destroyed")

	// ErrNilSource is returned when writing nil pixel content into a buffer.
	ErrNilSource = errors.New("buffer: nil source image")
)

// AllocationError reports that a SharedBuffer could not be created. It is
// recoverable: the caller treats the current publish attempt as failed for
// that single frame's cycle, not as fatal for the whole client.
type AllocationError struct {
	// Format is the requested pixel format.
	Format gputypes.TextureFormat

	// Size is the requested dimensions.
	Size image.Point

	// Err is the underlying cause.
	Err error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("buffer: allocation of %dx%d failed: %v", e.Size.X, e.Size.Y, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }
