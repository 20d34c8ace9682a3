// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// LockMode describes the access a lock grants.
type LockMode uint8

const (
	// LockNone means no lock is held.
	LockNone LockMode = iota

	// LockRead grants exclusive read access.
	LockRead

	// LockWrite grants exclusive write access.
	LockWrite
)

// SyncObject is an opaque cross-device synchronization token. A forwarder
// may hand one out; buffers record it after each upload so the compositor
// can order its reads against the producer's writes.
type SyncObject interface {
	// Signal marks the producer-side work on the token as complete.
	Signal()
}

// serials hands out process-wide unique buffer identities.
var serials atomic.Uint64

// SharedBuffer is a reference-counted handle to a block of memory or a GPU
// texture that a remote compositor can reference through a serializable
// [Descriptor].
//
// At most one exclusive lock may be outstanding at a time. A buffer whose
// channel has closed must never be handed to a forwarder; callers check
// [SharedBuffer.ChannelOpen] before forwarding.
//
// Lifecycle: created by an [Allocator]; written under a scoped write lock
// during publish; destroyed when the reference count reaches zero and the
// buffer has been detached from the remote compositable.
type SharedBuffer struct {
	serial uint64
	format gputypes.TextureFormat
	size   image.Point
	alloc  *Allocator

	mu        sync.Mutex
	back      backing
	lock      LockMode
	refs      int32
	attached  bool
	destroyed bool
	sync      SyncObject
}

// Serial returns the buffer's process-wide unique identity.
func (b *SharedBuffer) Serial() uint64 { return b.serial }

// Format returns the buffer's pixel format.
func (b *SharedBuffer) Format() gputypes.TextureFormat { return b.format }

// Size returns the buffer dimensions in pixels.
func (b *SharedBuffer) Size() image.Point { return b.size }

// Kind returns the backing kind.
func (b *SharedBuffer) Kind() Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.back == nil {
		return KindMemory
	}
	return b.back.kind()
}

// ChannelOpen reports whether the cross-process channel the buffer was
// allocated for is still open. A closed channel means the compositor process
// restarted; the buffer is silently dropped from working sets.
func (b *SharedBuffer) ChannelOpen() bool {
	return b.alloc != nil && b.alloc.channel.Open()
}

// Allocator returns the allocator that produced this buffer.
func (b *SharedBuffer) Allocator() *Allocator { return b.alloc }

// Retain increments the reference count. Every Retain must be balanced by
// a Release.
func (b *SharedBuffer) Retain() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		panic("buffer: Retain on destroyed buffer")
	}
	b.refs++
}

// Release decrements the reference count. When the count reaches zero and
// the buffer is not attached to a remote compositable, the backing is
// destroyed.
func (b *SharedBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refs <= 0 {
		panic("buffer: Release without matching Retain")
	}
	b.refs--
	b.maybeDestroyLocked()
}

// Refs returns the current reference count. Intended for tests and
// diagnostics; the value may be stale by the time it is observed.
func (b *SharedBuffer) Refs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.refs)
}

// Attach marks the buffer as known to the remote compositable. While
// attached, the buffer stays alive even at zero references: destruction
// waits for the compositor-side removal acknowledged via Detach.
func (b *SharedBuffer) Attach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = true
}

// Detach marks the buffer as removed from the remote compositable. If the
// reference count has already dropped to zero the backing is destroyed now.
func (b *SharedBuffer) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = false
	b.maybeDestroyLocked()
}

// Attached reports whether the buffer is currently attached to the remote
// compositable.
func (b *SharedBuffer) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attached
}

// Destroyed reports whether the backing has been released.
func (b *SharedBuffer) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

func (b *SharedBuffer) maybeDestroyLocked() {
	if b.refs > 0 || b.attached || b.destroyed {
		return
	}
	b.destroyed = true
	if b.back != nil {
		b.back.destroy()
	}
	logger().Debug("buffer destroyed", "serial", b.serial)
}

// Lock acquires the buffer's exclusive lock in the given mode. It fails
// with ErrBufferLocked if a lock is already outstanding and with
// ErrBufferDestroyed after destruction.
func (b *SharedBuffer) Lock(mode LockMode) error {
	if mode == LockNone {
		return fmt.Errorf("%w: LockNone is not a lockable mode", ErrBufferUnlocked)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrBufferDestroyed
	}
	if b.lock != LockNone {
		return ErrBufferLocked
	}
	b.lock = mode
	return nil
}

// Unlock releases the outstanding lock.
func (b *SharedBuffer) Unlock() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lock == LockNone {
		return ErrBufferUnlocked
	}
	b.lock = LockNone
	return nil
}

// Locked returns the currently held lock mode.
func (b *SharedBuffer) Locked() LockMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lock
}

// WriteFrom copies src into the buffer under a scoped write lock. The lock
// is released on every exit path, including conversion failure. rect is the
// destination rectangle in buffer coordinates; pass the buffer's full bounds
// for whole-frame writes.
func (b *SharedBuffer) WriteFrom(src image.Image, rect image.Rectangle) error {
	if err := b.Lock(LockWrite); err != nil {
		return err
	}
	defer func() {
		if err := b.Unlock(); err != nil {
			logger().Warn("buffer unlock failed", "serial", b.serial, "err", err)
		}
	}()
	return b.back.write(src, rect)
}

// Bounds returns the buffer's full destination rectangle.
func (b *SharedBuffer) Bounds() image.Rectangle {
	return image.Rectangle{Max: b.size}
}

// SyncWith records a sync token after an upload. A nil token clears the
// association. The previous token, if any, is signaled so the compositor is
// never left waiting on an abandoned upload.
func (b *SharedBuffer) SyncWith(s SyncObject) {
	b.mu.Lock()
	prev := b.sync
	b.sync = s
	b.mu.Unlock()
	if prev != nil && prev != s {
		prev.Signal()
	}
}

// Descriptor returns the serializable description the remote side uses to
// reference this buffer.
func (b *SharedBuffer) Descriptor() Descriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := Descriptor{
		Serial: b.serial,
		Format: b.format,
		Width:  uint32(b.size.X),
		Height: uint32(b.size.Y),
	}
	if b.back != nil {
		d.Kind = b.back.kind()
		d.Stride = uint32(b.back.stride())
		d.SharedID = b.back.sharedID()
	}
	return d
}
