// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package container

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/imagebridge"
)

// Container holds a producer's current frames and hands ordered,
// deduplicated snapshots to publishers. It implements
// [imagebridge.FrameSource].
//
// A Container is safe for concurrent use: producers typically set frames
// from a decoder goroutine while a compositing goroutine publishes them.
type Container struct {
	producer uuid.UUID

	mu      sync.Mutex
	frames  []imagebridge.TimedFrame
	gen     uint64
	frameID int64
	handle  imagebridge.ContainerHandle
}

// New returns an empty container with a fresh producer identity.
func New() *Container {
	return &Container{producer: uuid.New()}
}

// ProducerID returns the container's producer identity. Every frame pushed
// through the convenience setters carries it.
func (c *Container) ProducerID() uuid.UUID { return c.producer }

// SetCurrentFrames replaces the current snapshot and bumps the generation.
// Frames must be ordered by presentation time and must not repeat a serial;
// the container takes ownership of the slice.
func (c *Container) SetCurrentFrames(frames []imagebridge.TimedFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.gen++
}

// SetCurrentFrame replaces the snapshot with a single frame, assigning the
// next frame sequence number and this container's producer identity.
func (c *Container) SetCurrentFrame(f imagebridge.FrameHandle, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameID++
	c.frames = []imagebridge.TimedFrame{{
		Frame:      f,
		Timestamp:  ts,
		FrameID:    c.frameID,
		ProducerID: c.producer,
	}}
	c.gen++
}

// ClearAllFrames empties the snapshot and bumps the generation. Publishers
// observe the empty snapshot as success and clear their working sets.
func (c *Container) ClearAllFrames() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
	c.gen++
}

// CurrentFrames returns a copy of the current snapshot and its generation.
func (c *Container) CurrentFrames() ([]imagebridge.TimedFrame, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([]imagebridge.TimedFrame, len(c.frames))
	copy(frames, c.frames)
	return frames, c.gen
}

// Generation returns the current generation counter.
func (c *Container) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// ContainerHandle returns the async container identity assigned by the
// bridge endpoint, or the zero handle before assignment.
func (c *Container) ContainerHandle() imagebridge.ContainerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// SetContainerHandle records the identity the bridge endpoint assigned.
// Passing the zero handle disconnects the container.
func (c *Container) SetContainerHandle(h imagebridge.ContainerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = h
}
