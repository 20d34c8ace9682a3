// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package display

import (
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/imagebridge/buffer"
)

// Key identifies a connection: which display it talks to and which event
// loop owns it.
type Key struct {
	// Display is the display identity (socket name, address).
	Display string

	// Owner names the event loop operating the connection, for example
	// "ui", "compositor" or "media".
	Owner string
}

// PixelFormat describes a compositor-advertised format and the buffer
// layout modifiers it accepts.
type PixelFormat struct {
	// DRMFormat is the platform format code.
	DRMFormat uint32

	// HasAlpha distinguishes the ARGB-style format from the opaque one.
	HasAlpha bool

	// Modifiers are the accepted layout modifiers, in advertisement
	// order.
	Modifiers []uint64
}

// ConnectionOption configures a connection at registration.
type ConnectionOption func(*Connection)

// WithShmFactory supplies the shared-memory factory the connection's
// compositor accepts buffers from.
func WithShmFactory(f buffer.ShmFactory) ConnectionOption {
	return func(c *Connection) { c.shm = f }
}

// WithDeviceProvider supplies the GPU device the connection can allocate
// native buffers on.
func WithDeviceProvider(p gpucontext.DeviceProvider) ConnectionOption {
	return func(c *Connection) { c.device = p }
}

// WithDispatcher supplies the hook that pumps the connection's event queue.
// Loops other than the UI loop have to pump their own queue.
func WithDispatcher(dispatch func()) ConnectionOption {
	return func(c *Connection) { c.dispatch = dispatch }
}

// Connection is one event loop's connection to the display, carrying the
// capability handles platform bootstrap discovered for it.
//
// A Connection is safe for concurrent use.
type Connection struct {
	key      Key
	shm      buffer.ShmFactory
	device   gpucontext.DeviceProvider
	dispatch func()

	mu       sync.Mutex
	formats  map[bool]*PixelFormat // keyed by HasAlpha
	shutdown bool
}

// Key returns the connection's identity.
func (c *Connection) Key() Key { return c.key }

// Shm returns the connection's shared-memory factory, or nil when the
// compositor only accepts GPU-native buffers.
func (c *Connection) Shm() buffer.ShmFactory { return c.shm }

// Device returns the connection's GPU device provider, or nil.
func (c *Connection) Device() gpucontext.DeviceProvider { return c.device }

// Dispatch pumps the connection's event queue. No-op for connections whose
// loop pumps events itself, and after Shutdown.
func (c *Connection) Dispatch() {
	c.mu.Lock()
	down := c.shutdown
	c.mu.Unlock()
	if down || c.dispatch == nil {
		return
	}
	c.dispatch()
}

// AddFormatModifier records a compositor-advertised (format, modifier)
// pair. Platform bootstrap calls it while processing format advertisements.
func (c *Connection) AddFormatModifier(hasAlpha bool, drmFormat uint32, modifierHi, modifierLo uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.formats == nil {
		c.formats = make(map[bool]*PixelFormat)
	}
	f, ok := c.formats[hasAlpha]
	if !ok {
		f = &PixelFormat{DRMFormat: drmFormat, HasAlpha: hasAlpha}
		c.formats[hasAlpha] = f
	}
	f.Modifiers = append(f.Modifiers, uint64(modifierHi)<<32|uint64(modifierLo))
}

// Format returns the advertised format with or without alpha. The second
// result is false when the compositor never advertised one.
func (c *Connection) Format(hasAlpha bool) (PixelFormat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.formats[hasAlpha]
	if !ok {
		return PixelFormat{}, false
	}
	out := *f
	out.Modifiers = append([]uint64(nil), f.Modifiers...)
	return out, true
}

// Shutdown detaches the connection from its event loop. Further Dispatch
// calls are no-ops. Shutdown is idempotent.
func (c *Connection) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = true
}
