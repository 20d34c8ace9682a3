// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import "sync/atomic"

// Channel represents the cross-process connection that buffers are shared
// over. The allocator consults it before handing out buffers, and publishers
// consult it per frame: a buffer whose channel has closed (the compositor
// process restarted) must never reach the forwarder again.
//
// Implementations must be safe for concurrent use.
type Channel interface {
	// Open reports whether the remote endpoint is still reachable.
	Open() bool
}

// LocalChannel is a Channel for in-process consumers and tests. It starts
// open and can be closed exactly once.
type LocalChannel struct {
	closed atomic.Bool
}

// NewLocalChannel returns an open LocalChannel.
func NewLocalChannel() *LocalChannel { return &LocalChannel{} }

// Open reports whether Close has not been called.
func (c *LocalChannel) Open() bool { return !c.closed.Load() }

// Close marks the channel closed. Close is idempotent.
func (c *LocalChannel) Close() { c.closed.Store(true) }
