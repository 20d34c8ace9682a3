// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package display

import (
	"fmt"
	"sync"

	"github.com/gogpu/imagebridge/internal/logging"
)

// DefaultCapacity bounds the default registry: one connection per event
// loop that talks to the display (UI, compositor, media).
const DefaultCapacity = 3

// CapacityError reports that registering another connection would exceed
// the registry's bound. It indicates a configuration problem (a loop
// leaking connections), not a runtime condition to retry.
type CapacityError struct {
	// Capacity is the registry's configured bound.
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("display: connection capacity %d exceeded", e.Capacity)
}

// Registry is a process-wide set of display connections keyed by
// (display, owner).
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	capacity int
	conns    map[Key]*Connection
}

// NewRegistry returns an empty registry bounded to capacity connections.
// Non-positive capacities fall back to DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		conns:    make(map[Key]*Connection),
	}
}

// defaultRegistry serves the package-level helpers.
var defaultRegistry = NewRegistry(DefaultCapacity)

// Get returns the registered connection for key, if any.
func (r *Registry) Get(key Key) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[key]
	return c, ok
}

// GetOrCreate returns the connection for key, creating and registering it
// with the given options when absent. Options are ignored for an existing
// connection. Returns a *CapacityError when creating would exceed the
// registry's bound.
func (r *Registry) GetOrCreate(key Key, opts ...ConnectionOption) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[key]; ok {
		return c, nil
	}
	if len(r.conns) >= r.capacity {
		return nil, &CapacityError{Capacity: r.capacity}
	}

	c := &Connection{key: key}
	for _, opt := range opts {
		opt(c)
	}
	r.conns[key] = c
	logging.Logger().Debug("display connection registered",
		"display", key.Display, "owner", key.Owner)
	return c, nil
}

// Remove unregisters and shuts down the connection for key.
func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	c, ok := r.conns[key]
	delete(r.conns, key)
	r.mu.Unlock()
	if ok {
		c.Shutdown()
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// ShutdownAll shuts down every registered connection, keeping the entries
// registered. Called on process teardown before the event loops stop.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()
	for _, c := range conns {
		c.Shutdown()
	}
}

// DispatchAll pumps every registered connection's event queue. Loops that
// cannot pump their own queue are serviced here.
func (r *Registry) DispatchAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()
	for _, c := range conns {
		c.Dispatch()
	}
}

// GetOrCreate returns the connection for key from the default registry.
func GetOrCreate(key Key, opts ...ConnectionOption) (*Connection, error) {
	return defaultRegistry.GetOrCreate(key, opts...)
}

// Get returns the connection for key from the default registry.
func Get(key Key) (*Connection, bool) {
	return defaultRegistry.Get(key)
}

// ShutdownAll shuts down every connection in the default registry.
func ShutdownAll() {
	defaultRegistry.ShutdownAll()
}

// DispatchAll pumps every connection in the default registry.
func DispatchAll() {
	defaultRegistry.DispatchAll()
}
