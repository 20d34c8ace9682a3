// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package display tracks per-event-loop connections to the windowing
// system's display and the capability handles each connection supplies:
// a shared-memory factory, a GPU device provider, a dispatch hook, and the
// pixel formats the compositor advertises.
//
// The publisher core never talks to the display itself; platform
// integration code registers connections here and hands their capabilities
// (for example the shared-memory factory) to buffer allocators.
//
// Connections are keyed by (display identity, owner identity): every event
// loop that talks to the display (UI, compositor, media) operates its own
// connection and event queue. The registry bounds how many connections a
// process may hold; exceeding the bound is a configuration error reported
// as a typed error, not a crash.
package display
