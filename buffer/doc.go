// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package buffer provides reference-counted shared image buffers and the
// allocator that produces them.
//
// A [SharedBuffer] is an opaque handle to a block of memory or a GPU texture
// that can be locked for exclusive access, described by a serializable
// [Descriptor], and referenced by a remote compositor process. Buffers are
// created by an [Allocator], which selects between CPU shared-memory and
// GPU texture backings depending on the consuming compositor's capabilities
// and the caller's usage hint.
//
// Buffers are shared between the publishing state machine (which binds them
// to frames) and, transiently, whichever code path writes pixel content into
// them. Ownership is tracked with explicit reference counts: a buffer is
// destroyed when its count reaches zero and it has been detached from the
// remote compositable.
package buffer
