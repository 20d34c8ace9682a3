// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !linux

package buffer

// NewMemfdFactory is only available on Linux. On other platforms it returns
// nil, which makes the allocator fall back to heap segments; platform
// integrations supply their own ShmFactory instead.
func NewMemfdFactory(name string) ShmFactory { return nil }
