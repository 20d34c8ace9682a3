// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package container provides a ready-made frame source: a thread-safe
// container of current frames with a generation counter.
//
// Producers push frames with [Container.SetCurrentFrames] (or the
// single-frame convenience); each push bumps the generation so publishers
// can skip unchanged snapshots. [StaticFrame] wraps an image.Image as a
// publishable frame, with optional pre-bound buffers for producers that
// manage their own GPU resources.
package container
