// Package imagebridge publishes application-visible images to an
// out-of-process compositor.
//
// # Overview
//
// A producer (video decoder, canvas, camera pipeline) hands frames to a
// [FrameSource]. A [Publisher] diffs the source's current frames against its
// retained working set, obtains or recycles a [buffer.SharedBuffer] per frame,
// and forwards the result to the remote compositor through a [Forwarder].
// Buffers are reference counted and recycled across frames so that an
// unchanged frame never triggers a reallocation or a re-upload.
//
// # Quick Start
//
//	alloc := buffer.NewAllocator(channel)
//	pub := imagebridge.NewPublisher(imagebridge.CompositableImage, fwd,
//	    imagebridge.WithAllocator(alloc))
//
//	// Per composited frame, on the producer's goroutine:
//	if err := pub.Update(source); err != nil {
//	    // Skip this composite; retry on the next cycle.
//	}
//
// # Publisher variants
//
// [CompositableImage] selects the single-buffered publisher, which uploads
// frame content into shared buffers managed by this process.
// [CompositableBridge] selects the bridge publisher, which only attaches the
// producer's async container handle and leaves frame delivery to a side
// channel (an image bridge process).
//
// # Concurrency
//
// Publisher.Update is invoked synchronously on a single producer-owned
// goroutine and is not reentrant; callers serialize calls per publisher.
// Forwarding is asynchronous and fire-and-forget: the publisher never blocks
// waiting for compositor acknowledgement. The [Forwarder] guarantees that
// instructions from one publisher are applied in issue order (per-client
// FIFO); no ordering holds across publishers.
//
// # Logging
//
// The package is silent by default. Call [SetLogger] to enable structured
// logging; sub-packages (buffer/, display/) share the same logger.
package imagebridge
