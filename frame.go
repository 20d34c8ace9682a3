package imagebridge

import (
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/imagebridge/buffer"
)

// FrameHandle is a single application-visible image held by a FrameSource:
// a decoded video frame, a canvas surface, a platform-native buffer.
//
// Implementations are provided by the producer side; the container package
// has a ready-made one.
type FrameHandle interface {
	// Valid reports whether the frame can still be published. Frames race
	// with producer teardown; invalid frames are filtered out silently.
	Valid() bool

	// Serial is the producer's per-frame identity. A frame keeps its
	// serial across publish cycles, which is what enables buffer
	// recycling.
	Serial() uint64

	// PictureRect is the visible sub-rectangle of the frame.
	PictureRect() image.Rectangle

	// BoundBuffer returns a shared buffer the frame itself already owns
	// for this forwarder, or nil. Platform-native frames (hardware
	// decoders) pre-bind buffers; everything else takes the copy path.
	BoundBuffer(f Forwarder) *buffer.SharedBuffer

	// Surface returns the frame's pixel content for the copy path.
	Surface() (image.Image, error)
}

// TimedFrame pairs a frame with its presentation metadata, matching the
// shape of a FrameSource snapshot entry.
type TimedFrame struct {
	Frame      FrameHandle
	Timestamp  time.Time
	FrameID    int64
	ProducerID uuid.UUID
}

// FrameSource is the producer of frames: a decoder queue, a canvas, a
// camera pipeline. It exposes an ordered, deduplicated snapshot of current
// frames plus a monotonically non-decreasing generation counter.
//
// An unchanged generation means the snapshot is unchanged; publishers use
// it as a cheap no-op fast path.
type FrameSource interface {
	// CurrentFrames returns the current snapshot and its generation.
	// The returned slice must not be mutated afterward by the source.
	CurrentFrames() ([]TimedFrame, uint64)

	// ContainerHandle returns the producer's async container identity,
	// or the zero handle when the remote endpoint is not ready. Only
	// bridge publishers use it.
	ContainerHandle() ContainerHandle
}
