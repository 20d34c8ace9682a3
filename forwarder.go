package imagebridge

import (
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/imagebridge/buffer"
)

// CompositableHandle identifies a client's compositable: the remote-side
// object representing its image stream.
type CompositableHandle uuid.UUID

// NewCompositableHandle returns a fresh, unique compositable handle.
func NewCompositableHandle() CompositableHandle {
	return CompositableHandle(uuid.New())
}

// String returns the handle in UUID form.
func (h CompositableHandle) String() string { return uuid.UUID(h).String() }

// ContainerHandle identifies a producer's async image container in the
// compositor process. The zero handle means the remote endpoint has not
// assigned one yet.
type ContainerHandle uuid.UUID

// NewContainerHandle returns a fresh, unique container handle.
func NewContainerHandle() ContainerHandle {
	return ContainerHandle(uuid.New())
}

// IsZero reports whether the handle has not been assigned.
func (h ContainerHandle) IsZero() bool { return uuid.UUID(h) == uuid.Nil }

// String returns the handle in UUID form.
func (h ContainerHandle) String() string { return uuid.UUID(h).String() }

// LayerRef identifies the layer a compositable is attached to. The zero
// value means no layer is bound.
type LayerRef uint64

// FrameDescriptor carries one frame of a batched forwarding instruction:
// the buffer holding the content plus its presentation metadata. Descriptors
// are constructed per publish cycle and consumed immediately by the
// forwarder; they are not retained.
type FrameDescriptor struct {
	// Buffer holds the frame content. Never nil, and its channel is open
	// at the time the descriptor is built.
	Buffer *buffer.SharedBuffer

	// Timestamp is the presentation time.
	Timestamp time.Time

	// PictureRect is the visible sub-rectangle within the buffer.
	PictureRect image.Rectangle

	// FrameID is the producer's frame sequence number.
	FrameID int64

	// ProducerID identifies the producer that generated the frame.
	ProducerID uuid.UUID
}

// Forwarder is the remote-process channel that carries compositing
// instructions to the compositor. Calls are asynchronous and fire-and-forget;
// the publisher never blocks on compositor acknowledgement.
//
// Implementations must apply instructions from one publisher in the order
// they were issued, including across Update cycles (strict per-client FIFO).
// No ordering is guaranteed relative to a different publisher's instructions.
type Forwarder interface {
	// UseTextures atomically replaces the compositable's frame list with
	// the given descriptors.
	UseTextures(c CompositableHandle, frames []FrameDescriptor)

	// RemoveTexture drops a buffer from the compositable. Publishers issue
	// removals only after the replacement frame list has been forwarded,
	// so the compositor never shows an empty frame mid-swap.
	RemoveTexture(c CompositableHandle, buf *buffer.SharedBuffer)

	// AttachAsyncCompositable binds a producer's async container to a
	// layer, for producers that publish through an image bridge process.
	AttachAsyncCompositable(h ContainerHandle, layer LayerRef)

	// SyncObject returns the cross-device synchronization token buffers
	// record after upload, or nil when the transport needs none.
	SyncObject() buffer.SyncObject
}
