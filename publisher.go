package imagebridge

import (
	"errors"
	"fmt"

	"github.com/gogpu/imagebridge/buffer"
)

// Publisher errors.
var (
	// ErrDetached is returned by Update after the publisher's compositable
	// has been torn down. Detach is terminal; create a new publisher.
	ErrDetached = errors.New("imagebridge: publisher detached")

	// ErrNoAllocator is returned when a frame needs the copy path but the
	// publisher was created without an allocator.
	ErrNoAllocator = errors.New("imagebridge: no allocator configured")

	// ErrNoLayer is returned by a bridge publisher without a bound layer.
	ErrNoLayer = errors.New("imagebridge: no layer bound")

	// ErrNilSurface is returned when a frame's Surface produced no pixel
	// content for the copy path.
	ErrNilSurface = errors.New("imagebridge: frame has no surface")
)

// CompositableType selects the publisher variant for a compositable. The
// set is closed: it is part of the client/compositor protocol, and both
// sides must agree on it.
type CompositableType uint8

const (
	// CompositableImage is a single-buffered image stream: the publisher
	// uploads frame content into shared buffers per publish cycle.
	CompositableImage CompositableType = iota

	// CompositableBridge is an async image stream delivered through a
	// bridge process: the publisher only attaches the container handle.
	CompositableBridge

	// CompositableUnknown is the out-of-band value for a compositable the
	// remote side did not recognize.
	CompositableUnknown
)

// String returns the type name for logs and errors.
func (t CompositableType) String() string {
	switch t {
	case CompositableImage:
		return "image"
	case CompositableBridge:
		return "bridge"
	case CompositableUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("CompositableType(%d)", uint8(t))
	}
}

// Flags adjust how a publisher treats buffers it creates.
type Flags uint32

const (
	// FlagsDefault requests no special treatment.
	FlagsDefault Flags = 0

	// FlagCPUOnly forces CPU-backed buffers even when a GPU backing is
	// available, for compositors that upload on their own side.
	FlagCPUOnly Flags = 1 << iota

	// FlagNonPremultiplied marks produced content as straight alpha.
	FlagNonPremultiplied
)

// Publisher is the client-side state machine that keeps a compositable in
// sync with a frame source. Implementations are not safe for concurrent
// use: Update must be serialized per publisher, on the producer's
// goroutine.
type Publisher interface {
	// Update diffs the source's current snapshot against the working set
	// and forwards the difference. A nil return means the compositable is
	// in sync (including the empty-snapshot and no-op fast paths). On a
	// non-nil return the working set is unchanged and the caller decides
	// whether to retry on the next cycle.
	Update(src FrameSource) error

	// ForwardedTexture returns the first buffer of the working set, or
	// nil when nothing is forwarded.
	ForwardedTexture() *buffer.SharedBuffer

	// Detach clears all bindings without issuing remove instructions; the
	// compositable itself is being torn down, so per-texture removal is
	// redundant. Terminal: Update fails afterwards.
	Detach()

	// FlushAll forcibly removes and clears all bindings. Used on
	// teardown paths where the compositable outlives this stream.
	FlushAll()

	// Type returns the compositable type the publisher serves.
	Type() CompositableType
}

// Option configures a publisher at creation.
type Option func(*publisherOptions)

type publisherOptions struct {
	alloc *buffer.Allocator
	flags Flags
	layer LayerRef
}

// WithAllocator supplies the buffer allocator used for the copy path.
// Single-buffered publishers need one unless every frame pre-binds its own
// buffers.
func WithAllocator(a *buffer.Allocator) Option {
	return func(o *publisherOptions) { o.alloc = a }
}

// WithFlags sets the publisher's buffer flags.
func WithFlags(f Flags) Option {
	return func(o *publisherOptions) { o.flags = f }
}

// WithLayer binds the layer a bridge publisher attaches containers to.
func WithLayer(l LayerRef) Option {
	return func(o *publisherOptions) { o.layer = l }
}

// NewPublisher creates the publisher variant for a compositable type.
//
// CompositableUnknown returns nil: the remote side did not recognize the
// compositable and the caller treats the stream as absent. Any value
// outside the closed type set panics: it means client and compositor
// disagree on the protocol itself, which cannot be reconciled at runtime.
func NewPublisher(t CompositableType, fwd Forwarder, opts ...Option) Publisher {
	var o publisherOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch t {
	case CompositableImage:
		return newSinglePublisher(fwd, o)
	case CompositableBridge:
		return newBridgePublisher(fwd, o)
	case CompositableUnknown:
		return nil
	default:
		panic(fmt.Sprintf("imagebridge: unhandled compositable type %d", uint8(t)))
	}
}
