package imagebridge

import (
	"github.com/gogpu/imagebridge/buffer"
	"github.com/gogpu/imagebridge/internal/logging"
)

// BridgePublisher serves producers that deliver frames to the compositor
// through a side channel (an image bridge process). It never touches frame
// buffers; it only keeps the compositable attached to the producer's async
// container, re-attaching when the container handle changes.
//
// Not safe for concurrent use; serialize Update calls per publisher.
type BridgePublisher struct {
	fwd      Forwarder
	layer    LayerRef
	last     ContainerHandle
	detached bool
}

func newBridgePublisher(fwd Forwarder, o publisherOptions) *BridgePublisher {
	return &BridgePublisher{fwd: fwd, layer: o.layer}
}

// Type returns CompositableBridge.
func (p *BridgePublisher) Type() CompositableType { return CompositableBridge }

// Update attaches the source's async container to the bound layer when the
// container handle changed since the last call. A source without a handle
// yet (remote endpoint not ready) is success-without-action: the handle will
// arrive with a later generation, and recreating the publisher would not
// speed that up.
func (p *BridgePublisher) Update(src FrameSource) error {
	if p.detached {
		return ErrDetached
	}
	if p.fwd == nil || p.layer == 0 {
		return ErrNoLayer
	}

	h := src.ContainerHandle()
	if h == p.last {
		return nil
	}
	p.last = h
	if h.IsZero() {
		return nil
	}

	p.fwd.AttachAsyncCompositable(h, p.layer)
	logging.Logger().Debug("async compositable attached",
		"container", h.String(), "layer", uint64(p.layer))
	return nil
}

// ForwardedTexture always returns nil: frame delivery happens on the bridge
// process's side channel, not through this publisher.
func (p *BridgePublisher) ForwardedTexture() *buffer.SharedBuffer { return nil }

// FlushAll is a no-op: the bridge publisher holds no buffers.
func (p *BridgePublisher) FlushAll() {}

// Detach makes the publisher reject further updates.
func (p *BridgePublisher) Detach() {
	p.detached = true
	p.last = ContainerHandle{}
}
