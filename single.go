package imagebridge

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/imagebridge/buffer"
	"github.com/gogpu/imagebridge/internal/logging"
)

// workingSet is the publisher's mapping from frame identity to bound buffer,
// kept in snapshot order. Lookup is O(1); iteration follows insertion order
// so forwarded frame lists and teardown match the producer's ordering.
type workingSet struct {
	order []uint64
	by    map[uint64]*buffer.SharedBuffer
}

func newWorkingSet() *workingSet {
	return &workingSet{by: make(map[uint64]*buffer.SharedBuffer)}
}

func (s *workingSet) len() int { return len(s.order) }

// add binds a buffer to a frame identity. At most one binding per identity:
// adding an already-bound identity is a programming error upstream, so it
// replaces the binding and reports false.
func (s *workingSet) add(serial uint64, buf *buffer.SharedBuffer) bool {
	if _, exists := s.by[serial]; exists {
		s.by[serial] = buf
		return false
	}
	s.order = append(s.order, serial)
	s.by[serial] = buf
	return true
}

func (s *workingSet) get(serial uint64) (*buffer.SharedBuffer, bool) {
	buf, ok := s.by[serial]
	return buf, ok
}

// first returns the buffer bound earliest in snapshot order, or nil.
func (s *workingSet) first() *buffer.SharedBuffer {
	if len(s.order) == 0 {
		return nil
	}
	return s.by[s.order[0]]
}

// each calls fn for every binding in snapshot order.
func (s *workingSet) each(fn func(serial uint64, buf *buffer.SharedBuffer)) {
	for _, serial := range s.order {
		fn(serial, s.by[serial])
	}
}

// SinglePublisher is the single-buffered publisher: it keeps the remote
// compositable's frame list in sync with a frame source by uploading frame
// content into shared buffers and batching use/remove instructions per
// Update cycle.
//
// Not safe for concurrent use; serialize Update calls per publisher.
type SinglePublisher struct {
	fwd    Forwarder
	alloc  *buffer.Allocator
	flags  Flags
	handle CompositableHandle

	set      *workingSet
	lastGen  uint64
	genValid bool
	detached bool
}

func newSinglePublisher(fwd Forwarder, o publisherOptions) *SinglePublisher {
	return &SinglePublisher{
		fwd:    fwd,
		alloc:  o.alloc,
		flags:  o.flags,
		handle: NewCompositableHandle(),
		set:    newWorkingSet(),
	}
}

// Type returns CompositableImage.
func (p *SinglePublisher) Type() CompositableType { return CompositableImage }

// Handle returns the publisher's compositable handle.
func (p *SinglePublisher) Handle() CompositableHandle { return p.handle }

// Update implements the publish cycle. See Publisher.Update for the
// contract; the cycle is all-or-nothing: on error the working set and the
// forwarded state are exactly what they were before the call.
func (p *SinglePublisher) Update(src FrameSource) error {
	if p.detached {
		return ErrDetached
	}

	frames, gen := src.CurrentFrames()

	// Unchanged generation means an unchanged snapshot. This fast path is
	// load-bearing: producers call Update once per composite, far more
	// often than frames change.
	if p.genValid && gen == p.lastGen {
		return nil
	}

	live := frames[:0:0]
	for _, tf := range frames {
		// A frame can be invalidated between snapshot capture and this
		// publish by producer teardown on another goroutine.
		if tf.Frame != nil && tf.Frame.Valid() {
			live = append(live, tf)
		}
	}

	if len(live) == 0 {
		// A racing producer clear, or all frames invalid. Not an error:
		// failing here would make the owner tear down and recreate the
		// publisher, which cannot help.
		p.set.each(func(_ uint64, buf *buffer.SharedBuffer) {
			p.removeTexture(buf)
		})
		p.set = newWorkingSet()
		p.recordGen(gen)
		return nil
	}

	next := newWorkingSet()
	descriptors := make([]FrameDescriptor, 0, len(live))
	carried := make(map[uint64]bool) // old-set serials consumed this cycle
	var skipped []*buffer.SharedBuffer

	// abort unwinds everything this cycle created, leaving old-set
	// references untouched.
	abort := func(err error) error {
		next.each(func(serial uint64, buf *buffer.SharedBuffer) {
			if !carried[serial] {
				buf.Release()
			}
		})
		return err
	}

	for _, tf := range live {
		frame := tf.Frame
		serial := frame.Serial()
		if _, dup := next.get(serial); dup {
			continue
		}

		old, hadOld := p.set.get(serial)

		// Fast path: the frame itself owns a buffer bound to this
		// forwarder (hardware decoders, canvas surfaces).
		buf := frame.BoundBuffer(p.fwd)
		frameBound := buf != nil

		// Recycling path: an unchanged frame keeps its buffer from the
		// previous cycle instead of reallocating. The old binding's
		// reference transfers to the new working set.
		reused := false
		if hadOld && !carried[serial] && (buf == nil || buf == old) {
			buf = old
			carried[serial] = true
			reused = true
		}

		// Copy path: allocate and fill a new buffer.
		allocated := false
		if buf == nil {
			fresh, err := p.allocateFor(tf)
			if err != nil {
				return abort(fmt.Errorf("imagebridge: frame %d: %w", serial, err))
			}
			buf = fresh
			allocated = true
		}

		// The compositor process can restart between producing a frame
		// and publishing it. A closed-channel buffer never enters the
		// new working set; the producer re-surfaces the frame on the
		// next generation.
		if !buf.ChannelOpen() {
			logging.Logger().Warn("dropping frame on closed channel",
				"compositable", p.handle.String(), "serial", serial)
			switch {
			case reused:
				skipped = append(skipped, buf)
			case allocated:
				buf.Release()
			}
			continue
		}

		if frameBound && !reused {
			// The frame keeps its own reference; the working set takes
			// one of its own.
			buf.Retain()
		}

		descriptors = append(descriptors, FrameDescriptor{
			Buffer:      buf,
			Timestamp:   tf.Timestamp,
			PictureRect: frame.PictureRect(),
			FrameID:     tf.FrameID,
			ProducerID:  tf.ProducerID,
		})
		next.add(serial, buf)
	}

	// The cycle can no longer fail. Only now do the forwarded buffers
	// become known to the remote compositable: attaching inside the loop
	// would leave aborted cycles with attached, undestroyable buffers.
	so := p.fwd.SyncObject()
	for _, d := range descriptors {
		d.Buffer.Attach()
		if so != nil {
			d.Buffer.SyncWith(so)
		}
	}

	// Additions go out before removals, always: the compositor must never
	// be told to drop a texture before its replacement is in flight, or
	// it would flicker to an empty frame. This ordering is a contract,
	// not an implementation detail.
	if len(descriptors) > 0 {
		p.fwd.UseTextures(p.handle, descriptors)
	}
	p.set.each(func(serial uint64, buf *buffer.SharedBuffer) {
		if !carried[serial] {
			p.removeTexture(buf)
		}
	})
	for _, buf := range skipped {
		// Left the working set without a remove instruction: the channel
		// is closed, so there is no compositor to instruct.
		buf.Detach()
		buf.Release()
	}

	p.set = next
	p.recordGen(gen)
	return nil
}

// allocateFor is the copy path: allocate a buffer sized for the frame's
// surface and copy the content in under a scoped write lock.
func (p *SinglePublisher) allocateFor(tf TimedFrame) (*buffer.SharedBuffer, error) {
	if p.alloc == nil {
		return nil, ErrNoAllocator
	}
	surf, err := tf.Frame.Surface()
	if err != nil {
		return nil, fmt.Errorf("surface: %w", err)
	}
	if surf == nil {
		return nil, ErrNilSurface
	}

	usage := buffer.UsageAuto
	if p.flags&FlagCPUOnly != 0 {
		usage = buffer.UsageCPU
	}
	buf, err := p.alloc.Allocate(gputypes.TextureFormatRGBA8Unorm, surf.Bounds().Size(), usage)
	if err != nil {
		return nil, err
	}
	if err := buf.WriteFrom(surf, buf.Bounds()); err != nil {
		buf.Release()
		return nil, fmt.Errorf("content copy: %w", err)
	}
	return buf, nil
}

// removeTexture issues the compositor-side removal and drops the working
// set's reference.
func (p *SinglePublisher) removeTexture(buf *buffer.SharedBuffer) {
	p.fwd.RemoveTexture(p.handle, buf)
	buf.Detach()
	buf.Release()
}

// ForwardedTexture returns the first forwarded buffer, or nil.
func (p *SinglePublisher) ForwardedTexture() *buffer.SharedBuffer {
	return p.set.first()
}

// FlushAll forcibly removes every binding from the compositable and clears
// the working set. The publisher remains usable.
func (p *SinglePublisher) FlushAll() {
	p.set.each(func(_ uint64, buf *buffer.SharedBuffer) {
		p.removeTexture(buf)
	})
	p.set = newWorkingSet()
	p.genValid = false
}

// Detach clears all bindings without remove instructions and makes the
// publisher reject further updates. The owner is tearing down the
// compositable itself, so per-texture removal would be redundant traffic.
func (p *SinglePublisher) Detach() {
	if p.detached {
		return
	}
	p.detached = true
	p.set.each(func(_ uint64, buf *buffer.SharedBuffer) {
		buf.Detach()
		buf.Release()
	})
	p.set = newWorkingSet()
	logging.Logger().Info("publisher detached", "compositable", p.handle.String())
}

func (p *SinglePublisher) recordGen(gen uint64) {
	p.lastGen = gen
	p.genValid = true
}
