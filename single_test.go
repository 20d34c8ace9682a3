package imagebridge

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/gogpu/imagebridge/buffer"
)

// fwdOp records one forwarder instruction in issue order.
type fwdOp struct {
	kind      string // "use", "remove", "attach"
	handle    CompositableHandle
	serials   []uint64 // buffer serials, for "use"
	buf       *buffer.SharedBuffer
	container ContainerHandle
	layer     LayerRef
}

// recordingForwarder captures instructions in the order they were issued.
type recordingForwarder struct {
	ops      []fwdOp
	syncObjs []buffer.SyncObject
}

func (f *recordingForwarder) UseTextures(c CompositableHandle, frames []FrameDescriptor) {
	op := fwdOp{kind: "use", handle: c}
	for _, fr := range frames {
		op.serials = append(op.serials, fr.Buffer.Serial())
	}
	f.ops = append(f.ops, op)
}

func (f *recordingForwarder) RemoveTexture(c CompositableHandle, buf *buffer.SharedBuffer) {
	f.ops = append(f.ops, fwdOp{kind: "remove", handle: c, buf: buf})
}

func (f *recordingForwarder) AttachAsyncCompositable(h ContainerHandle, layer LayerRef) {
	f.ops = append(f.ops, fwdOp{kind: "attach", container: h, layer: layer})
}

func (f *recordingForwarder) SyncObject() buffer.SyncObject {
	if len(f.syncObjs) == 0 {
		return nil
	}
	return f.syncObjs[0]
}

// kinds returns the op kinds in issue order, for compact assertions.
func (f *recordingForwarder) kinds() []string {
	out := make([]string, len(f.ops))
	for i, op := range f.ops {
		out[i] = op.kind
	}
	return out
}

// testFrame is a minimal FrameHandle for publisher tests.
type testFrame struct {
	serial  uint64
	img     image.Image
	invalid bool
	bound   map[Forwarder]*buffer.SharedBuffer
	surfErr error
	nilSurf bool
}

func newTestFrame(serial uint64, w, h int) *testFrame {
	return &testFrame{serial: serial, img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func (f *testFrame) Valid() bool    { return !f.invalid }
func (f *testFrame) Serial() uint64 { return f.serial }

func (f *testFrame) PictureRect() image.Rectangle {
	if f.img == nil {
		return image.Rectangle{}
	}
	return f.img.Bounds()
}

func (f *testFrame) BoundBuffer(fwd Forwarder) *buffer.SharedBuffer { return f.bound[fwd] }

func (f *testFrame) Surface() (image.Image, error) {
	if f.surfErr != nil {
		return nil, f.surfErr
	}
	if f.nilSurf {
		return nil, nil
	}
	return f.img, nil
}

// testSource is a FrameSource backed by a settable snapshot.
type testSource struct {
	frames []TimedFrame
	gen    uint64
	handle ContainerHandle
}

func (s *testSource) CurrentFrames() ([]TimedFrame, uint64) { return s.frames, s.gen }
func (s *testSource) ContainerHandle() ContainerHandle      { return s.handle }

func (s *testSource) set(gen uint64, frames ...FrameHandle) {
	s.gen = gen
	s.frames = s.frames[:0]
	for i, f := range frames {
		s.frames = append(s.frames, TimedFrame{
			Frame:      f,
			Timestamp:  time.Unix(int64(i), 0),
			FrameID:    int64(i + 1),
			ProducerID: uuid.Nil,
		})
	}
}

func newTestPublisher(t *testing.T, opts ...Option) (*SinglePublisher, *recordingForwarder, *buffer.LocalChannel) {
	t.Helper()
	fwd := &recordingForwarder{}
	ch := buffer.NewLocalChannel()
	all := append([]Option{WithAllocator(buffer.NewAllocator(ch))}, opts...)
	p := NewPublisher(CompositableImage, fwd, all...)
	sp, ok := p.(*SinglePublisher)
	if !ok {
		t.Fatalf("NewPublisher(CompositableImage) = %T, want *SinglePublisher", p)
	}
	return sp, fwd, ch
}

func TestUpdatePublishesSnapshot(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	src := &testSource{}
	src.set(1, newTestFrame(10, 8, 8))

	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	if got := fwd.kinds(); len(got) != 1 || got[0] != "use" {
		t.Fatalf("forwarder ops = %v, want [use]", got)
	}
	buf := p.ForwardedTexture()
	if buf == nil {
		t.Fatal("ForwardedTexture() = nil after successful publish")
	}
	if !buf.Attached() {
		t.Error("forwarded buffer is not attached")
	}
	if got := fwd.ops[0].serials; len(got) != 1 || got[0] != buf.Serial() {
		t.Errorf("UseTextures serials = %v, want [%d]", got, buf.Serial())
	}
}

func TestUpdateGenerationFastPath(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	src := &testSource{}
	src.set(5, newTestFrame(10, 8, 8))

	if err := p.Update(src); err != nil {
		t.Fatalf("first Update() = %v, want nil", err)
	}
	before := len(fwd.ops)
	buf := p.ForwardedTexture()

	// Same generation: no snapshot read side effects, no forwarding.
	if err := p.Update(src); err != nil {
		t.Fatalf("second Update() = %v, want nil", err)
	}
	if len(fwd.ops) != before {
		t.Errorf("fast path issued %d forwarder ops, want 0", len(fwd.ops)-before)
	}
	if p.ForwardedTexture() != buf {
		t.Error("fast path changed the forwarded buffer")
	}
}

func TestUpdateEmptySnapshotSucceeds(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	src := &testSource{}
	src.set(1, newTestFrame(10, 8, 8))
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	buf := p.ForwardedTexture()

	// A producer clearing its frames mid-flight is not an error.
	src.set(2)
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() on empty snapshot = %v, want nil", err)
	}
	if got := fwd.kinds(); len(got) != 2 || got[1] != "remove" {
		t.Fatalf("forwarder ops = %v, want [use remove]", got)
	}
	if p.ForwardedTexture() != nil {
		t.Error("ForwardedTexture() != nil after empty snapshot")
	}
	if !buf.Destroyed() {
		t.Error("removed buffer was not destroyed")
	}

	// The empty generation is recorded: re-running it is the fast path.
	before := len(fwd.ops)
	if err := p.Update(src); err != nil {
		t.Fatalf("repeat Update() = %v, want nil", err)
	}
	if len(fwd.ops) != before {
		t.Error("empty snapshot re-run issued forwarder ops")
	}
}

func TestUpdateInvalidFramesFiltered(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	src := &testSource{}
	bad := newTestFrame(10, 8, 8)
	bad.invalid = true
	good := newTestFrame(11, 8, 8)
	src.set(1, bad, good)

	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	if got := fwd.ops[0].serials; len(got) != 1 {
		t.Fatalf("UseTextures forwarded %d frames, want 1", len(got))
	}
}

func TestUpdateAllInvalidIsEmptySnapshot(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	src := &testSource{}
	bad := newTestFrame(10, 8, 8)
	bad.invalid = true
	src.set(1, bad)

	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	if len(fwd.ops) != 0 {
		t.Errorf("forwarder ops = %v, want none", fwd.kinds())
	}
}

func TestUpdateAllocationFailureLeavesStateUntouched(t *testing.T) {
	fwd := &recordingForwarder{}
	ch := buffer.NewLocalChannel()
	alloc := buffer.NewAllocator(ch, buffer.WithMaxDim(16))
	p := NewPublisher(CompositableImage, fwd, WithAllocator(alloc)).(*SinglePublisher)

	frameA := newTestFrame(10, 8, 8)
	src := &testSource{}
	src.set(1, frameA)
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	bufA := p.ForwardedTexture()
	before := len(fwd.ops)

	// Second frame exceeds the allocator's limit; the whole cycle aborts.
	src.set(2, frameA, newTestFrame(11, 32, 32))
	err := p.Update(src)
	if !errors.Is(err, buffer.ErrSizeLimit) {
		t.Fatalf("Update() = %v, want ErrSizeLimit", err)
	}
	var allocErr *buffer.AllocationError
	if !errors.As(err, &allocErr) {
		t.Errorf("Update() error does not wrap *buffer.AllocationError: %v", err)
	}
	if len(fwd.ops) != before {
		t.Errorf("failed cycle issued forwarder ops: %v", fwd.kinds()[before:])
	}
	if p.ForwardedTexture() != bufA {
		t.Error("failed cycle changed the working set")
	}
	if bufA.Destroyed() {
		t.Error("failed cycle destroyed the previously forwarded buffer")
	}

	// The failed generation must not be recorded: the producer fixing the
	// snapshot under the same generation still gets published.
	src.set(2, frameA, newTestFrame(12, 8, 8))
	if err := p.Update(src); err != nil {
		t.Fatalf("retry Update() = %v, want nil", err)
	}
	if got := fwd.ops[len(fwd.ops)-1]; got.kind != "use" || len(got.serials) != 2 {
		t.Errorf("retry forwarded %v, want a use op with 2 frames", got)
	}
}

func TestUpdateAbortReleasesUnforwardedBuffers(t *testing.T) {
	fwd := &recordingForwarder{}
	ch := buffer.NewLocalChannel()
	alloc := buffer.NewAllocator(ch, buffer.WithMaxDim(16))
	p := NewPublisher(CompositableImage, fwd, WithAllocator(alloc)).(*SinglePublisher)

	bound, err := alloc.Allocate(gputypes.TextureFormatRGBA8Unorm, image.Pt(8, 8), buffer.UsageCPU)
	if err != nil {
		t.Fatalf("Allocate() = %v", err)
	}
	frame := newTestFrame(10, 8, 8)
	frame.bound = map[Forwarder]*buffer.SharedBuffer{fwd: bound}

	// The second frame fails allocation, aborting the cycle after the
	// bound buffer has already been taken into the prospective set.
	src := &testSource{}
	src.set(1, frame, newTestFrame(11, 32, 32))
	if err := p.Update(src); !errors.Is(err, buffer.ErrSizeLimit) {
		t.Fatalf("Update() = %v, want ErrSizeLimit", err)
	}

	// Never forwarded: the buffer must not be marked remote-known, and
	// the abort must have returned the cycle's reference.
	if bound.Attached() {
		t.Error("aborted cycle left the buffer attached")
	}
	if got := bound.Refs(); got != 1 {
		t.Errorf("buffer refs after abort = %d, want 1 (caller only)", got)
	}

	// The producer dropping its reference destroys the buffer immediately.
	bound.Release()
	if !bound.Destroyed() {
		t.Error("never-forwarded buffer not destroyed after the last release")
	}
}

func TestUpdateAdditionsBeforeRemovals(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	src := &testSource{}
	src.set(1, newTestFrame(10, 8, 8))
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	bufA := p.ForwardedTexture()

	src.set(2, newTestFrame(11, 8, 8), newTestFrame(12, 8, 8))
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}

	// The compositor must see the replacement list before the removal, or
	// it would composite an empty frame in between.
	got := fwd.kinds()
	want := []string{"use", "use", "remove"}
	if len(got) != len(want) {
		t.Fatalf("forwarder ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("forwarder ops = %v, want %v", got, want)
		}
	}
	if fwd.ops[2].buf != bufA {
		t.Error("remove instruction names the wrong buffer")
	}
	if !bufA.Destroyed() {
		t.Error("replaced buffer was not destroyed")
	}
}

func TestUpdateRecyclesBufferForUnchangedFrame(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	frame := newTestFrame(10, 8, 8)
	src := &testSource{}
	src.set(1, frame)
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	buf := p.ForwardedTexture()

	// Same frame, new generation: the buffer is reused, not reallocated.
	src.set(2, frame)
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	if p.ForwardedTexture() != buf {
		t.Error("unchanged frame was not recycled to the same buffer")
	}
	for _, op := range fwd.ops {
		if op.kind == "remove" {
			t.Errorf("recycling cycle issued a remove: %v", fwd.kinds())
		}
	}
	if buf.Refs() != 1 {
		t.Errorf("recycled buffer refs = %d, want 1", buf.Refs())
	}
}

func TestUpdateFrameBoundBuffer(t *testing.T) {
	fwd := &recordingForwarder{}
	ch := buffer.NewLocalChannel()
	alloc := buffer.NewAllocator(ch)
	// No allocator on the publisher: the frame must supply its own buffer.
	p := NewPublisher(CompositableImage, fwd).(*SinglePublisher)

	buf, err := alloc.Allocate(gputypes.TextureFormatRGBA8Unorm, image.Pt(8, 8), buffer.UsageCPU)
	if err != nil {
		t.Fatalf("Allocate() = %v", err)
	}
	frame := newTestFrame(10, 8, 8)
	frame.bound = map[Forwarder]*buffer.SharedBuffer{fwd: buf}

	src := &testSource{}
	src.set(1, frame)
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	if p.ForwardedTexture() != buf {
		t.Error("pre-bound buffer was not forwarded")
	}
	// One ref for the caller, one taken by the working set.
	if buf.Refs() != 2 {
		t.Errorf("bound buffer refs = %d, want 2", buf.Refs())
	}
}

func TestUpdateClosedChannelSkipsSilently(t *testing.T) {
	p, fwd, ch := newTestPublisher(t)
	frame := newTestFrame(10, 8, 8)
	src := &testSource{}
	src.set(1, frame)
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}
	buf := p.ForwardedTexture()
	before := len(fwd.ops)

	// Compositor restart: the channel closes under the publisher.
	ch.Close()
	src.set(2, frame)
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() after channel close = %v, want nil", err)
	}
	if len(fwd.ops) != before {
		t.Errorf("closed-channel cycle issued forwarder ops: %v", fwd.kinds()[before:])
	}
	if p.ForwardedTexture() != nil {
		t.Error("stale buffer survived in the working set")
	}
	if !buf.Destroyed() {
		t.Error("stale buffer was not released")
	}
}

func TestUpdateGenerationScenario(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	frame := newTestFrame(10, 8, 8)
	src := &testSource{}

	src.set(5, frame)
	if err := p.Update(src); err != nil {
		t.Fatalf("Update(gen=5) = %v", err)
	}
	src.set(5, frame)
	if err := p.Update(src); err != nil {
		t.Fatalf("repeat Update(gen=5) = %v", err)
	}
	if len(fwd.ops) != 1 {
		t.Fatalf("repeat generation forwarded again: %v", fwd.kinds())
	}

	src.set(6, newTestFrame(11, 8, 8))
	if err := p.Update(src); err != nil {
		t.Fatalf("Update(gen=6) = %v", err)
	}
	got := fwd.kinds()
	want := []string{"use", "use", "remove"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("forwarder ops = %v, want %v", got, want)
		}
	}
}

func TestUpdateNoAllocator(t *testing.T) {
	fwd := &recordingForwarder{}
	p := NewPublisher(CompositableImage, fwd).(*SinglePublisher)
	src := &testSource{}
	src.set(1, newTestFrame(10, 8, 8))

	if err := p.Update(src); !errors.Is(err, ErrNoAllocator) {
		t.Fatalf("Update() = %v, want ErrNoAllocator", err)
	}
	if len(fwd.ops) != 0 {
		t.Errorf("failed cycle issued forwarder ops: %v", fwd.kinds())
	}
}

func TestUpdateNilSurface(t *testing.T) {
	p, _, _ := newTestPublisher(t)
	frame := newTestFrame(10, 8, 8)
	frame.nilSurf = true
	src := &testSource{}
	src.set(1, frame)

	if err := p.Update(src); !errors.Is(err, ErrNilSurface) {
		t.Fatalf("Update() = %v, want ErrNilSurface", err)
	}
}

func TestForwardedTextureIsFirstFrame(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	src := &testSource{}
	src.set(1, newTestFrame(10, 8, 8), newTestFrame(11, 8, 8))
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if got := p.ForwardedTexture().Serial(); got != fwd.ops[0].serials[0] {
		t.Errorf("ForwardedTexture serial = %d, want first forwarded %d", got, fwd.ops[0].serials[0])
	}
}

func TestDetach(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	src := &testSource{}
	src.set(1, newTestFrame(10, 8, 8))
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	buf := p.ForwardedTexture()
	before := len(fwd.ops)

	p.Detach()
	// The compositable itself is going away: no per-texture removals.
	if len(fwd.ops) != before {
		t.Errorf("Detach issued forwarder ops: %v", fwd.kinds()[before:])
	}
	if !buf.Destroyed() {
		t.Error("Detach did not release the working set buffer")
	}
	if err := p.Update(src); !errors.Is(err, ErrDetached) {
		t.Errorf("Update() after Detach = %v, want ErrDetached", err)
	}
	p.Detach() // idempotent
}

func TestFlushAll(t *testing.T) {
	p, fwd, _ := newTestPublisher(t)
	frame := newTestFrame(10, 8, 8)
	src := &testSource{}
	src.set(1, frame)
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	buf := p.ForwardedTexture()

	p.FlushAll()
	if got := fwd.kinds(); got[len(got)-1] != "remove" {
		t.Fatalf("forwarder ops = %v, want trailing remove", got)
	}
	if p.ForwardedTexture() != nil {
		t.Error("FlushAll left the working set populated")
	}
	if !buf.Destroyed() {
		t.Error("FlushAll did not release the buffer")
	}

	// FlushAll invalidates the recorded generation: the same snapshot
	// publishes again.
	if err := p.Update(src); err != nil {
		t.Fatalf("Update() after FlushAll = %v", err)
	}
	if p.ForwardedTexture() == nil {
		t.Error("republish after FlushAll forwarded nothing")
	}
}
