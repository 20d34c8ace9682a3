// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gogpu/gputypes"
)

// Descriptor is the serializable description of a SharedBuffer that the
// remote compositor uses to reference it. The forwarding transport carries
// descriptors inside its own messages; the encoding here is self-contained
// CBOR so transports do not need to understand buffer internals.
type Descriptor struct {
	// Serial is the buffer's process-wide unique identity.
	Serial uint64 `cbor:"serial"`

	// Format is the pixel format.
	Format gputypes.TextureFormat `cbor:"format"`

	// Width and Height are the dimensions in pixels.
	Width  uint32 `cbor:"width"`
	Height uint32 `cbor:"height"`

	// Kind is the backing kind.
	Kind Kind `cbor:"kind"`

	// Stride is the row stride in bytes for CPU backings, 0 for GPU.
	Stride uint32 `cbor:"stride,omitempty"`

	// SharedID identifies the shared-memory segment for CPU backings
	// that can be mapped by the remote side, 0 otherwise.
	SharedID uint64 `cbor:"shared_id,omitempty"`
}

// descriptorWire carries Descriptor's fields without its methods. Encoding
// the Descriptor directly would recurse: cbor honors BinaryMarshaler, so
// Marshal would call MarshalBinary which calls Marshal again.
type descriptorWire Descriptor

// MarshalBinary encodes the descriptor as CBOR.
func (d Descriptor) MarshalBinary() ([]byte, error) {
	data, err := cbor.Marshal(descriptorWire(d))
	if err != nil {
		return nil, fmt.Errorf("buffer: descriptor encode: %w", err)
	}
	return data, nil
}

// UnmarshalBinary decodes a CBOR-encoded descriptor.
func (d *Descriptor) UnmarshalBinary(data []byte) error {
	var w descriptorWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("buffer: descriptor decode: %w", err)
	}
	*d = Descriptor(w)
	return nil
}
