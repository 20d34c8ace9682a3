// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// halBacking stores pixel content in a wgpu HAL texture owned by this
// process. Used when the allocator is configured with a HAL device and
// queue, which gives direct control over upload without a host context.
type halBacking struct {
	device    hal.Device
	queue     hal.Queue
	tex       hal.Texture
	size      image.Point
	destroyed bool
}

func newHALBacking(device hal.Device, queue hal.Queue, format gputypes.TextureFormat, size image.Point) (*halBacking, error) {
	desc := &hal.TextureDescriptor{
		Label: "imagebridge shared buffer",
		Size: hal.Extent3D{
			Width:              uint32(size.X),
			Height:             uint32(size.Y),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        halTextureFormat(format),
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	}

	tex, err := device.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("HAL texture creation failed: %w", err)
	}

	return &halBacking{device: device, queue: queue, tex: tex, size: size}, nil
}

// halTextureFormat maps the public pixel format to the HAL format enum.
func halTextureFormat(format gputypes.TextureFormat) gputypes.TextureFormat {
	switch format {
	case gputypes.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

func (h *halBacking) kind() Kind       { return KindTexture }
func (h *halBacking) stride() int      { return 0 }
func (h *halBacking) sharedID() uint64 { return 0 }

func (h *halBacking) write(src image.Image, rect image.Rectangle) error {
	if src == nil {
		return ErrNilSource
	}
	if h.destroyed {
		return ErrBufferDestroyed
	}
	data := convertToRGBA(src, h.size)

	dst := &hal.ImageCopyTexture{
		Texture:  h.tex,
		MipLevel: 0,
		Origin:   hal.Origin3D{X: 0, Y: 0, Z: 0},
		Aspect:   gputypes.TextureAspectAll,
	}
	layout := &hal.ImageDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(h.size.X * 4),
		RowsPerImage: uint32(h.size.Y),
	}
	extent := &hal.Extent3D{
		Width:              uint32(h.size.X),
		Height:             uint32(h.size.Y),
		DepthOrArrayLayers: 1,
	}
	h.queue.WriteTexture(dst, data, layout, extent)
	return nil
}

func (h *halBacking) destroy() {
	if h.destroyed {
		return
	}
	h.destroyed = true
	h.device.DestroyTexture(h.tex)
}

// Texture returns the underlying HAL texture.
func (h *halBacking) Texture() hal.Texture { return h.tex }
