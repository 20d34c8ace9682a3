// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build linux

package buffer

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// memfdFactory creates anonymous shared-memory segments with memfd_create.
// The resulting file descriptor can be passed to the compositor process over
// the channel's transport; the segment ID in descriptors is the descriptor
// number in this process.
type memfdFactory struct {
	name string
}

// NewMemfdFactory returns a ShmFactory backed by memfd_create. name is the
// debug name visible in /proc/<pid>/fd; it does not need to be unique.
func NewMemfdFactory(name string) ShmFactory {
	if name == "" {
		name = "imagebridge-shm"
	}
	return &memfdFactory{name: name}
}

func (f *memfdFactory) Create(size int) (Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSize, size)
	}

	fd, err := unix.MemfdCreate(f.name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	// Prevent either side from shrinking the mapping under the other.
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK); err != nil {
		logger().Warn("memfd seal failed", "err", err)
	}

	return &memfdSegment{fd: fd, data: data}, nil
}

type memfdSegment struct {
	fd   int
	data []byte
}

func (s *memfdSegment) Bytes() []byte { return s.data }

func (s *memfdSegment) ID() uint64 { return uint64(s.fd) }

func (s *memfdSegment) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := unix.Close(s.fd); err == nil {
		err = cerr
	}
	return err
}

// Fd returns the underlying file descriptor for transports that pass it to
// the compositor process.
func (s *memfdSegment) Fd() int { return s.fd }
