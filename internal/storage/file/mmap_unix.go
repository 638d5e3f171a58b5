//go:build unix

package file

import (
	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type unixMapper struct {
	pageSize int64
}

// NewMapper returns the mapper backed by mmap(2)/munmap(2)/msync(2).
func NewMapper() Mapper {
	return &unixMapper{pageSize: int64(unix.Getpagesize())}
}

func (m *unixMapper) Map(fd int, offset int64, size int, writable bool) (Region, error) {
	if size <= 0 || offset < 0 {
		return Region{}, errors.Wrapf(util.ErrInvalidOffset, "offset %d size %d", offset, size)
	}

	// mmap offsets must be a multiple of the OS page size
	aligned := offset &^ (m.pageSize - 1)
	delta := int(offset - aligned)

	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	base, err := unix.Mmap(fd, aligned, delta+size, prot, unix.MAP_SHARED)
	if err != nil {
		return Region{}, opError(util.ErrMapFailed, err, "mmap fd=%d offset=%d size=%d", fd, offset, size)
	}

	return Region{
		Data: base[delta : delta+size : delta+size],
		Base: base,
		Fd:   fd,
	}, nil
}

func (m *unixMapper) Unmap(r Region) error {
	if !r.Mapped() {
		return util.ErrRegionNotMapped
	}
	if err := unix.Munmap(r.Base); err != nil {
		return opError(util.ErrUnmapFailed, err, "munmap fd=%d len=%d", r.Fd, len(r.Base))
	}
	return nil
}

func (m *unixMapper) Flush(r Region, sync bool) error {
	if !r.Mapped() {
		return util.ErrRegionNotMapped
	}

	flags := unix.MS_ASYNC
	if sync {
		flags = unix.MS_SYNC
	}
	if err := unix.Msync(r.Base, flags); err != nil {
		return opError(util.ErrFlushFailed, err, "msync fd=%d len=%d", r.Fd, len(r.Base))
	}
	return nil
}
