//go:build windows

package file

import (
	"os"
	"syscall"
	"unsafe"

	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/pkg/errors"
)

// Base on: https://github.com/etcd-io/bbolt/blob/main/bolt_windows.go

// MapViewOfFile offsets must be a multiple of the allocation granularity.
const allocationGranularity = 64 << 10

type windowsMapper struct{}

func NewMapper() Mapper {
	return windowsMapper{}
}

func (windowsMapper) Map(fd int, offset int64, size int, writable bool) (Region, error) {
	if size <= 0 || offset < 0 {
		return Region{}, errors.Wrapf(util.ErrInvalidOffset, "offset %d size %d", offset, size)
	}

	aligned := offset &^ (allocationGranularity - 1)
	delta := int(offset - aligned)
	length := delta + size

	protect, access := uint32(syscall.PAGE_READONLY), uint32(syscall.FILE_MAP_READ)
	if writable {
		protect, access = syscall.PAGE_READWRITE, syscall.FILE_MAP_WRITE
	}

	h, err := syscall.CreateFileMapping(syscall.Handle(fd), nil, protect, 0, 0, nil)
	if err != nil {
		return Region{}, opError(util.ErrMapFailed, err, "create mapping fd=%d", fd)
	}
	ptr, err := syscall.MapViewOfFile(h, access, uint32(aligned>>32), uint32(aligned), uintptr(length))
	if err != nil {
		if e := syscall.CloseHandle(h); e != nil {
			return Region{}, os.NewSyscallError("CloseHandle", e)
		}
		return Region{}, opError(util.ErrMapFailed, err, "map view fd=%d offset=%d size=%d", fd, offset, size)
	}

	base := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length)
	return Region{
		Data:   base[delta:length:length],
		Base:   base,
		Fd:     fd,
		Handle: uintptr(h),
	}, nil
}

func (windowsMapper) Unmap(r Region) error {
	if !r.Mapped() {
		return util.ErrRegionNotMapped
	}

	addr := uintptr(unsafe.Pointer(&r.Base[0]))
	var err error
	if e := syscall.UnmapViewOfFile(addr); e != nil {
		err = opError(util.ErrUnmapFailed, e, "unmap view fd=%d", r.Fd)
	}
	if e := syscall.CloseHandle(syscall.Handle(r.Handle)); e != nil && err == nil {
		err = os.NewSyscallError("CloseHandle", e)
	}
	return err
}

func (windowsMapper) Flush(r Region, sync bool) error {
	if !r.Mapped() {
		return util.ErrRegionNotMapped
	}

	addr := uintptr(unsafe.Pointer(&r.Base[0]))
	if err := syscall.FlushViewOfFile(addr, uintptr(len(r.Base))); err != nil {
		return opError(util.ErrFlushFailed, err, "flush view fd=%d", r.Fd)
	}
	if sync {
		if err := syscall.FlushFileBuffers(syscall.Handle(r.Fd)); err != nil {
			return opError(util.ErrFlushFailed, err, "flush file buffers fd=%d", r.Fd)
		}
	}
	return nil
}
