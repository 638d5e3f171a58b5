package file

import (
	"fmt"

	"github.com/pkg/errors"
)

// Region is one mapped byte range. Data is the requested range; Base is the
// aligned span actually handed out by the OS and must be passed back on unmap.
type Region struct {
	Data   []byte
	Base   []byte
	Fd     int
	Handle uintptr // windows mapping object, unused on unix
}

func (r Region) Mapped() bool {
	return r.Base != nil
}

// Mapper is the memory-mapping primitive the mapping manager consumes.
type Mapper interface {
	Map(fd int, offset int64, size int, writable bool) (Region, error)
	Unmap(r Region) error
	Flush(r Region, sync bool) error
}

// opError tags a syscall failure with its class sentinel while keeping the cause reachable.
func opError(class error, cause error, format string, args ...any) error {
	return errors.WithStack(fmt.Errorf("%w: %s: %w", class, fmt.Sprintf(format, args...), cause))
}
