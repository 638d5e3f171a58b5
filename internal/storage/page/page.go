package page

import (
	"fmt"

	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/pkg/errors"
)

// Descriptor identifies the byte range of a file a page maps.
// It never changes after the page is registered.
type Descriptor struct {
	Fd       int
	Offset   int64
	Size     int
	Writable bool
	Priority int
}

// Validate checks the descriptor against a manager with the given number of priority levels.
func (d Descriptor) Validate(levels int) error {
	if d.Size <= 0 {
		return errors.Wrapf(util.ErrInvalidPageSize, "size %d", d.Size)
	}
	if d.Offset < 0 {
		return errors.Wrapf(util.ErrInvalidOffset, "offset %d", d.Offset)
	}
	if d.Priority < 0 || d.Priority >= levels {
		return errors.Wrapf(util.ErrInvalidPriority, "priority %d not in [0,%d)", d.Priority, levels)
	}
	return nil
}

// End is the first byte offset past the page.
func (d Descriptor) End() int64 {
	return d.Offset + int64(d.Size)
}

func (d Descriptor) String() string {
	mode := "ro"
	if d.Writable {
		mode = "rw"
	}
	return fmt.Sprintf("fd=%d [%d,%d) %s p%d", d.Fd, d.Offset, d.End(), mode, d.Priority)
}

// Flags is the state bitset of a page record.
type Flags uint16

const (
	FlagInUse       Flags = 1 << iota // refCount > 0, linked in the used list
	FlagMapped                        // region is mapped
	FlagDirtyQueued                   // spliced into its dirty list chain
)

func (f *Flags) Set(flag Flags) {
	*f |= flag
}

func (f *Flags) Clear(flag Flags) {
	*f &^= flag
}

func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}
