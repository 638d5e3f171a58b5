package page

import (
	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
)

// CreateTestDescriptor returns the descriptor of the n-th PageSize page of fd.
func CreateTestDescriptor(fd int, n int, priority int) Descriptor {
	return Descriptor{
		Fd:       fd,
		Offset:   int64(n) * util.PageSize,
		Size:     util.PageSize,
		Writable: true,
		Priority: priority,
	}
}
