package util

import "github.com/pkg/errors"

var (
	ErrInvalidHandle         = errors.New("invalid page handle")
	ErrInvalidPageSize       = errors.New("invalid page size")
	ErrInvalidOffset         = errors.New("invalid offset or size")
	ErrInvalidPriority       = errors.New("priority out of range")
	ErrInvalidPriorityLevels = errors.New("number of priority levels must be positive")
	ErrInvalidDirtyList      = errors.New("invalid dirty list")
	ErrNoDirtyList           = errors.New("page has no dirty list")
	ErrPageNotInUse          = errors.New("page is not in use")
	ErrNilMapper             = errors.New("mapper is nil")
	ErrManagerClosed         = errors.New("mapping manager is closed")
	ErrMapFailed             = errors.New("map region failed")
	ErrUnmapFailed           = errors.New("unmap region failed")
	ErrFlushFailed           = errors.New("flush region failed")
	ErrRegionNotMapped       = errors.New("region is not mapped")
	ErrFileManagerNil        = errors.New("file manager is nil")
	ErrInvalidFileSize       = errors.New("file size must be positive")
	ErrInvalidOptions        = errors.New("invalid options")
)
