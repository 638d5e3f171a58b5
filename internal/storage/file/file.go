package file

import (
	"os"

	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/pkg/errors"
)

/**
* FileManager owns a backing file whose byte ranges get registered as pages.
* Mapping itself is done by a Mapper against Fd().
**/
type FileManager struct {
	File *os.File
	Size int64
}

func NewFileManager(path string, initialSize int64) (*FileManager, error) {
	if initialSize <= 0 {
		return nil, util.ErrInvalidFileSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}

	fm := &FileManager{File: f}
	if err := fm.Grow(initialSize); err != nil {
		f.Close()
		return nil, err
	}

	return fm, nil
}

func (fm *FileManager) Fd() int {
	return int(fm.File.Fd())
}

// Grow extends the file to at least size bytes. It never shrinks.
func (fm *FileManager) Grow(size int64) error {
	if fm == nil || fm.File == nil {
		return util.ErrFileManagerNil
	}

	info, err := fm.File.Stat()
	if err != nil {
		return errors.Wrap(err, "stat file")
	}
	if info.Size() >= size {
		fm.Size = info.Size()
		return nil
	}

	if err := fm.File.Truncate(size); err != nil {
		return errors.Wrapf(err, "truncate to %d", size)
	}
	fm.Size = size
	return nil
}

/* READ FILE */
func (fm *FileManager) ReadAt(p []byte, offset int64) error {
	if fm == nil || fm.File == nil {
		return util.ErrFileManagerNil
	}
	if offset < 0 || offset+int64(len(p)) > fm.Size {
		return errors.Wrapf(util.ErrInvalidOffset, "read [%d,%d) of %d", offset, offset+int64(len(p)), fm.Size)
	}

	if _, err := fm.File.ReadAt(p, offset); err != nil {
		return errors.Wrapf(err, "read at %d", offset)
	}
	return nil
}

func (fm *FileManager) Sync() error {
	if fm == nil || fm.File == nil {
		return util.ErrFileManagerNil
	}
	return errors.Wrap(fm.File.Sync(), "sync file")
}

/**
* CLOSE FUNCTION
**/
func (fm *FileManager) Close() error {
	if fm == nil || fm.File == nil {
		return nil // Idempotent
	}

	var err error
	if e := fm.File.Sync(); e != nil {
		err = errors.Wrap(e, "sync file")
	}
	if e := fm.File.Close(); e != nil && err == nil {
		err = errors.Wrap(e, "close file")
	}
	fm.File = nil
	return err
}
