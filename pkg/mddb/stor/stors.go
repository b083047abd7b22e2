package stor

import (
	"errors"

	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/mdmodel"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileExists   = errors.New("file already exists")
)

type FileStor interface {
	CreateFile(file *mdmodel.File) (*mdmodel.File, error)
	GetFileByFileID(fileID string) (*mdmodel.File, error)

	// UpdateSizeEpoch stores se if it is newer than what is recorded, using the same rule
	// the I/O path merges with. It reports whether the record changed.
	UpdateSizeEpoch(fileID string, se fileid.SizeEpoch) (bool, error)
	ListFiles() ([]mdmodel.File, error)
}
