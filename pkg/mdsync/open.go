package mdsync

import (
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/mdmodel"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/stor"
	"golang.org/x/sys/unix"
)

// OpenFile returns the open file registered under fileID, loading it from the store
// the first time.
func OpenFile(registry *fileid.Registry, fileStor stor.FileStor, fileID string) (*fileid.File, error) {
	if f := registry.Get(fileID); f != nil {
		return f, nil
	}

	rec, err := fileStor.GetFileByFileID(fileID)
	switch {
	case errors.Is(err, stor.ErrFileNotFound):
		return nil, errors.Wrapf(unix.ENOENT, "%s", err)
	case err != nil:
		return nil, err
	}

	f, err := rec.ToFileIdent()
	if err != nil {
		return nil, err
	}

	return registry.Open(f), nil
}

// CreateFile records a new file in the store and registers it as open.
func CreateFile(registry *fileid.Registry, fileStor stor.FileStor, f *fileid.File) (*fileid.File, error) {
	rec, err := mdmodel.FromFileIdent(f)
	if err != nil {
		return nil, err
	}

	if _, err := fileStor.CreateFile(rec); err != nil {
		if errors.Is(err, stor.ErrFileExists) {
			return nil, errors.Wrapf(unix.EEXIST, "%s", err)
		}
		return nil, err
	}

	return registry.Open(f.WithSizeEpoch(rec.SizeEpoch())), nil
}
