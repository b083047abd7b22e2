package mdsync

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/mdmodel"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/stor"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/striping"
)

func setup(t *testing.T, ids ...string) (*fileid.Registry, *stor.InMemoryFileStor, []*fileid.File) {
	registry := fileid.NewRegistry()
	var records []mdmodel.File
	var files []*fileid.File

	for _, id := range ids {
		f, err := fileid.New(id, striping.NewRAID0(1024, 1), []string{"n1"})
		require.NoError(t, err)
		rec, err := mdmodel.FromFileIdent(f)
		require.NoError(t, err)
		records = append(records, *rec)
		files = append(files, registry.Open(f.WithSizeEpoch(rec.SizeEpoch())))
	}

	return registry, stor.NewInMemoryFileStor(records), files
}

func TestFlushPushesDirtyFiles(t *testing.T) {
	registry, fileStor, files := setup(t, "a", "b")
	u := NewUpdater(registry, fileStor)

	files[0].MergeSizeEpoch(fileid.SizeEpoch{Size: 4096, Epoch: 0})
	require.NoError(t, u.Flush())

	require.False(t, files[0].NeedsUpdate())
	rec, err := fileStor.GetFileByFileID("a")
	require.NoError(t, err)
	require.Equal(t, fileid.SizeEpoch{Size: 4096, Epoch: 0}, rec.SizeEpoch())

	rec, err = fileStor.GetFileByFileID("b")
	require.NoError(t, err)
	require.Equal(t, fileid.SizeEpoch{Size: 0, Epoch: 0}, rec.SizeEpoch())
}

func TestFlushKeepsFlagOnFailure(t *testing.T) {
	registry, fileStor, files := setup(t, "a")
	u := NewUpdater(registry, fileStor)

	files[0].MergeSizeEpoch(fileid.SizeEpoch{Size: 1, Epoch: 3})
	fileStor.ErrorToReturn = errors.New("db unavailable")
	require.Error(t, u.Flush())
	require.True(t, files[0].NeedsUpdate())

	fileStor.ErrorToReturn = nil
	require.NoError(t, u.Flush())
	require.False(t, files[0].NeedsUpdate())
}

func TestFlushClearsFlagWhenStoreIsNewer(t *testing.T) {
	registry, fileStor, files := setup(t, "a")
	u := NewUpdater(registry, fileStor)

	_, err := fileStor.UpdateSizeEpoch("a", fileid.SizeEpoch{Size: 10, Epoch: 9})
	require.NoError(t, err)

	files[0].MergeSizeEpoch(fileid.SizeEpoch{Size: 500, Epoch: 1})
	require.NoError(t, u.Flush())
	require.False(t, files[0].NeedsUpdate())

	rec, err := fileStor.GetFileByFileID("a")
	require.NoError(t, err)
	require.Equal(t, fileid.SizeEpoch{Size: 10, Epoch: 9}, rec.SizeEpoch())
}

func TestRunFlushesOnExit(t *testing.T) {
	registry, fileStor, files := setup(t, "a")
	u := NewUpdater(registry, fileStor, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(done)
	}()

	files[0].MergeSizeEpoch(fileid.SizeEpoch{Size: 77, Epoch: 0})
	cancel()
	<-done

	rec, err := fileStor.GetFileByFileID("a")
	require.NoError(t, err)
	require.Equal(t, int64(77), rec.Size)
}
