package mdsync

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/stor"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/striping"
	"golang.org/x/sys/unix"
)

func TestCreateAndOpenFile(t *testing.T) {
	registry := fileid.NewRegistry()
	fileStor := stor.NewInMemoryFileStor(nil)

	f, err := fileid.New("vol:new", striping.NewRAID0(4096, 2), []string{"a", "b"})
	require.NoError(t, err)

	created, err := CreateFile(registry, fileStor, f)
	require.NoError(t, err)
	require.Equal(t, fileid.SizeEpoch{Size: 0, Epoch: 0}, created.SizeEpoch())

	_, err = CreateFile(registry, fileStor, f)
	require.Equal(t, unix.EEXIST, request.Errno(err))

	opened, err := OpenFile(registry, fileStor, "vol:new")
	require.NoError(t, err)
	require.Same(t, created, opened)

	// A fresh registry loads the file from the store.
	other, err := OpenFile(fileid.NewRegistry(), fileStor, "vol:new")
	require.NoError(t, err)
	require.Equal(t, created.Policy, other.Policy)
	require.NotSame(t, created, other)

	_, err = OpenFile(registry, fileStor, "vol:missing")
	require.Equal(t, unix.ENOENT, request.Errno(err))
}
