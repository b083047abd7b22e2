package pipeline

import (
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/osd"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/striping"
)

// Operations of the file rw stage.
const (
	opFileRW     request.Kind = 1
	opObjectDone request.Kind = 2
)

// Operations of the file object stage.
const (
	opFileObject request.Kind = 1
	opStripeDone request.Kind = 2
)

// Operation of the stripe object stage.
const opStripeObject request.Kind = 1

type fileRWPayload struct {
	op     osd.Op
	file   *fileid.File
	offset int64
	buf    []byte
}

// fileRWResult is the aggregate of a file rw request. It is only touched from the file
// rw stage, which runs a single worker.
type fileRWResult struct {
	bytes     int64
	sizeEpoch fileid.SizeEpoch
}

type fileObjectPayload struct {
	op    osd.Op
	file  *fileid.File
	chunk striping.Chunk
	buf   []byte
	epoch int64
}

// fileObjectResult is only touched from the file object stage.
type fileObjectResult struct {
	bytes     int64
	sizeEpoch fileid.SizeEpoch
}

// doneMsg carries a finished child's outcome into the stage of its parent. The
// request it rides on has the aggregating request as its parent.
type doneMsg struct {
	bytes     int64
	sizeEpoch fileid.SizeEpoch
	err       error
}
