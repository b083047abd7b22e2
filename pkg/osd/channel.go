// Package osd defines the transfer contract between the I/O pipeline and the object
// storage devices (OSDs) holding a file's objects, along with an HTTP implementation
// and a process local cluster.
package osd

import (
	"context"
	"fmt"

	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
)

type Op int

const (
	Read Op = iota
	Write
)

func (op Op) String() string {
	switch op {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// TransferRequest moves len(Buffer) bytes at Offset within one object of a file.
type TransferRequest struct {
	Op          Op
	FileID      string
	ObjectIndex int64
	Offset      int64
	Buffer      []byte
	StripeSize  int64
	NodeAddress string
	Order       uint64
	Epoch       int64
}

func (tr *TransferRequest) Size() int64 {
	return int64(len(tr.Buffer))
}

// FileOffset is the offset within the file of the first byte transferred.
func (tr *TransferRequest) FileOffset() int64 {
	return tr.ObjectIndex*tr.StripeSize + tr.Offset
}

// TransferResponse reports what a node did. NewSize and Epoch are fileid.Unknown unless
// the node changed the file size.
type TransferResponse struct {
	BytesTransferred int64
	NewSize          int64
	Epoch            int64
}

// NoSizeChange is the response of a transfer that moved n bytes without changing the
// file size.
func NoSizeChange(n int64) *TransferResponse {
	return &TransferResponse{BytesTransferred: n, NewSize: fileid.Unknown, Epoch: fileid.Unknown}
}

func (r *TransferResponse) SizeEpoch() fileid.SizeEpoch {
	return fileid.SizeEpoch{Size: r.NewSize, Epoch: r.Epoch}
}

// Channel performs one synchronous transfer. Implementations must be safe for concurrent
// use; the pipeline calls Transfer from many workers at once.
type Channel interface {
	Transfer(ctx context.Context, tr *TransferRequest) (*TransferResponse, error)
}

type ChannelFunc func(ctx context.Context, tr *TransferRequest) (*TransferResponse, error)

func (fn ChannelFunc) Transfer(ctx context.Context, tr *TransferRequest) (*TransferResponse, error) {
	return fn(ctx, tr)
}
