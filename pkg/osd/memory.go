package osd

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"golang.org/x/sys/unix"
)

// InMemoryCluster is a set of OSDs living in the current process. Objects are kept per
// node, the size and truncate epoch of each file are kept for the whole cluster.
type InMemoryCluster struct {
	mu        sync.Mutex
	objects   map[objectKey][]byte
	files     map[string]*fileid.SizeEpoch
	failed    map[string]error
	overrides map[string]ChannelFunc

	transfers atomic.Int64
}

type objectKey struct {
	node        string
	fileID      string
	objectIndex int64
}

func NewInMemoryCluster() *InMemoryCluster {
	return &InMemoryCluster{
		objects:   make(map[objectKey][]byte),
		files:     make(map[string]*fileid.SizeEpoch),
		failed:    make(map[string]error),
		overrides: make(map[string]ChannelFunc),
	}
}

// FailNode makes every transfer to node fail with err. A nil err heals the node.
func (c *InMemoryCluster) FailNode(node string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		delete(c.failed, node)
		return
	}
	c.failed[node] = err
}

// Override routes every transfer to node through fn instead of the stored objects.
// A nil fn removes the override.
func (c *InMemoryCluster) Override(node string, fn ChannelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fn == nil {
		delete(c.overrides, node)
		return
	}
	c.overrides[node] = fn
}

// Truncate sets the size of a file and starts a new epoch. Object data past the new
// size is discarded.
func (c *InMemoryCluster) Truncate(fileID string, size, stripeSize int64) fileid.SizeEpoch {
	c.mu.Lock()
	defer c.mu.Unlock()

	se := c.file(fileID)
	se.Epoch++
	se.Size = size

	for key, data := range c.objects {
		if key.fileID != fileID {
			continue
		}

		start := key.objectIndex * stripeSize
		switch {
		case start >= size:
			delete(c.objects, key)
		case start+int64(len(data)) > size:
			c.objects[key] = data[:size-start]
		}
	}

	return *se
}

func (c *InMemoryCluster) SizeEpoch(fileID string) fileid.SizeEpoch {
	c.mu.Lock()
	defer c.mu.Unlock()

	if se, ok := c.files[fileID]; ok {
		return *se
	}
	return fileid.SizeEpoch{Size: 0, Epoch: 0}
}

// Transfers is the number of transfers served, overrides and failures included.
func (c *InMemoryCluster) Transfers() int64 {
	return c.transfers.Load()
}

// file returns the size record of fileID, creating it on first use. Callers hold mu.
func (c *InMemoryCluster) file(fileID string) *fileid.SizeEpoch {
	se, ok := c.files[fileID]
	if !ok {
		se = &fileid.SizeEpoch{Size: 0, Epoch: 0}
		c.files[fileID] = se
	}
	return se
}

func (c *InMemoryCluster) Transfer(ctx context.Context, tr *TransferRequest) (*TransferResponse, error) {
	c.transfers.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(unix.EIO, "node %s: %s", tr.NodeAddress, err)
	}

	c.mu.Lock()
	if fn, ok := c.overrides[tr.NodeAddress]; ok {
		c.mu.Unlock()
		return fn(ctx, tr)
	}

	defer c.mu.Unlock()

	if err, ok := c.failed[tr.NodeAddress]; ok {
		return nil, errors.Wrapf(err, "node %s", tr.NodeAddress)
	}

	switch tr.Op {
	case Read:
		return c.read(tr), nil
	case Write:
		return c.write(tr), nil
	default:
		return nil, errors.Wrapf(unix.EINVAL, "unknown transfer op %s", tr.Op)
	}
}

// read fills the buffer up to the end of the file. Ranges never written read as zeros.
func (c *InMemoryCluster) read(tr *TransferRequest) *TransferResponse {
	se := c.file(tr.FileID)

	n := min(tr.Size(), se.Size-tr.FileOffset())
	if n <= 0 {
		return NoSizeChange(0)
	}

	buf := tr.Buffer[:n]
	clear(buf)

	data := c.objects[objectKey{node: tr.NodeAddress, fileID: tr.FileID, objectIndex: tr.ObjectIndex}]
	if tr.Offset < int64(len(data)) {
		copy(buf, data[tr.Offset:])
	}

	return NoSizeChange(n)
}

func (c *InMemoryCluster) write(tr *TransferRequest) *TransferResponse {
	key := objectKey{node: tr.NodeAddress, fileID: tr.FileID, objectIndex: tr.ObjectIndex}
	data := c.objects[key]

	end := tr.Offset + tr.Size()
	if int64(len(data)) < end {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[tr.Offset:], tr.Buffer)
	c.objects[key] = data

	se := c.file(tr.FileID)
	if fileEnd := tr.FileOffset() + tr.Size(); fileEnd > se.Size {
		se.Size = fileEnd
		return &TransferResponse{BytesTransferred: tr.Size(), NewSize: se.Size, Epoch: se.Epoch}
	}

	return NoSizeChange(tr.Size())
}
