// Package fileid holds the client side identity of an open file: its striping policy,
// the storage nodes behind each slot, and the authoritative (size, epoch) pair the I/O
// path folds node reports into.
package fileid

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/striping"
	"golang.org/x/sys/unix"
)

type File struct {
	ID     string
	Policy striping.Policy

	// Nodes holds one storage node address per slot.
	Nodes []string

	order atomic.Uint64

	// Protects sizeEpoch and needsUpdate
	mu          sync.Mutex
	sizeEpoch   SizeEpoch
	needsUpdate bool
}

func New(id string, policy striping.Policy, nodes []string) (*File, error) {
	if id == "" {
		return nil, errors.Wrap(unix.EINVAL, "empty file id")
	}

	if err := policy.Validate(); err != nil {
		return nil, errors.Wrapf(err, "file %s", id)
	}

	if len(nodes) != policy.Width {
		return nil, errors.Wrapf(unix.EINVAL, "file %s: %d nodes for width %d", id, len(nodes), policy.Width)
	}

	return &File{
		ID:        id,
		Policy:    policy,
		Nodes:     nodes,
		sizeEpoch: NoUpdate,
	}, nil
}

// WithSizeEpoch seeds the known size and epoch, for example from the metadata service.
// Seeding does not mark the file as needing an update.
func (f *File) WithSizeEpoch(se SizeEpoch) *File {
	f.mu.Lock()
	f.sizeEpoch = se
	f.mu.Unlock()
	return f
}

func (f *File) SizeEpoch() SizeEpoch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sizeEpoch
}

// Epoch is the epoch in effect for requests issued now, or 0 if none is known.
func (f *File) Epoch() int64 {
	se := f.SizeEpoch()
	if se.Epoch == Unknown {
		return 0
	}
	return se.Epoch
}

// MergeSizeEpoch folds a reported (size, epoch) into the file. When the report wins the
// file is flagged for a metadata update. The flag is never cleared here.
func (f *File) MergeSizeEpoch(c SizeEpoch) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.sizeEpoch.Merge(c) {
		return false
	}
	f.needsUpdate = true
	return true
}

func (f *File) NeedsUpdate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.needsUpdate
}

// ClearNeedsUpdate clears the flag after pushed was written to the metadata service. If
// something newer was merged in the meantime the flag stays set.
func (f *File) ClearNeedsUpdate(pushed SizeEpoch) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sizeEpoch != pushed {
		return false
	}
	f.needsUpdate = false
	return true
}

// NextOrder returns the next value of the per file request order counter.
func (f *File) NextOrder() uint64 {
	return f.order.Add(1)
}

func (f *File) NodeAddress(slot int) (string, error) {
	if slot < 0 || slot >= len(f.Nodes) {
		return "", errors.Wrapf(unix.EINVAL, "file %s: no node for slot %d", f.ID, slot)
	}
	return f.Nodes[slot], nil
}
