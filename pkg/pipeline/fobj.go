package pipeline

import (
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/osd"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
)

// mapAndDispatch resolves the node holding the object of a file object request and
// submits the single stripe transfer for it. Policies other than RAID0 fail here and
// never reach the stripe stage.
func (p *Pipeline) mapAndDispatch(r *request.Request) {
	pl := r.Payload().(*fileObjectPayload)

	if r.Aborted() {
		p.objectDone(r, canceled(r))
		return
	}

	slot, err := pl.file.Policy.NodeSlot(pl.chunk.ObjectIndex)
	if err != nil {
		p.objectDone(r, errors.WithMessagef(err, "file %s object %d", pl.file.ID, pl.chunk.ObjectIndex))
		return
	}

	node, err := pl.file.NodeAddress(slot)
	if err != nil {
		p.objectDone(r, err)
		return
	}

	child := request.New(opStripeObject, r, &osd.TransferRequest{
		Op:          pl.op,
		FileID:      pl.file.ID,
		ObjectIndex: pl.chunk.ObjectIndex,
		Offset:      pl.chunk.Offset,
		Buffer:      pl.buf,
		StripeSize:  pl.file.Policy.StripeSize,
		NodeAddress: node,
		Order:       pl.file.NextOrder(),
		Epoch:       pl.epoch,
	}, nil)

	r.AddChild()
	if err := p.sobj.Submit(child); err != nil {
		r.ChildDone()
		child.Put()
		p.objectDone(r, errors.WithMessagef(err, "file %s object %d", pl.file.ID, pl.chunk.ObjectIndex))
	}
}

// onStripeDone folds the outcome of the stripe transfer into its file object request.
func (p *Pipeline) onStripeDone(r *request.Request) {
	msg := r.Payload().(*doneMsg)
	parent := r.Parent()
	res := parent.Result().(*fileObjectResult)

	res.bytes += msg.bytes
	if msg.err != nil {
		parent.SetChildError(msg.err)
	} else {
		res.sizeEpoch.Merge(msg.sizeEpoch)
	}

	r.Finish()

	if parent.ChildDone() {
		p.objectDone(parent, nil)
	}
}

// objectDone reports a file object request to its file rw parent and finishes it.
func (p *Pipeline) objectDone(r *request.Request, err error) {
	r.SetError(err)
	res := r.Result().(*fileObjectResult)

	msg := &doneMsg{bytes: res.bytes, sizeEpoch: res.sizeEpoch, err: r.Err()}
	if msg.err != nil {
		msg.sizeEpoch = fileid.NoUpdate
	}

	p.mustSubmit(p.filerw, request.New(opObjectDone, r.Parent(), msg, nil))
	r.Finish()
}
