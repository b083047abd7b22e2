package pipeline

import (
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
)

// split cuts the byte range of a file rw request into one file object child per
// object touched. The request finishes when its last child reports in onObjectDone.
func (p *Pipeline) split(r *request.Request) {
	pl := r.Payload().(*fileRWPayload)

	if r.Aborted() {
		r.SetError(canceled(r))
		r.Finish()
		return
	}

	chunks := pl.file.Policy.Split(pl.offset, int64(len(pl.buf)))
	epoch := pl.file.Epoch()

	// Guard count held across the fan-out so the request cannot complete while
	// children are still being created.
	r.AddChild()

	for _, chunk := range chunks {
		child := request.New(opFileObject, r, &fileObjectPayload{
			op:    pl.op,
			file:  pl.file,
			chunk: chunk,
			buf:   pl.buf[chunk.BufOffset : chunk.BufOffset+chunk.Size],
			epoch: epoch,
		}, &fileObjectResult{sizeEpoch: fileid.NoUpdate})

		r.AddChild()
		if err := p.submitObject(child); err != nil {
			r.ChildDone()
			child.Put()
			r.SetError(errors.WithMessagef(err, "file %s object %d", pl.file.ID, chunk.ObjectIndex))
			break
		}
	}

	if r.ChildDone() {
		p.completeFileRW(r)
	}
}

// onObjectDone folds one file object outcome into its parent file rw request.
func (p *Pipeline) onObjectDone(r *request.Request) {
	msg := r.Payload().(*doneMsg)
	parent := r.Parent()
	res := parent.Result().(*fileRWResult)

	res.bytes += msg.bytes
	if msg.err != nil {
		parent.SetChildError(msg.err)
	} else {
		res.sizeEpoch.Merge(msg.sizeEpoch)
	}

	r.Finish()

	if parent.ChildDone() {
		p.completeFileRW(parent)
	}
}

func (p *Pipeline) completeFileRW(r *request.Request) {
	pl := r.Payload().(*fileRWPayload)
	res := r.Result().(*fileRWResult)

	if res.sizeEpoch.IsUpdate() && pl.file.MergeSizeEpoch(res.sizeEpoch) {
		p.logger.WithField("req", r.ID()).Debugf("file %s now %s", pl.file.ID, res.sizeEpoch)
	}

	r.Finish()
}
