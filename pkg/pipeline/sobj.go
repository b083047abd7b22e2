package pipeline

import (
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/osd"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
)

// transfer performs one blocking transfer on the channel. Whatever happens a stripe
// done message goes back to the file object stage.
func (p *Pipeline) transfer(r *request.Request) {
	tr := r.Payload().(*osd.TransferRequest)
	msg := &doneMsg{sizeEpoch: fileid.NoUpdate}

	if r.Aborted() {
		msg.err = canceled(r)
	} else {
		resp, err := p.channel.Transfer(p.ctx, tr)
		if err != nil {
			msg.err = err
			p.logger.WithField("req", r.ID()).Warnf("%s %s object %d on %s failed: %s",
				tr.Op, tr.FileID, tr.ObjectIndex, tr.NodeAddress, err)
		} else {
			msg.bytes = resp.BytesTransferred
			msg.sizeEpoch = resp.SizeEpoch()
		}
	}

	p.mustSubmit(p.fobj, request.New(opStripeDone, r.Parent(), msg, nil))
	r.SetError(msg.err)
	r.Finish()
}
