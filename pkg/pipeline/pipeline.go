// Package pipeline moves file reads and writes through three stages. The file rw stage
// splits a byte range into per object pieces, the file object stage maps each piece to
// the storage node holding it, and the stripe object stage performs the transfers.
//
// Results travel back up as done messages submitted into the stage of the aggregating
// request. The file rw and file object stages run a single worker, so every aggregate
// is only ever mutated from one goroutine.
package pipeline

import (
	"context"
	"math"
	"sync"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/clog"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/osd"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/stage"
	"golang.org/x/sys/unix"
)

const (
	StageFileRW       = "filerw"
	StageFileObject   = "fobj"
	StageStripeObject = "sobj"
)

var ErrStopped = errors.Wrap(unix.ESHUTDOWN, "pipeline stopped")

type Pipeline struct {
	channel osd.Channel
	config  Config
	logger  *log.Entry

	filerw *stage.Stage
	fobj   *stage.Stage
	sobj   *stage.Stage

	// submitObject queues a file object request on fobj.
	submitObject func(r *request.Request) error

	// ctx is handed to the channel for every transfer and cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	// Protects stopped. outstanding counts file rw requests that have not been released.
	mu          sync.RWMutex
	stopped     bool
	outstanding sync.WaitGroup
	stopOnce    sync.Once
}

func New(channel osd.Channel, cfg Config) (*Pipeline, error) {
	if channel == nil {
		return nil, errors.Wrap(unix.EINVAL, "nil channel")
	}

	if cfg.StripeThreads < 1 {
		cfg.StripeThreads = DefaultStripeThreads
	}

	p := &Pipeline{
		channel: channel,
		config:  cfg,
		logger:  clog.UsingCtx("pipeline"),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	watchdog := stage.WithSyncWatchdog(cfg.SyncWatchdog)
	p.filerw = stage.New(StageFileRW, 1, watchdog)
	p.fobj = stage.New(StageFileObject, 1, watchdog)
	p.sobj = stage.New(StageStripeObject, cfg.StripeThreads, watchdog)
	p.submitObject = p.fobj.Submit

	if err := p.registerHandlers(); err != nil {
		p.stopStages()
		return nil, err
	}

	return p, nil
}

func (p *Pipeline) registerHandlers() error {
	registrations := []struct {
		s  *stage.Stage
		op request.Kind
		fn stage.HandlerFunc
	}{
		{s: p.filerw, op: opFileRW, fn: p.split},
		{s: p.filerw, op: opObjectDone, fn: p.onObjectDone},
		{s: p.fobj, op: opFileObject, fn: p.mapAndDispatch},
		{s: p.fobj, op: opStripeDone, fn: p.onStripeDone},
		{s: p.sobj, op: opStripeObject, fn: p.transfer},
	}

	for _, reg := range registrations {
		if err := reg.s.RegisterHandler(reg.op, reg.fn); err != nil {
			return err
		}
	}

	for _, reg := range registrations {
		if err := reg.s.Validate(reg.op); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) Config() Config {
	return p.config
}

// SubmitFileRead reads len(buf) bytes at offset into buf. Fewer bytes than requested
// are returned when the range extends past the end of the file.
func (p *Pipeline) SubmitFileRead(ctx context.Context, f *fileid.File, offset int64, buf []byte) (int64, error) {
	return p.submitFileRW(ctx, osd.Read, f, offset, buf)
}

// SubmitFileWrite writes buf at offset. A write that grows the file flags it for a
// metadata update.
func (p *Pipeline) SubmitFileWrite(ctx context.Context, f *fileid.File, offset int64, buf []byte) (int64, error) {
	return p.submitFileRW(ctx, osd.Write, f, offset, buf)
}

func (p *Pipeline) submitFileRW(ctx context.Context, op osd.Op, f *fileid.File, offset int64, buf []byte) (int64, error) {
	switch {
	case f == nil:
		return 0, errors.Wrap(unix.EINVAL, "nil file")
	case offset < 0:
		return 0, errors.Wrapf(unix.EINVAL, "file %s: negative offset %d", f.ID, offset)
	case len(buf) == 0:
		return 0, nil
	case offset > math.MaxInt64-int64(len(buf)):
		return 0, errors.Wrapf(unix.EFBIG, "file %s: %d bytes at offset %d", f.ID, len(buf), offset)
	}

	if err := p.enter(); err != nil {
		return 0, err
	}

	result := &fileRWResult{sizeEpoch: fileid.NoUpdate}
	r := request.New(opFileRW|request.Blocking, nil,
		&fileRWPayload{op: op, file: f, offset: offset, buf: buf}, result,
		request.WithPayloadRelease(func(any) { p.outstanding.Done() }))
	defer r.Put()

	if err := p.filerw.ExecuteSync(ctx, r); err != nil {
		return 0, errors.WithMessagef(err, "%s file %s at %d", op, f.ID, offset)
	}

	return result.bytes, nil
}

// enter counts a new file rw request unless the pipeline is stopping.
func (p *Pipeline) enter() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}
	p.outstanding.Add(1)
	return nil
}

// Stop refuses new requests, waits until every request already accepted has been
// fully processed and then stops the stages. It is safe to call more than once.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		p.outstanding.Wait()
		p.stopStages()
		p.logger.Debugf("stopped")
	})
}

func (p *Pipeline) stopStages() {
	p.filerw.Stop()
	p.fobj.Stop()
	p.sobj.Stop()
	p.cancel()
}

// Snapshot returns the diagnostic view of the three stages in pipeline order.
func (p *Pipeline) Snapshot() []stage.Snapshot {
	return []stage.Snapshot{p.filerw.Snapshot(), p.fobj.Snapshot(), p.sobj.Snapshot()}
}

func (p *Pipeline) Stats() map[string]stage.StatsSnapshot {
	return map[string]stage.StatsSnapshot{
		StageFileRW:       p.filerw.Stats().Snapshot(),
		StageFileObject:   p.fobj.Stats().Snapshot(),
		StageStripeObject: p.sobj.Stats().Snapshot(),
	}
}

// mustSubmit submits a done message. Done messages only flow into stages that outlive
// every request still in the pipeline, so a failure is a wiring defect.
func (p *Pipeline) mustSubmit(s *stage.Stage, r *request.Request) {
	if err := s.Submit(r); err != nil {
		p.logger.WithField("req", r.ID()).Fatalf("unable to submit done message to %s: %s", s.Name(), err)
	}
}

func canceled(r *request.Request) error {
	return errors.Wrapf(unix.ECANCELED, "request %d", r.ID())
}
