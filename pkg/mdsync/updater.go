// Package mdsync pushes file sizes changed by the I/O path to the metadata store.
package mdsync

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/clog"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/stor"
)

const DefaultInterval = 10 * time.Second

type UpdaterOptionFN func(*Updater)

type Updater struct {
	registry *fileid.Registry
	fileStor stor.FileStor
	interval time.Duration
	logger   *log.Entry
}

func NewUpdater(registry *fileid.Registry, fileStor stor.FileStor, optFNs ...UpdaterOptionFN) *Updater {
	u := &Updater{
		registry: registry,
		fileStor: fileStor,
		interval: DefaultInterval,
		logger:   clog.UsingCtx("mdsync"),
	}

	for _, optfn := range optFNs {
		optfn(u)
	}

	return u
}

func WithInterval(interval time.Duration) UpdaterOptionFN {
	return func(u *Updater) {
		if interval > 0 {
			u.interval = interval
		}
	}
}

// Flush pushes the size of every open file that needs an update. A file whose push fails
// keeps its flag and is retried on the next flush; the first such error is returned.
func (u *Updater) Flush() error {
	var firstErr error

	for _, f := range u.registry.Dirty() {
		se := f.SizeEpoch()

		updated, err := u.fileStor.UpdateSizeEpoch(f.ID, se)
		if err != nil {
			u.logger.Errorf("Failed pushing size %s of file %s: %s", se, f.ID, err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "file %s", f.ID)
			}
			continue
		}

		// The store keeps the newest pair, so a push that changed nothing still
		// means the store is at least as new as se.
		if !f.ClearNeedsUpdate(se) {
			u.logger.Debugf("file %s changed while pushing %s", f.ID, se)
		} else if updated {
			u.logger.Debugf("file %s pushed %s", f.ID, se)
		}
	}

	return firstErr
}

// Run flushes every interval until c is done, then flushes one last time.
func (u *Updater) Run(c context.Context) {
	for {
		select {
		case <-c.Done():
			_ = u.Flush()
			return
		case <-time.After(u.interval):
			_ = u.Flush()
		}
	}
}
