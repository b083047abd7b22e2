package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/config"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/osd"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/striping"
	"golang.org/x/sys/unix"
)

const kib = 1024

func newTestPipeline(t *testing.T, channel osd.Channel) *Pipeline {
	p, err := New(channel, Config{StripeThreads: 8})
	require.NoError(t, err)
	t.Cleanup(p.Stop)
	return p
}

func newTestFile(t *testing.T, id string, policy striping.Policy) *fileid.File {
	nodes := make([]string, policy.Width)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("osd%d", i)
	}

	f, err := fileid.New(id, policy, nodes)
	require.NoError(t, err)
	return f
}

// recorder is a channel that keeps every transfer it was asked to perform.
type recorder struct {
	mu        sync.Mutex
	transfers []osd.TransferRequest
	respond   func(tr *osd.TransferRequest) (*osd.TransferResponse, error)
}

func (rec *recorder) Transfer(_ context.Context, tr *osd.TransferRequest) (*osd.TransferResponse, error) {
	rec.mu.Lock()
	rec.transfers = append(rec.transfers, *tr)
	rec.mu.Unlock()
	return rec.respond(tr)
}

func (rec *recorder) sorted() []osd.TransferRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := append([]osd.TransferRequest(nil), rec.transfers...)
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectIndex < out[j].ObjectIndex })
	return out
}

func TestWriteAcrossStripesMergesNewestSize(t *testing.T) {
	rec := &recorder{respond: func(tr *osd.TransferRequest) (*osd.TransferResponse, error) {
		if tr.ObjectIndex == 2 {
			return &osd.TransferResponse{BytesTransferred: tr.Size(), NewSize: 300 * kib, Epoch: 5}, nil
		}
		return &osd.TransferResponse{BytesTransferred: tr.Size(), NewSize: tr.FileOffset() + tr.Size(), Epoch: 4}, nil
	}}
	p := newTestPipeline(t, rec)
	f := newTestFile(t, "vol:e2e", striping.NewRAID0(64*kib, 4))

	n, err := p.SubmitFileWrite(context.Background(), f, 10*kib, make([]byte, 200*kib))
	require.NoError(t, err)
	require.Equal(t, int64(200*kib), n)

	transfers := rec.sorted()
	require.Len(t, transfers, 4)
	wantSizes := []int64{54 * kib, 64 * kib, 64 * kib, 18 * kib}
	wantOffsets := []int64{10 * kib, 0, 0, 0}
	for i, tr := range transfers {
		require.Equal(t, int64(i), tr.ObjectIndex)
		require.Equal(t, wantSizes[i], tr.Size())
		require.Equal(t, wantOffsets[i], tr.Offset)
		require.Equal(t, fmt.Sprintf("osd%d", i), tr.NodeAddress)
		require.Equal(t, osd.Write, tr.Op)
		require.Equal(t, int64(0), tr.Epoch)
	}

	require.Equal(t, fileid.SizeEpoch{Size: 300 * kib, Epoch: 5}, f.SizeEpoch())
	require.True(t, f.NeedsUpdate())
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	cluster := osd.NewInMemoryCluster()
	p := newTestPipeline(t, cluster)
	f := newTestFile(t, "vol:rt", striping.NewRAID0(4*kib, 3))

	data := make([]byte, 37*kib+123)
	rand.New(rand.NewSource(1)).Read(data)

	n, err := p.SubmitFileWrite(context.Background(), f, 1000, data)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, fileid.SizeEpoch{Size: int64(1000 + len(data)), Epoch: 0}, f.SizeEpoch())

	buf := make([]byte, len(data))
	n, err = p.SubmitFileRead(context.Background(), f, 1000, buf)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.True(t, bytes.Equal(data, buf))

	// Reading across the end of the file returns what is there.
	tail := make([]byte, 8*kib)
	n, err = p.SubmitFileRead(context.Background(), f, int64(1000+len(data)-100), tail)
	require.NoError(t, err)
	require.Equal(t, int64(100), n)
	require.Equal(t, data[len(data)-100:], tail[:100])

	// The unwritten head of the file reads as zeros.
	head := make([]byte, 1000)
	n, err = p.SubmitFileRead(context.Background(), f, 0, head)
	require.NoError(t, err)
	require.Equal(t, int64(1000), n)
	require.Equal(t, make([]byte, 1000), head)
}

func TestRangesRejectedOrEmptyDoNoIO(t *testing.T) {
	tests := []struct {
		name   string
		offset int64
		buf    []byte
		errno  unix.Errno
	}{
		{name: "zero size", offset: 50, buf: nil},
		{name: "negative offset", offset: -1, buf: make([]byte, 1), errno: unix.EINVAL},
		{name: "end past max offset", offset: math.MaxInt64 - 5, buf: make([]byte, 20), errno: unix.EFBIG},
		{name: "end at max offset", offset: math.MaxInt64 - 1, buf: make([]byte, 2), errno: unix.EFBIG},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cluster := osd.NewInMemoryCluster()
			p := newTestPipeline(t, cluster)
			f := newTestFile(t, "vol:range", striping.NewRAID0(4*kib, 2))

			n, err := p.SubmitFileWrite(context.Background(), f, test.offset, test.buf)
			require.Equal(t, test.errno, request.Errno(err))
			require.Equal(t, int64(0), n)

			n, err = p.SubmitFileRead(context.Background(), f, test.offset, test.buf)
			require.Equal(t, test.errno, request.Errno(err))
			require.Equal(t, int64(0), n)

			require.Equal(t, int64(0), cluster.Transfers())
			require.Equal(t, int64(0), p.Stats()[StageFileRW].Submitted)
		})
	}
}

func TestUnsupportedPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy striping.Policy
		errno  unix.Errno
	}{
		{name: "RAID5", policy: striping.Policy{Kind: striping.RAID5, StripeSize: 64 * kib, Width: 3}, errno: unix.EOPNOTSUPP},
		{name: "unknown", policy: striping.Policy{Kind: striping.Unknown, StripeSize: 64 * kib, Width: 3}, errno: unix.EINVAL},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cluster := osd.NewInMemoryCluster()
			p := newTestPipeline(t, cluster)
			f := newTestFile(t, "vol:"+test.name, test.policy)

			n, err := p.SubmitFileWrite(context.Background(), f, 0, make([]byte, 200*kib))
			require.Equal(t, test.errno, request.Errno(err))
			require.Equal(t, int64(0), n)

			require.Equal(t, int64(0), cluster.Transfers())
			require.Equal(t, int64(0), p.Stats()[StageStripeObject].Submitted)
			require.Equal(t, int64(4), p.Stats()[StageFileObject].Submitted)
			require.False(t, f.NeedsUpdate())
		})
	}
}

func TestTransportFailureReportsError(t *testing.T) {
	cluster := osd.NewInMemoryCluster()
	cluster.FailNode("osd1", errors.Wrap(unix.EIO, "connection reset"))
	p := newTestPipeline(t, cluster)
	f := newTestFile(t, "vol:fail", striping.NewRAID0(kib, 2))

	_, err := p.SubmitFileWrite(context.Background(), f, 0, make([]byte, 4*kib))
	require.Equal(t, unix.EIO, request.Errno(err))
	require.Equal(t, int64(4), cluster.Transfers(), "every object is still attempted")

	cluster.FailNode("osd1", nil)
	n, err := p.SubmitFileWrite(context.Background(), f, 0, make([]byte, 4*kib))
	require.NoError(t, err)
	require.Equal(t, int64(4*kib), n)
}

func TestCallerTimeoutAbortsRequest(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	var once sync.Once
	var transfers atomic.Int64

	p := newTestPipeline(t, osd.ChannelFunc(func(_ context.Context, tr *osd.TransferRequest) (*osd.TransferResponse, error) {
		transfers.Add(1)
		once.Do(started.Done)
		<-release
		return osd.NoSizeChange(tr.Size()), nil
	}))
	f := newTestFile(t, "vol:abort", striping.NewRAID0(kib, 1))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		started.Wait()
		cancel()
	}()

	n, err := p.SubmitFileWrite(ctx, f, 0, make([]byte, 64*kib))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int64(0), n)

	close(release)

	// Stop waits for the aborted request to drain through every stage.
	p.Stop()
	for _, snap := range p.Snapshot() {
		require.Empty(t, snap.Queued, snap.Name)
		require.Empty(t, snap.InFlight, snap.Name)
	}
	require.False(t, f.NeedsUpdate())

	// Only transfers already running when the caller gave up went out; every other
	// object saw the abort and skipped its transfer.
	require.LessOrEqual(t, transfers.Load(), int64(p.Config().StripeThreads))
}

// A file object request that cannot be queued ends the split. Objects already queued
// still transfer and report, and the file request completes once with the queue error.
func TestSubmitFailureDuringSplit(t *testing.T) {
	for _, failAt := range []int{0, 3} {
		t.Run(fmt.Sprintf("after %d objects", failAt), func(t *testing.T) {
			rec := &recorder{respond: func(tr *osd.TransferRequest) (*osd.TransferResponse, error) {
				return osd.NoSizeChange(tr.Size()), nil
			}}
			p := newTestPipeline(t, rec)

			var submits atomic.Int32
			p.submitObject = func(r *request.Request) error {
				if int(submits.Add(1)) > failAt {
					return errors.Wrap(unix.ENOMEM, "file object request")
				}
				return p.fobj.Submit(r)
			}

			f := newTestFile(t, "vol:enomem", striping.NewRAID0(kib, 4))
			var released atomic.Int32
			result := &fileRWResult{sizeEpoch: fileid.NoUpdate}
			r := request.New(opFileRW|request.Blocking, nil,
				&fileRWPayload{op: osd.Write, file: f, offset: 0, buf: make([]byte, 8*kib)}, result,
				request.WithPayloadRelease(func(any) { released.Add(1) }))

			err := p.filerw.ExecuteSync(context.Background(), r)
			require.Equal(t, unix.ENOMEM, request.Errno(err))
			require.Equal(t, request.StateError, r.State())
			require.Equal(t, int32(0), r.ActiveChildren())
			require.Equal(t, int32(failAt+1), submits.Load())
			require.Len(t, rec.sorted(), failAt)
			require.Equal(t, int64(failAt*kib), result.bytes)
			require.False(t, f.NeedsUpdate())

			r.Put()
			require.Equal(t, int32(1), released.Load())

			submits.Store(0)
			n, err := p.SubmitFileWrite(context.Background(), f, 0, make([]byte, 8*kib))
			require.Equal(t, unix.ENOMEM, request.Errno(err))
			require.Equal(t, int64(0), n)

			p.Stop()
			require.Len(t, rec.sorted(), 2*failAt)
			for _, snap := range p.Snapshot() {
				require.Empty(t, snap.Queued, snap.Name)
				require.Empty(t, snap.InFlight, snap.Name)
			}
		})
	}
}

// Many files written concurrently, with transfers completing in random order, all see
// every byte accounted for exactly once.
func TestConcurrentWritesWithReorderedTransfers(t *testing.T) {
	cluster := osd.NewInMemoryCluster()
	var rndMu sync.Mutex
	rnd := rand.New(rand.NewSource(42))

	p := newTestPipeline(t, osd.ChannelFunc(func(ctx context.Context, tr *osd.TransferRequest) (*osd.TransferResponse, error) {
		rndMu.Lock()
		delay := time.Duration(rnd.Intn(500)) * time.Microsecond
		rndMu.Unlock()
		time.Sleep(delay)
		return cluster.Transfer(ctx, tr)
	}))

	const files = 8
	var wg sync.WaitGroup
	for i := 0; i < files; i++ {
		f := newTestFile(t, fmt.Sprintf("vol:c%d", i), striping.NewRAID0(kib, 4))
		size := (i + 1) * 7 * kib
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := p.SubmitFileWrite(context.Background(), f, 0, make([]byte, size))
			require.NoError(t, err)
			require.Equal(t, int64(size), n)
			require.Equal(t, fileid.SizeEpoch{Size: int64(size), Epoch: 0}, f.SizeEpoch())
		}()
	}
	wg.Wait()
}

func TestStop(t *testing.T) {
	p, err := New(osd.NewInMemoryCluster(), DefaultConfig())
	require.NoError(t, err)
	f := newTestFile(t, "vol:stop", striping.NewRAID0(kib, 1))

	p.Stop()
	p.Stop()

	_, err = p.SubmitFileWrite(context.Background(), f, 0, []byte("x"))
	require.ErrorIs(t, err, ErrStopped)
	require.Equal(t, unix.ESHUTDOWN, request.Errno(err))
}

func TestNewRejectsNilChannel(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	require.Equal(t, unix.EINVAL, request.Errno(err))
}

func TestLoadConfig(t *testing.T) {
	c := LoadConfig(config.NewMapConfig(map[string]string{config.KeySobjThreads: "32"}))
	require.Equal(t, Config{StripeThreads: 32, SyncWatchdog: DefaultSyncWatchdog}, c)

	c = LoadConfig(config.NewMapConfig(nil))
	require.Equal(t, DefaultConfig(), c)
}
