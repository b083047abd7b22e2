package stage

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rcrowley/go-metrics"
)

// Stats holds the counters of a single stage. Each stage has its own registry so two
// pipelines in one process do not share numbers.
type Stats struct {
	registry    metrics.Registry
	queueLength metrics.Counter
	submitted   metrics.Counter
	handled     metrics.Timer
}

func NewStats(name string) *Stats {
	s := &Stats{
		registry:    metrics.NewRegistry(),
		queueLength: metrics.NewCounter(),
		submitted:   metrics.NewCounter(),
		handled:     metrics.NewTimer(),
	}

	_ = s.registry.Register(fmt.Sprintf("%sQueueLength", name), s.queueLength)
	_ = s.registry.Register(fmt.Sprintf("%sSubmitted", name), s.submitted)
	_ = s.registry.Register(fmt.Sprintf("%sHandled", name), s.handled)

	return s
}

func (s *Stats) queued() {
	s.queueLength.Inc(1)
	s.submitted.Inc(1)
}

func (s *Stats) dequeued() {
	s.queueLength.Dec(1)
}

func (s *Stats) processed(start time.Time) {
	s.handled.UpdateSince(start)
}

func (s *Stats) Registry() metrics.Registry {
	return s.registry
}

func (s *Stats) QueueLength() int64 {
	return s.queueLength.Count()
}

func (s *Stats) Submitted() int64 {
	return s.submitted.Count()
}

func (s *Stats) Handled() int64 {
	return s.handled.Count()
}

type StatsSnapshot struct {
	QueueLength int64   `json:"queue_length"`
	Submitted   int64   `json:"submitted"`
	Handled     int64   `json:"handled"`
	MeanMicros  float64 `json:"mean_us"`
	P99Micros   float64 `json:"p99_us"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	t := s.handled.Snapshot()
	return StatsSnapshot{
		QueueLength: s.queueLength.Count(),
		Submitted:   s.submitted.Count(),
		Handled:     t.Count(),
		MeanMicros:  t.Mean() / float64(time.Microsecond),
		P99Micros:   t.Percentile(0.99) / float64(time.Microsecond),
	}
}

func (s *Stats) String() string {
	t := s.handled.Snapshot()
	ps := t.Percentiles([]float64{0.5, 0.95, 0.99})
	return fmt.Sprintf("submitted:%v queue:%v handled:%v median:%v 95%%:%v 99%%:%v max:%v",
		humanize.Comma(s.submitted.Count()),
		humanize.Comma(s.queueLength.Count()),
		humanize.Comma(t.Count()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		time.Duration(ps[2]),
		time.Duration(t.Max()))
}
