package stage

import (
	"sort"
	"sync"

	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
)

// Live stages, kept so a stuck synchronous caller can dump every queue.
var stages sync.Map

func register(s *Stage) {
	stages.Store(s, struct{}{})
}

func unregister(s *Stage) {
	stages.Delete(s)
}

// Snapshot is the diagnostic view of one stage.
type Snapshot struct {
	Name     string         `json:"name"`
	Threads  int            `json:"threads"`
	Queued   []request.Info `json:"queued"`
	InFlight []request.Info `json:"in_flight"`
	Stats    StatsSnapshot  `json:"stats"`
}

func (s *Stage) Snapshot() Snapshot {
	s.mu.Lock()
	queued := make([]*request.Request, 0, s.input.Len())
	for e := s.input.Front(); e != nil; e = e.Next() {
		queued = append(queued, e.Value.(*request.Request))
	}
	inflight := make([]*request.Request, 0, len(s.inflight))
	for r := range s.inflight {
		inflight = append(inflight, r)
	}
	s.mu.Unlock()

	snap := Snapshot{
		Name:     s.name,
		Threads:  s.nThreads,
		Queued:   make([]request.Info, 0, len(queued)),
		InFlight: make([]request.Info, 0, len(inflight)),
		Stats:    s.stats.Snapshot(),
	}

	for _, r := range queued {
		snap.Queued = append(snap.Queued, r.Info())
	}

	for _, r := range inflight {
		snap.InFlight = append(snap.InFlight, r.Info())
	}
	sort.Slice(snap.InFlight, func(i, j int) bool { return snap.InFlight[i].ID < snap.InFlight[j].ID })

	return snap
}

// SnapshotAll returns a snapshot of every live stage ordered by name.
func SnapshotAll() []Snapshot {
	var snaps []Snapshot
	stages.Range(func(key, _ any) bool {
		snaps = append(snaps, key.(*Stage).Snapshot())
		return true
	})
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// LogAll writes the queues of every live stage to the stage loggers.
func LogAll() {
	stages.Range(func(key, _ any) bool {
		key.(*Stage).Log()
		return true
	})
}

func (s *Stage) Log() {
	snap := s.Snapshot()
	s.logger.Infof("%s: %s", s, s.stats)

	if len(snap.Queued) == 0 {
		s.logger.Infof("input queue: no requests")
	}
	for _, info := range snap.Queued {
		s.logger.WithField("state", info.State).WithField("children", info.ActiveChildren).Infof("queued req %d kind %s", info.ID, info.Kind)
	}

	if len(snap.InFlight) == 0 {
		s.logger.Infof("in-flight: no requests")
	}
	for _, info := range snap.InFlight {
		s.logger.WithField("state", info.State).WithField("children", info.ActiveChildren).Infof("in-flight req %d kind %s", info.ID, info.Kind)
	}
}
