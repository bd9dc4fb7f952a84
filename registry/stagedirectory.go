package registry

import (
	"sync"

	"github.com/ulala-x/playhouse/nid"
)

// StageDirectory tracks which Play node currently hosts each stageId (spec
// 4.4: "stageId != 0 AND stage not local -> look up hosting node via
// registry, forward"). Kept as its own concurrent map rather than folded
// into Registry's per-NID Entry table, since a stage directory and a
// server membership directory are refreshed on different events (stage
// creation/destruction vs. heartbeats).
type StageDirectory struct {
	mu    sync.RWMutex
	hosts map[int64]nid.NID
}

// NewStageDirectory builds an empty directory.
func NewStageDirectory() *StageDirectory {
	return &StageDirectory{hosts: make(map[int64]nid.NID)}
}

// Announce records that host now hosts stageId (called once the Play
// node's OnCreate succeeds).
func (d *StageDirectory) Announce(stageId int64, host nid.NID) {
	d.mu.Lock()
	d.hosts[stageId] = host
	d.mu.Unlock()
}

// Forget removes a stage's directory entry (called on CloseStage).
func (d *StageDirectory) Forget(stageId int64) {
	d.mu.Lock()
	delete(d.hosts, stageId)
	d.mu.Unlock()
}

// LocateStage implements sender.StageLocator.
func (d *StageDirectory) LocateStage(stageId int64) (nid.NID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	host, ok := d.hosts[stageId]
	return host, ok
}
