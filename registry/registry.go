// Package registry implements the eventually consistent service directory
// of spec 4.3: heartbeat-driven liveness, round-robin and weighted member
// selection, backed optionally by etcd (go.etcd.io/etcd/client/v3) for
// cross-restart persistence of the directory, the way pitaya's own service
// discovery layer uses etcd leases/watches.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/nid"
)

// Entry is the "Server registry entry" of spec 3.
type Entry struct {
	Nid             nid.NID
	Endpoint        string
	ServiceType     string
	ServiceId       uint16
	State           State
	Weight          int
	LastHeartbeatAt time.Time
}

// State mirrors constants.ServerRunning/ServerDisabled without importing
// constants' int iota directly, so registry stays self-contained.
type State int

const (
	Running State = iota
	Disabled
)

// Registry is the concurrent-read, serialized-write directory described in
// spec 4.3/5 ("concurrent read, serialized write through the heartbeat
// processor").
type Registry struct {
	mu      sync.RWMutex
	entries map[nid.NID]*Entry

	livenessTimeout time.Duration
	purgeTimeout    time.Duration
	clock           clock.Clock

	counters   sync.Map // serviceId(uint16) -> *uint64, round-robin cursor
}

// New builds a Registry. livenessTimeout/purgeTimeout default to spec 4.3's
// recommendations (5s / 60s) when zero.
func New(livenessTimeout, purgeTimeout time.Duration, c clock.Clock) *Registry {
	if livenessTimeout <= 0 {
		livenessTimeout = 5 * time.Second
	}
	if purgeTimeout <= 0 {
		purgeTimeout = 60 * time.Second
	}
	if c == nil {
		c = clock.Default
	}
	return &Registry{
		entries:         make(map[nid.NID]*Entry),
		livenessTimeout: livenessTimeout,
		purgeTimeout:    purgeTimeout,
		clock:           c,
	}
}

// OnHeartbeat processes a ServerInfo announcement (spec 4.3/6), refreshing
// the member's last-seen timestamp and marking it Running. This is the
// registry's single serialized write path.
func (r *Registry) OnHeartbeat(info ServerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[info.Nid]
	if !ok {
		e = &Entry{Nid: info.Nid}
		r.entries[info.Nid] = e
	}
	e.Endpoint = info.Endpoint
	e.ServiceType = info.ServiceType
	e.ServiceId = info.ServiceId
	e.Weight = info.Weight
	e.State = stateFromServerInfo(info.State)
	e.LastHeartbeatAt = r.clock.Now()
}

func stateFromServerInfo(s ServerInfoState) State {
	if s == ServerInfoDisabled {
		return Disabled
	}
	return Running
}

// Sweep marks entries whose last-seen age exceeds livenessTimeout Disabled,
// and removes entries whose age exceeds purgeTimeout. Intended to be called
// periodically (spec 4.3's default heartbeat interval is 1s; sweeping on the
// same cadence is the natural choice).
func (r *Registry) Sweep() {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, e := range r.entries {
		age := now.Sub(e.LastHeartbeatAt)
		switch {
		case age > r.purgeTimeout:
			delete(r.entries, k)
		case age > r.livenessTimeout:
			e.State = Disabled
		}
	}
}

// IsReachable reports whether n is a known, Running member. Implements
// transport.PeerResolver so the transport can fail sends synchronously
// (spec 4.2, "delivery to an unknown identity fails synchronously").
func (r *Registry) IsReachable(n nid.NID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[n]
	return ok && e.State == Running
}

// Get returns a read-only snapshot of the entry for n.
func (r *Registry) Get(n nid.NID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[n]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Members returns a snapshot of every entry for the given serviceId,
// sorted by NID (the tie-break order spec 4.3's weighted selection uses).
func (r *Registry) Members(serviceId uint16) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0)
	for _, e := range r.entries {
		if e.ServiceId == serviceId {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Nid.String() < out[j].Nid.String()
	})
	return out
}

// RoundRobin implements spec 4.3's roundRobin(serviceId): an atomic
// per-service counter modulo the sorted list of Running members.
func (r *Registry) RoundRobin(serviceId uint16) (nid.NID, bool) {
	members := runningOnly(r.Members(serviceId))
	if len(members) == 0 {
		return nid.NID{}, false
	}

	counterAny, _ := r.counters.LoadOrStore(serviceId, new(uint64))
	counter := counterAny.(*uint64)
	idx := atomicAddMod(counter, uint64(len(members)))
	return members[idx].Nid, true
}

// Weighted implements spec 4.3's weighted(serviceId): the highest-weight
// Running member, ties broken deterministically by NID ordering.
func (r *Registry) Weighted(serviceId uint16) (nid.NID, bool) {
	members := runningOnly(r.Members(serviceId))
	if len(members) == 0 {
		return nid.NID{}, false
	}

	best := members[0]
	for _, m := range members[1:] {
		if m.Weight > best.Weight {
			best = m
		}
	}
	return best.Nid, true
}

func runningOnly(entries []Entry) []Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.State == Running {
			out = append(out, e)
		}
	}
	return out
}
