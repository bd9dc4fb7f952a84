package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
)

// EtcdBackend persists this node's ServerInfo under a lease so that the
// directory survives restarts of other nodes even between heartbeats,
// grounded on pitaya's go.etcd.io/etcd/client/v3 dependency (pitaya's own
// etcd-backed service discovery binds a member's key to a lease it refreshes
// on the same cadence as its heartbeat).
type EtcdBackend struct {
	client  *clientv3.Client
	leaseID clientv3.LeaseID
	keyFn   func(nid.NID) string
}

// NewEtcdBackend dials etcd at the given endpoints.
func NewEtcdBackend(endpoints []string, dialTimeout time.Duration) (*EtcdBackend, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("registry: etcd dial: %w", err)
	}
	return &EtcdBackend{
		client: cli,
		keyFn:  func(n nid.NID) string { return "/playhouse/nodes/" + n.String() },
	}, nil
}

// Announce puts info under a lease with ttl, creating the lease on first
// call and keeping it alive for the caller to refresh on each heartbeat tick
// via Refresh.
func (b *EtcdBackend) Announce(ctx context.Context, info ServerInfo, ttl time.Duration) error {
	if b.leaseID == 0 {
		lease, err := b.client.Grant(ctx, int64(ttl.Seconds()))
		if err != nil {
			return fmt.Errorf("registry: etcd grant lease: %w", err)
		}
		b.leaseID = lease.ID
	}

	payload, err := json.Marshal(toWire(info))
	if err != nil {
		return fmt.Errorf("registry: marshal server info: %w", err)
	}

	_, err = b.client.Put(ctx, b.keyFn(info.Nid), string(payload), clientv3.WithLease(b.leaseID))
	return err
}

// Refresh renews this node's lease, called on the same timer as the
// heartbeat broadcast (spec 4.3's default 1s interval).
func (b *EtcdBackend) Refresh(ctx context.Context) error {
	if b.leaseID == 0 {
		return nil
	}
	_, err := b.client.KeepAliveOnce(ctx, b.leaseID)
	return err
}

// Watch streams ServerInfo changes from etcd into the supplied callback
// until ctx is cancelled, seeding a newly-joined node's registry from
// members that announced before it started.
func (b *EtcdBackend) Watch(ctx context.Context, onInfo func(ServerInfo)) {
	resp, err := b.client.Get(ctx, "/playhouse/nodes/", clientv3.WithPrefix())
	if err != nil {
		logger.Log.Warnf("registry: etcd initial get failed: %s", err.Error())
	} else {
		for _, kv := range resp.Kvs {
			if info, ok := decodeWire(kv.Value); ok {
				onInfo(info)
			}
		}
	}

	watchCh := b.client.Watch(ctx, "/playhouse/nodes/", clientv3.WithPrefix())
	for resp := range watchCh {
		for _, ev := range resp.Events {
			if ev.Type != clientv3.EventTypePut {
				continue
			}
			if info, ok := decodeWire(ev.Kv.Value); ok {
				onInfo(info)
			}
		}
	}
}

func (b *EtcdBackend) Close() error {
	return b.client.Close()
}

type wireServerInfo struct {
	ServiceId   uint16
	ServerId    string
	Endpoint    string
	ServiceType string
	State       ServerInfoState
	Weight      int
	Timestamp   time.Time
}

func toWire(info ServerInfo) wireServerInfo {
	return wireServerInfo{
		ServiceId:   info.Nid.ServiceId,
		ServerId:    info.Nid.ServerId,
		Endpoint:    info.Endpoint,
		ServiceType: info.ServiceType,
		State:       info.State,
		Weight:      info.Weight,
		Timestamp:   info.Timestamp,
	}
}

func decodeWire(data []byte) (ServerInfo, bool) {
	var w wireServerInfo
	if err := json.Unmarshal(data, &w); err != nil {
		logger.Log.Warnf("registry: malformed etcd value: %s", err.Error())
		return ServerInfo{}, false
	}
	return ServerInfo{
		Nid:         nid.New(w.ServiceId, w.ServerId),
		Endpoint:    w.Endpoint,
		ServiceType: w.ServiceType,
		State:       w.State,
		Weight:      w.Weight,
		Timestamp:   w.Timestamp,
	}, true
}
