// Package heartbeat implements spec 4.3/2's "Heartbeat & health" component:
// periodic self-announce over the system message channel, liveness timeout
// and disabled-state marking, all driven into the registry package.
package heartbeat

import (
	"context"
	"time"

	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/route"
)

// SystemMsgId is the well-known system message id heartbeats are exchanged
// as, per spec 6 ("exchanged as the payload of a well-known system message").
const SystemMsgId = "playhouse.sys.heartbeat"

// Broadcaster is implemented by the transport/sender layer: it must deliver
// a system-flagged RoutePacket to every known peer (or, more commonly, be
// bridged through the same pub/sub bus the transport already holds open).
type Broadcaster interface {
	BroadcastSystem(msgId string, payload []byte) error
}

// Service runs the periodic self-announce and the liveness/purge sweep.
type Service struct {
	self        nid.NID
	endpoint    string
	serviceType string
	weight      int

	interval time.Duration
	registry *registry.Registry
	bcast    Broadcaster
	clock    clock.Clock
	encode   func(registry.ServerInfo) ([]byte, error)
	decode   func([]byte) (registry.ServerInfo, error)

	cancel context.CancelFunc
}

// Config collects the pieces Service needs; encode/decode let the caller
// choose a serializer (json or protobuf) for the ServerInfo payload without
// heartbeat depending on the serialize package directly.
type Config struct {
	Self        nid.NID
	Endpoint    string
	ServiceType string
	Weight      int
	Interval    time.Duration
	Registry    *registry.Registry
	Broadcaster Broadcaster
	Clock       clock.Clock
	Encode      func(registry.ServerInfo) ([]byte, error)
	Decode      func([]byte) (registry.ServerInfo, error)
}

// New builds a heartbeat Service from cfg, defaulting Interval to spec 4.3's
// recommended 1s.
func New(cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Default
	}
	return &Service{
		self:        cfg.Self,
		endpoint:    cfg.Endpoint,
		serviceType: cfg.ServiceType,
		weight:      cfg.Weight,
		interval:    cfg.Interval,
		registry:    cfg.Registry,
		bcast:       cfg.Broadcaster,
		clock:       cfg.Clock,
		encode:      cfg.Encode,
		decode:      cfg.Decode,
	}
}

// Start announces this node once, then begins the announce/sweep loop,
// stoppable by cancelling ctx or calling Stop.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.announceSelf()
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.announceSelf()
				s.registry.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the announce/sweep loop.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) announceSelf() {
	info := registry.ServerInfo{
		Nid:         s.self,
		Endpoint:    s.endpoint,
		ServiceType: s.serviceType,
		ServiceId:   s.self.ServiceId,
		State:       registry.ServerInfoRunning,
		Weight:      s.weight,
		Timestamp:   s.clock.Now(),
	}

	// A node always knows about itself, even before any peer heartbeat
	// arrives back — this is what makes direct self-addressing and
	// CreateStage-on-self-node immediately reachable.
	s.registry.OnHeartbeat(info)

	if s.bcast == nil || s.encode == nil {
		return
	}
	payload, err := s.encode(info)
	if err != nil {
		logger.Log.Warnf("heartbeat: encode failed: %s", err.Error())
		return
	}
	if err := s.bcast.BroadcastSystem(SystemMsgId, payload); err != nil {
		logger.Log.Warnf("heartbeat: broadcast failed: %s", err.Error())
	}
}

// OnSystemMessage feeds an inbound heartbeat packet (matched on msgId ==
// SystemMsgId by the router, spec 4.4's isSystem rule) into the registry.
func (s *Service) OnSystemMessage(h *route.Header, payload []byte) {
	if h.MsgId != SystemMsgId || s.decode == nil {
		return
	}
	info, err := s.decode(payload)
	if err != nil {
		logger.Log.Warnf("heartbeat: decode failed: %s", err.Error())
		return
	}
	s.registry.OnHeartbeat(info)
}
