// Command session boots a Session node: the edge-facing service role that
// terminates client connections and bridges them into the mesh (spec 2).
// It owns the client connector (node.Listener) in addition to the same
// router-transport plumbing every node shares.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ulala-x/playhouse/agent"
	"github.com/ulala-x/playhouse/api"
	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/config"
	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/correlator"
	"github.com/ulala-x/playhouse/heartbeat"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/node"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (viper-readable)")
	flag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		logger.Log.Errorf("session: config: %s", err.Error())
		os.Exit(1)
	}

	self := nid.New(cfg.ServiceId(), cfg.ServerId())

	reg := registry.New(cfg.LivenessTimeout(), cfg.PurgeTimeout(), clock.Default)

	t := transport.New(self, reg, transport.Options{
		SendHWM:    cfg.SendHWM(),
		ReceiveHWM: cfg.ReceiveHWM(),
		Linger:     cfg.Linger(),
		Clock:      clock.Default,
	})
	if err := t.Connect(cfg.NatsEndpoint()); err != nil {
		logger.Log.Errorf("session: transport connect: %s", err.Error())
		os.Exit(1)
	}

	corr := correlator.New(clock.Default, cfg.RequestTimeout())
	corr.StartExpiryScanner(0)

	sessions := session.NewPool()
	stageDir := registry.NewStageDirectory()
	// A Session node never hosts stages itself (spec 2: "Session —
	// edge-facing, terminates client connections"); its StageHost is always
	// empty, so every stageId-addressed packet forwards through stageDir.
	host := node.NewStageHost()

	sdr := sender.New(self, t, corr, reg, sessions, stageDir)

	hb := heartbeat.New(heartbeat.Config{
		Self:        self,
		Endpoint:    cfg.BindEndpoint(),
		ServiceType: string(nid.Session),
		Weight:      1,
		Interval:    cfg.HeartbeatInterval(),
		Registry:    reg,
		Broadcaster: t,
		Clock:       clock.Default,
		Encode:      encodeServerInfo,
		Decode:      decodeServerInfo,
	})
	ctx, cancel := context.WithCancel(context.Background())
	hb.Start(ctx)

	systemHandler := node.ComposeSystemHandler(hb, nil)

	emptyRegister := api.NewRegister()
	dispatcher := api.NewDispatcher(emptyRegister, sdr)

	router := node.New(node.Config{
		Transport:      t,
		Correlator:     corr,
		Sessions:       sessions,
		Stages:         host,
		StageDirectory: stageDir,
		ApiDispatcher:  dispatcher,
		SystemHandler:  systemHandler,
		IsSessionNode:  true,
	})
	go router.Run()

	bridge := node.NewSessionBridge(self, sdr, host, cfg.RequestTimeout())
	listener := node.NewListener(self, sessions, sdr, bridge, agent.Options{
		HeartbeatTimeout:     cfg.HeartbeatTimeout(),
		MessagesBufferSize:   cfg.MessagesBufferSize(),
		MaxBodySize:          cfg.MaxBodySize(),
		CompressionThreshold: cfg.CompressionThreshold(),
	})

	go func() {
		if err := listener.Serve(cfg.ClientListenEndpoint()); err != nil {
			logger.Log.Errorf("session: client listener stopped: %s", err.Error())
		}
	}()

	logger.Log.Infof("session: node %s accepting clients on %s", self.String(), cfg.ClientListenEndpoint())

	waitForShutdown()

	_ = listener.Close()
	hb.Stop()
	cancel()
	corr.StopExpiryScanner()
	corr.ExpireAll(constants.CodeShuttingDown)
	_ = t.Shutdown()
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

func encodeServerInfo(info registry.ServerInfo) ([]byte, error) { return json.Marshal(info) }

func decodeServerInfo(data []byte) (registry.ServerInfo, error) {
	var info registry.ServerInfo
	err := json.Unmarshal(data, &info)
	return info, err
}
