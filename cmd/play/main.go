// Command play boots a Play node: the service role that hosts stages and
// actors (spec 2). It wires every package under the module root into a
// runnable process the way a real deployment would, with example.TestStage
// installed as the default StageFactory so the node has something to host.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ulala-x/playhouse/api"
	"github.com/ulala-x/playhouse/clock"
	"github.com/ulala-x/playhouse/config"
	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/correlator"
	"github.com/ulala-x/playhouse/example"
	"github.com/ulala-x/playhouse/heartbeat"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/node"
	"github.com/ulala-x/playhouse/registry"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/session"
	"github.com/ulala-x/playhouse/stage"
	"github.com/ulala-x/playhouse/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (viper-readable)")
	flag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		logger.Log.Errorf("play: config: %s", err.Error())
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
		logger.Log.Errorf("play: transport connect: %s", err.Error())
		os.Exit(1)
	}

	corr := correlator.New(clock.Default, cfg.RequestTimeout())
	corr.StartExpiryScanner(0)

	sessions := session.NewPool()
	stageDir := registry.NewStageDirectory()
	host := node.NewStageHost()

	sdr := sender.New(self, t, corr, reg, sessions, stageDir)

	workers := runtime.NumCPU()
	pool := stage.NewPool(workers)

	factory := example.NewTestStage(sdr).Factory
	createStage := node.NewPlaySystemHandler(self, pool, host, stageDir, t, factory, cfg.DefaultStageType())

	hb := heartbeat.New(heartbeat.Config{
		Self:        self,
		Endpoint:    cfg.BindEndpoint(),
		ServiceType: string(nid.Play),
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

	systemHandler := node.ComposeSystemHandler(hb, createStage)

	// A Play node never receives packets that fall through to the default
	// "dispatch via the API handler registry" rule (spec 4.4); an empty
	// register still answers NotRouted instead of panicking if one arrives.
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
		IsSessionNode:  false,
	})

	logger.Log.Infof("play: node %s listening for mesh traffic, %d stage workers", self.String(), workers)
	go router.Run()

	waitForShutdown()

	hb.Stop()
	cancel()
	corr.StopExpiryScanner()
	corr.ExpireAll(constants.CodeShuttingDown)
	pool.Close()
	_ = t.Shutdown()
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

// encodeServerInfo/decodeServerInfo carry the heartbeat payload as JSON,
// the same ad hoc map/struct encoding agent.go's own hbdEncode uses for its
// handshake payload (see DESIGN.md's dropped-go-simplejson entry).
func encodeServerInfo(info registry.ServerInfo) ([]byte, error) { return json.Marshal(info) }

func decodeServerInfo(data []byte) (registry.ServerInfo, error) {
	var info registry.ServerInfo
	err := json.Unmarshal(data, &info)
	return info, err
}
