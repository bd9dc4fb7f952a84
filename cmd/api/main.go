// Command api boots an Api node: the stateless service role that answers
// lobby-style RPCs (spec 2). It wires the API dispatcher (spec 4.9) with
// example.CreateStageController installed, the reference handler for spec
// 8 scenario 5's API->Play CreateStage flow.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
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
	"github.com/ulala-x/playhouse/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (viper-readable)")
	flag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		logger.Log.Errorf("api: config: %s", err.Error())
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
		logger.Log.Errorf("api: transport connect: %s", err.Error())
		os.Exit(1)
	}

	corr := correlator.New(clock.Default, cfg.RequestTimeout())
	corr.StartExpiryScanner(0)

	sessions := session.NewPool()
	stageDir := registry.NewStageDirectory()

	sdr := sender.New(self, t, corr, reg, sessions, stageDir)

	register := api.NewRegister()
	controllers := []api.IApiController{
		&example.CreateStageController{Timeout: cfg.RequestTimeout()},
	}
	for _, c := range controllers {
		if err := c.Init(register); err != nil {
			logger.Log.Errorf("api: controller init: %s", err.Error())
			os.Exit(1)
		}
	}
	dispatcher := api.NewDispatcher(register, sdr)

	hb := heartbeat.New(heartbeat.Config{
		Self:        self,
		Endpoint:    cfg.BindEndpoint(),
		ServiceType: string(nid.Api),
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

	router := node.New(node.Config{
		Transport:      t,
		Correlator:     corr,
		Sessions:       sessions,
		Stages:         node.NewStageHost(),
		StageDirectory: stageDir,
		ApiDispatcher:  dispatcher,
		SystemHandler:  systemHandler,
		IsSessionNode:  false,
	})

	logger.Log.Infof("api: node %s listening for mesh traffic", self.String())
	go router.Run()

	waitForShutdown()

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
