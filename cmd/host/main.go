// Command host boots one infoton host process: loads its YAML config,
// starts its scheduler set, optionally attaches cluster membership and
// transport plugins, and spawns a small demonstration actor tree.
// Grounded in the teacher's cmd/game-node bootstrap shape (load config,
// build node, start, block on signal).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"infoton/internal/host"
	pkgactor "infoton/pkg/actor"
	"infoton/pkg/address"
	consul "infoton/pkg/discovery/provider/consul"
	"infoton/pkg/glog"
	"infoton/pkg/hostconfig"
	"infoton/pkg/message"
	natstransport "infoton/pkg/messageQue/provider/nats"
)

func main() {
	confPath := flag.String("conf", "./host.yaml", "path to host YAML config")
	flag.Parse()

	cfg, err := hostconfig.Load(*confPath)
	if err != nil {
		glog.Init(nil)
		glog.Fatal("load config failed", zap.Error(err))
	}
	glog.Init(&cfg.Glog)

	hc := host.Config{
		HostID:         cfg.HostID,
		SchedulerPorts: cfg.SchedulerPorts,
		ViewSize:       cfg.ViewSize,
		TargetActors:   cfg.TargetActors,
		InboundBound:   cfg.InboundBound,
		IsZygote:       cfg.IsZygote,
	}
	if cfg.Cluster.Enabled {
		membership, err := consul.New(&cfg.Cluster.Consul)
		if err != nil {
			glog.Fatal("consul membership init failed", zap.Error(err))
		}
		hc.Membership = membership
	}
	if cfg.Transport.Enabled {
		hc.Transport = natstransport.New(&cfg.Transport.Nats)
	}

	h := host.New(hc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.Run(ctx); err != nil {
		glog.Fatal("host run failed", zap.Error(err))
	}
	glog.Info("host started", zap.String("hostId", cfg.HostID), zap.Int("schedulers", len(cfg.SchedulerPorts)))

	if cfg.IsZygote {
		spawnDemoTree(h)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Error("host shutdown error", zap.Error(err))
	}
}

// spawnDemoTree walks through end-to-end scenario 1 (spec §8): a
// TreeCreator spawning a binary tree of TreeActors that grows on
// GrowRequest, and scenario 2: a cross-thread ping between the first two
// schedulers, if more than one is configured.
func spawnDemoTree(h *host.Host) {
	root := h.Scheduler(0)
	creatorAddr, err := root.Spawn(func() pkgactor.Actor { return &treeCreator{} })
	if err != nil {
		glog.Error("spawn tree creator failed", zap.Error(err))
		return
	}
	root.Deliver(message.New(address.NullAddress, creatorAddr, message.UserBody{Payload: startSignal{rounds: 17}}))

	if len(h.Schedulers()) < 2 {
		return
	}
	second := h.Scheduler(1)
	bAddr, err := second.Spawn(func() pkgactor.Actor { return &pingPongActor{} })
	if err != nil {
		glog.Error("spawn ping-pong responder failed", zap.Error(err))
		return
	}
	aAddr, err := root.Spawn(func() pkgactor.Actor { return &pingPongActor{} })
	if err != nil {
		glog.Error("spawn ping-pong initiator failed", zap.Error(err))
		return
	}
	root.Deliver(message.New(aAddr, bAddr, message.UserBody{Payload: pingMsg{from: aAddr}}))
}
