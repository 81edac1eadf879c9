// Package host drives one OS process's set of schedulers (spec §2, §4.3):
// it builds N schedulers pinned to their own goroutine, wires their
// HostServices into a peer mesh, assigns scheduler positions, optionally
// attaches cluster membership and transport plugins, and owns the
// zygote's initial actor tree.
package host

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"infoton/internal/hostservice"
	"infoton/internal/positioner"
	"infoton/internal/scheduler"
	pkgactor "infoton/pkg/actor"
	"infoton/pkg/address"
	"infoton/pkg/component"
	"infoton/pkg/discovery"
	"infoton/pkg/glog"
	"infoton/pkg/lib/workers"
	"infoton/pkg/messageQue"
)

// Config describes one host process (spec §9's host-level settings).
type Config struct {
	HostID         string
	SchedulerPorts []int
	ViewSize       float32
	TargetActors   int
	InboundBound   int
	IsZygote       bool

	Membership discovery.ClusterMembership
	Transport  messageQue.Transport
}

// Host owns a fixed set of schedulers, each run on its own goroutine
// started by workers.Go and locked to its OS thread with
// runtime.LockOSThread (spec §2's "runs on its own OS thread").
type Host struct {
	cfg          Config
	schedulers   []*scheduler.Scheduler
	hostServices []*hostservice.HostService
	positioner   *positioner.Positioner
	components   *component.Manager

	wg sync.WaitGroup
}

// New builds every scheduler named in cfg, wires their HostServices into
// a full peer mesh, and assigns each a position via the positioner
// (spec §4.4's "Scheduler position"). No scheduler loop is running yet;
// call Run to start them.
func New(cfg Config) *Host {
	h := &Host{cfg: cfg, components: component.New()}

	var rootPostcode address.PostCode
	if cfg.IsZygote && len(cfg.SchedulerPorts) > 0 {
		rootPostcode = address.New(cfg.HostID, cfg.SchedulerPorts[0])
	}
	isRoot := func(pc address.PostCode) bool {
		return !rootPostcode.IsNull() && pc == rootPostcode
	}
	h.positioner = positioner.New(cfg.HostID, cfg.ViewSize, cfg.TargetActors, isRoot)

	hostServices := make([]*hostservice.HostService, 0, len(cfg.SchedulerPorts))
	for _, port := range cfg.SchedulerPorts {
		postcode := address.New(cfg.HostID, port)
		hs := hostservice.New(postcode, cfg.InboundBound, cfg.Transport)
		hostServices = append(hostServices, hs)
	}
	for _, hs := range hostServices {
		hs.AddPeers(hostServices)
	}
	h.hostServices = hostServices

	for i, port := range cfg.SchedulerPorts {
		postcode := address.New(cfg.HostID, port)
		idx := i
		plugins := []pkgactor.Plugin{h.positioner}
		if cfg.Membership != nil {
			plugins = append(plugins, discovery.MembershipPlugin{Membership: cfg.Membership})
		}
		sch := scheduler.New(postcode, hostServices[idx], plugins, func() []pkgactor.PeerInfo {
			return h.peerInfo(idx)
		})
		sch.SetPosition(h.positioner.SchedulerPosition(postcode))
		if cfg.IsZygote && i == 0 {
			sch.SetZygote(true)
		}
		h.schedulers = append(h.schedulers, sch)
	}

	return h
}

// peerInfo builds the MigrationAlternatives set for scheduler idx: every
// other local scheduler's postcode and position (spec §4.4).
func (h *Host) peerInfo(idx int) []pkgactor.PeerInfo {
	out := make([]pkgactor.PeerInfo, 0, len(h.schedulers)-1)
	for i, s := range h.schedulers {
		if i == idx {
			continue
		}
		out = append(out, pkgactor.PeerInfo{PostCode: s.PostCode(), Position: s.Position()})
	}
	return out
}

// Scheduler returns the i-th local scheduler, used by callers spawning
// the zygote's initial actor tree.
func (h *Host) Scheduler(i int) *scheduler.Scheduler { return h.schedulers[i] }

// Schedulers returns every local scheduler.
func (h *Host) Schedulers() []*scheduler.Scheduler { return h.schedulers }

// Run starts every scheduler's loop on its own pinned goroutine (spec
// §2) and, if configured, the cluster-membership plugin's background
// watch loop. It returns once every scheduler goroutine has been
// launched; it does not block.
func (h *Host) Run(ctx context.Context) error {
	if h.cfg.Membership != nil {
		if err := h.components.Register(membershipComponent{h.cfg.Membership}); err != nil {
			return err
		}
	}
	if h.cfg.Transport != nil {
		if err := h.components.Register(transportComponent{h.cfg.Transport}); err != nil {
			return err
		}
	}
	if err := h.components.Start(ctx); err != nil {
		return err
	}
	if h.cfg.Transport != nil && len(h.hostServices) > 0 {
		if err := h.cfg.Transport.Subscribe(h.schedulers[0].PostCode(), h.receiveRemote); err != nil {
			return err
		}
	}
	h.forceRootIfNeeded()

	for _, s := range h.schedulers {
		s := s
		h.wg.Add(1)
		workers.Go(func(_ *workers.WaitContext) {
			runtime.LockOSThread()
			defer h.wg.Done()
			glog.Info("scheduler started", zap.Stringer("postcode", s.PostCode()))
			s.RunLoop(ctx, true, false)
		})
	}
	return nil
}

// forceRootIfNeeded implements the remainder of spec §4.2's addpeers!:
// once every HostService's peer mesh is wired, any non-zygote scheduler
// whose cluster plugin reports no known root declares one (the first
// peer, deterministically) by injecting a ForceAddRoot envelope into its
// own inbound queue, addressed to box 0 — a control address no Spawn
// ever allocates (boxSeq starts at 1). The scheduler's own dispatch loop
// then hands the declaration to any plugin implementing
// PluginForceAddRoot (discovery.MembershipPlugin).
func (h *Host) forceRootIfNeeded() {
	if h.cfg.Membership == nil {
		return
	}
	ann, ok := h.cfg.Membership.(discovery.RootAnnouncer)
	if !ok {
		return
	}
	_, known := ann.CurrentRoot()
	for i, hs := range h.hostServices {
		helper := address.Of(h.schedulers[i].PostCode(), 0)
		env := hs.MaybeForceRoot(h.schedulers[i].IsZygote(), true, known, helper)
		if env == nil {
			continue
		}
		hs.PushInbound(env)
	}
}

// receiveRemote decodes a frame arriving over the Transport and hands it
// to whichever local HostService owns the target postcode, implementing
// the receiving side of spec §4.2's cross-host routing. Decoding is
// stateless, so any local HostService's codec will do.
func (h *Host) receiveRemote(payload []byte) {
	env, err := h.hostServices[0].ReceiveRemote(payload)
	if err != nil {
		glog.Error("remote frame decode failed", zap.Error(err))
		return
	}
	for _, hs := range h.hostServices {
		if hs.PostCode() == env.Target.PostCode {
			hs.PushInbound(env)
			return
		}
	}
	glog.Warn("remote frame targets unknown local scheduler", zap.Stringer("target", env.Target))
}

// Shutdown implements spec §4.1's shutdown!, broadcast to every local
// scheduler, then stops the component pipeline (transport, membership)
// and waits for every scheduler goroutine to drain and exit.
func (h *Host) Shutdown(ctx context.Context) error {
	for _, s := range h.schedulers {
		s.Shutdown()
	}
	h.wg.Wait()
	return h.components.Stop(ctx)
}

type membershipComponent struct{ m discovery.ClusterMembership }

func (membershipComponent) Name() string                      { return "cluster-membership" }
func (c membershipComponent) Start(ctx context.Context) error { return c.m.Run(ctx) }
func (c membershipComponent) Stop(ctx context.Context) error  { return c.m.Shutdown(ctx) }

type transportComponent struct{ t messageQue.Transport }

func (transportComponent) Name() string                      { return "transport" }
func (c transportComponent) Start(ctx context.Context) error { return c.t.Run(ctx) }
func (c transportComponent) Stop(ctx context.Context) error  { return c.t.Shutdown(ctx) }
