// Package scheduler implements the per-thread scheduler loop, actor
// directory and dispatch algorithm of spec §4.1: pop, dispatch, infoton,
// drain, external events.
package scheduler

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"infoton/internal/errs"
	"infoton/internal/hostservice"
	"infoton/internal/mailbox"
	pkgactor "infoton/pkg/actor"
	"infoton/pkg/address"
	"infoton/pkg/glog"
	"infoton/pkg/message"
	"infoton/pkg/position"
)

// actorRecord is the runtime view of a resident actor (spec §3). It
// implements pkgactor.ActorHandle so plugins can read/write position
// without the actor package depending on this one.
type actorRecord struct {
	address  address.Address
	position position.Position
	actor    pkgactor.Actor
}

func (r *actorRecord) Address() address.Address       { return r.address }
func (r *actorRecord) Position() position.Position     { return r.position }
func (r *actorRecord) SetPosition(p position.Position) { r.position = p }

// Scheduler owns a set of actors, a mailbox, a position and a plugin
// stack, one per OS worker thread (spec §2, §4.1).
type Scheduler struct {
	postcode address.PostCode
	position position.Position
	zygote   bool

	boxSeq  atomic.Uint64
	mailbox *mailbox.Mailbox
	host    *hostservice.HostService
	plugins []pkgactor.Plugin

	// directory and forwarding are touched only from this scheduler's
	// own goroutine (spawn, dispatch and timer callbacks all run
	// there), so neither needs a lock — mirroring the mailbox's
	// own single-consumer invariant (spec §3).
	directory  map[address.Box]*actorRecord
	forwarding map[address.Box]address.Address

	alternatives func() []pkgactor.PeerInfo

	shuttingDown atomic.Bool
	pendingDie   int
}

// New builds a scheduler at postcode, wired to host for cross-thread
// routing. alternatives supplies the MigrationAlternatives set consulted
// by CheckMigration (spec §4.4); it is typically bound by Host to "every
// other scheduler's postcode and position."
func New(postcode address.PostCode, host *hostservice.HostService, plugins []pkgactor.Plugin, alternatives func() []pkgactor.PeerInfo) *Scheduler {
	s := &Scheduler{
		postcode:     postcode,
		host:         host,
		plugins:      plugins,
		mailbox:      mailbox.New(),
		directory:    make(map[address.Box]*actorRecord),
		forwarding:   make(map[address.Box]address.Address),
		alternatives: alternatives,
	}
	for _, p := range plugins {
		if setup, ok := p.(pkgactor.PluginSetup); ok {
			if err := setup.Setup(s); err != nil {
				glog.Error("plugin setup failed", zap.String("plugin", p.Name()), zap.Error(err))
			}
		}
	}
	// boxSeq.Add is safe to call from any goroutine, so a migration
	// source can reserve a Box under this scheduler's own authority
	// instead of guessing one (spec §4.5 step 1's "otherwise D assigns a
	// new Box" — Box is only unique per scheduler, never globally).
	host.SetBoxAllocator(func() address.Box { return address.Box(s.boxSeq.Add(1)) })
	return s
}

// SetPosition is called once by Host during construction, before the
// scheduler's loop starts (spec §4.4's "Scheduler position").
func (s *Scheduler) SetPosition(p position.Position) { s.position = p }
func (s *Scheduler) SetZygote(z bool)                { s.zygote = z }

// SchedulerHandle
func (s *Scheduler) PostCode() address.PostCode  { return s.postcode }
func (s *Scheduler) Position() position.Position { return s.position }
func (s *Scheduler) ActorCount() int             { return len(s.directory) }
func (s *Scheduler) IsZygote() bool              { return s.zygote }

// HostService exposes the scheduler's cross-thread router, used by Host
// to wire peers.
func (s *Scheduler) HostService() *hostservice.HostService { return s.host }

// Spawn implements spec §4.1's spawn: allocate a Box, install the actor,
// assign an initial position via the plugin stack, run OnInit, then
// notify OnSchedule hooks.
func (s *Scheduler) Spawn(producer pkgactor.Producer, params ...any) (address.Address, error) {
	if s.shuttingDown.Load() {
		return address.NullAddress, errs.ErrSchedulerShuttingDown
	}

	box := address.Box(s.boxSeq.Add(1))
	addr := address.Of(s.postcode, box)
	act := producer()
	rec := &actorRecord{address: addr, actor: act}

	var pos position.Position
	for _, p := range s.plugins {
		if sp, ok := p.(pkgactor.PluginSpawnPos); ok {
			if sp.SpawnPos(s, rec, &pos) {
				break
			}
		}
	}
	rec.position = pos
	s.directory[box] = rec

	ctx := s.contextFor(rec)
	if err := act.OnInit(ctx, params); err != nil {
		delete(s.directory, box)
		return address.NullAddress, err
	}
	s.onScheduled(rec, ctx)
	return addr, nil
}

func (s *Scheduler) onScheduled(rec *actorRecord, ctx pkgactor.Context) {
	for _, p := range s.plugins {
		if os, ok := p.(pkgactor.PluginOnSchedule); ok {
			if err := os.OnSchedule(rec); err != nil {
				glog.Error("plugin OnSchedule failed", zap.String("plugin", p.Name()), zap.Error(err))
			}
		}
	}
	if sched, ok := rec.actor.(pkgactor.Scheduled); ok {
		if err := sched.OnSchedule(ctx); err != nil {
			glog.Error("actor OnSchedule failed", zap.Stringer("address", rec.address), zap.Error(err))
		}
	}
}

// Deliver implements spec §4.1's deliver!: enqueue locally, or hand to
// the HostService for cross-thread (or, via a Transport plugin,
// cross-host) delivery.
func (s *Scheduler) Deliver(msg *message.Envelope) {
	if msg.Target.PostCode == s.postcode {
		s.mailbox.Push(msg)
		return
	}
	if !s.host.RemoteRoutes(msg) {
		s.bounce(msg)
	}
}

// bounce implements the "Else" branch of spec §4.1's dispatch algorithm:
// synthesize RecipientMoved(old=T, new=null, original=M) back to
// M.sender, if the sender is known and local.
func (s *Scheduler) bounce(msg *message.Envelope) {
	if msg.Sender.IsNull() || msg.Sender.PostCode != s.postcode {
		return
	}
	moved := message.RecipientMoved{Old: msg.Target, New: address.NullAddress, Original: msg}
	s.mailbox.Push(message.New(msg.Target, msg.Sender, moved))
}

// redirectForwarded implements spec §4.5 step 4: any message M arriving
// at this scheduler targeted at a Box that has already migrated out is
// transformed into RecipientMoved(old, new, M) and delivered to
// M.sender, wherever the sender resides — unlike bounce's routing
// failure, this is not restricted to local senders, since the sender
// here is simply whoever still holds the stale address.
func (s *Scheduler) redirectForwarded(old, newAddr address.Address, original *message.Envelope) {
	if original.Sender.IsNull() {
		return
	}
	moved := message.RecipientMoved{Old: old, New: newAddr, Original: original}
	s.Deliver(message.New(old, original.Sender, moved))
}

// RunLoop implements spec §4.1's main loop: pop, dispatch, process
// external events, drain. It is meant to be the body of the goroutine
// Host pins this scheduler to, but is also the single implementation
// driving tests directly.
//
// processExternal gates whether the inbound queue is drained on each
// iteration that finds the mailbox empty; while the mailbox holds
// messages the inbound queue is not drained (false is occasionally
// useful for deterministic single-step
// tests that want to control draining by hand). exitWhenDone requests
// the loop return as soon as the mailbox, inbound queue and pending Die
// count are all empty, regardless of Shutdown — spec §4.1's
// exit_when_done, exercised by the clean-shutdown-drain scenario (§8.5).
// Production (Host.Run) passes exitWhenDone=false, so the loop instead
// runs until ctx is cancelled or Shutdown has been called and drained.
func (s *Scheduler) RunLoop(ctx context.Context, processExternal, exitWhenDone bool) {
	idle := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg := s.mailbox.Pop()
		if msg != nil {
			idle = 0
			s.dispatch(msg)
			continue
		}

		if processExternal {
			s.host.LetInRemote(s.Deliver)
		}

		drained := s.mailbox.Empty() && s.host.Empty() && s.pendingDie == 0
		if drained && (exitWhenDone || s.shuttingDown.Load()) {
			return
		}

		idle++
		if idle > 1 {
			time.Sleep(time.Millisecond)
		}
		runtime.Gosched()
	}
}

// dispatch resolves and invokes one popped message, implementing spec
// §4.1's three-step dispatch algorithm.
func (s *Scheduler) dispatch(raw any) {
	switch m := raw.(type) {
	case *taskMessage:
		m.fn()
		return
	case *message.Envelope:
		s.dispatchEnvelope(m)
	}
}

func (s *Scheduler) dispatchEnvelope(msg *message.Envelope) {
	switch body := msg.Body.(type) {
	case message.MigrationEnvelope:
		s.receiveMigration(body)
		return
	case message.ForceAddRoot:
		s.receiveForceAddRoot(body)
		return
	}
	if msg.Target.PostCode == s.postcode {
		if rec, ok := s.directory[msg.Target.Box]; ok {
			s.invoke(rec, msg)
			return
		}
		if s.shuttingDown.Load() {
			// The target has already received its Die: discard.
			return
		}
		if fwd, ok := s.forwarding[msg.Target.Box]; ok {
			s.redirectForwarded(msg.Target, fwd, msg)
			return
		}
	}
	if !s.host.RemoteRoutes(msg) {
		s.bounce(msg)
	}
}

// invoke runs step 1 of the dispatch algorithm: user onmessage, then
// infoton application, then migration check.
func (s *Scheduler) invoke(rec *actorRecord, msg *message.Envelope) {
	ctx := s.contextFor(rec)

	if _, ok := msg.Body.(message.Die); ok {
		s.terminate(rec, ctx)
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				glog.Error("actor dispatch panic", zap.Stringer("address", rec.address), zap.Any("recover", r))
			}
		}()
		if err := rec.actor.OnMessage(ctx, msg.Body); err != nil {
			glog.Error("dispatch error", zap.Error(errs.ErrDispatchFailed(uint64(rec.address.Box), err)))
		}
	}()

	// OnMessage may have already moved rec via MigrateToNearest; in that
	// case it is no longer in the directory and has no business receiving
	// more infoton or a second migration decision this dispatch.
	if s.directory[rec.address.Box] != rec {
		return
	}
	s.applyInfotonAndMigration(rec, ctx)
}

func (s *Scheduler) terminate(rec *actorRecord, ctx pkgactor.Context) {
	delete(s.directory, rec.address.Box)
	func() {
		defer func() {
			if r := recover(); r != nil {
				glog.Error("actor OnStop panic", zap.Stringer("address", rec.address), zap.Any("recover", r))
			}
		}()
		if err := rec.actor.OnStop(ctx); err != nil {
			glog.Error("actor OnStop error", zap.Stringer("address", rec.address), zap.Error(err))
		}
	}()
	if s.pendingDie > 0 {
		s.pendingDie--
	}
}

func (s *Scheduler) applyInfotonAndMigration(rec *actorRecord, ctx pkgactor.Context) {
	energy := 0.0
	for _, p := range s.plugins {
		if si, ok := p.(pkgactor.PluginSchedulerInfoton); ok {
			energy += si.SchedulerInfoton(s, rec)
		}
	}
	sourcePos := s.position

	if ov, ok := rec.actor.(pkgactor.InfotonOverrider); ok {
		ov.ApplyInfoton(ctx, message.Infoton{SourcePos: sourcePos, Energy: energy})
	} else {
		for _, p := range s.plugins {
			if ai, ok := p.(pkgactor.PluginApplyInfoton); ok {
				ai.ApplyInfoton(rec, sourcePos, energy)
			}
		}
	}

	alternatives := s.alternatives()
	if ov, ok := rec.actor.(pkgactor.MigrationOverrider); ok {
		if target, ok := ov.CheckMigration(ctx, alternatives); ok {
			s.migrateOut(rec, target)
		}
		return
	}
	for _, p := range s.plugins {
		if cm, ok := p.(pkgactor.PluginCheckMigration); ok {
			if target, ok := cm.CheckMigration(s, rec, alternatives); ok {
				s.migrateOut(rec, target)
				return
			}
		}
	}
}

// migrateOut implements spec §4.5 steps 1-2: remove the actor from the
// directory, install a forwarding entry, and enqueue a MigrationEnvelope
// carrying the live actor on the destination's HostService inbound
// queue. Peer HostServices only ever name schedulers in this same OS
// process (see internal/host's AddPeers wiring; cross-host delivery is
// always by way of a Transport plugin, never through the peer table), so
// handing off the actor value itself is safe: ownership transfers
// atomically at the directory delete below, and only one scheduler ever
// holds it at a time. This replaces an earlier defensive-copy codec
// round trip, which could marshal an actor behind its interface type but
// never reconstruct the concrete type on unmarshal — migrated actors
// came back nil and dropped every message they should have received.
//
// The new Box is allocated from the destination's own boxSeq
// (dest.AllocateBox), never reused from the source's. Box is only unique
// per scheduler (spec GLOSSARY: "a per-scheduler integer key"), so
// keeping the source's Box value under the destination's PostCode could
// collide with, and silently overwrite, whatever actor the destination's
// own Spawn had already assigned that same Box number.
func (s *Scheduler) migrateOut(rec *actorRecord, target address.PostCode) {
	dest, ok := s.hostServiceFor(target)
	if !ok {
		glog.Warn("migration destination unreachable, actor stays resident", zap.Stringer("address", rec.address), zap.Stringer("target", target))
		return
	}

	newAddr := address.Of(target, dest.AllocateBox())
	delete(s.directory, rec.address.Box)
	s.forwarding[rec.address.Box] = newAddr

	env := message.New(address.NullAddress, newAddr, message.MigrationEnvelope{
		OldAddress: rec.address,
		NewAddress: newAddr,
		Position:   rec.position,
		State:      rec.actor,
	})
	if !dest.PushInbound(env) {
		// destination unreachable after all: reinsert on source.
		delete(s.forwarding, rec.address.Box)
		s.directory[rec.address.Box] = rec
		glog.Warn("migration aborted, actor reinserted on source", zap.Error(errs.ErrMigrationAborted))
	}
}

// receiveMigration implements spec §4.5 step 3: reconstruct the actor at
// the new address and notify OnSchedule hooks. Called from dispatch when a
// migrated-in MigrationEnvelope is popped off this scheduler's own mailbox.
func (s *Scheduler) receiveMigration(env message.MigrationEnvelope) {
	box := env.NewAddress.Box
	act, ok := env.State.(pkgactor.Actor)
	if !ok {
		glog.Error("migration envelope carried no actor", zap.Stringer("address", env.NewAddress))
		return
	}
	rec := &actorRecord{address: env.NewAddress, position: env.Position, actor: act}
	s.directory[box] = rec
	s.onScheduled(rec, s.contextFor(rec))
}

// receiveForceAddRoot implements the rest of spec §4.2's addpeers!
// root-declaration corner: hand the declared root to every plugin
// implementing PluginForceAddRoot (discovery.MembershipPlugin wraps a
// ClusterMembership provider for this purpose). A plugin stack with no
// such plugin just drops it, matching spec's "cluster plugin" being
// optional.
func (s *Scheduler) receiveForceAddRoot(b message.ForceAddRoot) {
	for _, p := range s.plugins {
		if fp, ok := p.(pkgactor.PluginForceAddRoot); ok {
			if err := fp.ForceAddRoot(b.PostCode); err != nil {
				glog.Error("force-add-root propagation failed", zap.String("plugin", p.Name()), zap.Error(err))
			}
		}
	}
}

// Shutdown implements spec §4.1's shutdown!: synthesize Die for every
// resident actor; subsequent messages are discarded after Die is
// delivered (spec §7's "Shutdown during dispatch").
func (s *Scheduler) Shutdown() {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	s.pendingDie = len(s.directory)
	for box := range s.directory {
		self := address.Of(s.postcode, box)
		s.mailbox.Push(message.New(self, self, message.Die{}))
	}
}

func (s *Scheduler) hostServiceFor(postcode address.PostCode) (*hostservice.HostService, bool) {
	if postcode == s.postcode {
		return s.host, true
	}
	return s.host.Peer(postcode)
}
