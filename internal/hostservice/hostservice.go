// Package hostservice implements the per-scheduler cross-thread router
// (spec §4.2): a multi-producer/single-consumer inbound queue guarded by
// a mutex, a peer table populated once at startup, and the remote-routes
// / drain operations the owning scheduler calls into on its own goroutine.
package hostservice

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"infoton/pkg/address"
	"infoton/pkg/codec"
	"infoton/pkg/glog"
	"infoton/pkg/message"
	"infoton/pkg/messageQue"
)

// DrainBatch is K in spec §4.1/§4.2: the maximum number of messages
// pulled from the inbound queue in one drain.
const DrainBatch = 30

// DefaultInboundBound is MSG_BUFFER_SIZE from spec §5/§9: the optional
// cap on a HostService's inbound queue. Zero means unbounded.
const DefaultInboundBound = 100_000

// HostService owns one scheduler's cross-thread inbound queue and knows
// how to reach every peer scheduler in the same process, plus (if
// configured) how to reach schedulers on other hosts via a Transport.
type HostService struct {
	postcode address.PostCode
	bound    int

	mu      sync.Mutex
	inbound []*message.Envelope

	peersMu sync.RWMutex
	peers   map[address.PostCode]*HostService

	transport messageQue.Transport
	codec     codec.Codec

	allocateBox func() address.Box
}

// New builds a HostService for the scheduler at postcode. bound <= 0
// means unbounded (spec §5's "unbounded in this design"); transport may
// be nil, in which case cross-host sends fail closed.
func New(postcode address.PostCode, bound int, transport messageQue.Transport) *HostService {
	return &HostService{
		postcode:  postcode,
		bound:     bound,
		peers:     make(map[address.PostCode]*HostService),
		transport: transport,
		codec:     codec.Default,
	}
}

func (hs *HostService) PostCode() address.PostCode {
	return hs.postcode
}

// SetBoxAllocator registers the owning scheduler's Box counter, called
// once from scheduler.New. alloc must be safe for concurrent use (an
// atomic counter), since a migrating-out scheduler on another goroutine
// calls AllocateBox on this HostService directly.
func (hs *HostService) SetBoxAllocator(alloc func() address.Box) {
	hs.allocateBox = alloc
}

// AllocateBox reserves a fresh Box under the owning scheduler's own
// authority, used by a migration source to assign the migrated actor's
// new Box on this HostService's scheduler (spec §4.5 step 1) rather than
// reusing the actor's old, scheduler-local Box value.
func (hs *HostService) AllocateBox() address.Box {
	return hs.allocateBox()
}

// AddPeers wires hs to every other HostService in all, skipping itself.
// Idempotent: calling it again with an overlapping or extended set only
// adds entries (spec §4.2's "addpeers!").
func (hs *HostService) AddPeers(all []*HostService) {
	hs.peersMu.Lock()
	defer hs.peersMu.Unlock()
	for _, p := range all {
		if p.postcode == hs.postcode {
			continue
		}
		hs.peers[p.postcode] = p
	}
}

func (hs *HostService) peer(postcode address.PostCode) (*HostService, bool) {
	hs.peersMu.RLock()
	defer hs.peersMu.RUnlock()
	p, ok := hs.peers[postcode]
	return p, ok
}

// Peer exposes peer lookup to the owning scheduler, used when migrating an
// actor to a destination HostService directly (spec §4.5 step 2).
func (hs *HostService) Peer(postcode address.PostCode) (*HostService, bool) {
	return hs.peer(postcode)
}

// PushInbound exposes the locked inbound push to the owning scheduler, used
// to hand a MigrationEnvelope straight to an already-resolved destination
// HostService, and by Host to inject envelopes into a scheduler's own
// inbound queue.
func (hs *HostService) PushInbound(msg *message.Envelope) bool {
	return hs.pushInbound(msg)
}

// RemoteRoutes implements spec §4.2's remoteroutes: accepts msg for
// cross-thread (or, with a Transport configured, cross-host) delivery,
// or returns false so the caller can synthesize RecipientMoved.
func (hs *HostService) RemoteRoutes(msg *message.Envelope) bool {
	target := msg.Target.PostCode
	if !target.SameHost(hs.postcode) {
		return hs.sendRemote(target, msg)
	}
	peer, ok := hs.peer(target)
	if !ok {
		return false
	}
	return peer.pushInbound(msg)
}

// sendRemote hands msg to the Transport plugin. Only UserBody payloads
// are eligible: built-in control bodies (Spawn, Die, Infoton, ...) never
// need to cross a host boundary in this design, since every host runs
// its own independent set of schedulers.
func (hs *HostService) sendRemote(target address.PostCode, msg *message.Envelope) bool {
	if hs.transport == nil {
		return false
	}
	body, ok := msg.Body.(message.UserBody)
	if !ok {
		return false
	}
	frame := remoteFrame{Sender: msg.Sender, Target: msg.Target, Payload: body.Payload}
	data, err := hs.codec.Marshal(frame)
	if err != nil {
		glog.Error("remote frame marshal failed", zap.Error(err))
		return false
	}
	if err := hs.transport.Send(target, data); err != nil {
		glog.Error("transport send failed", zap.Stringer("target", target), zap.Error(err))
		return false
	}
	return true
}

// remoteFrame is the concrete wire shape sent over a Transport plugin.
type remoteFrame struct {
	Sender  address.Address
	Target  address.Address
	Payload any
}

// ReceiveRemote decodes a frame arriving from a Transport subscription
// and returns the reconstructed envelope for local delivery.
func (hs *HostService) ReceiveRemote(data []byte) (*message.Envelope, error) {
	var frame remoteFrame
	if err := hs.codec.Unmarshal(data, &frame); err != nil {
		return nil, errors.Wrap(err, "remote frame unmarshal failed")
	}
	return message.New(frame.Sender, frame.Target, message.UserBody{Payload: frame.Payload}), nil
}

// pushInbound is the locked critical section spec §4.2 describes: push
// one message, or fail if a bound is configured and already reached.
func (hs *HostService) pushInbound(msg *message.Envelope) bool {
	release := globalLockGuard.Acquire(hs.postcode.String())
	defer release()

	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.bound > 0 && len(hs.inbound) >= hs.bound {
		return false
	}
	hs.inbound = append(hs.inbound, msg)
	return true
}

// Empty reports whether the inbound queue currently holds no messages.
func (hs *HostService) Empty() bool {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return len(hs.inbound) == 0
}

// LetInRemote implements spec §4.2's letin_remote: a two-phase
// pop-then-deliver drain of up to DrainBatch messages. The lock is
// released before deliver is called for any message, so deliver is free
// to re-enter routing (and thus another peer's lock) without risking a
// cycle through this HostService's own lock.
func (hs *HostService) LetInRemote(deliver func(*message.Envelope)) bool {
	if hs.Empty() {
		return false
	}

	release := globalLockGuard.Acquire(hs.postcode.String())
	hs.mu.Lock()
	n := len(hs.inbound)
	if n > DrainBatch {
		n = DrainBatch
	}
	batch := make([]*message.Envelope, n)
	copy(batch, hs.inbound[:n])
	hs.inbound = hs.inbound[n:]
	hs.mu.Unlock()
	release()

	for _, msg := range batch {
		deliver(msg)
	}
	return true
}

// MaybeForceRoot implements the zygote-root-declaration corner of
// addpeers! (spec §4.2): when a ClusterMembership plugin is configured,
// this scheduler is not the zygote, and the cluster has no known root
// yet, the first peer in the (deterministic, sorted) peer table is
// declared root via a ForceAddRoot envelope addressed to helper. Returns
// nil if no declaration is needed.
func (hs *HostService) MaybeForceRoot(isZygote, clusterConfigured, clusterHasRoot bool, helper address.Address) *message.Envelope {
	if isZygote || !clusterConfigured || clusterHasRoot {
		return nil
	}
	hs.peersMu.RLock()
	defer hs.peersMu.RUnlock()
	var first address.PostCode
	found := false
	for pc := range hs.peers {
		if !found || pc.String() < first.String() {
			first = pc
			found = true
		}
	}
	if !found {
		return nil
	}
	return message.New(address.NullAddress, helper, message.ForceAddRoot{PostCode: first})
}
