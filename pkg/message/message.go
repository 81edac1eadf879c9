// Package message defines the envelope and the built-in body kinds that
// flow through mailboxes and HostService inbound queues. Body is a closed
// variant over the kinds the core recognizes, plus an escape hatch for
// user-defined payloads (opaque to the core).
package message

import (
	"infoton/pkg/address"
	"infoton/pkg/position"
)

// Body is implemented by every recognized message payload kind. The
// marker method keeps the set closed to this package's built-ins plus
// UserBody, so a type switch in the dispatch hot path stays exhaustive.
type Body interface {
	bodyMarker()
}

// Spawn describes a request to spawn a new actor, as a plain body that
// can cross scheduler/thread boundaries like any other. The scheduler
// has no built-in handling for it: it is dispatched to the target
// actor's OnMessage like a user body, and nothing is spawned unless that
// actor does so itself.
type Spawn struct {
	Producer func() any
	Params   []any
}

func (Spawn) bodyMarker() {}

// Die asks the receiving actor to terminate. Synthesized by
// Scheduler.Shutdown for every resident actor.
type Die struct{}

func (Die) bodyMarker() {}

// RecipientMoved is synthesized when a message targets an actor that has
// migrated away (or vanished). Old is always populated; New is the null
// address when the target could not be resolved at all.
type RecipientMoved struct {
	Old      address.Address
	New      address.Address
	Original *Envelope
}

func (RecipientMoved) bodyMarker() {}

// ForceAddRoot tells a cluster-membership helper that postcode should be
// treated as the cluster root. Built by HostService.MaybeForceRoot (called
// from Host once the peer mesh is wired) when a cluster plugin is present
// and no root is known yet.
type ForceAddRoot struct {
	PostCode address.PostCode
}

func (ForceAddRoot) bodyMarker() {}

// Infoton is a force packet nudging an actor's position (spec §4.4).
type Infoton struct {
	SourcePos position.Position
	Energy    float64
}

func (Infoton) bodyMarker() {}

// UserBody wraps an arbitrary user-defined payload. The core never
// inspects Payload; it is opaque and only round-trips through a Codec
// when HostService encodes it onto a cross-host remote frame.
type UserBody struct {
	Payload any
}

func (UserBody) bodyMarker() {}

func (MigrationEnvelope) bodyMarker() {}

// Envelope is the message wrapper routed by schedulers and HostServices.
type Envelope struct {
	Sender address.Address
	Target address.Address
	Body   Body
}

// New builds an envelope with the given sender, target and body.
func New(sender, target address.Address, body Body) *Envelope {
	return &Envelope{Sender: sender, Target: target, Body: body}
}

// MigrationEnvelope carries a migrating actor's state across the same
// cross-thread path ordinary envelopes use (spec §4.5 step 2). It is a
// Body in its own right so it needs no UserBody wrapping.
type MigrationEnvelope struct {
	OldAddress address.Address
	NewAddress address.Address
	Position   position.Position
	// State is the live pkgactor.Actor being handed off. Migration is
	// always intra-process (see internal/scheduler.migrateOut), so the
	// source scheduler transfers ownership rather than copying: it is
	// deleted from the source directory in the same step this envelope
	// is built, so exactly one scheduler ever holds it.
	State any
}
