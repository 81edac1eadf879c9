package actor

import (
	"time"

	"infoton/pkg/address"
	"infoton/pkg/message"
	"infoton/pkg/position"
)

// Timer is returned by AfterFunc/TickFunc so callers may cancel a
// pending or repeating timer, matching the teacher's lib.Timer handle.
type Timer interface {
	Stop() bool
}

// Context is the "service" handle spec §6 passes to every hook: Spawn,
// Send, Addr, Pos and MigrateToNearest are the Service API; AfterFunc and
// TickFunc are the ambient-stack addition (SPEC_FULL §6) backed by the
// host's timer wheel.
type Context interface {
	// Self returns the address of the actor this context belongs to.
	Self() address.Address

	// Position returns the actor's current position.
	Position() position.Position

	// SetPosition overwrites the actor's position; used by infoton
	// application and by actors overriding ApplyInfoton.
	SetPosition(p position.Position)

	// Spawn creates a new actor on the same scheduler as the caller and
	// returns its address. Fails if the scheduler is shutting down.
	Spawn(producer Producer, params ...any) (address.Address, error)

	// Send delivers body to target, asynchronously, as if sent by Self.
	// Target may be local, on a peer scheduler, or (with a Transport
	// plugin configured) on another host.
	Send(target address.Address, body message.Body) error

	// MigrateToNearest migrates the calling actor to the alternative
	// closest to its position, without the default migration check's
	// distance threshold. It fails if alternatives is empty.
	MigrateToNearest(alternatives []PeerInfo) error

	// AfterFunc schedules fn to run once after d, delivered to the
	// scheduler's mailbox as a self-sent task.
	AfterFunc(d time.Duration, fn func()) Timer

	// TickFunc schedules fn to run every d until the returned Timer is
	// stopped.
	TickFunc(d time.Duration, fn func()) Timer
}
