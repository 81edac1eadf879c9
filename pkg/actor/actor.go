// Package actor defines the actor author contract (spec §6): the
// interface user code implements, the optional capability interfaces a
// state record may add, and the Context ("service") handle passed to
// every hook.
package actor

import (
	"infoton/pkg/address"
	"infoton/pkg/message"
	"infoton/pkg/position"
)

// Producer constructs a fresh Actor instance. Spawn requests carry a
// Producer rather than a value so each scheduler gets its own instance.
type Producer func() Actor

// Actor is implemented by every user-defined state record. OnInit runs
// once after the actor is installed in its scheduler's directory and has
// a position; OnMessage is invoked once per dispatched envelope body;
// OnStop runs once, synchronously, right after the actor is removed from
// its scheduler's directory (Die or shutdown).
type Actor interface {
	OnInit(ctx Context, params []any) error
	OnMessage(ctx Context, body message.Body) error
	OnStop(ctx Context) error
}

// Base is embedded by actors that only need a subset of the Actor
// methods; the rest are no-ops.
type Base struct{}

func (Base) OnInit(Context, []any) error           { return nil }
func (Base) OnMessage(Context, message.Body) error { return nil }
func (Base) OnStop(Context) error                  { return nil }

// Scheduled is an optional capability: an actor implementing it is
// notified once after it lands on a scheduler, whether by spawn or by
// migration (spec §4.1 step 1, §4.5 step 3).
type Scheduled interface {
	OnSchedule(ctx Context) error
}

// MonitorExtra is an optional capability exposing actor state for
// observability without the core needing to know its shape.
type MonitorExtra interface {
	MonitorExtra() map[string]any
}

// MigrationOverrider lets an actor replace the default check_migration
// policy (spec §4.4, §6 "optionally override check_migration"). Like
// PluginCheckMigration, it only decides; the scheduler performs the move.
type MigrationOverrider interface {
	CheckMigration(ctx Context, alternatives []PeerInfo) (target address.PostCode, ok bool)
}

// InfotonOverrider lets an actor replace the default apply_infoton
// policy.
type InfotonOverrider interface {
	ApplyInfoton(ctx Context, inf message.Infoton)
}

// PeerInfo is the read-only view of a candidate migration target handed
// to CheckMigration implementations (MigrationAlternatives in spec §4.4).
type PeerInfo struct {
	PostCode address.PostCode
	Position position.Position
}

// AddressOwner is implemented by user-declared fields that store an
// Address the default RecipientMoved handler should rewrite in place
// (spec §6 "if the actor declares which fields store addresses").
type AddressOwner interface {
	OwnedAddresses() []*address.Address
}

// HandleRecipientMoved implements the default RecipientMoved behavior:
// rewrite any address field equal to old to new, then resend original to
// new. It is not invoked automatically, since the core cannot assume
// every actor stores addresses; an actor's OnMessage calls it explicitly.
func HandleRecipientMoved(ctx Context, owner AddressOwner, moved message.RecipientMoved) error {
	for _, field := range owner.OwnedAddresses() {
		if *field == moved.Old {
			*field = moved.New
		}
	}
	if moved.New.IsNull() || moved.Original == nil {
		return nil
	}
	return ctx.Send(moved.New, moved.Original.Body)
}
