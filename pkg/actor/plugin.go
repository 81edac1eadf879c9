package actor

import (
	"infoton/pkg/address"
	"infoton/pkg/position"
)

// SchedulerHandle is the read-only view of a scheduler a Plugin needs.
// It exists so pkg/actor never imports internal/scheduler: the scheduler
// implements this interface itself.
type SchedulerHandle interface {
	PostCode() address.PostCode
	Position() position.Position
	ActorCount() int
}

// ActorHandle is the read-only/write view of a resident actor a Plugin
// hook operates on.
type ActorHandle interface {
	Address() address.Address
	Position() position.Position
	SetPosition(position.Position)
}

// Plugin is the minimal contract every entry in a scheduler's plugin
// stack satisfies. The scheduler invokes each hook a Plugin actually
// implements, in registration order (spec §6); a Plugin that doesn't
// need a given hook simply doesn't implement that optional interface.
type Plugin interface {
	Name() string
}

// PluginSetup runs once, when the plugin is attached to a scheduler.
type PluginSetup interface {
	Plugin
	Setup(scheduler SchedulerHandle) error
}

// PluginOnSchedule runs once per actor landing on the scheduler (spawn or
// migration-in).
type PluginOnSchedule interface {
	Plugin
	OnSchedule(actor ActorHandle) error
}

// PluginSpawnPos supplies an actor's initial position. The scheduler
// calls each registered PluginSpawnPos in order; the first one whose
// SpawnPos returns true wins and the loop stops (spec §6).
type PluginSpawnPos interface {
	Plugin
	SpawnPos(scheduler SchedulerHandle, actor ActorHandle, result *position.Position) bool
}

// PluginSchedulerInfoton computes the energy applied to an actor after
// each dispatch (the default scheduler_infoton policy, spec §4.4).
type PluginSchedulerInfoton interface {
	Plugin
	SchedulerInfoton(scheduler SchedulerHandle, actor ActorHandle) float64
}

// PluginApplyInfoton applies a force packet to an actor's position (the
// default apply_infoton policy, spec §4.4).
type PluginApplyInfoton interface {
	Plugin
	ApplyInfoton(actor ActorHandle, sourcePos position.Position, energy float64)
}

// PluginCheckMigration decides whether an actor should migrate (the
// default check_migration policy, spec §4.4). It only decides: ok=true
// and a non-null target means the scheduler should move actor to
// target; the scheduler, not the plugin, performs the move so the
// directory and forwarding table stay consistent regardless of which
// plugin (or actor override) made the decision.
type PluginCheckMigration interface {
	Plugin
	CheckMigration(scheduler SchedulerHandle, actor ActorHandle, alternatives []PeerInfo) (target address.PostCode, ok bool)
}

// PluginForceAddRoot is notified when this scheduler dispatches a
// ForceAddRoot envelope (spec §4.2 addpeers!'s root-declaration corner).
// A cluster-membership adapter implements this to propagate the
// declaration to the underlying plugin; a Plugin that doesn't care about
// cluster roots simply doesn't implement it.
type PluginForceAddRoot interface {
	Plugin
	ForceAddRoot(postcode address.PostCode) error
}
