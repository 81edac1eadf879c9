// Package positioner implements the default spatial load-balancing
// policy of spec §4.4: scheduler and actor placement, the infoton force
// law, and the migration check. It is wired into every scheduler as a
// Plugin implementing PluginSpawnPos, PluginSchedulerInfoton,
// PluginApplyInfoton and PluginCheckMigration.
package positioner

import (
	"hash/fnv"
	"math/rand"
	"sync"

	pkgactor "infoton/pkg/actor"
	"infoton/pkg/address"
	"infoton/pkg/position"
)

const (
	// TargetDistance is the attraction radius inside which a positive
	// infoton has no effect (spec §4.4).
	TargetDistance float32 = 4
	// MigrationDistance triggers a migration search once an actor drifts
	// this far from its scheduler's position.
	MigrationDistance float32 = 700
	// Coupling is I, the tunable infoton coupling constant.
	Coupling float64 = 1.0
	// EnergyCoefficient scales the actor-count imbalance into an energy
	// value in the default scheduler_infoton policy.
	EnergyCoefficient float64 = 2e-3
)

// ports 24721..24726 map to the six axis-aligned unit directions, per
// spec §4.4's scheduler-relative offset rule.
var portAxes = map[int]position.Position{
	24721: {X: 1},
	24722: {X: -1},
	24723: {Y: 1},
	24724: {Y: -1},
	24725: {Z: 1},
	24726: {Z: -1},
}

// Positioner is the default Plugin implementing spec §4.4's formulas. One
// instance is shared across every scheduler in a Host (spec §5's parallel
// schedulers), so rng is guarded by rngMu: math/rand.Rand is not safe for
// concurrent use, and SpawnPos/SchedulerPosition run on whichever
// scheduler goroutine is spawning at the time.
type Positioner struct {
	hostID       string
	viewSize     float32
	targetActors int
	isRoot       func(address.PostCode) bool
	hostPos      position.Position

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ pkgactor.PluginSpawnPos = (*Positioner)(nil)
var _ pkgactor.PluginSchedulerInfoton = (*Positioner)(nil)
var _ pkgactor.PluginApplyInfoton = (*Positioner)(nil)
var _ pkgactor.PluginCheckMigration = (*Positioner)(nil)

// New builds a Positioner. hostID seeds the deterministic pseudo-random
// host position; viewSize is the view-size scale factor; targetActors is
// the per-scheduler actor-count target used by SchedulerInfoton; isRoot
// reports whether a given PostCode is the zygote.
func New(hostID string, viewSize float32, targetActors int, isRoot func(address.PostCode) bool) *Positioner {
	h := fnv.New64a()
	_, _ = h.Write([]byte(hostID))
	p := &Positioner{
		hostID:       hostID,
		viewSize:     viewSize,
		targetActors: targetActors,
		isRoot:       isRoot,
		rng:          rand.New(rand.NewSource(int64(h.Sum64()))),
	}
	p.hostPos = p.uniform().Scale(5 * viewSize)
	return p
}

func (p *Positioner) Name() string { return "positioner" }

// SchedulerPosition computes the position assigned to a scheduler at
// host startup (spec §4.4's "Scheduler position" rule). Not part of the
// per-actor Plugin hook set; Host calls it directly while constructing
// schedulers.
func (p *Positioner) SchedulerPosition(postcode address.PostCode) position.Position {
	if p.isRoot(postcode) {
		return position.Zero
	}
	return p.hostPos.Add(p.schedulerOffset(postcode))
}

func (p *Positioner) schedulerOffset(postcode address.PostCode) position.Position {
	if axis, ok := portAxes[postcode.Port()]; ok {
		return axis.Scale(p.viewSize)
	}
	return p.uniformHalf()
}

// SpawnPos supplies an actor's initial position: scheduler position plus
// uniform noise in [-view/2, view/2]^3 (spec §4.4's "Actor initial
// position").
func (p *Positioner) SpawnPos(scheduler pkgactor.SchedulerHandle, _ pkgactor.ActorHandle, result *position.Position) bool {
	*result = scheduler.Position().Add(p.uniformHalf())
	return true
}

// SchedulerInfoton implements the default scheduler_infoton policy: an
// energy proportional to how far the scheduler's actor count is from
// target, applied from the scheduler's own position.
func (p *Positioner) SchedulerInfoton(scheduler pkgactor.SchedulerHandle, _ pkgactor.ActorHandle) float64 {
	return (float64(p.targetActors) - float64(scheduler.ActorCount())) * EnergyCoefficient
}

// ApplyInfoton implements apply_infoton exactly as spec §4.4 states.
func (p *Positioner) ApplyInfoton(actor pkgactor.ActorHandle, sourcePos position.Position, energy float64) {
	diff := sourcePos.Sub(actor.Position())
	difflen := diff.Norm()
	if difflen == 0 {
		return
	}
	if energy > 0 && difflen < TargetDistance {
		return
	}
	delta := diff.Scale(1 / difflen).Scale(float32(energy * Coupling))
	actor.SetPosition(actor.Position().Add(delta))
}

// CheckMigration implements the default migration check: once an actor
// drifts more than MigrationDistance from its scheduler, migrate to the
// nearest alternative strictly closer to the actor than the current
// scheduler is.
func (p *Positioner) CheckMigration(scheduler pkgactor.SchedulerHandle, actor pkgactor.ActorHandle, alternatives []pkgactor.PeerInfo) (address.PostCode, bool) {
	selfDist := actor.Position().Distance(scheduler.Position())
	if selfDist <= MigrationDistance {
		return address.PostCode{}, false
	}

	var best address.PostCode
	bestDist := selfDist
	found := false
	for _, alt := range alternatives {
		d := actor.Position().Distance(alt.Position)
		if d < bestDist {
			bestDist = d
			best = alt.PostCode
			found = true
		}
	}
	return best, found
}

func (p *Positioner) uniform() position.Position {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return position.Position{
		X: float32(p.rng.Float64()*2 - 1),
		Y: float32(p.rng.Float64()*2 - 1),
		Z: float32(p.rng.Float64()*2 - 1),
	}
}

// uniformHalf returns a uniform sample in [-view/2, view/2]^3.
func (p *Positioner) uniformHalf() position.Position {
	half := p.viewSize / 2
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return position.Position{
		X: (float32(p.rng.Float64()*2-1)) * half,
		Y: (float32(p.rng.Float64()*2-1)) * half,
		Z: (float32(p.rng.Float64()*2-1)) * half,
	}
}
