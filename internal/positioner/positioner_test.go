package positioner

import (
	"testing"

	pkgactor "infoton/pkg/actor"
	"infoton/pkg/address"
	"infoton/pkg/position"
)

type fakeScheduler struct {
	postcode address.PostCode
	pos      position.Position
	count    int
}

func (f *fakeScheduler) PostCode() address.PostCode  { return f.postcode }
func (f *fakeScheduler) Position() position.Position { return f.pos }
func (f *fakeScheduler) ActorCount() int             { return f.count }

type fakeActor struct {
	addr address.Address
	pos  position.Position
}

func (f *fakeActor) Address() address.Address       { return f.addr }
func (f *fakeActor) Position() position.Position     { return f.pos }
func (f *fakeActor) SetPosition(p position.Position) { f.pos = p }

func TestApplyInfotonZeroDiffIsNoop(t *testing.T) {
	p := New("host-1", 100, 1000, func(address.PostCode) bool { return false })
	a := &fakeActor{pos: position.Zero}
	p.ApplyInfoton(a, position.Zero, -5)
	if a.pos != position.Zero {
		t.Fatalf("actor moved despite zero diff: %+v", a.pos)
	}
}

func TestApplyInfotonInsideTargetDistanceIsNoop(t *testing.T) {
	p := New("host-1", 100, 1000, func(address.PostCode) bool { return false })
	a := &fakeActor{pos: position.Position{X: 1}}
	p.ApplyInfoton(a, position.Zero, 1)
	if a.pos != (position.Position{X: 1}) {
		t.Fatalf("actor moved despite positive energy inside TargetDistance: %+v", a.pos)
	}
}

func TestApplyInfotonRepulsionPushesAway(t *testing.T) {
	p := New("host-1", 100, 1000, func(address.PostCode) bool { return false })
	a := &fakeActor{pos: position.Position{X: 10}}
	before := a.pos.Norm()
	p.ApplyInfoton(a, position.Zero, -5)
	if a.pos.Norm() <= before {
		t.Fatalf("expected actor to move farther from source: before=%v after=%v", before, a.pos.Norm())
	}
}

func TestSchedulerInfotonScalesWithDeficit(t *testing.T) {
	p := New("host-1", 100, 1000, func(address.PostCode) bool { return false })
	s := &fakeScheduler{count: 500}
	energy := p.SchedulerInfoton(s, nil)
	if energy <= 0 {
		t.Fatalf("expected positive energy when understaffed, got %v", energy)
	}
	s.count = 2000
	energy = p.SchedulerInfoton(s, nil)
	if energy >= 0 {
		t.Fatalf("expected negative energy when overstaffed, got %v", energy)
	}
}

func TestCheckMigrationStaysWithinRadius(t *testing.T) {
	p := New("host-1", 100, 1000, func(address.PostCode) bool { return false })
	s := &fakeScheduler{postcode: address.New("host-1", 24721)}
	a := &fakeActor{pos: position.Position{X: MigrationDistance - 1}}
	if _, ok := p.CheckMigration(s, a, nil); ok {
		t.Fatal("expected no migration within MigrationDistance")
	}
}

func TestCheckMigrationPicksNearestAlternative(t *testing.T) {
	p := New("host-1", 100, 1000, func(address.PostCode) bool { return false })
	s := &fakeScheduler{postcode: address.New("host-1", 24721)}
	a := &fakeActor{pos: position.Position{X: MigrationDistance + 100}}

	far := pkgactor.PeerInfo{PostCode: address.New("host-1", 24722), Position: position.Position{X: MigrationDistance + 50}}
	near := pkgactor.PeerInfo{PostCode: address.New("host-1", 24723), Position: position.Position{X: MigrationDistance + 90}}

	target, ok := p.CheckMigration(s, a, []pkgactor.PeerInfo{far, near})
	if !ok {
		t.Fatal("expected a migration target")
	}
	if target != near.PostCode {
		t.Fatalf("target = %v, want nearest alternative %v", target, near.PostCode)
	}
}

func TestCheckMigrationNoCloserAlternative(t *testing.T) {
	p := New("host-1", 100, 1000, func(address.PostCode) bool { return false })
	s := &fakeScheduler{postcode: address.New("host-1", 24721)}
	a := &fakeActor{pos: position.Position{X: MigrationDistance + 10}}

	farther := pkgactor.PeerInfo{PostCode: address.New("host-1", 24722), Position: position.Position{X: -1000}}
	if _, ok := p.CheckMigration(s, a, []pkgactor.PeerInfo{farther}); ok {
		t.Fatal("expected no migration when no alternative is closer")
	}
}
