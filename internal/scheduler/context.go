package scheduler

import (
	"time"

	"infoton/internal/errs"
	pkgactor "infoton/pkg/actor"
	"infoton/pkg/address"
	"infoton/pkg/message"
	"infoton/pkg/position"
)

// schedulerContext is the concrete pkgactor.Context handed to every hook
// call for one actor. It closes over the owning scheduler and that
// actor's record, so Self/Position/Spawn/Send all resolve against the
// right scheduler without the actor package depending on this one.
type schedulerContext struct {
	s   *Scheduler
	rec *actorRecord
}

var _ pkgactor.Context = (*schedulerContext)(nil)

func (s *Scheduler) contextFor(rec *actorRecord) *schedulerContext {
	return &schedulerContext{s: s, rec: rec}
}

func (c *schedulerContext) Self() address.Address { return c.rec.address }

func (c *schedulerContext) Position() position.Position { return c.rec.position }

func (c *schedulerContext) SetPosition(p position.Position) { c.rec.position = p }

func (c *schedulerContext) Spawn(producer pkgactor.Producer, params ...any) (address.Address, error) {
	return c.s.Spawn(producer, params...)
}

func (c *schedulerContext) Send(target address.Address, body message.Body) error {
	c.s.Deliver(message.New(c.rec.address, target, body))
	return nil
}

// MigrateToNearest implements the Service API's migrate_to_nearest: unlike
// the default check_migration policy, an explicit call always moves to the
// closest candidate in alternatives, regardless of distance from the
// current scheduler.
func (c *schedulerContext) MigrateToNearest(alternatives []pkgactor.PeerInfo) error {
	if len(alternatives) == 0 {
		return errs.ErrNoAlternative
	}
	best := alternatives[0]
	bestDist := c.rec.position.Distance(best.Position)
	for _, alt := range alternatives[1:] {
		if d := c.rec.position.Distance(alt.Position); d < bestDist {
			bestDist = d
			best = alt
		}
	}
	c.s.migrateOut(c.rec, best.PostCode)
	return nil
}

func (c *schedulerContext) AfterFunc(d time.Duration, fn func()) pkgactor.Timer {
	return c.s.afterFunc(d, fn)
}

func (c *schedulerContext) TickFunc(d time.Duration, fn func()) pkgactor.Timer {
	return c.s.tickFunc(d, fn)
}
