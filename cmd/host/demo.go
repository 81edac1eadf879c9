package main

import (
	"go.uber.org/zap"

	pkgactor "infoton/pkg/actor"
	"infoton/pkg/address"
	"infoton/pkg/glog"
	"infoton/pkg/message"
)

// startSignal kicks off end-to-end scenario 1 (spec §8): grow a binary
// tree for the given number of rounds, ending at 2^(rounds+1)-1 nodes.
type startSignal struct {
	rounds int
}

// growRequest propagates the remaining round count down the tree.
type growRequest struct {
	rounds int
}

// treeCreator spawns the root TreeActor and starts the growth rounds.
type treeCreator struct {
	pkgactor.Base
}

func (t *treeCreator) OnMessage(ctx pkgactor.Context, body message.Body) error {
	ub, ok := body.(message.UserBody)
	if !ok {
		return nil
	}
	start, ok := ub.Payload.(startSignal)
	if !ok {
		return nil
	}
	rootAddr, err := ctx.Spawn(func() pkgactor.Actor { return &treeActor{} })
	if err != nil {
		return err
	}
	return ctx.Send(rootAddr, message.UserBody{Payload: growRequest{rounds: start.rounds}})
}

// treeActor implements scenario 1's node: on the first GrowRequest it
// spawns two children and forwards a decremented round count to each;
// once rounds reaches zero it stops growing.
type treeActor struct {
	pkgactor.Base
	grown bool
}

func (t *treeActor) OnMessage(ctx pkgactor.Context, body message.Body) error {
	ub, ok := body.(message.UserBody)
	if !ok {
		return nil
	}
	req, ok := ub.Payload.(growRequest)
	if !ok || req.rounds <= 0 || t.grown {
		return nil
	}
	t.grown = true

	left, err := ctx.Spawn(func() pkgactor.Actor { return &treeActor{} })
	if err != nil {
		return err
	}
	right, err := ctx.Spawn(func() pkgactor.Actor { return &treeActor{} })
	if err != nil {
		return err
	}
	next := growRequest{rounds: req.rounds - 1}
	if err := ctx.Send(left, message.UserBody{Payload: next}); err != nil {
		return err
	}
	return ctx.Send(right, message.UserBody{Payload: next})
}

// pingMsg/pongMsg implement end-to-end scenario 2's cross-thread ping:
// A on scheduler 0 sends Ping to B on scheduler 1, B replies with Pong.
type pingMsg struct {
	from address.Address
}

type pongMsg struct {
	from address.Address
}

type pingPongActor struct {
	pkgactor.Base
}

func (p *pingPongActor) OnMessage(ctx pkgactor.Context, body message.Body) error {
	ub, ok := body.(message.UserBody)
	if !ok {
		return nil
	}
	switch payload := ub.Payload.(type) {
	case pingMsg:
		glog.Info("ping received", zap.Stringer("self", ctx.Self()), zap.Stringer("from", payload.from))
		return ctx.Send(payload.from, message.UserBody{Payload: pongMsg{from: ctx.Self()}})
	case pongMsg:
		glog.Info("pong received", zap.Stringer("self", ctx.Self()), zap.Stringer("from", payload.from))
	}
	return nil
}
