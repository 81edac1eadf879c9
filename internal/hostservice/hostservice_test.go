package hostservice

import (
	"testing"

	"infoton/pkg/address"
	"infoton/pkg/message"
)

func newPeers(n int) []*HostService {
	out := make([]*HostService, n)
	for i := range out {
		out[i] = New(address.New("host-1", 24721+i), 0, nil)
	}
	for _, hs := range out {
		hs.AddPeers(out)
	}
	return out
}

func TestDrainBatchBoundary(t *testing.T) {
	peers := newPeers(2)
	src, dst := peers[0], peers[1]

	target := address.Of(dst.PostCode(), 1)
	for i := 0; i < DrainBatch+1; i++ {
		msg := message.New(address.NullAddress, target, message.UserBody{Payload: i})
		if !src.RemoteRoutes(msg) {
			t.Fatalf("RemoteRoutes rejected message %d", i)
		}
	}

	var delivered []*message.Envelope
	deliver := func(m *message.Envelope) { delivered = append(delivered, m) }

	dst.LetInRemote(deliver)
	if len(delivered) != DrainBatch {
		t.Fatalf("first drain delivered %d messages, want %d", len(delivered), DrainBatch)
	}

	delivered = nil
	dst.LetInRemote(deliver)
	if len(delivered) != 1 {
		t.Fatalf("second drain delivered %d messages, want 1", len(delivered))
	}
}

func TestInboundBoundRejectsOverflow(t *testing.T) {
	hs := New(address.New("host-1", 24721), 2, nil)
	hs.AddPeers([]*HostService{hs})
	target := address.Of(hs.PostCode(), 1)

	ok1 := hs.pushInbound(message.New(address.NullAddress, target, message.UserBody{}))
	ok2 := hs.pushInbound(message.New(address.NullAddress, target, message.UserBody{}))
	ok3 := hs.pushInbound(message.New(address.NullAddress, target, message.UserBody{}))

	if !ok1 || !ok2 {
		t.Fatalf("expected first two pushes to succeed, got %v %v", ok1, ok2)
	}
	if ok3 {
		t.Fatal("expected third push to fail once bound is reached")
	}
}

func TestRemoteRoutesUnknownPeerFails(t *testing.T) {
	hs := New(address.New("host-1", 24721), 0, nil)
	target := address.Of(address.New("host-1", 24799), 1)
	msg := message.New(address.NullAddress, target, message.UserBody{})
	if hs.RemoteRoutes(msg) {
		t.Fatal("expected RemoteRoutes to fail for an unknown same-host peer")
	}
}

func TestRemoteRoutesCrossHostWithoutTransportFails(t *testing.T) {
	hs := New(address.New("host-1", 24721), 0, nil)
	target := address.Of(address.New("host-2", 24721), 1)
	msg := message.New(address.NullAddress, target, message.UserBody{Payload: "x"})
	if hs.RemoteRoutes(msg) {
		t.Fatal("expected RemoteRoutes to fail closed with no Transport configured")
	}
}

func TestMaybeForceRootPicksDeterministicFirstPeer(t *testing.T) {
	peers := newPeers(3)
	helper := address.Of(peers[0].PostCode(), 99)

	env := peers[0].MaybeForceRoot(false, true, false, helper)
	if env == nil {
		t.Fatal("expected a ForceAddRoot envelope")
	}
	body, ok := env.Body.(message.ForceAddRoot)
	if !ok {
		t.Fatalf("body type = %T, want message.ForceAddRoot", env.Body)
	}
	if body.PostCode != peers[1].PostCode() {
		t.Fatalf("ForceAddRoot.PostCode = %v, want %v (lowest-sorted peer)", body.PostCode, peers[1].PostCode())
	}
}

func TestMaybeForceRootNoopWhenRootKnown(t *testing.T) {
	peers := newPeers(2)
	if env := peers[0].MaybeForceRoot(false, true, true, address.NullAddress); env != nil {
		t.Fatal("expected no ForceAddRoot when cluster already has a root")
	}
	if env := peers[0].MaybeForceRoot(true, true, false, address.NullAddress); env != nil {
		t.Fatal("expected no ForceAddRoot for the zygote itself")
	}
}
