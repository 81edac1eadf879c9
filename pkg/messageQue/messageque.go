// Package messageQue defines the Transport plugin interface named in
// spec §1's "cross-host is delegated to a transport plugin with a
// stated interface." THE CORE's HostService.RemoteRoutes delegates to a
// Transport only when the target PostCode's host part differs from
// self; with no Transport configured, cross-host sends fail closed.
package messageQue

import (
	"context"
	"time"

	"infoton/pkg/address"
)

// Transport moves opaque, already-encoded envelopes between hosts.
// HostService owns encoding (via pkg/codec) so Transport implementations
// stay free of any dependency on the message package.
type Transport interface {
	Run(ctx context.Context) error

	// Send delivers payload to whichever host owns postcode. The
	// provider resolves postcode to its own addressing scheme (a NATS
	// subject, for instance).
	Send(postcode address.PostCode, payload []byte) error

	// Subscribe registers handler to receive payloads addressed to self.
	Subscribe(self address.PostCode, handler func(payload []byte)) error

	// Request is a synchronous send/await-reply. Nothing in this module
	// calls it; ordinary actor sends use Send.
	Request(postcode address.PostCode, payload []byte, timeout time.Duration) ([]byte, error)

	Shutdown(ctx context.Context) error
}
