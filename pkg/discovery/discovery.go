// Package discovery defines the ClusterMembership plugin interface
// named in spec §6's "cluster-membership/discovery plugin, assumed to
// deliver a peer list" out-of-scope collaborator. THE CORE never
// requires an implementation; Host runs single-process workloads with
// none configured.
package discovery

import (
	"context"

	pkgactor "infoton/pkg/actor"
	"infoton/pkg/address"
)

// Peer describes one scheduler on another host, as reported by a
// ClusterMembership plugin. It carries only what the host-level wiring
// needs to route through a Transport plugin; it never enters a
// HostService's own single-process peer table.
type Peer struct {
	PostCode address.PostCode
	Tags     []string
	Meta     map[string]string
}

// ClusterMembership is implemented by a plugin that discovers peer
// hosts. Run starts the background watch loop; Members returns the
// current snapshot; Watch registers a callback fired on every change;
// Shutdown stops the watch loop.
type ClusterMembership interface {
	Run(ctx context.Context) error
	Members() []Peer
	Watch(fn func([]Peer)) error
	Shutdown(ctx context.Context) error
}

// Config is the subset of plugin configuration common across providers;
// provider packages define their own provider-specific config.
type Config struct {
	Address string `mapstructure:"address"`
}

// RootAnnouncer is implemented by a ClusterMembership provider that
// tracks a distinguished cluster root. Host consults CurrentRoot before
// forcing one during addpeers! (spec §4.2); the forced declaration then
// reaches AnnounceRoot through MembershipPlugin when a scheduler
// dispatches the ForceAddRoot envelope. A provider
// with no concept of a distinguished root simply doesn't implement this.
type RootAnnouncer interface {
	CurrentRoot() (address.PostCode, bool)
	AnnounceRoot(postcode address.PostCode) error
}

// MembershipPlugin adapts a ClusterMembership into a scheduler's Plugin
// stack so a ForceAddRoot envelope dispatched by the scheduler (spec
// §4.2's addpeers!) reaches the plugin's own AnnounceRoot.
type MembershipPlugin struct {
	Membership ClusterMembership
}

func (MembershipPlugin) Name() string { return "cluster-membership" }

func (p MembershipPlugin) ForceAddRoot(postcode address.PostCode) error {
	ann, ok := p.Membership.(RootAnnouncer)
	if !ok {
		return nil
	}
	return ann.AnnounceRoot(postcode)
}

var _ pkgactor.PluginForceAddRoot = MembershipPlugin{}
