// Package consul implements discovery.ClusterMembership against a
// Consul catalog, adapted from the teacher's discovery provider: a
// single background goroutine long-polls Catalog().Services() with
// WaitIndex/WaitTime and republishes the flattened peer list to every
// registered watcher on change.
package consul

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"infoton/pkg/address"
	"infoton/pkg/discovery"
	"infoton/pkg/glog"
	"infoton/pkg/lib/grs"
)

// clusterRootKey is the Consul KV key used to record a forced cluster
// root (spec §4.2's addpeers! root-declaration corner).
const clusterRootKey = "infoton/cluster-root"

// Config configures the consul provider.
type Config struct {
	Address       string
	WatchWaitTime time.Duration
}

func defaultConfig() *Config {
	return &Config{
		Address:       "127.0.0.1:8500",
		WatchWaitTime: 30 * time.Second,
	}
}

// Provider is a discovery.ClusterMembership backed by a Consul catalog.
type Provider struct {
	cfg    *Config
	client *api.Client

	mu       sync.RWMutex
	members  []discovery.Peer
	watchers []func([]discovery.Peer)

	waitIndex uint64
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

var _ discovery.ClusterMembership = (*Provider)(nil)

// New builds a Provider. A nil cfg uses defaultConfig.
func New(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, err
	}
	return &Provider{cfg: cfg, client: client}, nil
}

func (p *Provider) Run(ctx context.Context) error {
	if _, err := p.client.Status().Leader(); err != nil {
		return err
	}
	ctx, p.cancel = context.WithCancel(ctx)
	grs.Go(func(context.Context) {
		p.watch(ctx)
	})
	glog.Info("consul cluster membership started", zap.String("address", p.cfg.Address))
	return nil
}

func (p *Provider) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := p.fetch(ctx); err != nil {
			glog.Error("consul catalog fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (p *Provider) fetch(ctx context.Context) error {
	opts := (&api.QueryOptions{WaitIndex: p.waitIndex, WaitTime: p.cfg.WatchWaitTime}).WithContext(ctx)
	services, meta, err := p.client.Catalog().Services(opts)
	if err != nil {
		return err
	}
	p.waitIndex = meta.LastIndex

	var peers []discovery.Peer
	for name, tags := range services {
		if name == "consul" {
			continue
		}
		entries, _, err := p.client.Catalog().Service(name, "", &api.QueryOptions{})
		if err != nil {
			glog.Error("consul catalog service lookup failed", zap.String("service", name), zap.Error(err))
			continue
		}
		for _, entry := range entries {
			peers = append(peers, discovery.Peer{
				PostCode: address.New(entry.ServiceAddress, entry.ServicePort),
				Tags:     tags,
				Meta:     entry.ServiceMeta,
			})
		}
	}

	p.mu.Lock()
	p.members = peers
	watchers := append([]func([]discovery.Peer){}, p.watchers...)
	p.mu.Unlock()

	for _, w := range watchers {
		w(peers)
	}
	return nil
}

func (p *Provider) Members() []discovery.Peer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]discovery.Peer{}, p.members...)
}

func (p *Provider) Watch(fn func([]discovery.Peer)) error {
	p.mu.Lock()
	p.watchers = append(p.watchers, fn)
	p.mu.Unlock()
	return nil
}

// CurrentRoot implements discovery.RootAnnouncer, reading the forced
// root (if any) from the Consul KV store.
func (p *Provider) CurrentRoot() (address.PostCode, bool) {
	pair, _, err := p.client.KV().Get(clusterRootKey, nil)
	if err != nil {
		glog.Error("consul KV root lookup failed", zap.Error(err))
		return address.PostCode{}, false
	}
	if pair == nil {
		return address.PostCode{}, false
	}
	host, port, err := address.ParsePostCode(string(pair.Value))
	if err != nil {
		glog.Error("consul KV root value unparseable", zap.ByteString("value", pair.Value), zap.Error(err))
		return address.PostCode{}, false
	}
	return address.New(host, port), true
}

// AnnounceRoot implements discovery.RootAnnouncer, recording the forced
// root in the Consul KV store so every other host in the cluster
// observes the same root on its next CurrentRoot lookup.
func (p *Provider) AnnounceRoot(postcode address.PostCode) error {
	_, err := p.client.KV().Put(&api.KVPair{Key: clusterRootKey, Value: []byte(postcode.String())}, nil)
	return err
}

func (p *Provider) Shutdown(context.Context) error {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	return nil
}
