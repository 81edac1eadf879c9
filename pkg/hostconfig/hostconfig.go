// Package hostconfig loads a host process's YAML configuration with
// viper, grounded in the teacher's internal/profile loader (Init/Get
// against a package-local *viper.Viper) generalized into a typed
// Config struct covering every host-level setting spec §9 names.
package hostconfig

import (
	"time"

	"github.com/spf13/viper"

	"infoton/internal/errs"
	consulcfg "infoton/pkg/discovery/provider/consul"
	"infoton/pkg/glog"
	natscfg "infoton/pkg/messageQue/provider/nats"
)

// Config is one host process's settings: its own identity and
// scheduler layout, logging, and the optional cluster membership /
// transport plugins.
type Config struct {
	HostID         string  `yaml:"hostId" mapstructure:"hostId"`
	SchedulerPorts []int   `yaml:"schedulerPorts" mapstructure:"schedulerPorts"`
	ViewSize       float32 `yaml:"viewSize" mapstructure:"viewSize"`
	TargetActors   int     `yaml:"targetActors" mapstructure:"targetActors"`
	InboundBound   int     `yaml:"inboundBound" mapstructure:"inboundBound"`
	IsZygote       bool    `yaml:"isZygote" mapstructure:"isZygote"`

	Glog glog.Config `yaml:"glog" mapstructure:"glog"`

	Cluster struct {
		Enabled bool             `yaml:"enabled" mapstructure:"enabled"`
		Consul  consulcfg.Config `yaml:"consul" mapstructure:"consul"`
	} `yaml:"cluster" mapstructure:"cluster"`

	Transport struct {
		Enabled bool           `yaml:"enabled" mapstructure:"enabled"`
		Nats    natscfg.Config `yaml:"nats" mapstructure:"nats"`
	} `yaml:"transport" mapstructure:"transport"`
}

// Default mirrors the teacher's Default() config constructor: one
// scheduler per host, zygote, no cluster or transport plugins.
func Default() *Config {
	cfg := &Config{
		HostID:         "host-1",
		SchedulerPorts: []int{24721},
		ViewSize:       100,
		TargetActors:   1000,
		InboundBound:   100_000,
		IsZygote:       true,
		Glog: glog.Config{
			Path:         "./logs/host.log",
			Level:        "info",
			PrintConsole: true,
			File: glog.FileConfig{
				MaxSize:    500,
				MaxBackups: 100,
				MaxAge:     30,
			},
		},
	}
	cfg.Cluster.Consul.WatchWaitTime = WatchWaitTime
	return cfg
}

// Load reads path (YAML) into a fresh *viper.Viper and unmarshals it
// onto Default(), so a partial file still yields a fully-populated
// Config. A missing or unreadable file is returned as an error.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")

	cfg := Default()
	if err := vp.ReadInConfig(); err != nil {
		return nil, errs.ErrReadConfigFileFailed(err)
	}
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, errs.ErrUnmarshalConfigFailed(err)
	}
	return cfg, nil
}

// WatchWaitTime is the default consul long-poll window used when a YAML
// config omits cluster.consul.watchWaitTime.
const WatchWaitTime = 30 * time.Second
