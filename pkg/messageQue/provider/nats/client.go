// Package nats implements messageQue.Transport over a NATS connection,
// adapted from the teacher's message-queue client: one *nats.Conn,
// subjects derived from PostCode, Publish/Subscribe/Request passed
// through directly.
package nats

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"infoton/pkg/address"
	"infoton/pkg/messageQue"
)

// Config configures the NATS transport.
type Config struct {
	Servers []string
}

func defaultConfig() *Config {
	return &Config{Servers: []string{nats.DefaultURL}}
}

// Client is a messageQue.Transport backed by NATS core pub/sub.
type Client struct {
	cfg  *Config
	conn *nats.Conn
}

var _ messageQue.Transport = (*Client)(nil)

// New builds a Client. A nil cfg connects to the NATS default URL.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = defaultConfig()
	}
	return &Client{cfg: cfg}
}

func (c *Client) Run(ctx context.Context) error {
	conn, err := nats.Connect(strings.Join(c.cfg.Servers, ","))
	if err != nil {
		return errors.Wrap(err, "nats connect failed")
	}
	c.conn = conn
	return nil
}

// subject maps a PostCode to a NATS subject: cross-host sends target the
// receiving host's subject, not a specific scheduler, since routing
// within a host is THE CORE's job once the payload arrives.
func subject(postcode address.PostCode) string {
	return "infoton.host." + postcode.Host
}

func (c *Client) Send(postcode address.PostCode, payload []byte) error {
	return c.conn.Publish(subject(postcode), payload)
}

func (c *Client) Subscribe(self address.PostCode, handler func(payload []byte)) error {
	_, err := c.conn.Subscribe(subject(self), func(m *nats.Msg) {
		handler(m.Data)
	})
	return err
}

func (c *Client) Request(postcode address.PostCode, payload []byte, timeout time.Duration) ([]byte, error) {
	msg, err := c.conn.Request(subject(postcode), payload, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s", postcode)
	}
	return msg.Data, nil
}

func (c *Client) Shutdown(context.Context) error {
	c.conn.Close()
	return nil
}
