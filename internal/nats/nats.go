package nats

import (
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

var ErrDisabled = errors.New("nats: no url configured")

type Nats struct {
	Url   string
	Token string
	Conn  *nats.Conn
}

// Connect dials url. An empty url returns ErrDisabled so callers can run without NATS.
func Connect(url, token, name string) (*Nats, error) {
	if url == "" {
		return nil, ErrDisabled
	}

	n := &Nats{Url: url, Token: token}

	opts := []nats.Option{
		nats.Name(name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
	}

	if n.Token != "" {
		opts = append(opts, nats.Token(n.Token))
	}

	conn, err := nats.Connect(n.Url, opts...)
	if err != nil {
		return nil, err
	}

	n.Conn = conn

	return n, nil
}

// Close drains pending messages before closing the connection.
func (n *Nats) Close() {
	if n == nil || n.Conn == nil {
		return
	}
	if err := n.Conn.Drain(); err != nil {
		n.Conn.Close()
	}
}
