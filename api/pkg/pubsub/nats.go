package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Nats struct {
	conn *nats.Conn

	// set when we run the server ourselves
	server *server.Server
}

var _ PubSub = &Nats{}

func NewNats(url string) (*Nats, error) {
	nc, err := nats.Connect(url,
		nats.Name("sessionpilot"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &Nats{conn: nc}, nil
}

// NewInMemoryNats starts an embedded server on a random local port and
// connects to it
func NewInMemoryNats() (*Nats, error) {
	return NewEmbeddedNats("127.0.0.1", server.RANDOM_PORT)
}

// NewEmbeddedNats runs a NATS server in this process that other processes
// can publish to
func NewEmbeddedNats(host string, port int) (*Nats, error) {
	opts := &server.Options{
		Host:   host,
		Port:   port,
		NoSigs: true,
		NoLog:  true,
	}

	// Initialize new server with options
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory nats server: %w", err)
	}

	// Start the server via goroutine
	go ns.Start()

	// Wait for server to be ready for connections
	if !ns.ReadyForConnections(4 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to start in-memory nats server")
	}

	// Connect to server
	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &Nats{
		conn:   nc,
		server: ns,
	}, nil
}

// ClientURL is the address other processes can reach this connection's
// server on
func (n *Nats) ClientURL() string {
	if n.server != nil {
		return n.server.ClientURL()
	}
	return n.conn.ConnectedUrl()
}

func (n *Nats) Subscribe(_ context.Context, topic string, handler func(payload []byte) error) (Subscription, error) {
	sub, err := n.conn.Subscribe(topic, func(msg *nats.Msg) {
		err := handler(msg.Data)
		if err != nil {
			log.Err(err).Str("topic", topic).Msg("error handling message")
		}
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (n *Nats) Publish(_ context.Context, topic string, payload []byte) error {
	return n.conn.Publish(topic, payload)
}

// Flush waits until the server has processed everything published so far.
// FlushWithContext refuses contexts without a deadline, those fall back to
// the connection's own flush timeout.
func (n *Nats) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return n.conn.Flush()
	}
	return n.conn.FlushWithContext(ctx)
}

func (n *Nats) Close() {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
	if n.server != nil {
		n.server.Shutdown()
	}
}
