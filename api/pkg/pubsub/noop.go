package pubsub

import (
	"context"
)

// NoopPubSub discards publishes and never delivers anything. The host uses
// it when no NATS server is configured.
type NoopPubSub struct{}

var _ PubSub = &NoopPubSub{}

func NewNoop() *NoopPubSub {
	return &NoopPubSub{}
}

func (n *NoopPubSub) Publish(_ context.Context, _ string, _ []byte) error {
	return nil
}

func (n *NoopPubSub) Subscribe(_ context.Context, _ string, _ func(payload []byte) error) (Subscription, error) {
	return &noopSubscription{}, nil
}

func (n *NoopPubSub) Close() {}

type noopSubscription struct{}

func (s *noopSubscription) Unsubscribe() error { return nil }
