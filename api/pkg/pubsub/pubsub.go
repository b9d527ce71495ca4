package pubsub

import (
	"context"
)

type Publisher interface {
	// Publish topic to message broker with payload.
	Publish(ctx context.Context, topic string, payload []byte) error
}

type PubSub interface {
	Publisher
	Subscribe(ctx context.Context, topic string, handler func(payload []byte) error) (Subscription, error)
	Close()
}

type Subscription interface {
	Unsubscribe() error
}

const (
	// AcquisitionEventsSubject carries every report sessions make to the host
	AcquisitionEventsSubject = "sessionpilot.events"
	codeSubjectPrefix        = "sessionpilot.code."
)

// GetCodeSubject is where the host sends codes and confirmations for one
// acquisition
func GetCodeSubject(requestID string) string {
	return codeSubjectPrefix + requestID
}
