package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/helixml/sessionpilot/api/pkg/pubsub"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

// SubscribeEvents feeds reports published by sessions on the message bus
// into the store
func SubscribeEvents(ctx context.Context, ps pubsub.PubSub, store *Store) (pubsub.Subscription, error) {
	sub, err := ps.Subscribe(ctx, pubsub.AcquisitionEventsSubject, func(payload []byte) error {
		var event types.AcquisitionEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("malformed acquisition event: %w", err)
		}
		if err := store.HandleEvent(&event); err != nil {
			return fmt.Errorf("failed to apply %s event for %s: %w", event.Type, event.RequestID, err)
		}
		log.Trace().Str("request_id", event.RequestID).Str("type", string(event.Type)).Msg("applied acquisition event")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", pubsub.AcquisitionEventsSubject, err)
	}
	return sub, nil
}
