package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/helixml/sessionpilot/api/pkg/pubsub"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

// NATSChannel reports over the message bus and receives codes pushed by the
// host. Polls read the last pushed value and never touch the network.
type NATSChannel struct {
	ps        pubsub.PubSub
	requestID string
	sub       pubsub.Subscription

	mu        sync.Mutex
	code      string
	confirmed bool
}

var _ Channel = &NATSChannel{}

func NewNATSChannel(ctx context.Context, ps pubsub.PubSub, requestID string) (*NATSChannel, error) {
	c := &NATSChannel{
		ps:        ps,
		requestID: requestID,
	}
	sub, err := ps.Subscribe(ctx, pubsub.GetCodeSubject(requestID), c.receive)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe for codes: %w", err)
	}
	c.sub = sub
	return c, nil
}

func (c *NATSChannel) receive(payload []byte) error {
	var resp types.CodeResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("invalid code message: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if code := strings.TrimSpace(resp.OTP); code != "" {
		c.code = code
	}
	if resp.UserConfirmed2FA {
		c.confirmed = true
	}
	return nil
}

func (c *NATSChannel) ReportChallenge(ctx context.Context, challenge types.MFAChallenge, message string) error {
	return c.publish(ctx, &types.AcquisitionEvent{
		Type:      types.AcquisitionEventChallenge,
		Challenge: &types.ChallengeUpdate{Method: challenge, Message: message},
	})
}

func (c *NATSChannel) PollForCode(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, nil
}

func (c *NATSChannel) PollForConfirmation(_ context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed, nil
}

func (c *NATSChannel) ClearCode(ctx context.Context) error {
	c.mu.Lock()
	c.code = ""
	c.mu.Unlock()
	return c.publish(ctx, &types.AcquisitionEvent{Type: types.AcquisitionEventCodeCleared})
}

func (c *NATSChannel) ReportError(ctx context.Context, kind types.AuthErrorKind, message string) error {
	return c.publish(ctx, &types.AcquisitionEvent{
		Type:  types.AcquisitionEventError,
		Error: &types.ErrorReport{Error: kind, Message: message},
	})
}

func (c *NATSChannel) ReportSuccess(ctx context.Context, report *types.SuccessReport) error {
	return c.publish(ctx, &types.AcquisitionEvent{
		Type:    types.AcquisitionEventSuccess,
		Success: report,
	})
}

func (c *NATSChannel) Close() error {
	return c.sub.Unsubscribe()
}

func (c *NATSChannel) publish(ctx context.Context, event *types.AcquisitionEvent) error {
	event.RequestID = c.requestID
	bts, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.ps.Publish(ctx, pubsub.AcquisitionEventsSubject, bts)
}
