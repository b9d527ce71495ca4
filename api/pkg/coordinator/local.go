package coordinator

import (
	"context"

	"github.com/helixml/sessionpilot/api/pkg/coordination"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

// LocalChannel connects a session run inside the host straight to the
// store, skipping the internal HTTP API
type LocalChannel struct {
	store *Store
	id    string
}

var _ coordination.Channel = &LocalChannel{}

func NewLocalChannel(store *Store, id string) *LocalChannel {
	return &LocalChannel{
		store: store,
		id:    id,
	}
}

func (c *LocalChannel) ReportChallenge(_ context.Context, challenge types.MFAChallenge, message string) error {
	return c.store.ReportChallenge(c.id, &types.ChallengeUpdate{Method: challenge, Message: message})
}

func (c *LocalChannel) PollForCode(_ context.Context) (string, error) {
	resp, err := c.store.CodeResponse(c.id)
	if err != nil {
		return "", err
	}
	return resp.OTP, nil
}

func (c *LocalChannel) PollForConfirmation(_ context.Context) (bool, error) {
	resp, err := c.store.CodeResponse(c.id)
	if err != nil {
		return false, err
	}
	return resp.UserConfirmed2FA, nil
}

func (c *LocalChannel) ClearCode(_ context.Context) error {
	return c.store.ClearCode(c.id)
}

func (c *LocalChannel) ReportError(_ context.Context, kind types.AuthErrorKind, message string) error {
	return c.store.ReportError(c.id, &types.ErrorReport{Error: kind, Message: message})
}

func (c *LocalChannel) ReportSuccess(_ context.Context, report *types.SuccessReport) error {
	return c.store.ReportSuccess(c.id, report)
}
