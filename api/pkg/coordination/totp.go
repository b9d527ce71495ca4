package coordination

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"

	"github.com/helixml/sessionpilot/api/pkg/types"
)

const totpPeriodSeconds = 30

// TOTPChannel answers code polls from a locally held authenticator secret
// while the page asks for an authenticator or one time code. The first
// rejected generated code means the secret does not belong to this
// challenge, every later poll goes to the inner channel.
type TOTPChannel struct {
	Channel
	secret string
	clock  clockwork.Clock

	mu        sync.Mutex
	challenge types.MFAChallenge
	// a generated code is on the page
	served   bool
	rejected bool
}

var _ Channel = &TOTPChannel{}

func NewTOTPChannel(inner Channel, secret string, clock clockwork.Clock) (*TOTPChannel, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	// fail early on a malformed secret rather than mid login
	if _, err := totp.GenerateCode(secret, clock.Now()); err != nil {
		return nil, fmt.Errorf("invalid TOTP secret: %w", err)
	}
	return &TOTPChannel{
		Channel: inner,
		secret:  secret,
		clock:   clock,
	}, nil
}

func generatesFor(challenge types.MFAChallenge) bool {
	return challenge == types.MFAChallengeAuthenticatorApp || challenge == types.MFAChallengeOneTimeCode
}

func (c *TOTPChannel) generating() bool {
	return generatesFor(c.challenge) && !c.rejected
}

func (c *TOTPChannel) PollForCode(ctx context.Context) (string, error) {
	c.mu.Lock()
	if !c.generating() {
		c.served = false
		c.mu.Unlock()
		return c.Channel.PollForCode(ctx)
	}
	c.mu.Unlock()

	now := c.clock.Now()
	code, err := totp.GenerateCode(c.secret, now)
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP code: %w", err)
	}
	c.mu.Lock()
	c.served = true
	c.mu.Unlock()
	log.Debug().Int64("step", now.Unix()/totpPeriodSeconds).Msg("generated TOTP code")
	return code, nil
}

func (c *TOTPChannel) ClearCode(ctx context.Context) error {
	c.mu.Lock()
	if c.served {
		log.Warn().Msg("generated TOTP code was rejected, waiting for codes from the coordinator")
		c.rejected = true
		c.served = false
	}
	c.mu.Unlock()
	return c.Channel.ClearCode(ctx)
}

func (c *TOTPChannel) ReportChallenge(ctx context.Context, challenge types.MFAChallenge, message string) error {
	c.mu.Lock()
	c.challenge = challenge
	generating := c.generating()
	c.mu.Unlock()

	if generating {
		message = "Generating codes from the configured authenticator secret. " + message
	}
	return c.Channel.ReportChallenge(ctx, challenge, message)
}
