package authflow

import (
	"context"
	"time"

	"github.com/helixml/sessionpilot/api/pkg/browser"
	"github.com/helixml/sessionpilot/api/pkg/pagestate"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

func (o *Orchestrator) resolveMFA(ctx context.Context, obs *pagestate.Observation, challenge types.MFAChallenge) error {
	o.method = challenge
	o.logger.Info().Str("method", string(challenge)).Msg("2FA challenge detected")

	switch challenge {
	case types.MFAChallengeUnsupported:
		o.setState(types.PageStateOnUnsupportedMFAPage)
		return types.NewAuthError(types.AuthErrorKindUnsupportedMFAPage, obs.URL)
	case types.MFAChallengeOneTimeCode:
		o.setState(types.PageStateOnMFA)
		return o.resolveCode(ctx, challenge)
	case types.MFAChallengePushApproval:
		o.setState(types.PageStateOnPush)
		o.reportChallenge(ctx, challenge)
		return o.waitForRedirect(ctx, o.cfg.Timeouts.PushTimeout, true)
	}

	// authenticator, email, backup and unknown codes
	o.setState(types.PageStateOnMFA)
	if obs.CodeInput {
		return o.resolveCode(ctx, challenge)
	}
	o.reportChallenge(ctx, challenge)
	return o.waitForRedirect(ctx, o.cfg.Timeouts.PushTimeout, false)
}

// resolveCode relays codes from the channel into the page. A code counts as
// rejected when the page is still an MFA page after submission. Reaching the
// target is the only proof of acceptance.
func (o *Orchestrator) resolveCode(ctx context.Context, challenge types.MFAChallenge) error {
	o.reportChallenge(ctx, challenge)

	deadline := o.clock.Now().Add(o.cfg.Timeouts.MFAPollTimeout)
	for {
		if !o.clock.Now().Before(deadline) {
			return types.NewAuthError(types.AuthErrorKindTimeout, o.lastURL)
		}
		if err := o.sleep(ctx, o.cfg.Timeouts.PollInterval); err != nil {
			return err
		}

		obs, err := o.observe(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Msg("failed to read page while waiting for a code")
			continue
		}
		if o.classifier.IsTarget(obs) {
			return nil
		}
		if !o.classifier.IsMFAPage(obs) {
			o.logger.Info().Str("url", obs.URL).Msg("left the 2FA page, waiting for redirect")
			return o.waitForRedirect(ctx, o.cfg.Timeouts.RedirectTimeout, false)
		}

		confirmed, err := o.channel.PollForConfirmation(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Msg("failed to poll for confirmation")
		} else if confirmed {
			o.logger.Info().Msg("2FA confirmed out of band, waiting for redirect")
			return o.waitForRedirect(ctx, o.cfg.Timeouts.RedirectTimeout, false)
		}

		code, err := o.channel.PollForCode(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Msg("failed to poll for code")
			continue
		}
		if code == "" {
			continue
		}

		done, err := o.submitCode(ctx, code)
		if err != nil || done {
			return err
		}
	}
}

// submitCode types one code and judges the page that follows. done is false
// only when the caller should keep polling for another code.
func (o *Orchestrator) submitCode(ctx context.Context, code string) (done bool, err error) {
	o.logger.Info().Str("code", maskCode(code)).Msg("submitting 2FA code")

	filled, err := browser.FillFirst(ctx, o.session, pagestate.CodeInputSelectors, code)
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to enter code")
		return false, nil
	}
	if !filled {
		o.logger.Warn().Msg("no code input found on the 2FA page")
		return false, nil
	}
	if err := browser.SubmitFirst(ctx, o.session, pagestate.CodeSubmitSelectors); err != nil {
		o.logger.Warn().Err(err).Msg("failed to submit code")
	}
	if err := o.sleep(ctx, o.cfg.Timeouts.OTPSubmitSettle); err != nil {
		return false, err
	}

	obs, err := o.observe(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to read page after submitting code")
		return true, o.waitForRedirect(ctx, o.cfg.Timeouts.RedirectTimeout, false)
	}

	switch {
	case o.classifier.IsTarget(obs):
		o.logger.Info().Msg("code accepted")
		return true, nil
	case o.classifier.IsMFAPage(obs):
		o.otpAttempts++
		o.logger.Warn().
			Int("attempt", o.otpAttempts).
			Int("max_attempts", o.cfg.MaxOTPAttempts).
			Msg("code rejected")
		if o.otpAttempts >= o.cfg.MaxOTPAttempts {
			return false, types.NewAuthError(types.AuthErrorKindOTPInvalid, obs.URL)
		}
		if err := o.channel.ReportError(ctx, types.AuthErrorKindOTPInvalid, types.AuthErrorKindOTPInvalid.Message()); err != nil {
			o.logger.Warn().Err(err).Msg("failed to report rejected code")
		}
		if err := o.channel.ClearCode(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("failed to clear rejected code")
		}
		return false, nil
	default:
		o.logger.Info().Str("url", obs.URL).Msg("code submitted, waiting for redirect")
		return true, o.waitForRedirect(ctx, o.cfg.Timeouts.RedirectTimeout, false)
	}
}

// waitForRedirect polls until the target is reached. A return to the login
// page after the push page was seen means the request was denied; a login
// page alone proves nothing. wasOnPush carries what the caller already saw.
func (o *Orchestrator) waitForRedirect(ctx context.Context, timeout time.Duration, wasOnPush bool) error {
	deadline := o.clock.Now().Add(timeout)

	for {
		onPush := false
		obs, err := o.observe(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Msg("failed to read page while waiting for redirect")
		} else {
			if o.classifier.IsTarget(obs) {
				return nil
			}
			onMFA := o.classifier.IsMFAPage(obs)
			onPush = onMFA && o.classifier.DetectMFA(obs) == types.MFAChallengePushApproval
			if onPush && !wasOnPush {
				o.logger.Debug().Msg("waiting for push approval")
			}
			wasOnPush = wasOnPush || onPush

			if wasOnPush && !onMFA && o.classifier.NeedsFullLogin(obs) {
				o.setState(types.PageStateAuthError)
				return types.NewAuthError(types.AuthErrorKindPushDenied, obs.URL)
			}
		}

		if !o.clock.Now().Before(deadline) {
			return types.NewAuthError(types.AuthErrorKindTimeout, o.lastURL)
		}

		interval := o.cfg.Timeouts.PollInterval
		if onPush {
			interval = o.cfg.Timeouts.PushPollInterval
		}
		if err := o.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) reportChallenge(ctx context.Context, challenge types.MFAChallenge) {
	if err := o.channel.ReportChallenge(ctx, challenge, challenge.Instruction()); err != nil {
		o.logger.Warn().Err(err).Msg("failed to report 2FA challenge")
	}
}

func maskCode(code string) string {
	if code == "" {
		return ""
	}
	return "******"
}
