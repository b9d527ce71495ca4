package authflow

import (
	"context"
	"errors"

	"github.com/helixml/sessionpilot/api/pkg/browser"
	"github.com/helixml/sessionpilot/api/pkg/pagestate"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

var errReAuthRejected = errors.New("re-authentication did not progress")

// fullLogin enters the email and then the password. Either field may be
// missing when the provider remembers part of the session.
func (o *Orchestrator) fullLogin(ctx context.Context) (*pagestate.Observation, error) {
	filled, err := browser.FillFirst(ctx, o.session, pagestate.EmailInputSelectors, o.cfg.Email)
	if err != nil {
		return nil, err
	}
	if filled {
		o.logger.Debug().Msg("entered email")
		if err := browser.SubmitFirst(ctx, o.session, pagestate.ContinueSelectors); err != nil {
			return nil, err
		}
		if err := o.sleep(ctx, o.cfg.Timeouts.StepDelay); err != nil {
			return nil, err
		}

		obs, err := o.observe(ctx)
		if err != nil {
			return nil, err
		}
		// no point entering a password for an account that does not exist
		if o.classifier.AuthError(obs, false) == types.AuthErrorKindInvalidEmail {
			o.setState(types.PageStateAuthError)
			return nil, types.NewAuthError(types.AuthErrorKindInvalidEmail, obs.URL)
		}
	} else {
		o.logger.Debug().Msg("no email field, continuing to password")
	}

	return o.submitPassword(ctx)
}

// reAuth answers a password-only prompt for a session the provider still
// partly remembers
func (o *Orchestrator) reAuth(ctx context.Context) (*pagestate.Observation, error) {
	obs, err := o.submitPassword(ctx)
	if err != nil {
		return nil, err
	}
	if o.classifier.IsTarget(obs) || o.classifier.IsMFAPage(obs) {
		return obs, nil
	}
	if o.classifier.NeedsFullLogin(obs) || o.classifier.IsUnrecognizedAuthPage(obs) {
		return nil, errReAuthRejected
	}
	return obs, nil
}

// reAuthWithFallback runs a full login once when re-authentication fails for
// any reason other than cancellation
func (o *Orchestrator) reAuthWithFallback(ctx context.Context) (*pagestate.Observation, error) {
	obs, err := o.reAuth(ctx)
	if err == nil {
		return obs, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	o.logger.Warn().Err(err).Msg("re-authentication failed, falling back to full login")
	if err := o.navigate(ctx, o.cfg.TargetURL); err != nil {
		return nil, err
	}
	o.setState(types.PageStateNeedsFullLogin)
	return o.fullLogin(ctx)
}

func (o *Orchestrator) submitPassword(ctx context.Context) (*pagestate.Observation, error) {
	filled, err := browser.FillFirst(ctx, o.session, pagestate.PasswordInputSelectors, o.cfg.Password)
	if err != nil {
		return nil, err
	}
	if filled {
		o.logger.Debug().Msg("entered password")
		if err := browser.SubmitFirst(ctx, o.session, pagestate.SignInSelectors); err != nil {
			return nil, err
		}
		if err := o.sleep(ctx, o.cfg.Timeouts.StepDelay); err != nil {
			return nil, err
		}
	} else {
		o.logger.Debug().Msg("no password field")
	}

	obs, err := o.observe(ctx)
	if err != nil {
		return nil, err
	}
	switch kind := o.classifier.AuthError(obs, false); kind {
	case types.AuthErrorKindInvalidEmail, types.AuthErrorKindIncorrectPassword:
		o.setState(types.PageStateAuthError)
		return nil, types.NewAuthError(kind, obs.URL)
	}
	return obs, nil
}
