// Package authflow drives a browser through the provider's sign-in flow
// until the target page is reached or a classified failure is observed.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/helixml/sessionpilot/api/pkg/artifact"
	"github.com/helixml/sessionpilot/api/pkg/browser"
	"github.com/helixml/sessionpilot/api/pkg/config"
	"github.com/helixml/sessionpilot/api/pkg/coordination"
	"github.com/helixml/sessionpilot/api/pkg/pagestate"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

type Config struct {
	TargetURL        string
	TargetPathPrefix string
	Email            string
	Password         string
	// RequestID is only used to label logs
	RequestID string
	Timeouts  config.Timeouts
	// MaxOTPAttempts bounds rejected codes, Timeouts.MaxOTPAttempts when zero
	MaxOTPAttempts int
}

type Options struct {
	Session browser.Session
	Channel coordination.Channel
	// Sink is optional. Without one cookies are returned but not persisted.
	Sink  artifact.Sink
	Clock clockwork.Clock
}

// Orchestrator owns one session from the first navigation until the browser
// is closed. It is not safe for concurrent use and Run may only be called
// once.
type Orchestrator struct {
	cfg        Config
	session    browser.Session
	channel    coordination.Channel
	sink       artifact.Sink
	clock      clockwork.Clock
	classifier *pagestate.Classifier
	logger     zerolog.Logger

	state       types.PageState
	method      types.MFAChallenge
	otpAttempts int
	lastURL     string
}

func New(cfg Config, opts Options) (*Orchestrator, error) {
	if opts.Session == nil {
		return nil, errors.New("browser session is required")
	}
	if opts.Channel == nil {
		return nil, errors.New("coordination channel is required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, errors.New("account email and password are required")
	}
	if cfg.TargetURL == "" || cfg.TargetPathPrefix == "" {
		return nil, errors.New("target url and path prefix are required")
	}
	if err := cfg.Timeouts.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxOTPAttempts == 0 {
		cfg.MaxOTPAttempts = cfg.Timeouts.MaxOTPAttempts
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Orchestrator{
		cfg:        cfg,
		session:    opts.Session,
		channel:    opts.Channel,
		sink:       opts.Sink,
		clock:      opts.Clock,
		classifier: pagestate.NewClassifier(cfg.TargetPathPrefix, cfg.Email),
		logger: log.With().
			Str("request_id", cfg.RequestID).
			Str("account", MaskEmail(cfg.Email)).
			Logger(),
		state: types.PageStateIndeterminate,
	}, nil
}

// Run signs in and returns the single outcome of the session. Every failure
// has been reported to the channel by the time Run returns, and the browser
// session is closed on every path.
func (o *Orchestrator) Run(ctx context.Context) *types.Outcome {
	defer func() {
		if err := o.session.Close(); err != nil {
			o.logger.Warn().Err(err).Msg("failed to close browser session")
		}
	}()

	started := o.clock.Now()
	sessionArtifact, err := o.run(ctx)
	if err != nil {
		return o.fail(ctx, err)
	}

	if o.sink != nil {
		location, err := o.sink.Save(ctx, sessionArtifact)
		if err != nil {
			return o.fail(ctx, fmt.Errorf("failed to persist cookies: %w", err))
		}
		sessionArtifact.Location = location
	}

	report := &types.SuccessReport{
		CookieCount: len(sessionArtifact.Cookies),
		Location:    sessionArtifact.Location,
	}
	if err := o.channel.ReportSuccess(context.WithoutCancel(ctx), report); err != nil {
		o.logger.Warn().Err(err).Msg("failed to report success")
	}

	o.logger.Info().
		Int("cookies", report.CookieCount).
		Str("location", report.Location).
		Dur("took", o.clock.Since(started)).
		Msg("session acquired")

	return &types.Outcome{Artifact: sessionArtifact}
}

func (o *Orchestrator) run(ctx context.Context) (*types.SessionArtifact, error) {
	if err := o.navigate(ctx, o.cfg.TargetURL); err != nil {
		return nil, err
	}

	obs, err := o.observe(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case o.classifier.IsTarget(obs):
		o.logger.Info().Msg("already signed in")
	case o.classifier.NeedsFullLogin(obs):
		o.setState(types.PageStateNeedsFullLogin)
		if err := o.login(ctx, o.fullLogin); err != nil {
			return nil, err
		}
	case o.classifier.IsReAuth(obs):
		o.setState(types.PageStateReAuth)
		if err := o.login(ctx, o.reAuthWithFallback); err != nil {
			return nil, err
		}
	default:
		o.logger.Warn().Str("url", obs.URL).Msg("unrecognised landing page, attempting full login")
		if err := o.login(ctx, o.fullLogin); err != nil {
			return nil, err
		}
	}

	return o.verifyAndExtract(ctx)
}

// login submits credentials with step and then resolves whatever the
// provider shows next
func (o *Orchestrator) login(ctx context.Context, step func(context.Context) (*pagestate.Observation, error)) error {
	obs, err := step(ctx)
	if err != nil {
		return err
	}
	return o.afterCredentials(ctx, obs)
}

func (o *Orchestrator) afterCredentials(ctx context.Context, obs *pagestate.Observation) error {
	classification := o.classifier.Classify(obs)
	switch classification.State {
	case types.PageStateOnTarget:
		return nil
	case types.PageStateOnMFA, types.PageStateOnPush:
		return o.resolveMFA(ctx, obs, classification.Challenge)
	case types.PageStateAuthError:
		// credential errors were handled by the login step, what is left is
		// a code error lingering on a fresh MFA page
		if classification.ErrorKind == types.AuthErrorKindOTPInvalid {
			return o.resolveMFA(ctx, obs, o.classifier.DetectMFA(obs))
		}
		o.setState(types.PageStateAuthError)
		return types.NewAuthError(classification.ErrorKind, obs.URL)
	case types.PageStateOnUnsupportedMFAPage, types.PageStateNeedsFullLogin, types.PageStateReAuth:
		// a sign in form right after the credentials were taken is a prompt we cannot answer
		o.setState(types.PageStateOnUnsupportedMFAPage)
		return types.NewAuthError(types.AuthErrorKindUnsupportedMFAPage, obs.URL)
	}
	// somewhere outside the auth pages, the final navigation decides
	return nil
}

func (o *Orchestrator) verifyAndExtract(ctx context.Context) (*types.SessionArtifact, error) {
	obs, err := o.observe(ctx)
	if err != nil {
		return nil, err
	}
	if !o.classifier.IsTarget(obs) {
		o.logger.Info().Str("url", obs.URL).Msg("not on the target page, navigating there")
		if err := o.navigate(ctx, o.cfg.TargetURL); err != nil {
			return nil, err
		}
		obs, err = o.observe(ctx)
		if err != nil {
			return nil, err
		}
	}
	if !o.classifier.IsTarget(obs) {
		return nil, &types.AuthError{
			Kind:    types.AuthErrorKindGeneric,
			Message: "Sign-in finished but the target page was not reached.",
			URL:     obs.URL,
		}
	}
	o.setState(types.PageStateOnTarget)

	sessionArtifact, err := artifact.Extract(ctx, o.session, o.clock.Now())
	if err != nil {
		return nil, err
	}
	return sessionArtifact, nil
}

// navigate loads url and waits for redirects to settle
func (o *Orchestrator) navigate(ctx context.Context, url string) error {
	err := retry.Do(
		func() error {
			return o.session.Navigate(ctx, url)
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Warn().Err(err).Uint("attempt", n+1).Str("url", url).Msg("navigation failed, retrying")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return o.sleep(ctx, o.cfg.Timeouts.SettleDelay)
}

func (o *Orchestrator) observe(ctx context.Context) (*pagestate.Observation, error) {
	obs, err := pagestate.Observe(ctx, o.session)
	if err != nil {
		return nil, err
	}
	if obs.URL != o.lastURL {
		o.logger.Debug().Str("url", obs.URL).Msg("page changed")
		o.lastURL = obs.URL
	}
	return obs, nil
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	t := o.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

func (o *Orchestrator) setState(state types.PageState) {
	if o.state == state {
		return
	}
	o.logger.Debug().Str("from", string(o.state)).Str("to", string(state)).Msg("state")
	o.state = state
}

// fail turns err into the session's terminal failure and reports it
func (o *Orchestrator) fail(ctx context.Context, err error) *types.Outcome {
	authErr := o.toAuthError(err)
	reportCtx := context.WithoutCancel(ctx)

	o.logger.Error().
		Err(err).
		Str("kind", string(authErr.Kind)).
		Str("state", string(o.state)).
		Str("method", string(o.method)).
		Int("otp_attempts", o.otpAttempts).
		Msg("session failed")

	o.captureScreenshot(reportCtx)

	if err := o.channel.ReportError(reportCtx, authErr.Kind, authErr.Message); err != nil {
		o.logger.Warn().Err(err).Msg("failed to report error")
	}
	return &types.Outcome{Err: authErr}
}

func (o *Orchestrator) toAuthError(err error) *types.AuthError {
	var authErr *types.AuthError
	if errors.As(err, &authErr) {
		if authErr.URL == "" {
			authErr.URL = o.lastURL
		}
		return authErr
	}
	return &types.AuthError{
		Kind:    types.AuthErrorKindGeneric,
		Message: types.AuthErrorKindGeneric.Message(),
		URL:     o.lastURL,
		Cause:   err,
	}
}

func (o *Orchestrator) captureScreenshot(ctx context.Context) {
	png, err := o.session.Screenshot(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to capture failure screenshot")
		return
	}
	if o.sink == nil {
		return
	}
	location, err := o.sink.SaveScreenshot(ctx, png)
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to store failure screenshot")
		return
	}
	o.logger.Info().Str("location", location).Msg("stored failure screenshot")
}

// MaskEmail keeps the first character of the local part and the domain
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
