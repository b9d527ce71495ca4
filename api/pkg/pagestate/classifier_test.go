package pagestate_test

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/sessionpilot/api/pkg/browser/browsertest"
	"github.com/helixml/sessionpilot/api/pkg/pagestate"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

func newClassifier() *pagestate.Classifier {
	return pagestate.NewClassifier(browsertest.TargetPrefix, browsertest.AccountEmail)
}

func observe(t *testing.T, page browsertest.Page) *pagestate.Observation {
	t.Helper()
	obs, err := pagestate.FromHTML(page.URL, page.HTML)
	require.NoError(t, err)
	return obs
}

func TestClassify_Fixtures(t *testing.T) {
	tests := []struct {
		name string
		page browsertest.Page
		want types.Classification
	}{
		{
			name: "target",
			page: browsertest.TargetPage(),
			want: types.Classification{State: types.PageStateOnTarget},
		},
		{
			name: "email step",
			page: browsertest.EmailPage(),
			want: types.Classification{State: types.PageStateNeedsFullLogin},
		},
		{
			name: "password step of a fresh login",
			page: browsertest.PasswordPage(browsertest.AccountEmail),
			want: types.Classification{State: types.PageStateNeedsFullLogin},
		},
		{
			name: "re-auth",
			page: browsertest.ReAuthPage(browsertest.AccountEmail),
			want: types.Classification{State: types.PageStateReAuth},
		},
		{
			name: "invalid email",
			page: browsertest.InvalidEmailPage(),
			want: types.Classification{State: types.PageStateAuthError, ErrorKind: types.AuthErrorKindInvalidEmail},
		},
		{
			name: "incorrect password",
			page: browsertest.IncorrectPasswordPage(browsertest.AccountEmail),
			want: types.Classification{State: types.PageStateAuthError, ErrorKind: types.AuthErrorKindIncorrectPassword},
		},
		{
			name: "otp",
			page: browsertest.OTPPage(false),
			want: types.Classification{State: types.PageStateOnMFA, Challenge: types.MFAChallengeOneTimeCode},
		},
		{
			name: "rejected otp",
			page: browsertest.OTPPage(true),
			want: types.Classification{State: types.PageStateAuthError, ErrorKind: types.AuthErrorKindOTPInvalid},
		},
		{
			name: "push",
			page: browsertest.PushPage(),
			want: types.Classification{State: types.PageStateOnPush, Challenge: types.MFAChallengePushApproval},
		},
		{
			name: "authenticator app",
			page: browsertest.AuthenticatorPage(),
			want: types.Classification{State: types.PageStateOnMFA, Challenge: types.MFAChallengeAuthenticatorApp},
		},
		{
			name: "unrecognised challenge",
			page: browsertest.ChallengePage(),
			want: types.Classification{State: types.PageStateOnUnsupportedMFAPage, Challenge: types.MFAChallengeUnsupported},
		},
		{
			name: "provider home page",
			page: browsertest.HomePage(),
			want: types.Classification{State: types.PageStateIndeterminate},
		},
	}

	c := newClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(observe(t, tt.page)))
		})
	}
}

func TestClassify_TargetIsAuthoritative(t *testing.T) {
	c := newClassifier()

	pages := []browsertest.Page{
		browsertest.StaleErrorTargetPage(),
		{URL: browsertest.TargetURL, HTML: browsertest.OTPPage(true).HTML},
		{URL: browsertest.TargetURL, HTML: browsertest.InvalidEmailPage().HTML},
		{URL: browsertest.TargetURL, HTML: browsertest.PushPage().HTML},
	}
	for _, p := range pages {
		obs := observe(t, p)
		assert.Equal(t, types.PageStateOnTarget, c.Classify(obs).State)
		assert.Equal(t, types.AuthErrorKindNone, c.AuthError(obs, true))
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := newClassifier()
	pages := []browsertest.Page{
		browsertest.EmailPage(),
		browsertest.OTPPage(true),
		browsertest.PushPage(),
		browsertest.ChallengePage(),
		browsertest.TargetPage(),
	}
	for _, p := range pages {
		obs := observe(t, p)
		first := c.Classify(obs)
		second := c.Classify(obs)
		assert.Equal(t, first, second)
		assert.Equal(t, c.DetectMFA(obs), c.DetectMFA(obs))
	}
}

func TestIsReAuth_RequiresBothSignals(t *testing.T) {
	c := newClassifier()

	// password field without any session indicator
	obs := observe(t, browsertest.Page{
		URL:  "https://www.amazon.in/ap/signin",
		HTML: `<html><body><input type="password" id="ap_password"></body></html>`,
	})
	assert.False(t, c.IsReAuth(obs))

	// session indicator without a password field
	obs = observe(t, browsertest.Page{
		URL:  browsertest.ReAuthURL,
		HTML: `<html><body><p>Signed in as user@example.com</p></body></html>`,
	})
	assert.False(t, c.IsReAuth(obs))

	obs = observe(t, browsertest.ReAuthPage(browsertest.AccountEmail))
	assert.True(t, c.IsReAuth(obs))
}

func TestAuthError_CodeErrorOnlyOnMFAPage(t *testing.T) {
	c := newClassifier()
	obs := observe(t, browsertest.Page{
		URL:  browsertest.HomeURL,
		HTML: `<html><body><div class="a-alert-content">Incorrect code</div></body></html>`,
	})
	assert.Equal(t, types.AuthErrorKindNone, c.AuthError(obs, false))
	assert.Equal(t, types.AuthErrorKindOTPInvalid, c.AuthError(obs, true))
}

func TestFromHTML_IgnoresHiddenMarkup(t *testing.T) {
	obs := observe(t, browsertest.Page{
		URL: browsertest.SignInURL,
		HTML: `<html><body>
<input type="hidden" name="email" value="user@example.com">
<div style="display: none"><input type="tel" id="auth-mfa-otpcode"></div>
<div class="aok-hidden"><div class="a-alert-content">Your password is incorrect</div></div>
<script>var msg = "incorrect password";</script>
<p>Sign in</p>
</body></html>`,
	})
	assert.False(t, obs.EmailInput)
	assert.False(t, obs.OTPInput)
	assert.Empty(t, obs.AlertText)
	assert.Equal(t, "sign in", obs.Text)
	assert.Equal(t, "/ap/signin", obs.Path)
}

func TestObserve_ReadsSession(t *testing.T) {
	s := browsertest.New(clockwork.NewFakeClock(), browsertest.OTPPage(false))
	obs, err := pagestate.Observe(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, browsertest.MFAURL, obs.URL)
	assert.True(t, obs.OTPInput)
	assert.True(t, obs.CodeInput)
}
