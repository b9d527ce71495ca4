package pagestate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixml/sessionpilot/api/pkg/browser/browsertest"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

func TestDetectMFA(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
		want types.MFAChallenge
	}{
		{
			name: "otp input",
			url:  browsertest.MFAURL,
			body: `<input id="auth-mfa-otpcode" type="tel">`,
			want: types.MFAChallengeOneTimeCode,
		},
		{
			name: "otp wording without input",
			url:  browsertest.MFAURL,
			body: `<p>We sent a text message to your phone</p>`,
			want: types.MFAChallengeOneTimeCode,
		},
		{
			name: "push by url",
			url:  browsertest.PushURL,
			body: `<p>Waiting</p>`,
			want: types.MFAChallengePushApproval,
		},
		{
			name: "push by wording",
			url:  browsertest.MFAURL,
			body: `<p>Approve the notification on your phone</p>`,
			want: types.MFAChallengePushApproval,
		},
		{
			name: "authenticator app",
			url:  browsertest.MFAURL,
			body: `<p>Use Google Authenticator</p>`,
			want: types.MFAChallengeAuthenticatorApp,
		},
		{
			name: "authenticator named by totp",
			url:  browsertest.MFAURL,
			body: `<p>Type the code your TOTP app shows</p>`,
			want: types.MFAChallengeAuthenticatorApp,
		},
		{
			name: "otp abbreviation",
			url:  browsertest.MFAURL,
			body: `<p>Please enter OTP to continue</p>`,
			want: types.MFAChallengeOneTimeCode,
		},
		{
			name: "email code",
			url:  browsertest.MFAURL,
			body: `<p>Check your email for a message from us</p>`,
			want: types.MFAChallengeEmailCode,
		},
		{
			name: "backup code",
			url:  browsertest.MFAURL,
			body: `<p>Use a backup code instead</p>`,
			want: types.MFAChallengeBackupCode,
		},
		{
			name: "generic wording",
			url:  browsertest.MFAURL,
			body: `<h1>Two-Factor Authentication</h1>`,
			want: types.MFAChallengeGeneric,
		},
		{
			name: "generic input",
			url:  browsertest.MFAURL,
			body: `<input type="number" name="pin">`,
			want: types.MFAChallengeGeneric,
		},
		{
			name: "nothing recognisable",
			url:  browsertest.MFAURL,
			body: `<p>Please wait</p>`,
			want: types.MFAChallengeUnsupported,
		},
	}

	c := newClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := observe(t, browsertest.Page{URL: tt.url, HTML: "<html><body>" + tt.body + "</body></html>"})
			assert.True(t, c.IsMFAPage(obs))
			assert.Equal(t, tt.want, c.DetectMFA(obs))
		})
	}
}

// Code inputs beat push markup no matter which push signal is present
func TestDetectMFA_CodeInputBeatsPush(t *testing.T) {
	pushSignals := []struct {
		url  string
		body string
	}{
		{url: browsertest.PushURL, body: ""},
		{url: browsertest.MFAURL, body: "<p>Approve the notification</p>"},
		{url: browsertest.MFAURL, body: "<p>Sent to: +91 ***** **042</p>"},
		{url: browsertest.MFAURL, body: "<p>AmazonShopping app</p>"},
		{url: browsertest.MFAURL, body: "<p>Check your device</p>"},
		{url: "https://www.amazon.in/ap/cv/transactionapprox", body: ""},
	}
	otpInputs := []string{
		`<input id="auth-mfa-otpcode">`,
		`<input name="otpCode">`,
		`<input name="code">`,
		`<input type="tel">`,
		`<input inputmode="numeric">`,
	}

	c := newClassifier()
	for _, signal := range pushSignals {
		for _, input := range otpInputs {
			obs := observe(t, browsertest.Page{
				URL:  signal.url,
				HTML: "<html><body>" + signal.body + input + "</body></html>",
			})
			assert.True(t, c.IsPushPage(obs), "fixture must carry push markup")
			assert.Equal(t, types.MFAChallengeOneTimeCode, c.DetectMFA(obs), "url=%s body=%s input=%s", signal.url, signal.body, input)
			assert.Equal(t, types.PageStateOnMFA, c.Classify(obs).State)
		}
	}
}
