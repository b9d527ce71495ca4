package pagestate

import (
	"github.com/helixml/sessionpilot/api/pkg/types"
)

var (
	otpPhrases = []string{
		"(otp)",
		"enter otp",
		"one time password",
		"one-time password",
		"verification code",
		"text message",
		"sms",
		"sent a code",
		"sent an otp",
		"enter code",
	}
	authenticatorPhrases = []string{
		"authenticator app",
		"authentication app",
		"virtual mfa",
		"time-based one-time password",
		"totp",
		"google authenticator",
		"microsoft authenticator",
		"authy",
	}
	emailCodePhrases = []string{
		"email verification",
		"sent code to your email",
		"sent code to your inbox",
		"check your email",
		"code to your email",
	}
	backupCodePhrases = []string{
		"backup code",
		"recovery code",
		"emergency access",
	}
	genericMFAPhrases = []string{
		"two-step verification",
		"two-factor authentication",
		"2-step verification",
	}
)

// DetectMFA decides which challenge an MFA page is showing. The groups are
// checked in a fixed order and the first match wins: a code input or code
// wording always beats push markup.
func (c *Classifier) DetectMFA(obs *Observation) types.MFAChallenge {
	switch {
	case obs.OTPInput || containsAny(obs.Text, otpPhrases):
		return types.MFAChallengeOneTimeCode
	case c.IsPushPage(obs):
		return types.MFAChallengePushApproval
	case containsAny(obs.Text, authenticatorPhrases):
		return types.MFAChallengeAuthenticatorApp
	case containsAny(obs.Text, emailCodePhrases):
		return types.MFAChallengeEmailCode
	case containsAny(obs.Text, backupCodePhrases):
		return types.MFAChallengeBackupCode
	case containsAny(obs.Text, genericMFAPhrases) || obs.CodeInput:
		return types.MFAChallengeGeneric
	}
	return types.MFAChallengeUnsupported
}
