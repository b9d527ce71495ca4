package pagestate

import (
	"strings"

	"github.com/helixml/sessionpilot/api/pkg/types"
)

var (
	signInPaths = []string{"/ap/signin", "/ap/login"}
	reAuthPaths = []string{"/ap/re-auth", "/ap/mfa/"}

	sessionIndicatorPhrases = []string{
		"signed in as",
		"hello,",
		"re-auth",
		"reauth",
		"verify it's you",
		"verify your identity",
	}

	pushURLFragments = []string{"/ap/cv/", "transactionapprox"}
	pushPhrases      = []string{
		"approve the notification",
		"sent to:",
		"amazonshopping",
		"check your device",
	}

	mfaPhrases = []string{
		"two-step verification",
		"two-factor authentication",
		"2-step verification",
		"verification code",
		"enter code",
	}
	mfaPathFragments = []string{"mfa", "otp", "verify"}

	invalidEmailPhrases      = []string{"cannot find an account", "no account found"}
	incorrectPasswordPhrases = []string{"password is incorrect", "incorrect password"}
	invalidCodePhrases       = []string{"code you entered is not valid", "incorrect code", "invalid otp"}
)

// Classifier answers questions about a single Observation. It holds no
// state between calls.
type Classifier struct {
	// TargetPathPrefix is the path the provider lands on once signed in
	TargetPathPrefix string
	// AccountEmail is looked for on the page to recognise re-auth prompts
	AccountEmail string
}

func NewClassifier(targetPathPrefix, accountEmail string) *Classifier {
	return &Classifier{
		TargetPathPrefix: strings.ToLower(targetPathPrefix),
		AccountEmail:     strings.ToLower(accountEmail),
	}
}

func (c *Classifier) IsTarget(obs *Observation) bool {
	return c.TargetPathPrefix != "" && strings.HasPrefix(obs.Path, c.TargetPathPrefix)
}

func (c *Classifier) NeedsFullLogin(obs *Observation) bool {
	return obs.EmailInput || containsAny(obs.Path, signInPaths)
}

// IsReAuth needs a password field and a sign that a session already exists,
// a bare password step of a fresh login has only the former
func (c *Classifier) IsReAuth(obs *Observation) bool {
	if !obs.PasswordInput {
		return false
	}
	if c.AccountEmail != "" && strings.Contains(obs.Text, c.AccountEmail) {
		return true
	}
	return containsAny(obs.Text, sessionIndicatorPhrases) || containsAny(obs.Path, reAuthPaths)
}

// IsPushPage reports the raw push indicators. Use DetectMFA to decide
// between a push page and a code page carrying similar markup.
func (c *Classifier) IsPushPage(obs *Observation) bool {
	lowerURL := strings.ToLower(obs.URL)
	return containsAny(lowerURL, pushURLFragments) || containsAny(obs.Source, pushPhrases)
}

func (c *Classifier) IsMFAPage(obs *Observation) bool {
	if obs.OTPInput {
		return true
	}
	if c.IsPushPage(obs) {
		return true
	}
	if containsAny(obs.Text, mfaPhrases) {
		return true
	}
	return strings.Contains(obs.Path, "/ap/") && containsAny(obs.Path, mfaPathFragments)
}

// IsUnrecognizedAuthPage is any provider auth page that is neither the
// target nor an MFA page we know how to resolve
func (c *Classifier) IsUnrecognizedAuthPage(obs *Observation) bool {
	if c.IsTarget(obs) {
		return false
	}
	if c.IsMFAPage(obs) && c.DetectMFA(obs) != types.MFAChallengeUnsupported {
		return false
	}
	return strings.Contains(obs.Path, "/ap/")
}

// AuthError returns the error the page is showing, if any. Code errors are
// only reported while onMFA since a stale message can linger after
// navigation. Nothing is reported on the target page.
func (c *Classifier) AuthError(obs *Observation, onMFA bool) types.AuthErrorKind {
	if c.IsTarget(obs) {
		return types.AuthErrorKindNone
	}
	switch {
	case containsAny(obs.AlertText, invalidEmailPhrases) || containsAny(obs.Text, invalidEmailPhrases):
		return types.AuthErrorKindInvalidEmail
	case containsAny(obs.AlertText, incorrectPasswordPhrases) || containsAny(obs.Text, incorrectPasswordPhrases):
		return types.AuthErrorKindIncorrectPassword
	case onMFA && (containsAny(obs.AlertText, invalidCodePhrases) || containsAny(obs.Text, invalidCodePhrases)):
		return types.AuthErrorKindOTPInvalid
	}
	return types.AuthErrorKindNone
}

// Classify runs the predicates in priority order. The target check is
// authoritative and nothing else is looked at when it matches.
func (c *Classifier) Classify(obs *Observation) types.Classification {
	if c.IsTarget(obs) {
		return types.Classification{State: types.PageStateOnTarget}
	}

	onMFA := c.IsMFAPage(obs)
	if kind := c.AuthError(obs, onMFA); kind != types.AuthErrorKindNone {
		return types.Classification{State: types.PageStateAuthError, ErrorKind: kind}
	}

	if onMFA {
		challenge := c.DetectMFA(obs)
		switch challenge {
		case types.MFAChallengePushApproval:
			return types.Classification{State: types.PageStateOnPush, Challenge: challenge}
		case types.MFAChallengeUnsupported:
			return types.Classification{State: types.PageStateOnUnsupportedMFAPage, Challenge: challenge}
		default:
			return types.Classification{State: types.PageStateOnMFA, Challenge: challenge}
		}
	}

	switch {
	case c.NeedsFullLogin(obs):
		return types.Classification{State: types.PageStateNeedsFullLogin}
	case c.IsReAuth(obs):
		return types.Classification{State: types.PageStateReAuth}
	case c.IsUnrecognizedAuthPage(obs):
		return types.Classification{State: types.PageStateOnUnsupportedMFAPage, Challenge: types.MFAChallengeUnsupported}
	}
	return types.Classification{State: types.PageStateIndeterminate}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
