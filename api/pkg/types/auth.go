package types

import (
	"fmt"
	"time"
)

// AuthErrorKind classifies why an acquisition failed
type AuthErrorKind string

const (
	AuthErrorKindNone               AuthErrorKind = ""
	AuthErrorKindInvalidEmail       AuthErrorKind = "INVALID_EMAIL"
	AuthErrorKindIncorrectPassword  AuthErrorKind = "INCORRECT_PASSWORD"
	AuthErrorKindOTPInvalid         AuthErrorKind = "INVALID_OTP"
	AuthErrorKindPushDenied         AuthErrorKind = "PUSH_NOTIFICATION_DENIED"
	AuthErrorKindUnsupportedMFAPage AuthErrorKind = "UNKNOWN_2FA_PAGE"
	AuthErrorKindTimeout            AuthErrorKind = "TIMEOUT"
	AuthErrorKindGeneric            AuthErrorKind = "GENERIC"
)

func ValidateAuthErrorKind(kind string) (AuthErrorKind, error) {
	switch AuthErrorKind(kind) {
	case AuthErrorKindInvalidEmail,
		AuthErrorKindIncorrectPassword,
		AuthErrorKindOTPInvalid,
		AuthErrorKindPushDenied,
		AuthErrorKindUnsupportedMFAPage,
		AuthErrorKindTimeout,
		AuthErrorKindGeneric:
		return AuthErrorKind(kind), nil
	default:
		return AuthErrorKindNone, fmt.Errorf("invalid auth error kind: %s", kind)
	}
}

// Message is the operator facing explanation for the kind. Every kind other
// than Generic has its own wording.
func (k AuthErrorKind) Message() string {
	switch k {
	case AuthErrorKindInvalidEmail:
		return "No account was found for this email address. Check the email and try again."
	case AuthErrorKindIncorrectPassword:
		return "The password is incorrect for this account."
	case AuthErrorKindOTPInvalid:
		return "The verification code was not accepted. Request a new code and try again."
	case AuthErrorKindPushDenied:
		return "The sign-in request was denied on your device."
	case AuthErrorKindUnsupportedMFAPage:
		return "This account requires a verification method that cannot be completed automatically."
	case AuthErrorKindTimeout:
		return "Timed out waiting for the sign-in to complete."
	default:
		return "An unexpected error occurred during authentication."
	}
}

// ExitCode maps the kind onto the process exit status used by the acquire command
func (k AuthErrorKind) ExitCode() int {
	switch k {
	case AuthErrorKindNone:
		return 0
	case AuthErrorKindInvalidEmail:
		return 2
	case AuthErrorKindIncorrectPassword:
		return 3
	case AuthErrorKindOTPInvalid:
		return 4
	case AuthErrorKindPushDenied:
		return 5
	case AuthErrorKindUnsupportedMFAPage:
		return 6
	case AuthErrorKindTimeout:
		return 7
	default:
		return 1
	}
}

// AuthError is the error form of a terminal failure
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	// URL is the last page seen before the failure, for diagnostics
	URL string
	// Cause is the underlying error behind a Generic failure
	Cause error
}

func NewAuthError(kind AuthErrorKind, url string) *AuthError {
	return &AuthError{
		Kind:    kind,
		Message: kind.Message(),
		URL:     url,
	}
}

func (e *AuthError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: %s (url: %s)", e.Kind, e.Message, e.URL)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// MFAChallenge is the kind of second factor the provider is asking for
type MFAChallenge string

const (
	MFAChallengeNone             MFAChallenge = ""
	MFAChallengeOneTimeCode      MFAChallenge = "OTP (SMS/Voice)"
	MFAChallengePushApproval     MFAChallenge = "Push Notification"
	MFAChallengeAuthenticatorApp MFAChallenge = "Authenticator App"
	MFAChallengeEmailCode        MFAChallenge = "Email OTP"
	MFAChallengeBackupCode       MFAChallenge = "Backup Code"
	MFAChallengeGeneric          MFAChallenge = "Generic 2FA"
	MFAChallengeUnsupported      MFAChallenge = "Unknown 2FA Method"
)

// Instruction is the message relayed to the human with a challenge
func (c MFAChallenge) Instruction() string {
	switch c {
	case MFAChallengePushApproval:
		return "Please check your device and approve the push notification"
	case MFAChallengeAuthenticatorApp:
		return "Please enter the code shown in your authenticator app"
	case MFAChallengeEmailCode:
		return "Please enter the verification code sent to your email"
	case MFAChallengeBackupCode:
		return "Please enter one of your backup codes"
	case MFAChallengeUnsupported:
		return "This verification method is not supported"
	default:
		return "Please enter the verification code sent to your device"
	}
}

// PageState is the classified state of the current page
type PageState string

const (
	PageStateIndeterminate        PageState = "indeterminate"
	PageStateOnTarget             PageState = "on_target"
	PageStateNeedsFullLogin       PageState = "needs_full_login"
	PageStateReAuth               PageState = "reauth"
	PageStateOnMFA                PageState = "on_mfa"
	PageStateOnPush               PageState = "on_push"
	PageStateOnUnsupportedMFAPage PageState = "on_unsupported_mfa"
	PageStateAuthError            PageState = "auth_error"
)

// Classification is the result of classifying one observation. ErrorKind is
// only set when State is PageStateAuthError.
type Classification struct {
	State     PageState
	ErrorKind AuthErrorKind
	Challenge MFAChallenge
}

// Cookie is a browser cookie in the WebDriver JSON shape the downstream
// fetchers read
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expiry   int64  `json:"expiry,omitempty"`
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
	SameSite string `json:"sameSite,omitempty"`
}

// SessionArtifact is the result of a successful acquisition
type SessionArtifact struct {
	Cookies    []*Cookie `json:"cookies"`
	URL        string    `json:"url"`
	AcquiredAt time.Time `json:"acquired_at"`
	// Location is where the sink persisted the cookies, empty when not persisted
	Location string `json:"location,omitempty"`
}

// Outcome is the single terminal result of a Session
type Outcome struct {
	Artifact *SessionArtifact
	Err      *AuthError
}

func (o *Outcome) Success() bool {
	return o != nil && o.Err == nil && o.Artifact != nil
}

func (o *Outcome) Kind() AuthErrorKind {
	if o == nil || o.Err == nil {
		return AuthErrorKindNone
	}
	return o.Err.Kind
}

// AcquisitionStatus is the host side lifecycle of one acquisition
type AcquisitionStatus string

const (
	AcquisitionStatusPending   AcquisitionStatus = "pending"
	AcquisitionStatusRunning   AcquisitionStatus = "running"
	AcquisitionStatusAwaiting  AcquisitionStatus = "awaiting_2fa"
	AcquisitionStatusSucceeded AcquisitionStatus = "succeeded"
	AcquisitionStatusFailed    AcquisitionStatus = "failed"
	AcquisitionStatusCancelled AcquisitionStatus = "cancelled"
)

// Acquisition is the host's record for one correlation id
type Acquisition struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	Status       AcquisitionStatus `json:"status"`
	Method       MFAChallenge      `json:"method,omitempty"`
	Message      string            `json:"message,omitempty"`
	ErrorKind    AuthErrorKind     `json:"error,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	OTPAttempts  int               `json:"otp_attempts"`
	CookieCount  int               `json:"cookie_count,omitempty"`
	Location     string            `json:"location,omitempty"`
	Created      time.Time         `json:"created"`
	Updated      time.Time         `json:"updated"`
	Age          string            `json:"age,omitempty"`

	OTP          string `json:"-"`
	Confirmed2FA bool   `json:"-"`
}

// CreateAcquisitionRequest starts an acquisition on the host
type CreateAcquisitionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChallengeUpdate is sent by a Session when it detects an MFA challenge
type ChallengeUpdate struct {
	Method  MFAChallenge `json:"method"`
	Message string       `json:"message"`
}

// CodeResponse answers a Session's poll for a human supplied code
type CodeResponse struct {
	OTP              string `json:"otp,omitempty"`
	UserConfirmed2FA bool   `json:"userConfirmed2FA"`
}

// ErrorReport is sent by a Session when it classifies an error
type ErrorReport struct {
	Error   AuthErrorKind `json:"error"`
	Message string        `json:"message"`
}

// SuccessReport is sent by a Session once cookies are persisted
type SuccessReport struct {
	CookieCount int    `json:"cookieCount"`
	Location    string `json:"location"`
}

// SubmitOTPRequest carries a code typed by the human
type SubmitOTPRequest struct {
	OTP string `json:"otp"`
}

type AcquisitionEventType string

const (
	AcquisitionEventChallenge   AcquisitionEventType = "challenge"
	AcquisitionEventError       AcquisitionEventType = "error"
	AcquisitionEventSuccess     AcquisitionEventType = "success"
	AcquisitionEventCodeCleared AcquisitionEventType = "code_cleared"
)

// AcquisitionEvent is a session report sent over the message bus. Exactly
// one of the payload fields is set, matching Type.
type AcquisitionEvent struct {
	RequestID string               `json:"request_id"`
	Type      AcquisitionEventType `json:"type"`
	Challenge *ChallengeUpdate     `json:"challenge,omitempty"`
	Error     *ErrorReport         `json:"error,omitempty"`
	Success   *SuccessReport       `json:"success,omitempty"`
}
