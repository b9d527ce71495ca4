package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AcquireConfig drives a single cookie acquisition
type AcquireConfig struct {
	Account      Account
	Target       Target
	Browser      Browser
	Timeouts     Timeouts
	Coordination Coordination
	Artifact     Artifact

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" description:"One of trace, debug, info, warn, error."`
}

func LoadAcquireConfig() (AcquireConfig, error) {
	var cfg AcquireConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return AcquireConfig{}, err
	}
	if err := cfg.Timeouts.Validate(); err != nil {
		return AcquireConfig{}, err
	}
	return cfg, nil
}

// ServerConfig drives the companion host that runs acquisitions in-process
type ServerConfig struct {
	WebServer WebServer
	Target    Target
	Browser   Browser
	Timeouts  Timeouts
	Artifact  Artifact
	Janitor   Janitor
	PubSub    PubSub

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" description:"One of trace, debug, info, warn, error."`
}

func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Timeouts.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

type Account struct {
	Email    string `envconfig:"AMAZON_EMAIL" required:"true" description:"Account identifier used to sign in."`
	Password string `envconfig:"AMAZON_PASSWORD" required:"true" description:"Account secret used to sign in."`
	// TOTPSecret lets authenticator app challenges be answered locally
	TOTPSecret string `envconfig:"AMAZON_TOTP_SECRET" description:"Base32 authenticator secret, enables local TOTP codes."`
}

type Target struct {
	URL        string `envconfig:"TARGET_URL" default:"https://www.amazon.in/alexa-privacy/apd/rvh" description:"Page that proves the session is authenticated."`
	PathPrefix string `envconfig:"TARGET_PATH_PREFIX" default:"/alexa-privacy/apd/" description:"URL path prefix of the post-authentication destination."`
}

type Browser struct {
	Headless   bool   `envconfig:"HEADLESS" default:"true" description:"Run Chrome without a window."`
	ChromeBin  string `envconfig:"CHROME_BIN" description:"Chrome binary to launch, downloaded when empty."`
	ChromeURL  string `envconfig:"CHROME_URL" description:"DevTools endpoint of an already running Chrome. Launches locally when empty."`
	ProfileDir string `envconfig:"PROFILE_DIR" default:"chrome-user-data" description:"Browser profile directory reused while credentials are unchanged."`
	// Leakless kills the browser if this process dies without cleanup
	Leakless bool `envconfig:"BROWSER_LEAKLESS" default:"true" description:"Guard the launched browser with leakless."`
}

type Timeouts struct {
	SettleDelay      time.Duration `envconfig:"SETTLE_DELAY" default:"5s" description:"Wait after navigation for redirects to settle."`
	StepDelay        time.Duration `envconfig:"STEP_DELAY" default:"2s" description:"Wait after each login form submission."`
	OTPSubmitSettle  time.Duration `envconfig:"OTP_SUBMIT_SETTLE" default:"5s" description:"Wait after submitting a code before judging the result."`
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"2s" description:"Interval between code polls."`
	PushPollInterval time.Duration `envconfig:"PUSH_POLL_INTERVAL" default:"5s" description:"Interval between page checks while waiting for push approval."`
	MFAPollTimeout   time.Duration `envconfig:"MFA_POLL_TIMEOUT" default:"10m" description:"How long to wait for a human supplied code."`
	PushTimeout      time.Duration `envconfig:"PUSH_TIMEOUT" default:"3m" description:"How long to wait for push approval."`
	RedirectTimeout  time.Duration `envconfig:"REDIRECT_TIMEOUT" default:"3m" description:"How long to wait for the final redirect after 2FA."`

	MaxOTPAttempts       int `envconfig:"MAX_OTP_ATTEMPTS" default:"4" description:"Rejected codes tolerated before failing."`
	ManualMaxOTPAttempts int `envconfig:"MANUAL_MAX_OTP_ATTEMPTS" default:"10" description:"Rejected codes tolerated in manual mode."`
}

func (t Timeouts) Validate() error {
	durations := map[string]time.Duration{
		"SETTLE_DELAY":       t.SettleDelay,
		"STEP_DELAY":         t.StepDelay,
		"OTP_SUBMIT_SETTLE":  t.OTPSubmitSettle,
		"POLL_INTERVAL":      t.PollInterval,
		"PUSH_POLL_INTERVAL": t.PushPollInterval,
		"MFA_POLL_TIMEOUT":   t.MFAPollTimeout,
		"PUSH_TIMEOUT":       t.PushTimeout,
		"REDIRECT_TIMEOUT":   t.RedirectTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if t.MaxOTPAttempts < 1 {
		return fmt.Errorf("MAX_OTP_ATTEMPTS must be at least 1, got %d", t.MaxOTPAttempts)
	}
	if t.ManualMaxOTPAttempts < 1 {
		return fmt.Errorf("MANUAL_MAX_OTP_ATTEMPTS must be at least 1, got %d", t.ManualMaxOTPAttempts)
	}
	return nil
}

type CoordinationMode string

const (
	CoordinationModeAuto    CoordinationMode = "auto"
	CoordinationModeHTTP    CoordinationMode = "http"
	CoordinationModeNATS    CoordinationMode = "nats"
	CoordinationModeConsole CoordinationMode = "console"
)

type Coordination struct {
	// RequestID multiplexes the channel across concurrent sessions. Manual
	// mode is used when it is empty.
	RequestID      string           `envconfig:"REQUEST_ID" description:"Correlation id assigned by the host."`
	Mode           CoordinationMode `envconfig:"COORDINATION_MODE" default:"auto" description:"One of auto, http, nats, console."`
	CoordinatorURL string           `envconfig:"COORDINATOR_URL" default:"http://127.0.0.1:5000" description:"Base URL of the companion host."`
	NATSURL        string           `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222" description:"NATS server used when mode is nats."`
	RetryMax       int              `envconfig:"COORDINATOR_RETRY_MAX" default:"3" description:"Retries for calls to the companion host."`
}

// ResolvedMode turns auto into a concrete mode
func (c Coordination) ResolvedMode() CoordinationMode {
	if c.Mode != CoordinationModeAuto && c.Mode != "" {
		return c.Mode
	}
	if c.RequestID == "" {
		return CoordinationModeConsole
	}
	return CoordinationModeHTTP
}

// Manual reports whether a person at the console resolves MFA
func (c Coordination) Manual() bool {
	return c.ResolvedMode() == CoordinationModeConsole
}

type Artifact struct {
	BucketURL string `envconfig:"ARTIFACT_BUCKET_URL" default:"file://backend" description:"gocloud.dev bucket URL the cookie jar is written to."`
	Key       string `envconfig:"ARTIFACT_KEY" default:"cookies.json" description:"Object key of the cookie jar."`
}

type WebServer struct {
	Host                  string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port                  int    `envconfig:"SERVER_PORT" default:"5000"`
	MaxConcurrentSessions int    `envconfig:"MAX_CONCURRENT_SESSIONS" default:"4" description:"Acquisitions allowed to run at once."`
}

// PubSub carries reports from sessions started outside the host
type PubSub struct {
	NATSURL string `envconfig:"NATS_URL" description:"NATS server to bridge session reports from. Disabled when empty and not embedded."`
	// Embedded starts a NATS server inside the host; sessions connect to it
	// on EmbeddedPort.
	Embedded     bool `envconfig:"NATS_EMBEDDED" default:"false" description:"Run an in-process NATS server."`
	EmbeddedPort int  `envconfig:"NATS_EMBEDDED_PORT" default:"4222" description:"Port of the in-process NATS server."`
}

type Janitor struct {
	SentryDSN string `envconfig:"SENTRY_DSN" description:"Report unexpected failures to Sentry."`
}
