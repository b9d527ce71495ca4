package janitor

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"

	"github.com/helixml/sessionpilot/api/pkg/system"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

type JanitorOptions struct {
	SentryDSN string
}

// Janitor reports unexpected failures to Sentry. Without a DSN every method
// is a no-op.
type Janitor struct {
	Options JanitorOptions
}

func NewJanitor(opts JanitorOptions) *Janitor {
	return &Janitor{
		Options: opts,
	}
}

func (j *Janitor) Initialize() error {
	if j.Options.SentryDSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              j.Options.SentryDSN,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	system.SetHTTPErrorHandler(func(err *system.HTTPError, req *http.Request) {
		hub := sentry.GetHubFromContext(req.Context())
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.CaptureException(err)
	})
	return nil
}

// allows the janitor to attach middleware to the router
// before all the routes
func (j *Janitor) InjectMiddleware(router *mux.Router) {
	if j.Options.SentryDSN != "" {
		router.Use(SentryMiddleware)
	}
}

// CaptureOutcome sends Generic failures to Sentry. Classified failures are
// expected behaviour of the provider and are not reported.
func (j *Janitor) CaptureOutcome(requestID string, outcome *types.Outcome) {
	if j.Options.SentryDSN == "" || outcome.Kind() != types.AuthErrorKindGeneric {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", requestID)
		scope.SetTag("kind", string(outcome.Err.Kind))
		scope.SetExtra("url", outcome.Err.URL)
		sentry.CaptureException(outcome.Err)
	})
}

func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
			r = r.WithContext(sentry.SetHubOnContext(r.Context(), hub))
		}

		defer func() {
			if err := recover(); err != nil {
				hub.Recover(err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
