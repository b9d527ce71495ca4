package coordinator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"gocloud.dev/blob"

	"github.com/helixml/sessionpilot/api/pkg/artifact"
	"github.com/helixml/sessionpilot/api/pkg/authflow"
	"github.com/helixml/sessionpilot/api/pkg/browser"
	"github.com/helixml/sessionpilot/api/pkg/config"
	"github.com/helixml/sessionpilot/api/pkg/janitor"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

// SessionFactory opens the browser a single acquisition runs in
type SessionFactory func(ctx context.Context, req *types.CreateAcquisitionRequest) (browser.Session, error)

// BrowserSessionFactory launches Chrome with a profile per account
func BrowserSessionFactory(cfg config.Browser) SessionFactory {
	return func(ctx context.Context, req *types.CreateAcquisitionRequest) (browser.Session, error) {
		key := browser.ProfileKey(req.Email, req.Password)
		dir := filepath.Join(cfg.ProfileDir, key)
		reused, err := browser.PrepareProfile(dir, key)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("profile", dir).Bool("reused", reused).Msg("prepared browser profile")

		session, err := browser.Open(ctx, cfg, dir)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

type RunnerOptions struct {
	Target                config.Target
	Timeouts              config.Timeouts
	MaxConcurrentSessions int
	// Bucket receives each acquisition's cookies under <id>/<ArtifactKey>.
	// Nothing is persisted when it is nil.
	Bucket      *blob.Bucket
	BucketURL   string
	ArtifactKey string

	Store       *Store
	OpenSession SessionFactory
	Janitor     *janitor.Janitor
	Clock       clockwork.Clock
}

// Runner runs acquisitions inside the host process. At most
// MaxConcurrentSessions browsers are open at once; the rest wait as pending.
type Runner struct {
	opts    RunnerOptions
	ctx     context.Context
	slots   chan struct{}
	wg      conc.WaitGroup
	cancels *xsync.MapOf[string, context.CancelFunc]
}

func NewRunner(ctx context.Context, opts RunnerOptions) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.OpenSession == nil {
		return nil, errors.New("session factory is required")
	}
	if opts.MaxConcurrentSessions < 1 {
		return nil, fmt.Errorf("max concurrent sessions must be at least 1, got %d", opts.MaxConcurrentSessions)
	}
	if opts.Janitor == nil {
		opts.Janitor = janitor.NewJanitor(janitor.JanitorOptions{})
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Runner{
		opts:    opts,
		ctx:     ctx,
		slots:   make(chan struct{}, opts.MaxConcurrentSessions),
		cancels: xsync.NewMapOf[string, context.CancelFunc](),
	}, nil
}

func (r *Runner) Start(req *types.CreateAcquisitionRequest) (types.Acquisition, error) {
	if req.Email == "" || req.Password == "" {
		return types.Acquisition{}, errors.New("email and password are required")
	}

	acq := r.opts.Store.Create(req.Email)
	ctx, cancel := context.WithCancel(r.ctx)
	r.cancels.Store(acq.ID, cancel)

	r.wg.Go(func() {
		defer r.cancels.Delete(acq.ID)
		defer cancel()
		r.run(ctx, acq.ID, req)
	})
	return acq, nil
}

// Cancel stops a pending or running acquisition. Its browser is closed by
// the session on the way out.
func (r *Runner) Cancel(id string) error {
	cancel, ok := r.cancels.Load(id)
	if !ok {
		return ErrNotFound
	}
	if err := r.opts.Store.SetStatus(id, types.AcquisitionStatusCancelled); err != nil {
		return err
	}
	cancel()
	return nil
}

// Wait blocks until every started acquisition has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, id string, req *types.CreateAcquisitionRequest) {
	logger := log.With().Str("request_id", id).Logger()

	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		logger.Info().Msg("acquisition cancelled before it started")
		return
	}
	defer func() { <-r.slots }()

	if err := r.opts.Store.SetStatus(id, types.AcquisitionStatusRunning); err != nil {
		logger.Warn().Err(err).Msg("failed to mark acquisition running")
	}

	var (
		outcome *types.Outcome
		pc      panics.Catcher
	)
	pc.Try(func() {
		outcome = r.acquire(ctx, id, req)
	})
	if recovered := pc.Recovered(); recovered != nil {
		logger.Error().Str("panic", recovered.String()).Msg("acquisition panicked")
		outcome = &types.Outcome{Err: &types.AuthError{
			Kind:    types.AuthErrorKindGeneric,
			Message: types.AuthErrorKindGeneric.Message(),
			Cause:   recovered.AsError(),
		}}
	}

	if err := r.opts.Store.Finish(id, outcome); err != nil {
		logger.Warn().Err(err).Msg("failed to record outcome")
	}
	r.opts.Janitor.CaptureOutcome(id, outcome)
	logger.Info().Str("kind", string(outcome.Kind())).Bool("success", outcome.Success()).Msg("acquisition finished")
}

func (r *Runner) acquire(ctx context.Context, id string, req *types.CreateAcquisitionRequest) *types.Outcome {
	channel := NewLocalChannel(r.opts.Store, id)

	session, err := r.opts.OpenSession(ctx, req)
	if err != nil {
		authErr := &types.AuthError{
			Kind:    types.AuthErrorKindGeneric,
			Message: types.AuthErrorKindGeneric.Message(),
			Cause:   fmt.Errorf("failed to open browser: %w", err),
		}
		_ = channel.ReportError(ctx, authErr.Kind, authErr.Message)
		return &types.Outcome{Err: authErr}
	}

	opts := authflow.Options{
		Session: session,
		Channel: channel,
		Clock:   r.opts.Clock,
	}
	if r.opts.Bucket != nil {
		opts.Sink = artifact.NewBlobSink(r.opts.Bucket, r.opts.BucketURL, path.Join(id, r.opts.ArtifactKey))
	}

	orchestrator, err := authflow.New(authflow.Config{
		TargetURL:        r.opts.Target.URL,
		TargetPathPrefix: r.opts.Target.PathPrefix,
		Email:            req.Email,
		Password:         req.Password,
		RequestID:        id,
		Timeouts:         r.opts.Timeouts,
	}, opts)
	if err != nil {
		_ = session.Close()
		return &types.Outcome{Err: &types.AuthError{
			Kind:    types.AuthErrorKindGeneric,
			Message: types.AuthErrorKindGeneric.Message(),
			Cause:   err,
		}}
	}
	return orchestrator.Run(ctx)
}
