package sessionpilot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helixml/sessionpilot/api/pkg/artifact"
	"github.com/helixml/sessionpilot/api/pkg/authflow"
	"github.com/helixml/sessionpilot/api/pkg/browser"
	"github.com/helixml/sessionpilot/api/pkg/config"
	"github.com/helixml/sessionpilot/api/pkg/coordination"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

func newAcquireCmd() *cobra.Command {
	acquireCmd := &cobra.Command{
		Use:   "acquire",
		Short: "Sign in once and save the session cookies.",
		Long: `Sign in once and save the session cookies.

The process exits with 0 on success, 2 for an unknown email, 3 for a wrong
password, 4 when verification codes keep being rejected, 5 when a push
approval is denied, 6 for an unsupported 2FA page, 7 on timeout and 1 for
anything else.`,
		Example: "AMAZON_EMAIL=me@example.com AMAZON_PASSWORD=... sessionpilot acquire",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadAcquireConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			outcome, err := acquire(cmd, cfg)
			if err != nil {
				return err
			}
			code := outcome.Kind().ExitCode()
			if code != 0 {
				Fatal(cmd, outcome.Err.Error(), code)
			}
			return nil
		},
	}

	acquireCmd.Long += "\n\nEnvironment Variables:\n" + generateEnvHelpText(&config.AcquireConfig{}, "")

	return acquireCmd
}

// acquire runs one session. Errors are returned only for setup failures;
// sign-in failures are part of the outcome.
func acquire(cmd *cobra.Command, cfg config.AcquireConfig) (*types.Outcome, error) {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	channel, closeChannel, err := coordination.New(ctx, cfg.Coordination, cfg.Account, os.Stdin, cmd.OutOrStdout())
	if err != nil {
		return nil, fmt.Errorf("failed to set up coordination: %w", err)
	}
	defer closeChannel()

	maxAttempts := cfg.Timeouts.MaxOTPAttempts
	if cfg.Coordination.Manual() {
		maxAttempts = cfg.Timeouts.ManualMaxOTPAttempts
	}

	sink, err := artifact.OpenBlobSink(ctx, cfg.Artifact)
	if err != nil {
		return nil, err
	}
	defer sink.Close()

	key := browser.ProfileKey(cfg.Account.Email, cfg.Account.Password)
	reused, err := browser.PrepareProfile(cfg.Browser.ProfileDir, key)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("profile", cfg.Browser.ProfileDir).Bool("reused", reused).Msg("prepared browser profile")

	session, err := browser.Open(ctx, cfg.Browser, cfg.Browser.ProfileDir)
	if err != nil {
		authErr := &types.AuthError{
			Kind:    types.AuthErrorKindGeneric,
			Message: types.AuthErrorKindGeneric.Message(),
			Cause:   fmt.Errorf("failed to open browser: %w", err),
		}
		_ = channel.ReportError(context.WithoutCancel(ctx), authErr.Kind, authErr.Message)
		log.Error().Err(err).Msg("failed to open browser")
		return &types.Outcome{Err: authErr}, nil
	}

	orchestrator, err := authflow.New(authflow.Config{
		TargetURL:        cfg.Target.URL,
		TargetPathPrefix: cfg.Target.PathPrefix,
		Email:            cfg.Account.Email,
		Password:         cfg.Account.Password,
		RequestID:        cfg.Coordination.RequestID,
		Timeouts:         cfg.Timeouts,
		MaxOTPAttempts:   maxAttempts,
	}, authflow.Options{
		Session: session,
		Channel: channel,
		Sink:    sink,
	})
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	return orchestrator.Run(ctx), nil
}
