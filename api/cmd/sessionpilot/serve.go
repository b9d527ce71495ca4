package sessionpilot

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helixml/sessionpilot/api/pkg/artifact"
	"github.com/helixml/sessionpilot/api/pkg/config"
	"github.com/helixml/sessionpilot/api/pkg/coordinator"
	"github.com/helixml/sessionpilot/api/pkg/janitor"
	"github.com/helixml/sessionpilot/api/pkg/pubsub"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the companion host.",
		Long:    "Start the companion host that runs acquisitions and relays 2FA codes to them.",
		Example: "SERVER_PORT=5000 sessionpilot serve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server config: %w", err)
			}
			if err := serve(cmd, cfg); err != nil {
				log.Fatal().Err(err).Msg("failed to run server")
			}
			return nil
		},
	}

	serveCmd.Long += "\n\nEnvironment Variables:\n" + generateEnvHelpText(&config.ServerConfig{}, "")

	return serveCmd
}

func getPubSub(cfg config.PubSub) (pubsub.PubSub, error) {
	switch {
	case cfg.Embedded:
		ps, err := pubsub.NewEmbeddedNats("0.0.0.0", cfg.EmbeddedPort)
		if err != nil {
			return nil, err
		}
		log.Info().Str("url", ps.ClientURL()).Msg("embedded nats server started")
		return ps, nil
	case cfg.NATSURL != "":
		return pubsub.NewNats(cfg.NATSURL)
	default:
		return pubsub.NewNoop(), nil
	}
}

func serve(cmd *cobra.Command, cfg config.ServerConfig) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	j := janitor.NewJanitor(janitor.JanitorOptions{SentryDSN: cfg.Janitor.SentryDSN})
	if err := j.Initialize(); err != nil {
		return err
	}

	ps, err := getPubSub(cfg.PubSub)
	if err != nil {
		return err
	}
	defer ps.Close()

	store := coordinator.NewStore(ps, nil)

	sub, err := coordinator.SubscribeEvents(ctx, ps, store)
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	sink, err := artifact.OpenBlobSink(ctx, cfg.Artifact)
	if err != nil {
		return err
	}
	defer sink.Close()

	runner, err := coordinator.NewRunner(ctx, coordinator.RunnerOptions{
		Target:                cfg.Target,
		Timeouts:              cfg.Timeouts,
		MaxConcurrentSessions: cfg.WebServer.MaxConcurrentSessions,
		Bucket:                sink.Bucket(),
		BucketURL:             sink.BucketURL(),
		ArtifactKey:           cfg.Artifact.Key,
		Store:                 store,
		OpenSession:           coordinator.BrowserSessionFactory(cfg.Browser),
		Janitor:               j,
	})
	if err != nil {
		return err
	}

	server, err := coordinator.NewServer(cfg.WebServer, store, runner, j)
	if err != nil {
		return err
	}

	err = server.ListenAndServe(ctx)
	cancel()
	runner.Wait()
	return err
}

