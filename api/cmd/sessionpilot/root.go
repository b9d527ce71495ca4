package sessionpilot

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Fatal = FatalErrorHandler

func NewRootCmd() *cobra.Command {
	var logLevel string

	RootCmd := &cobra.Command{
		Use:   getCommandLineExecutable(),
		Short: "Session Pilot",
		Long:  `Signs in to an account through a real browser, resolves 2FA with a human and saves the session cookies.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd, logLevel)
		},
	}
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "One of trace, debug, info, warn, error. Overrides LOG_LEVEL.")

	RootCmd.AddCommand(newAcquireCmd())
	RootCmd.AddCommand(newServeCmd())
	RootCmd.AddCommand(newVersionCommand())

	return RootCmd
}

func Execute() {
	RootCmd := NewRootCmd()
	RootCmd.SetContext(context.Background())
	RootCmd.SetOutput(os.Stdout)

	if err := RootCmd.Execute(); err != nil {
		Fatal(RootCmd, err.Error(), 1)
	}
}

// setupLogging writes human readable logs to stderr, stdout is left to the
// console channel
func setupLogging(cmd *cobra.Command, flagLevel string) {
	levelName := flagLevel
	if levelName == "" {
		levelName = os.Getenv("LOG_LEVEL")
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
}
