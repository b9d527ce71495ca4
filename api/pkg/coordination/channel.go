package coordination

import (
	"context"

	"github.com/helixml/sessionpilot/api/pkg/types"
)

//go:generate mockgen -source $GOFILE -destination channel_mocks.go -package $GOPACKAGE

// Channel relays MFA status to whoever can act on it and collects their
// answers. Polls never block waiting for a human.
type Channel interface {
	// ReportChallenge announces the detected challenge with an instruction
	ReportChallenge(ctx context.Context, challenge types.MFAChallenge, message string) error
	// PollForCode returns a human supplied code, or "" when there is none yet
	PollForCode(ctx context.Context) (string, error)
	// PollForConfirmation reports whether the human confirmed an out of band action
	PollForConfirmation(ctx context.Context) (bool, error)
	// ClearCode discards the last code so the next poll waits for a new one
	ClearCode(ctx context.Context) error
	ReportError(ctx context.Context, kind types.AuthErrorKind, message string) error
	ReportSuccess(ctx context.Context, report *types.SuccessReport) error
}
