package coordination

import (
	"context"
	"fmt"
	"io"

	"github.com/helixml/sessionpilot/api/pkg/config"
	"github.com/helixml/sessionpilot/api/pkg/pubsub"
)

// New builds the channel selected by the coordination mode. The returned
// func releases whatever the channel holds open.
func New(ctx context.Context, cfg config.Coordination, account config.Account, in io.Reader, out io.Writer) (Channel, func(), error) {
	var (
		ch      Channel
		cleanup = func() {}
	)

	mode := cfg.ResolvedMode()
	switch mode {
	case config.CoordinationModeConsole:
		ch = NewConsoleChannel(in, out)
	case config.CoordinationModeHTTP:
		if cfg.RequestID == "" {
			return nil, nil, fmt.Errorf("REQUEST_ID is required for coordination mode %s", mode)
		}
		ch = NewHTTPChannel(cfg.CoordinatorURL, cfg.RequestID, cfg.RetryMax)
	case config.CoordinationModeNATS:
		if cfg.RequestID == "" {
			return nil, nil, fmt.Errorf("REQUEST_ID is required for coordination mode %s", mode)
		}
		ps, err := pubsub.NewNats(cfg.NATSURL)
		if err != nil {
			return nil, nil, err
		}
		natsCh, err := NewNATSChannel(ctx, ps, cfg.RequestID)
		if err != nil {
			ps.Close()
			return nil, nil, err
		}
		ch = natsCh
		cleanup = func() {
			_ = natsCh.Close()
			ps.Close()
		}
	default:
		return nil, nil, fmt.Errorf("unknown coordination mode: %s", mode)
	}

	if account.TOTPSecret != "" {
		totpCh, err := NewTOTPChannel(ch, account.TOTPSecret, nil)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		ch = totpCh
	}

	return ch, cleanup, nil
}
