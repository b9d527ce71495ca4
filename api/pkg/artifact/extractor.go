package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helixml/sessionpilot/api/pkg/browser"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

var ErrEmptyCookieJar = errors.New("browser returned no cookies")

// Extract reads the cookie jar of a session that has reached the target page.
// It does not retry: a failure here is final.
func Extract(ctx context.Context, session browser.Session, acquiredAt time.Time) (*types.SessionArtifact, error) {
	url, err := session.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page url: %w", err)
	}

	cookies, err := session.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, ErrEmptyCookieJar
	}

	return &types.SessionArtifact{
		Cookies:    cookies,
		URL:        url,
		AcquiredAt: acquiredAt,
	}, nil
}
