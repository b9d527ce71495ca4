package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/helixml/sessionpilot/api/pkg/types"
)

// Element is one node found on the current page
type Element interface {
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	// Input replaces the element's value with text
	Input(ctx context.Context, text string) error
	Click(ctx context.Context) error
}

// Session is the capability set the login flow needs from a driven browser.
// A Session is owned by a single goroutine.
type Session interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	// QueryAll returns every element matching the CSS selector without
	// waiting for any to appear
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	PressEnter(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	Cookies(ctx context.Context) ([]*types.Cookie, error)
	SetCookies(ctx context.Context, cookies []*types.Cookie) error
	Close() error
}

// Selectors is an ordered list of CSS selectors tried one after another
type Selectors []string

func (s Selectors) String() string {
	return strings.Join(s, ", ")
}

// FirstVisible returns the first visible element matched by the selectors,
// in selector order. It returns nil when nothing visible matches.
func FirstVisible(ctx context.Context, s Session, selectors Selectors) (Element, error) {
	for _, selector := range selectors {
		elements, err := s.QueryAll(ctx, selector)
		if err != nil {
			return nil, fmt.Errorf("failed to query %q: %w", selector, err)
		}
		for _, el := range elements {
			visible, err := el.Visible(ctx)
			if err != nil {
				// detached while we were looking at it
				continue
			}
			if visible {
				return el, nil
			}
		}
	}
	return nil, nil
}

// FillFirst types value into the first visible element matched by the
// selectors. It reports false when no element was found.
func FillFirst(ctx context.Context, s Session, selectors Selectors, value string) (bool, error) {
	el, err := FirstVisible(ctx, s, selectors)
	if err != nil {
		return false, err
	}
	if el == nil {
		return false, nil
	}
	if err := el.Input(ctx, value); err != nil {
		return false, fmt.Errorf("failed to fill %s: %w", selectors, err)
	}
	return true, nil
}

// ClickFirst clicks the first visible element matched by the selectors.
// It reports false when no element was found.
func ClickFirst(ctx context.Context, s Session, selectors Selectors) (bool, error) {
	el, err := FirstVisible(ctx, s, selectors)
	if err != nil {
		return false, err
	}
	if el == nil {
		return false, nil
	}
	if err := el.Click(ctx); err != nil {
		return false, fmt.Errorf("failed to click %s: %w", selectors, err)
	}
	return true, nil
}

// SubmitFirst clicks the first visible submit control, pressing enter when
// there is none
func SubmitFirst(ctx context.Context, s Session, selectors Selectors) error {
	clicked, err := ClickFirst(ctx, s, selectors)
	if err != nil {
		return err
	}
	if clicked {
		return nil
	}
	return s.PressEnter(ctx)
}
