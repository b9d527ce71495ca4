package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/helixml/sessionpilot/api/pkg/config"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

const (
	connectAttempts = 3
	connectDelay    = 1 * time.Second
)

// RodSession drives a single Chrome page over the DevTools protocol
type RodSession struct {
	browser *rod.Browser
	page    *rod.Page

	// set when we launched the browser ourselves
	launcher *launcher.Launcher
}

var _ Session = &RodSession{}

// Open connects to CHROME_URL when set and otherwise launches a local Chrome
// on profileDir. The caller must Close the session on every exit path.
func Open(ctx context.Context, cfg config.Browser, profileDir string) (*RodSession, error) {
	s := &RodSession{}

	controlURL, err := s.controlURL(cfg, profileDir)
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	err = retry.Do(
		browser.Connect,
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("retrying browser connect")
		}),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("error connecting to browser: %w", err)
	}
	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("error creating page: %w", err)
	}
	s.page = page

	return s, nil
}

func (s *RodSession) controlURL(cfg config.Browser, profileDir string) (string, error) {
	if cfg.ChromeURL != "" {
		u, err := launcher.ResolveURL(cfg.ChromeURL)
		if err != nil {
			return "", fmt.Errorf("error resolving Chrome URL (%s): %w", cfg.ChromeURL, err)
		}
		log.Info().Str("chromeURL", u).Msg("using remote browser")
		return u, nil
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Leakless(cfg.Leakless).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("window-size"), "1920,1080")
	if profileDir != "" {
		l = l.UserDataDir(profileDir)
	}
	if cfg.ChromeBin != "" {
		l = l.Bin(cfg.ChromeBin)
	}
	u, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("error launching browser: %w", err)
	}
	s.launcher = l
	log.Debug().Str("profile_dir", profileDir).Bool("headless", cfg.Headless).Msg("launched browser")
	return u, nil
}

func (s *RodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("error navigating to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("error waiting for %s to load: %w", url, err)
	}
	return nil
}

func (s *RodSession) URL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *RodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *RodSession) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	elements, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	res := make([]Element, 0, len(elements))
	for _, el := range elements {
		res = append(res, &rodElement{el: el})
	}
	return res, nil
}

func (s *RodSession) PressEnter(ctx context.Context) error {
	return s.page.Context(ctx).Keyboard.Press(input.Enter)
}

func (s *RodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, nil)
}

func (s *RodSession) Cookies(ctx context.Context) ([]*types.Cookie, error) {
	cookies, err := s.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, err
	}
	return fromNetworkCookies(cookies), nil
}

func (s *RodSession) SetCookies(ctx context.Context, cookies []*types.Cookie) error {
	return s.browser.Context(ctx).SetCookies(toCookieParams(cookies))
}

// Close releases the page, the browser and any process we launched. It is
// safe to call more than once.
func (s *RodSession) Close() error {
	var firstErr error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			firstErr = err
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.browser = nil
	}
	if s.launcher != nil {
		// Kill rather than Cleanup, Cleanup would delete the profile dir
		s.launcher.Kill()
		s.launcher = nil
	}
	return firstErr
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *rodElement) Input(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		log.Trace().Err(err).Msg("could not select existing text")
	}
	return el.Input(text)
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func fromNetworkCookies(cookies []*proto.NetworkCookie) []*types.Cookie {
	res := make([]*types.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := &types.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		}
		if !c.Session {
			cookie.Expiry = int64(c.Expires)
		}
		res = append(res, cookie)
	}
	return res
}

func toCookieParams(cookies []*types.Cookie) []*proto.NetworkCookieParam {
	res := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		if c.Expiry > 0 {
			param.Expires = proto.TimeSinceEpoch(c.Expiry)
		}
		res = append(res, param)
	}
	return res
}
