// Package browsertest provides an in-memory browser.Session driven by HTML
// fixtures, for exercising the login flow without Chrome.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"

	"github.com/helixml/sessionpilot/api/pkg/browser"
	"github.com/helixml/sessionpilot/api/pkg/pagestate"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

var ErrStaleElement = errors.New("element is not attached to the page")

// TriggerEnter is passed to OnSubmit when the enter key was pressed
const TriggerEnter = "enter"

type Page struct {
	URL  string
	HTML string
}

type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionInput    ActionKind = "input"
	ActionClick    ActionKind = "click"
	ActionEnter    ActionKind = "enter"
)

type Action struct {
	Kind   ActionKind
	Target string
	Value  string
}

type scheduledPage struct {
	at   time.Time
	page Page
}

// Session is a scripted browser. Navigate serves Routes, clicks and the enter
// key run OnSubmit, and ShowAfter swaps the page once the clock passes a
// deadline.
type Session struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	current    Page
	generation int
	values     map[string]string
	routes     map[string]Page
	scheduled  []scheduledPage
	actions    []Action
	cookies    []*types.Cookie
	closed     bool

	// OnSubmit runs after a click or the enter key, outside the session
	// lock. trigger is the element key or TriggerEnter.
	OnSubmit func(s *Session, trigger string)
	// ScreenshotData is returned from Screenshot
	ScreenshotData []byte
	// CookiesErr fails Cookies when set
	CookiesErr error
}

var _ browser.Session = &Session{}

func New(clock clockwork.Clock, start Page) *Session {
	return &Session{
		clock:          clock,
		current:        start,
		values:         map[string]string{},
		routes:         map[string]Page{},
		ScreenshotData: []byte("png"),
	}
}

// Route makes Navigate(url) land on page
func (s *Session) Route(url string, page Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[url] = page
}

// Show replaces the current page immediately
func (s *Session) Show(page Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.show(page)
}

// ShowAfter replaces the current page once d has passed on the clock
func (s *Session) ShowAfter(d time.Duration, page Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, scheduledPage{at: s.clock.Now().Add(d), page: page})
}

func (s *Session) AddCookie(c *types.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = append(s.cookies, c)
}

// Value is the last text typed into the element with the given key
func (s *Session) Value(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *Session) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.actions...)
}

// Inputs returns every value typed into the element with the given key, in order
func (s *Session) Inputs(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []string
	for _, a := range s.actions {
		if a.Kind == ActionInput && a.Target == key {
			res = append(res, a.Value)
		}
	}
	return res
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.current.URL
}

func (s *Session) show(page Page) {
	s.current = page
	s.generation++
	s.values = map[string]string{}
}

// advance applies scheduled pages whose time has come
func (s *Session) advance() {
	now := s.clock.Now()
	remaining := s.scheduled[:0]
	for _, sp := range s.scheduled {
		if !now.Before(sp.at) {
			s.show(sp.page)
			continue
		}
		remaining = append(remaining, sp)
	}
	s.scheduled = remaining
}

func (s *Session) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	s.actions = append(s.actions, Action{Kind: ActionNavigate, Target: url})
	if page, ok := s.routes[url]; ok {
		s.show(page)
		return nil
	}
	s.show(Page{URL: url, HTML: "<html><body></body></html>"})
	return nil
}

func (s *Session) URL(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.current.URL, nil
}

func (s *Session) HTML(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.current.HTML, nil
}

func (s *Session) QueryAll(_ context.Context, selector string) ([]browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.current.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	var res []browser.Element
	doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
		res = append(res, &element{
			session:    s,
			generation: s.generation,
			key:        elementKey(sel, selector, i),
			text:       strings.TrimSpace(sel.Text()),
			visible:    !pagestate.Hidden(sel),
		})
	})
	return res, nil
}

func (s *Session) PressEnter(_ context.Context) error {
	s.mu.Lock()
	s.actions = append(s.actions, Action{Kind: ActionEnter})
	s.mu.Unlock()
	s.submit(TriggerEnter)
	return nil
}

func (s *Session) Screenshot(_ context.Context) ([]byte, error) {
	return s.ScreenshotData, nil
}

func (s *Session) Cookies(_ context.Context) ([]*types.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CookiesErr != nil {
		return nil, s.CookiesErr
	}
	return append([]*types.Cookie(nil), s.cookies...), nil
}

func (s *Session) SetCookies(_ context.Context, cookies []*types.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = append(s.cookies, cookies...)
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) submit(trigger string) {
	if s.OnSubmit != nil {
		s.OnSubmit(s, trigger)
	}
}

// elementKey names an element by id, then name, then selector position
func elementKey(sel *goquery.Selection, selector string, index int) string {
	if id, ok := sel.Attr("id"); ok && id != "" {
		return id
	}
	if name, ok := sel.Attr("name"); ok && name != "" {
		return name
	}
	return fmt.Sprintf("%s[%d]", selector, index)
}

type element struct {
	session    *Session
	generation int
	key        string
	text       string
	visible    bool
}

func (e *element) stale() bool {
	return e.generation != e.session.generation
}

func (e *element) Text(_ context.Context) (string, error) {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	if e.stale() {
		return "", ErrStaleElement
	}
	return e.text, nil
}

func (e *element) Visible(_ context.Context) (bool, error) {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	if e.stale() {
		return false, ErrStaleElement
	}
	return e.visible, nil
}

func (e *element) Input(_ context.Context, text string) error {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	if e.stale() {
		return ErrStaleElement
	}
	e.session.values[e.key] = text
	e.session.actions = append(e.session.actions, Action{Kind: ActionInput, Target: e.key, Value: text})
	return nil
}

func (e *element) Click(_ context.Context) error {
	e.session.mu.Lock()
	if e.stale() {
		e.session.mu.Unlock()
		return ErrStaleElement
	}
	e.session.actions = append(e.session.actions, Action{Kind: ActionClick, Target: e.key})
	e.session.mu.Unlock()
	e.session.submit(e.key)
	return nil
}
