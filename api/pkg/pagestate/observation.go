package pagestate

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/helixml/sessionpilot/api/pkg/browser"
)

var (
	EmailInputSelectors = browser.Selectors{
		`#ap_email`,
		`input[name="email"]`,
		`input[type="email"]`,
	}
	ContinueSelectors = browser.Selectors{
		`input#continue`,
		`button#continue`,
		`input[name="continue"]`,
	}
	PasswordInputSelectors = browser.Selectors{
		`#ap_password`,
		`input[name="password"]`,
		`input[type="password"]`,
	}
	SignInSelectors = browser.Selectors{
		`input#signInSubmit`,
		`button#signInSubmit`,
		`button[name="signIn"]`,
		`input[type="submit"]`,
	}
	// OTPInputSelectors are the strongest MFA signal there is
	OTPInputSelectors = browser.Selectors{
		`#auth-mfa-otpcode`,
		`input[name="otpCode"]`,
		`input[name="code"]`,
		`input[type="tel"]`,
		`input[inputmode="numeric"]`,
	}
	// CodeInputSelectors are tried in order when typing a code
	CodeInputSelectors = browser.Selectors{
		`#auth-mfa-otpcode`,
		`input[name="otpCode"]`,
		`input[name="code"]`,
		`input[placeholder*="code"]`,
		`input[placeholder*="Code"]`,
		`input[placeholder*="otp"]`,
		`input[placeholder*="OTP"]`,
		`input[type="tel"]`,
		`input[type="number"]`,
		`input[inputmode="numeric"]`,
	}
	CodeSubmitSelectors = browser.Selectors{
		`#cvf-submit-otp-button span input`,
		`#auth-signin-button`,
		`input.a-button-input[type="submit"]`,
		`button[type="submit"]`,
		`input[type="submit"]`,
	}
	AlertSelectors = browser.Selectors{
		`.a-box-inner.a-alert-container`,
		`.a-alert-content`,
		`.a-list-item`,
		`#auth-error-message-box`,
	}
)

var hiddenClasses = []string{"aok-hidden", "a-hidden", "hidden"}

// Observation is a snapshot of the page at one instant. All text fields are
// lowercased. Observations are never reused across polling ticks.
type Observation struct {
	URL string
	// Path is the lowercased URL path, query excluded
	Path string
	// Text is the visible text of the page with whitespace collapsed
	Text string
	// Source is the raw markup
	Source string
	// AlertText is the visible text of the provider's alert regions
	AlertText string

	EmailInput    bool
	PasswordInput bool
	// OTPInput is set by the strong OTP selectors only
	OTPInput bool
	// CodeInput is set by any input a code could be typed into
	CodeInput bool
}

// Observe snapshots the session's current page
func Observe(ctx context.Context, s browser.Session) (*Observation, error) {
	pageURL, err := s.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read url: %w", err)
	}
	source, err := s.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page html: %w", err)
	}
	return FromHTML(pageURL, source)
}

func FromHTML(pageURL, source string) (*Observation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}

	obs := &Observation{
		URL:    pageURL,
		Path:   urlPath(pageURL),
		Source: strings.ToLower(source),
	}

	obs.Text = normalize(visibleText(doc.Find("body")))
	obs.AlertText = normalize(visibleText(doc.Find(AlertSelectors.String())))

	obs.EmailInput = anyVisible(doc, EmailInputSelectors)
	obs.PasswordInput = anyVisible(doc, PasswordInputSelectors)
	obs.OTPInput = anyVisible(doc, OTPInputSelectors)
	obs.CodeInput = obs.OTPInput || anyVisible(doc, browser.Selectors{`input[type="number"]`}) || hasCodePlaceholder(doc)

	return obs, nil
}

// Hidden reports whether the selection or any of its ancestors is hidden
// by markup alone. Stylesheet rules other than the provider's hidden
// classes are not evaluated.
func Hidden(sel *goquery.Selection) bool {
	if t, ok := sel.Attr("type"); ok && strings.EqualFold(t, "hidden") {
		return true
	}
	for s := sel; s.Length() > 0; s = s.Parent() {
		if _, ok := s.Attr("hidden"); ok {
			return true
		}
		if style, ok := s.Attr("style"); ok {
			style = strings.ReplaceAll(strings.ToLower(style), " ", "")
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
		for _, class := range hiddenClasses {
			if s.HasClass(class) {
				return true
			}
		}
	}
	return false
}

func anyVisible(doc *goquery.Document, selectors browser.Selectors) bool {
	found := false
	doc.Find(selectors.String()).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !Hidden(s) {
			found = true
			return false
		}
		return true
	})
	return found
}

// cascadia has no case-insensitive attribute matching, so placeholders are
// compared by hand
func hasCodePlaceholder(doc *goquery.Document) bool {
	found := false
	doc.Find("input[placeholder]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.ToLower(s.AttrOr("type", "text"))
		if t != "text" && t != "tel" && t != "number" {
			return true
		}
		placeholder := strings.ToLower(s.AttrOr("placeholder", ""))
		if (strings.Contains(placeholder, "code") || strings.Contains(placeholder, "otp")) && !Hidden(s) {
			found = true
			return false
		}
		return true
	})
	return found
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		if Hidden(s) {
			return
		}
		collectText(s, &b)
		b.WriteByte(' ')
	})
	return b.String()
}

func collectText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		switch node.Type {
		case html.TextNode:
			b.WriteString(node.Data)
		case html.ElementNode:
			if skippedElements[node.Data] || Hidden(s) {
				return
			}
			collectText(s, b)
			// block boundaries should not glue words together
			b.WriteByte(' ')
		}
	})
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(u.Path)
}
