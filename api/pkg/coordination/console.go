package coordination

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/helixml/sessionpilot/api/pkg/types"
)

const manualCodeLength = 6

// ConsoleChannel is used when nobody else is coordinating: the person running
// the command reads challenges on the terminal and types codes on stdin.
type ConsoleChannel struct {
	out   io.Writer
	lines chan string

	info    *color.Color
	warn    *color.Color
	failure *color.Color
	success *color.Color
}

var _ Channel = &ConsoleChannel{}

// NewConsoleChannel starts reading lines from in in the background so polls
// never block on the terminal
func NewConsoleChannel(in io.Reader, out io.Writer) *ConsoleChannel {
	c := &ConsoleChannel{
		out:     out,
		lines:   make(chan string, 16),
		info:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow),
		failure: color.New(color.FgRed, color.Bold),
		success: color.New(color.FgGreen, color.Bold),
	}
	go c.read(in)
	return c
}

func (c *ConsoleChannel) read(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("stopped reading console input")
	}
}

func (c *ConsoleChannel) ReportChallenge(_ context.Context, challenge types.MFAChallenge, message string) error {
	c.info.Fprintf(c.out, "\n%s required: %s\n", challenge, message)
	if challenge != types.MFAChallengePushApproval && challenge != types.MFAChallengeUnsupported {
		c.info.Fprintf(c.out, "Enter the %d digit code (or press Enter to skip and wait for the redirect): ", manualCodeLength)
	}
	return nil
}

// PollForCode returns a typed code when one is waiting. Lines that are not a
// six digit code are rejected here and never reach the page.
func (c *ConsoleChannel) PollForCode(_ context.Context) (string, error) {
	select {
	case line := <-c.lines:
		code := strings.TrimSpace(line)
		if code == "" {
			c.warn.Fprintln(c.out, "Skipping manual code, waiting for the redirect...")
			return "", nil
		}
		if !isManualCode(code) {
			c.failure.Fprintf(c.out, "Invalid code format. Please enter exactly %d digits.\n", manualCodeLength)
			return "", nil
		}
		return code, nil
	default:
		return "", nil
	}
}

func (c *ConsoleChannel) PollForConfirmation(_ context.Context) (bool, error) {
	return false, nil
}

func (c *ConsoleChannel) ClearCode(_ context.Context) error {
	c.info.Fprint(c.out, "Enter a new code: ")
	return nil
}

func (c *ConsoleChannel) ReportError(_ context.Context, kind types.AuthErrorKind, message string) error {
	c.failure.Fprintf(c.out, "%s: %s\n", kind, message)
	return nil
}

func (c *ConsoleChannel) ReportSuccess(_ context.Context, report *types.SuccessReport) error {
	c.success.Fprintf(c.out, "Signed in. %d cookies written to %s\n", report.CookieCount, report.Location)
	return nil
}

func isManualCode(code string) bool {
	if len(code) != manualCodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
