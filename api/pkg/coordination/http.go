package coordination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/helixml/sessionpilot/api/pkg/system"
	"github.com/helixml/sessionpilot/api/pkg/types"
)

// HTTPChannel talks to the companion host's internal API
type HTTPChannel struct {
	url       string
	requestID string
	client    *retryablehttp.Client
}

var _ Channel = &HTTPChannel{}

func NewHTTPChannel(url, requestID string, retryMax int) *HTTPChannel {
	return &HTTPChannel{
		url:       strings.TrimSuffix(url, "/"),
		requestID: requestID,
		client:    system.NewRetryClient(retryMax, false),
	}
}

func (c *HTTPChannel) ReportChallenge(ctx context.Context, challenge types.MFAChallenge, message string) error {
	return c.post(ctx, "/2fa-update/", &types.ChallengeUpdate{
		Method:  challenge,
		Message: message,
	})
}

func (c *HTTPChannel) PollForCode(ctx context.Context) (string, error) {
	resp, err := c.getCode(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.OTP), nil
}

func (c *HTTPChannel) PollForConfirmation(ctx context.Context) (bool, error) {
	resp, err := c.getCode(ctx)
	if err != nil {
		return false, err
	}
	return resp.UserConfirmed2FA, nil
}

func (c *HTTPChannel) ClearCode(ctx context.Context) error {
	return c.post(ctx, "/clear-otp/", nil)
}

func (c *HTTPChannel) ReportError(ctx context.Context, kind types.AuthErrorKind, message string) error {
	return c.post(ctx, "/auth-error/", &types.ErrorReport{
		Error:   kind,
		Message: message,
	})
}

func (c *HTTPChannel) ReportSuccess(ctx context.Context, report *types.SuccessReport) error {
	return c.post(ctx, "/auth-success/", report)
}

func (c *HTTPChannel) getCode(ctx context.Context) (*types.CodeResponse, error) {
	var resp types.CodeResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/get-otp/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPChannel) post(ctx context.Context, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		bts, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bts)
	}
	return c.makeRequest(ctx, http.MethodPost, path, reader, nil)
}

func (c *HTTPChannel) makeRequest(ctx context.Context, method, path string, body io.Reader, v interface{}) error {
	url := c.url + system.GetInternalPath(path+c.requestID)

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bts, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("status code %d", resp.StatusCode)
		}
		return fmt.Errorf("status code %d (%s)", resp.StatusCode, strings.TrimSpace(string(bts)))
	}

	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}

	log.Trace().Str("request_id", c.requestID).Str("path", path).Msg("reported to host")
	return nil
}
