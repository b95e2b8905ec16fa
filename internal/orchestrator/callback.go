package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPCallbackSender implements CallbackSender by POSTing the payload as
// JSON to CALLBACK_URL joined with the given endpoint, retrying with
// exponential backoff up to maxRetries (spec.md §4.5c). backoff/v4 is
// already an indirect Temporal SDK dependency in the pack; this is its
// direct use for outbound delivery retries.
type HTTPCallbackSender struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPCallbackSender builds a sender with a sane default HTTP client.
func NewHTTPCallbackSender(baseURL string) *HTTPCallbackSender {
	return &HTTPCallbackSender{BaseURL: baseURL, Client: &http.Client{}}
}

// Send implements CallbackSender.
func (s *HTTPCallbackSender) Send(ctx context.Context, endpoint string, payload any, headers map[string]string, timeout time.Duration, maxRetries int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal callback payload: %w", err)
	}
	url := s.BaseURL + endpoint

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxAttempts(maxRetries)))

	return backoff.Retry(func() error {
		reqCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "orchestrator-background/1.0")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := s.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("orchestrator: callback %s returned %d", url, resp.StatusCode)
		}

		// A 2xx transport status can still wrap an application-level failure
		// in the body (spec.md §6 "a non-2xx or a body `.code != 200` is a
		// retryable failure"). Absence of a "code" field is not a failure --
		// only an explicit non-200 code is.
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("orchestrator: read callback response body: %w", err)
		}
		var ack struct {
			Code *int `json:"code"`
		}
		if err := json.Unmarshal(respBody, &ack); err == nil && ack.Code != nil && *ack.Code != 200 {
			return fmt.Errorf("orchestrator: callback %s returned body code %d", url, *ack.Code)
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

func maxAttempts(maxRetries int) int {
	if maxRetries <= 0 {
		return 3
	}
	return maxRetries
}
