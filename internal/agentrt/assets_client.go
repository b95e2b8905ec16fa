package agentrt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// HTTPAssetsService implements AssetsService over the external Assets
// Service's REST API (spec.md §4.3 "query the external Assets Service keyed
// by tenant"). Grounded on internal/orchestrator's HTTPCallbackSender: a
// plain http.Client call wrapped in backoff/v4 retries, since both are thin
// JSON-over-HTTP calls to a collaborator this repo does not own.
type HTTPAssetsService struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPAssetsService builds an AssetsService client against baseURL
// (expected to expose GET {baseURL}/tenants/{tenant_id}/assets).
func NewHTTPAssetsService(baseURL string) *HTTPAssetsService {
	return &HTTPAssetsService{BaseURL: baseURL, Client: &http.Client{}}
}

// ListAssets implements AssetsService.
func (s *HTTPAssetsService) ListAssets(ctx context.Context, tenantID string) ([]Asset, error) {
	url := fmt.Sprintf("%s/tenants/%s/assets", s.BaseURL, tenantID)

	var assets []Asset
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("agentrt: assets service %s returned %d", url, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("agentrt: assets service %s returned %d", url, resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(&assets)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, err
	}
	return assets, nil
}
