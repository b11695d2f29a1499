package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PackageInfo is one entry returned by the network plugin registry.
type PackageInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

// RegistryClient searches and describes packages tagged as host
// plugins in a network registry. Implementations must degrade
// gracefully: network failure yields an empty result from Search and a
// nil result from Info, never an error.
type RegistryClient interface {
	Search(ctx context.Context, query string) []PackageInfo
	Info(ctx context.Context, name string) *PackageInfo
}

// HTTPRegistryClient queries a JSON HTTP registry at BaseURL. Failures
// of any kind — network, non-2xx status, malformed body — are
// swallowed and reported as an empty/nil result, per the Manager's
// graceful-degradation contract for search/info.
type HTTPRegistryClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPRegistryClient constructs a client against baseURL with a
// bounded request timeout.
func NewHTTPRegistryClient(baseURL string) *HTTPRegistryClient {
	return &HTTPRegistryClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPRegistryClient) Search(ctx context.Context, query string) []PackageInfo {
	var results []PackageInfo
	_ = c.get(ctx, fmt.Sprintf("%s/search?q=%s", c.BaseURL, query), &results)
	return results
}

func (c *HTTPRegistryClient) Info(ctx context.Context, name string) *PackageInfo {
	var info PackageInfo
	if err := c.get(ctx, fmt.Sprintf("%s/packages/%s", c.BaseURL, name), &info); err != nil {
		return nil
	}
	return &info
}

func (c *HTTPRegistryClient) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
