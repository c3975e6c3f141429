package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	masterminds "github.com/Masterminds/semver/v3"
)

const httpLogPrefix = "plugin:http"

// HTTPService fetches JSON from an endpoint set by Load. Get appends the prerequisite
// as the "q" query parameter and, when key is set, returns only that top-level field.
type HTTPService struct {
	name    string
	version *masterminds.Version
	client  *http.Client

	mu       sync.Mutex
	endpoint string
}

func NewHTTPService(name string, version *masterminds.Version, client *http.Client) *HTTPService {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPService{name: name, version: version, client: client}
}

func (s *HTTPService) Name() string                  { return s.name }
func (s *HTTPService) Version() *masterminds.Version { return s.version }

func (s *HTTPService) Load(_ context.Context, sourceURL string) (bool, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false, fmt.Errorf("%s - %s: invalid source url %q", httpLogPrefix, s.name, sourceURL)
	}
	s.mu.Lock()
	s.endpoint = sourceURL
	s.mu.Unlock()
	return true, nil
}

func (s *HTTPService) Get(ctx context.Context, prerequisite, key string) (string, error) {
	s.mu.Lock()
	endpoint := s.endpoint
	s.mu.Unlock()
	if endpoint == "" {
		return "", fmt.Errorf("%s - %s: %w", httpLogPrefix, s.name, ErrNotLoaded)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%s - %s: %w", httpLogPrefix, s.name, err)
	}
	if prerequisite != "" {
		q := u.Query()
		q.Set("q", prerequisite)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%s - %s: %w", httpLogPrefix, s.name, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s - %s: request failed: %w", httpLogPrefix, s.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s - %s: reading response: %w", httpLogPrefix, s.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s - %s: HTTP %d", httpLogPrefix, s.name, resp.StatusCode)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%s - %s: response is not JSON: %w", httpLogPrefix, s.name, err)
	}
	if key != "" {
		obj, ok := doc.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%s - %s: response has no field %q", httpLogPrefix, s.name, key)
		}
		field, ok := obj[key]
		if !ok {
			return "", fmt.Errorf("%s - %s: response has no field %q", httpLogPrefix, s.name, key)
		}
		if str, ok := field.(string); ok {
			return str, nil
		}
		doc = field
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%s - %s: %w", httpLogPrefix, s.name, err)
	}
	return string(out), nil
}
