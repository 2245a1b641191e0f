package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Fetcher retrieves a full academic snapshot from the university
// portal using per-user credentials. Implementations classify every
// failure as a *portal.Error.
type Fetcher interface {
	Fetch(ctx context.Context, username, password string) (*Snapshot, error)
}

// HTTPFetcher talks to the scrape gateway over HTTP. The gateway does
// the actual portal session handling and returns the snapshot as JSON
// or a failure status.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher with its own bounded client.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPFetcher{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type fetchRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context, username, password string) (*Snapshot, error) {
	body, err := json.Marshal(fetchRequest{Username: username, Password: password})
	if err != nil {
		return nil, NewError(ReasonScrapeFailed, fmt.Errorf("failed to marshal fetch request: %w", err))
	}

	url := f.baseURL + "/scrape"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewError(ReasonScrapeFailed, fmt.Errorf("failed to create fetch request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewError(ReasonScrapeFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusUnauthorized:
		return nil, NewError(ReasonLoginFailed, fmt.Errorf("portal rejected credentials"))
	case http.StatusLocked:
		return nil, NewError(ReasonAccountLocked, fmt.Errorf("portal account locked"))
	default:
		return nil, NewError(ReasonScrapeFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, NewError(ReasonScrapeFailed, fmt.Errorf("failed to decode snapshot: %w", err))
	}

	return &snapshot, nil
}
