// Package centers fetches the recycling-center listing from the backend.
// It is a thin accessor for the rendering layer; filtering and routing stay
// out of scope.
package centers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/ecoscan/pkg/types"
)

const centersPath = "/recycling-centers"

// Client queries the centers endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a centers client. timeout bounds each request.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type centersResponse struct {
	Centers []types.RecyclingCenter `json:"centers"`
}

// List returns the recycling centers known to the backend.
func (c *Client) List(ctx context.Context) ([]types.RecyclingCenter, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+centersPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch centers: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("centers endpoint returned status %d", resp.StatusCode)
	}

	var parsed centersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse centers response: %w", err)
	}
	return parsed.Centers, nil
}
