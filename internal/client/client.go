// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Slade66/hourglass/internal/status"
	"github.com/Slade66/hourglass/pkg/task"
)

var (
	instance *http.Client
	once     sync.Once
)

// ErrNotFound is returned when the API has no record of an hourglass.
var ErrNotFound = errors.New("client: hourglass not found")

// GetClient returns the process-wide http.Client, created on first use.
func GetClient() *http.Client {
	once.Do(func() {
		instance = &http.Client{
			Timeout: 10 * time.Second,
		}
	})
	return instance
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the hourglass HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    GetClient(),
	}
}

// Create queues a new hourglass and returns its id.
func (c *Client) Create(ctx context.Context, d time.Duration, autostart bool) (string, error) {
	body := map[string]interface{}{
		"duration_ms": d.Milliseconds(),
		"autostart":   autostart,
	}
	var resp struct {
		HourglassID string `json:"hourglass_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/hourglasses", body, &resp); err != nil {
		return "", err
	}
	return resp.HourglassID, nil
}

// Act queues start, pause, resume or cancel for the hourglass id.
func (c *Client) Act(ctx context.Context, id string, action task.Action) error {
	return c.do(ctx, http.MethodPost, "/api/hourglasses/"+id+"/"+string(action), nil, nil)
}

func (c *Client) Get(ctx context.Context, id string) (*status.StatusInfo, error) {
	var info status.StatusInfo
	if err := c.do(ctx, http.MethodGet, "/api/hourglasses/"+id, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) List(ctx context.Context) ([]status.StatusInfo, error) {
	var infos []status.StatusInfo
	if err := c.do(ctx, http.MethodGet, "/api/hourglasses", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		// Error bodies are optional.
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response of %s %s: %w", method, path, err)
	}
	return nil
}
