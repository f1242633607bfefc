package nodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Command is one outbound request to a remote timer node.
type Command struct {
	Address string
	Method  string
	Path    string
	Body    any

	// Lazy, when set, builds the body at send time instead of Body.
	Lazy func() any
}

// Pusher accepts commands for best-effort delivery.
type Pusher interface {
	Push(cmd Command)
}

// URL resolves the command against the node address. Bare addresses get http://.
func (c Command) URL() string {
	if strings.Contains(c.Address, "://") {
		return strings.TrimRight(c.Address, "/") + c.Path
	}
	return "http://" + c.Address + c.Path
}

func (c Command) payload() any {
	if c.Lazy != nil {
		return c.Lazy()
	}
	return c.Body
}

// Client sends commands to nodes over HTTP.
type Client struct {
	client  *http.Client
	headers map[string]string
}

// NewClient creates a node client whose requests never outlive timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// Do performs the request and treats any non-2xx status as an error.
func (c *Client) Do(ctx context.Context, cmd Command) error {
	var body io.Reader
	if p := cmd.payload(); p != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := cmd.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, cmd.URL(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("node returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
