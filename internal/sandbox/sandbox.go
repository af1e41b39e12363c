package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Issue is one structured build or runtime problem reported by the
// execution collaborator.
type Issue struct {
	Path    string `json:"path"`
	Line    int    `json:"line,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Runner checks a generated file tree. The sandbox itself is a black box:
// we hand it files and read back issues, nothing more.
type Runner interface {
	Check(ctx context.Context, files map[string]string) ([]Issue, error)
}

// HTTPRunner talks to an external sandbox service.
type HTTPRunner struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRunner(baseURL string, timeout time.Duration) *HTTPRunner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPRunner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type checkRequest struct {
	Files map[string]string `json:"files"`
}

type checkResponse struct {
	Success bool    `json:"success"`
	Issues  []Issue `json:"issues"`
	Error   string  `json:"error,omitempty"`
}

func (r *HTTPRunner) Check(ctx context.Context, files map[string]string) ([]Issue, error) {
	if r.baseURL == "" {
		return nil, fmt.Errorf("sandbox URL is not configured")
	}

	body, err := json.Marshal(checkRequest{Files: files})
	if err != nil {
		return nil, fmt.Errorf("encode sandbox request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/check", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sandbox returned status %d", resp.StatusCode)
	}

	var decoded checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode sandbox response: %w", err)
	}
	if !decoded.Success {
		return nil, fmt.Errorf("sandbox check failed: %s", decoded.Error)
	}
	return decoded.Issues, nil
}
