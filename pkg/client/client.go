// Package client is a small HTTP client for the fluxgate API, used by the
// CLI and example workflows.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fluxgate/fluxgate/pkg/server/api"
	v1 "github.com/fluxgate/fluxgate/pkg/server/api/v1"
)

// Client talks to one fluxgate server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the given base URL (e.g. "http://127.0.0.1:8000").
// No overall request timeout is set: a synchronous generation legitimately
// takes minutes. Use contexts to bound individual calls.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// APIError is a decoded error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	TaskStatus string // populated on TASK_NOT_READY responses
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotReady reports whether err is the server telling us to keep polling
// (or that the task failed; inspect TaskStatus).
func IsNotReady(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == "TASK_NOT_READY"
}

// IsNotFound reports whether err is an unknown-task response.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// ServiceInfo fetches the root endpoint.
func (c *Client) ServiceInfo(ctx context.Context) (map[string]any, error) {
	var info map[string]any
	if err := c.get(ctx, "/", &info); err != nil {
		return nil, err
	}
	return info, nil
}

// Health fetches the API health endpoint.
func (c *Client) Health(ctx context.Context) (v1.HealthResponse, error) {
	var health v1.HealthResponse
	if err := c.get(ctx, "/api/v1/health", &health); err != nil {
		return v1.HealthResponse{}, err
	}
	return health, nil
}

// CreateTask submits an asynchronous generation task.
func (c *Client) CreateTask(ctx context.Context, prompt string, seed *int64) (api.TaskCreated, error) {
	var created api.TaskCreated
	err := c.post(ctx, "/api/v1/tasks", v1.GenerateRequest{Prompt: prompt, Seed: seed}, &created)
	return created, err
}

// TaskStatus fetches one task's status snapshot.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (api.TaskStatus, error) {
	var status api.TaskStatus
	err := c.get(ctx, "/api/v1/tasks/"+url.PathEscape(taskID), &status)
	return status, err
}

// TaskResult fetches the artifact of a completed task.
func (c *Client) TaskResult(ctx context.Context, taskID string) (api.GenerationResult, error) {
	var result api.GenerationResult
	err := c.get(ctx, "/api/v1/tasks/"+url.PathEscape(taskID)+"/result", &result)
	return result, err
}

// ListTasks fetches recent tasks, newest first.
func (c *Client) ListTasks(ctx context.Context, limit int) ([]api.TaskStatus, error) {
	path := "/api/v1/tasks"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var response struct {
		Tasks []api.TaskStatus `json:"tasks"`
		Total int              `json:"total"`
	}
	if err := c.get(ctx, path, &response); err != nil {
		return nil, err
	}
	return response.Tasks, nil
}

// Generate runs a blocking generation in one round trip.
func (c *Client) Generate(ctx context.Context, prompt string, seed *int64) (api.GenerationResult, error) {
	var result api.GenerationResult
	err := c.post(ctx, "/api/v1/generate", v1.GenerateRequest{Prompt: prompt, Seed: seed}, &result)
	return result, err
}

// WaitForTask polls the task until it reaches a terminal state or ctx
// expires. Returns the final status snapshot; the caller decides whether a
// failed task is an error.
func (c *Client) WaitForTask(ctx context.Context, taskID string, interval time.Duration) (api.TaskStatus, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.TaskStatus(ctx, taskID)
		if err != nil {
			return api.TaskStatus{}, err
		}
		if status.Status == "completed" || status.Status == "failed" {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return api.TaskStatus{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       "UNKNOWN",
			Message:    string(body),
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       errResp.Code,
		Message:    errResp.Message,
		TaskStatus: errResp.Status,
	}
}
