package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIURL       = "https://api.github.com"
	defaultMaxRetries   = 3
	defaultRetryBackoff = 500 * time.Millisecond
	apiVersion          = "2022-11-28"
)

type ClientConfig struct {
	APIURL       string
	Token        string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client talks to the GitHub REST API on behalf of the workflow commands.
type Client struct {
	apiURL       string
	token        string
	maxRetries   int
	retryBackoff time.Duration
	http         *http.Client
	logger       *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiURL:       strings.TrimRight(apiURL, "/"),
		token:        cfg.Token,
		maxRetries:   maxRetries,
		retryBackoff: backoff,
		http:         &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

type ActionsWorkflow struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

// File is the workflow's file name, e.g. deploy.yml.
func (w ActionsWorkflow) File() string {
	if i := strings.LastIndex(w.Path, "/"); i >= 0 {
		return w.Path[i+1:]
	}
	return w.Path
}

type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	HeadBranch string    `json:"head_branch"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
}

func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

func (c *Client) GetRepository(ctx context.Context, owner, repo string) (Repository, error) {
	var out Repository
	if err := c.do(ctx, http.MethodGet, repoPath(owner, repo), nil, nil, &out); err != nil {
		return Repository{}, err
	}
	return out, nil
}

func (c *Client) ListWorkflows(ctx context.Context, owner, repo string) ([]ActionsWorkflow, error) {
	var out struct {
		TotalCount int               `json:"total_count"`
		Workflows  []ActionsWorkflow `json:"workflows"`
	}
	query := url.Values{"per_page": {"100"}}
	if err := c.do(ctx, http.MethodGet, repoPath(owner, repo)+"/actions/workflows", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Workflows, nil
}

// DispatchWorkflow triggers a workflow_dispatch event on ref. GitHub answers
// 204 without a body, so the created run has to be looked up afterwards.
func (c *Client) DispatchWorkflow(ctx context.Context, owner, repo, workflowID, ref string, inputs map[string]string) error {
	body, err := json.Marshal(map[string]any{"ref": ref, "inputs": inputs})
	if err != nil {
		return fmt.Errorf("marshal dispatch: %w", err)
	}
	path := repoPath(owner, repo) + "/actions/workflows/" + url.PathEscape(workflowID) + "/dispatches"
	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return err
	}
	c.logger.Info("github workflow dispatched", "repo", owner+"/"+repo, "workflow", workflowID, "ref", ref)
	return nil
}

// ListWorkflowRuns returns the newest runs of a workflow on branch.
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, repo, workflowID, branch string, perPage int) ([]WorkflowRun, error) {
	var out struct {
		TotalCount   int           `json:"total_count"`
		WorkflowRuns []WorkflowRun `json:"workflow_runs"`
	}
	query := url.Values{"per_page": {strconv.Itoa(perPage)}}
	if branch != "" {
		query.Set("branch", branch)
	}
	path := repoPath(owner, repo) + "/actions/workflows/" + url.PathEscape(workflowID) + "/runs"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return out.WorkflowRuns, nil
}

// retryable reports whether a failed attempt may be sent again. A dispatch
// is only repeated when rate limited.
func retryable(method string, status int) bool {
	if method != http.MethodGet {
		return status == http.StatusTooManyRequests
	}
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// do sends one request, retrying transient failures of reads with a linear
// back-off.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	target := c.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.retryBackoff):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", apiVersion)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("github %s %s: %w", method, path, err)
			c.logger.Warn("github request failed", "method", method, "path", path, "attempt", attempt, "error", err)
			if method != http.MethodGet {
				return lastErr
			}
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if method != http.MethodGet {
				return lastErr
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
			if retryable(method, resp.StatusCode) {
				c.logger.Warn("github request throttled", "method", method, "path", path, "status", resp.StatusCode, "attempt", attempt)
				continue
			}
			return lastErr
		}

		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}

	return lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
