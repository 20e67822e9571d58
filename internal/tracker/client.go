package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPageSize        = 50
	defaultWorklogPageSize = 100
	defaultMaxRetries      = 3
	defaultRetryBackoff    = 500 * time.Millisecond

	issueFields = "summary,status,project,worklog,timeoriginalestimate,timespent,sprint,closedSprints"
)

type Config struct {
	BaseURL         string
	Email           string
	APIToken        string
	PageSize        int
	WorklogPageSize int
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
}

// Client talks to the Jira Cloud REST and Agile APIs.
type Client struct {
	baseURL         string
	email           string
	apiToken        string
	pageSize        int
	worklogPageSize int
	maxRetries      int
	retryBackoff    time.Duration
	http            *http.Client
	logger          *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	worklogPageSize := cfg.WorklogPageSize
	if worklogPageSize <= 0 {
		worklogPageSize = defaultWorklogPageSize
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
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		email:           cfg.Email,
		apiToken:        cfg.APIToken,
		pageSize:        pageSize,
		worklogPageSize: worklogPageSize,
		maxRetries:      maxRetries,
		retryBackoff:    backoff,
		http:            &http.Client{Timeout: timeout},
		logger:          logger,
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
	return fmt.Sprintf("jira %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func (c *Client) BrowseURL(issueKey string) string {
	return c.baseURL + "/browse/" + issueKey
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) PageSize() int {
	return c.pageSize
}

func (c *Client) GetProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	for startAt := 0; ; {
		var resp struct {
			Values []Project `json:"values"`
			IsLast bool      `json:"isLast"`
		}
		q := url.Values{"startAt": {strconv.Itoa(startAt)}, "maxResults": {strconv.Itoa(c.pageSize)}}
		if err := c.getJSON(ctx, "/rest/api/3/project/search", q, &resp); err != nil {
			return nil, err
		}
		projects = append(projects, resp.Values...)
		startAt += len(resp.Values)
		if resp.IsLast || len(resp.Values) == 0 {
			return projects, nil
		}
	}
}

func (c *Client) GetProjectBoards(ctx context.Context, projectKey string) ([]Board, error) {
	var boards []Board
	for startAt := 0; ; {
		var resp struct {
			Values []struct {
				ID       int    `json:"id"`
				Name     string `json:"name"`
				Location struct {
					ProjectKey string `json:"projectKey"`
				} `json:"location"`
			} `json:"values"`
			IsLast bool `json:"isLast"`
		}
		q := url.Values{
			"projectKeyOrId": {projectKey},
			"startAt":        {strconv.Itoa(startAt)},
			"maxResults":     {strconv.Itoa(c.pageSize)},
		}
		if err := c.getJSON(ctx, "/rest/agile/1.0/board", q, &resp); err != nil {
			return nil, err
		}
		for _, b := range resp.Values {
			key := b.Location.ProjectKey
			if key == "" {
				key = projectKey
			}
			boards = append(boards, Board{ID: b.ID, Name: b.Name, ProjectKey: key})
		}
		startAt += len(resp.Values)
		if resp.IsLast || len(resp.Values) == 0 {
			return boards, nil
		}
	}
}

func (c *Client) GetBoardSprints(ctx context.Context, boardID, offset int) (SprintPage, error) {
	var resp struct {
		Values     []sprintDTO `json:"values"`
		StartAt    int         `json:"startAt"`
		MaxResults int         `json:"maxResults"`
		IsLast     bool        `json:"isLast"`
	}
	q := url.Values{"startAt": {strconv.Itoa(offset)}, "maxResults": {strconv.Itoa(c.pageSize)}}
	if err := c.getJSON(ctx, fmt.Sprintf("/rest/agile/1.0/board/%d/sprint", boardID), q, &resp); err != nil {
		return SprintPage{}, err
	}

	page := SprintPage{StartAt: resp.StartAt, MaxResults: resp.MaxResults, IsLast: resp.IsLast}
	for _, s := range resp.Values {
		page.Sprints = append(page.Sprints, s.toSprint())
	}
	return page, nil
}

func (c *Client) GetSprint(ctx context.Context, sprintID int) (Sprint, error) {
	var dto sprintDTO
	if err := c.getJSON(ctx, fmt.Sprintf("/rest/agile/1.0/sprint/%d", sprintID), nil, &dto); err != nil {
		return Sprint{}, err
	}
	return dto.toSprint(), nil
}

func (c *Client) GetIssuesForSprint(ctx context.Context, sprintID, offset int) (IssuePage, error) {
	var resp struct {
		StartAt    int        `json:"startAt"`
		MaxResults int        `json:"maxResults"`
		Total      int        `json:"total"`
		Issues     []issueDTO `json:"issues"`
	}
	q := url.Values{
		"startAt":    {strconv.Itoa(offset)},
		"maxResults": {strconv.Itoa(c.pageSize)},
		"fields":     {issueFields},
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/rest/agile/1.0/sprint/%d/issue", sprintID), q, &resp); err != nil {
		return IssuePage{}, err
	}

	page := IssuePage{StartAt: resp.StartAt, MaxResults: resp.MaxResults, Total: resp.Total}
	for _, dto := range resp.Issues {
		page.Issues = append(page.Issues, dto.toIssue())
	}
	return page, nil
}

// GetIssueWorklogs reads every worklog of an issue, page by page.
func (c *Client) GetIssueWorklogs(ctx context.Context, issueID string) ([]Worklog, error) {
	var worklogs []Worklog
	for startAt := 0; ; {
		var resp worklogPageDTO
		q := url.Values{"startAt": {strconv.Itoa(startAt)}, "maxResults": {strconv.Itoa(c.worklogPageSize)}}
		if err := c.getJSON(ctx, "/rest/api/3/issue/"+url.PathEscape(issueID)+"/worklog", q, &resp); err != nil {
			return nil, err
		}
		for _, w := range resp.Worklogs {
			worklogs = append(worklogs, w.toWorklog())
		}
		startAt += len(resp.Worklogs)
		if len(resp.Worklogs) == 0 || startAt >= resp.Total {
			return worklogs, nil
		}
	}
}

func (c *Client) CreateIssue(ctx context.Context, in NewIssue) (CreatedIssue, error) {
	issueType := in.IssueType
	if issueType == "" {
		issueType = "Task"
	}
	payload := map[string]any{
		"fields": map[string]any{
			"project":     map[string]string{"key": in.ProjectKey},
			"summary":     in.Summary,
			"issuetype":   map[string]string{"name": issueType},
			"description": textDocument(in.Description),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return CreatedIssue{}, fmt.Errorf("marshal issue: %w", err)
	}

	var resp struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", nil, body, "application/json", nil, &resp); err != nil {
		return CreatedIssue{}, err
	}

	c.logger.Info("tracker issue created", "issue_key", resp.Key, "project_key", in.ProjectKey)
	return CreatedIssue{ID: resp.ID, Key: resp.Key, Link: c.BrowseURL(resp.Key)}, nil
}

func (c *Client) AddAttachment(ctx context.Context, issueKey, filename string, content io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("copy attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	headers := http.Header{"X-Atlassian-Token": {"no-check"}}
	return c.do(ctx, http.MethodPost, "/rest/api/3/issue/"+url.PathEscape(issueKey)+"/attachments", nil, buf.Bytes(), mw.FormDataContentType(), headers, nil)
}

func (c *Client) GetIssueComments(ctx context.Context, issueKey string) ([]Comment, error) {
	var comments []Comment
	for startAt := 0; ; {
		var resp struct {
			Comments []struct {
				ID   string          `json:"id"`
				Body json.RawMessage `json:"body"`
			} `json:"comments"`
			Total int `json:"total"`
		}
		q := url.Values{"startAt": {strconv.Itoa(startAt)}, "maxResults": {strconv.Itoa(c.pageSize)}}
		if err := c.getJSON(ctx, "/rest/api/3/issue/"+url.PathEscape(issueKey)+"/comment", q, &resp); err != nil {
			return nil, err
		}
		for _, cm := range resp.Comments {
			comments = append(comments, Comment{ID: cm.ID, Body: plainText(cm.Body)})
		}
		startAt += len(resp.Comments)
		if len(resp.Comments) == 0 || startAt >= resp.Total {
			return comments, nil
		}
	}
}

func (c *Client) AddComment(ctx context.Context, issueKey, text string) error {
	body, err := json.Marshal(map[string]any{"body": textDocument(text)})
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/rest/api/3/issue/"+url.PathEscape(issueKey)+"/comment", nil, body, "application/json", nil, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", nil, out)
}

// retryable reports whether a failed attempt may be sent again. Writes are
// only repeated on 429, where the server has rejected the request unseen;
// a gateway error may still have created the issue or comment.
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

// do sends one request, retrying transient failures with a linear back-off.
// Transport errors are retried for reads only.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, headers http.Header, out any) error {
	target := c.baseURL + path
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
		req.SetBasicAuth(c.email, c.apiToken)
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("jira %s %s: %w", method, path, err)
			c.logger.Warn("tracker request failed", "method", method, "path", path, "attempt", attempt, "error", err)
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
				c.logger.Warn("tracker request throttled", "method", method, "path", path, "status", resp.StatusCode, "attempt", attempt)
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
