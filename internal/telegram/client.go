package telegram

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
	defaultAPIURL  = "https://api.telegram.org"
	maxFileSize    = 20 << 20
	defaultTimeout = 30 * time.Second
)

type Config struct {
	Token   string
	APIURL  string
	Timeout time.Duration
}

// Client is a minimal Bot API client covering what the bot uses.
type Client struct {
	token  string
	apiURL string
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		token:  cfg.Token,
		apiURL: apiURL,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// APIError is an unsuccessful Bot API reply.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

func IsTooManyRequests(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (Message, error) {
	var msg Message
	err := c.callJSON(ctx, "sendMessage", params, &msg)
	return msg, err
}

func (c *Client) SendDocument(ctx context.Context, params SendDocumentParams) (Message, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{"chat_id": strconv.FormatInt(params.ChatID, 10)}
	if params.MessageThreadID != 0 {
		fields["message_thread_id"] = strconv.Itoa(params.MessageThreadID)
	}
	if params.Caption != "" {
		fields["caption"] = params.Caption
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return Message{}, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	part, err := mw.CreateFormFile("document", params.FileName)
	if err != nil {
		return Message{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(params.Data); err != nil {
		return Message{}, fmt.Errorf("write document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Message{}, fmt.Errorf("close multipart: %w", err)
	}

	var msg Message
	err = c.call(ctx, "sendDocument", &buf, mw.FormDataContentType(), &msg)
	return msg, err
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	params := map[string]string{"callback_query_id": callbackID}
	if text != "" {
		params["text"] = text
	}
	return c.callJSON(ctx, "answerCallbackQuery", params, nil)
}

func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	var f File
	err := c.callJSON(ctx, "getFile", map[string]string{"file_id": fileID}, &f)
	return f, err
}

// DownloadFile fetches a file previously resolved with GetFile.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/file/bot"+c.token+"/"+filePath, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Method: "download", Code: resp.StatusCode, Description: resp.Status}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("file %s exceeds %d bytes", filePath, maxFileSize)
	}
	return data, nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	err := c.callJSON(ctx, "getUpdates", params, &updates)
	return updates, err
}

func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	params := map[string]any{
		"url":             webhookURL,
		"secret_token":    secret,
		"allowed_updates": []string{"message", "callback_query"},
	}
	return c.callJSON(ctx, "setWebhook", params, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.callJSON(ctx, "deleteWebhook", map[string]any{}, nil)
}

func (c *Client) callJSON(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	return c.call(ctx, method, bytes.NewReader(body), "application/json", out)
}

func (c *Client) call(ctx context.Context, method string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/bot"+c.token+"/"+method, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		// the url carries the token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var res apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("decode %s: status %d: %w", method, resp.StatusCode, err)
	}
	if !res.OK {
		apiErr := &APIError{Method: method, Code: res.ErrorCode, Description: res.Description}
		if res.Parameters != nil {
			apiErr.RetryAfter = res.Parameters.RetryAfter
		}
		c.logger.Warn("telegram call failed", "method", method, "code", apiErr.Code, "description", apiErr.Description)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
