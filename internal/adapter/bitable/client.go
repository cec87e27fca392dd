// Package bitable writes rows into a Feishu/Lark Bitable table through its open API.
package bitable

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
	"strings"
	"sync"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

const (
	// MaxBatch is the record limit of one batch_create call.
	MaxBatch = 500

	defaultBaseURL = "https://open.feishu.cn"
	tokenPath      = "/open-apis/auth/v3/tenant_access_token/internal"
	// refresh tokens this long before the server-side expiry.
	tokenSlack = 5 * time.Minute
)

// Options configures a Client.
type Options struct {
	AppID     string
	AppSecret string
	// AppToken identifies the Bitable app (base) holding the target tables.
	AppToken string
	BaseURL  string
	// BatchSize caps records per request; zero or anything above MaxBatch means MaxBatch.
	BatchSize  int
	HTTPClient *http.Client
}

// Client implements port.RowSink.
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func New(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.AppID == "" || opts.AppSecret == "" {
		return nil, errors.New("bitable: app id and app secret are required")
	}
	if opts.AppToken == "" {
		return nil, errors.New("bitable: app token is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BatchSize <= 0 || opts.BatchSize > MaxBatch {
		opts.BatchSize = MaxBatch
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{opts: opts, http: hc, logger: logger, now: time.Now}, nil
}

// apiResponse is the envelope shared by every open API reply.
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type tokenResponse struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Token  string `json:"tenant_access_token"`
	Expire int    `json:"expire"`
}

type record struct {
	Fields map[string]any `json:"fields"`
}

type batchCreateRequest struct {
	Records []record `json:"records"`
}

type batchCreateData struct {
	Records []json.RawMessage `json:"records"`
}

// WriteRows converts rows by field type and inserts them with batch_create, at
// most BatchSize records per call. Batches already written stay written when a
// later one fails.
func (c *Client) WriteRows(ctx context.Context, w port.SinkWrite) (*port.SinkResult, error) {
	if w.Target == "" {
		return nil, errors.New("bitable: target table id is required")
	}
	result := &port.SinkResult{Target: w.Target}
	if len(w.Rows) == 0 {
		return result, nil
	}

	token, err := c.tenantToken(ctx)
	if err != nil {
		return result, err
	}

	endpoint := fmt.Sprintf("%s/open-apis/bitable/v1/apps/%s/tables/%s/records/batch_create",
		c.opts.BaseURL, url.PathEscape(c.opts.AppToken), url.PathEscape(w.Target))

	for start := 0; start < len(w.Rows); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(w.Rows))
		req := batchCreateRequest{Records: make([]record, 0, end-start)}
		for _, row := range w.Rows[start:end] {
			req.Records = append(req.Records, record{Fields: ConvertRow(row, w.Fields)})
		}

		var data batchCreateData
		if err := c.post(ctx, endpoint, token, req, &data); err != nil {
			return result, fmt.Errorf("bitable: batch %d (rows %d-%d): %w", result.Batches+1, start, end-1, err)
		}
		result.Batches++
		result.Written += len(data.Records)
		c.logger.DebugContext(ctx, "bitable batch written",
			slog.String("sink.target", w.Target),
			slog.Int("sink.batch", result.Batches),
			slog.Int("sink.records", len(data.Records)),
		)
	}
	return result, nil
}

// tenantToken returns a cached tenant access token, fetching a new one when it
// is missing or about to expire.
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExp) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"app_id":     c.opts.AppID,
		"app_secret": c.opts.AppSecret,
	})
	if err != nil {
		return "", fmt.Errorf("bitable: encoding token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("bitable: creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("bitable: requesting tenant token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("bitable: decoding token response: %w", err)
	}
	if tr.Code != 0 || tr.Token == "" {
		return "", fmt.Errorf("bitable: tenant token: code %d: %s", tr.Code, tr.Msg)
	}

	c.token = tr.Token
	c.tokenExp = c.now().Add(time.Duration(tr.Expire)*time.Second - tokenSlack)
	return c.token, nil
}

func (c *Client) post(ctx context.Context, endpoint, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("code %d: %s", env.Code, env.Msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("status %d (error reading response body: %w)", resp.StatusCode, err)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
