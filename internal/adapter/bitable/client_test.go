package bitable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI mimics the token and batch_create endpoints.
type fakeAPI struct {
	mu          sync.Mutex
	tokenCalls  int
	batchSizes  []int
	lastAuth    string
	lastPath    string
	lastFields  []map[string]any
	failBatchAt int // 1-based, zero means never
	tokenCode   int
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /open-apis/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		assert.Equal(t, "cli_app", body["app_id"])
		assert.Equal(t, "secret", body["app_secret"])

		f.mu.Lock()
		f.tokenCalls++
		code := f.tokenCode
		f.mu.Unlock()
		if code != 0 {
			_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": "app secret invalid"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "ok", "tenant_access_token": "t-123", "expire": 7200})
	})
	mux.HandleFunc("POST /open-apis/bitable/v1/apps/{app}/tables/{table}/records/batch_create", func(w http.ResponseWriter, r *http.Request) {
		var req batchCreateRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}

		f.mu.Lock()
		f.batchSizes = append(f.batchSizes, len(req.Records))
		n := len(f.batchSizes)
		f.lastAuth = r.Header.Get("Authorization")
		f.lastPath = r.URL.Path
		f.lastFields = f.lastFields[:0]
		for _, rec := range req.Records {
			f.lastFields = append(f.lastFields, rec.Fields)
		}
		fail := f.failBatchAt == n
		f.mu.Unlock()

		if fail {
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 1254045, "msg": "FieldNameNotFound"})
			return
		}
		records := make([]map[string]any, len(req.Records))
		for i := range records {
			records[i] = map[string]any{"record_id": fmt.Sprintf("rec%d", i)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "success", "data": map[string]any{"records": records}})
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI, batch int) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(Options{
		AppID:      "cli_app",
		AppSecret:  "secret",
		AppToken:   "bascnApp",
		BaseURL:    srv.URL + "/",
		BatchSize:  batch,
		HTTPClient: srv.Client(),
	}, testLogger())
	require.NoError(t, err)
	return c
}

func rows(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"name": fmt.Sprintf("Lead %d", i), "score": int64(i)}
	}
	return out
}

func TestWriteRows_Chunks(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, 0)

	res, err := c.WriteRows(context.Background(), port.SinkWrite{Target: "tblLeads", Rows: rows(1201)})
	require.NoError(t, err)
	assert.Equal(t, &port.SinkResult{Target: "tblLeads", Written: 1201, Batches: 3}, res)
	assert.Equal(t, []int{500, 500, 201}, api.batchSizes)
	assert.Equal(t, "Bearer t-123", api.lastAuth)
	assert.Equal(t, "/open-apis/bitable/v1/apps/bascnApp/tables/tblLeads/records/batch_create", api.lastPath)
	assert.Equal(t, 1, api.tokenCalls, "token is cached across batches")
}

func TestWriteRows_ConvertsFields(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, 10)

	_, err := c.WriteRows(context.Background(), port.SinkWrite{
		Target: "tbl",
		Fields: map[string]port.SinkField{
			"score":   port.SinkNumber,
			"website": port.SinkURL,
			"active":  port.SinkCheckbox,
		},
		Rows: []map[string]any{{
			"name":    "Ann",
			"score":   int64(7),
			"website": "https://example.com",
			"active":  "yes",
			"phone":   nil,
		}},
	})
	require.NoError(t, err)
	require.Len(t, api.lastFields, 1)

	got := api.lastFields[0]
	assert.Equal(t, "Ann", got["name"])
	assert.Equal(t, float64(7), got["score"])
	assert.Equal(t, map[string]any{"link": "https://example.com", "text": "https://example.com"}, got["website"])
	assert.Equal(t, true, got["active"])
	assert.NotContains(t, got, "phone")
}

func TestWriteRows_StopsAtFailedBatch(t *testing.T) {
	api := &fakeAPI{failBatchAt: 2}
	c := newTestClient(t, api, 2)

	res, err := c.WriteRows(context.Background(), port.SinkWrite{Target: "tbl", Rows: rows(5)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FieldNameNotFound")
	assert.Contains(t, err.Error(), "rows 2-3")
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 1, res.Batches)
	assert.Len(t, api.batchSizes, 2)
}

func TestWriteRows_TokenError(t *testing.T) {
	api := &fakeAPI{tokenCode: 10014}
	c := newTestClient(t, api, 0)

	_, err := c.WriteRows(context.Background(), port.SinkWrite{Target: "tbl", Rows: rows(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app secret invalid")
	assert.Empty(t, api.batchSizes)
}

func TestWriteRows_RefreshesExpiredToken(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, 0)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := c.WriteRows(ctx, port.SinkWrite{Target: "tbl", Rows: rows(1)})
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = c.WriteRows(ctx, port.SinkWrite{Target: "tbl", Rows: rows(1)})
	require.NoError(t, err)
	assert.Equal(t, 2, api.tokenCalls)
}

func TestWriteRows_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Options{AppID: "a", AppSecret: "b", AppToken: "c", BaseURL: srv.URL}, testLogger())
	require.NoError(t, err)

	_, err = c.WriteRows(context.Background(), port.SinkWrite{Target: "tbl", Rows: rows(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestWriteRows_NoRows(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, 0)

	res, err := c.WriteRows(context.Background(), port.SinkWrite{Target: "tbl"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Written)
	assert.Equal(t, 0, api.tokenCalls)

	_, err = c.WriteRows(context.Background(), port.SinkWrite{Rows: rows(1)})
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{AppSecret: "s", AppToken: "t"}, testLogger())
	assert.Error(t, err)
	_, err = New(Options{AppID: "a", AppSecret: "s"}, testLogger())
	assert.Error(t, err)

	c, err := New(Options{AppID: "a", AppSecret: "s", AppToken: "t", BatchSize: 900}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, MaxBatch, c.opts.BatchSize)
	assert.Equal(t, defaultBaseURL, c.opts.BaseURL)
}
