package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/guillermoBallester/tablesmith/internal/adapter/configfile"
	"github.com/guillermoBallester/tablesmith/internal/adapter/dataset"
	"github.com/guillermoBallester/tablesmith/internal/adapter/sqlite"
	"github.com/guillermoBallester/tablesmith/internal/audit"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/guillermoBallester/tablesmith/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leadsCSV = `name,email,score,website
Ada,ada@example.com,10,https://example.com/ada
Grace,grace@example.com,30,https://example.com/grace
Linus,linus@example.com,20,https://example.com/linus
`

// --- fake sink ---

type fakeSink struct {
	mu     sync.Mutex
	writes []port.SinkWrite
	err    error
}

func (f *fakeSink) WriteRows(_ context.Context, w port.SinkWrite) (*port.SinkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.writes = append(f.writes, w)
	return &port.SinkResult{Target: w.Target, Written: len(w.Rows), Batches: 1}, nil
}

// --- helpers ---

func callTool(t *testing.T, s *server.MCPServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	session := server.NewInProcessSession("test", nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	defer s.UnregisterSession(ctx, session.SessionID())
	sessionCtx := s.WithContext(ctx, session)

	// Initialize session.
	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	// Call tool.
	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "call-1", "method": "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": args,
		},
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var rpc struct {
		Result *mcp.CallToolResult       `json:"result"`
		Error  *struct{ Message string } `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpc))
	require.Nil(t, rpc.Error, "unexpected RPC error: %v", rpc.Error)
	require.NotNil(t, rpc.Result)
	return rpc.Result
}

func toolText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return ""
	}
	return tc.Text
}

type testEnv struct {
	server *server.MCPServer
	dir    string
	csv    string
}

// setupServer wires the real services over a temporary SQLite database.
func setupServer(t *testing.T, sink port.RowSink) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	st, err := sqlite.Open(ctx, filepath.Join(dir, "tools.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	csvPath := filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(leadsCSV), 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	configs := configfile.NewRepository(filepath.Join(dir, "configs"))
	ingest := service.NewIngestService(service.IngestDeps{
		Store:     st,
		Configs:   configs,
		Reader:    dataset.NewReader(),
		Builder:   service.NewConfigBuilder(domain.NewDetector(), domain.InferOptions{}, logger),
		Migrator:  service.NewSchemaMigrator(logger, nil),
		Loader:    service.NewBatchLoader(audit.NoopAuditor{}, logger, nil, nil),
		BatchSize: 2,
		Logger:    logger,
	})
	query := service.NewQueryService(st, domain.NewOrderByValidator(), configs, nil, audit.NoopAuditor{}, logger, nil, nil,
		service.QueryOptions{MaxRows: 50})

	svc := Services{Ingest: ingest, Query: query, Configs: configs}
	if sink != nil {
		svc.Export = service.NewExportService(query, configs, sink, logger)
	}

	s := server.NewMCPServer("test", "0.1.0", server.WithToolCapabilities(true))
	RegisterTools(s, svc)
	return &testEnv{server: s, dir: dir, csv: csvPath}
}

func (e *testEnv) load(t *testing.T) {
	t.Helper()
	result := callTool(t, e.server, "infer_and_load", map[string]any{"file_path": e.csv, "table_name": "leads"})
	require.False(t, result.IsError, "unexpected error: %s", toolText(result))
}

// --- tests ---

func TestRegisterTools_ExportOnlyWithSink(t *testing.T) {
	without := setupServer(t, nil).server.ListTools()
	assert.Contains(t, without, "infer_config")
	assert.Contains(t, without, "infer_and_load")
	assert.Contains(t, without, "query_table")
	assert.Contains(t, without, "table_stats")
	assert.Contains(t, without, "show_config")
	assert.NotContains(t, without, "export_table")

	with := setupServer(t, &fakeSink{}).server.ListTools()
	assert.Contains(t, with, "export_table")
}

func TestInferConfig_HappyPath(t *testing.T) {
	env := setupServer(t, nil)

	result := callTool(t, env.server, "infer_config", map[string]any{"file_path": env.csv, "table_name": "Leads"})
	require.False(t, result.IsError, "unexpected error: %s", toolText(result))

	var report struct {
		Table  string `json:"table"`
		Reused bool   `json:"reused"`
		Config struct {
			TableConfig struct {
				TableName string `json:"table_name"`
			} `json:"table_config"`
			Fields map[string]struct {
				MySQLType   string `json:"mysql_type"`
				SpecialType string `json:"special_type"`
			} `json:"fields"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &report))

	assert.Equal(t, "leads", report.Table)
	assert.False(t, report.Reused)
	assert.Equal(t, "leads", report.Config.TableConfig.TableName)
	assert.Equal(t, string(domain.SpecialEmail), report.Config.Fields["email"].SpecialType)
	assert.Equal(t, string(domain.SpecialURL), report.Config.Fields["website"].SpecialType)
	assert.Contains(t, report.Config.Fields, "id")

	// The config is persisted, so the second call reuses it.
	again := callTool(t, env.server, "infer_config", map[string]any{"file_path": env.csv, "table_name": "leads"})
	require.False(t, again.IsError)
	assert.Contains(t, toolText(again), `"reused":true`)
}

func TestInferConfig_Errors(t *testing.T) {
	env := setupServer(t, nil)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing path", map[string]any{}, "file_path is required"},
		{"missing file", map[string]any{"file_path": filepath.Join(env.dir, "absent.csv")}, "failed to read file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, env.server, "infer_config", tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, toolText(result), tt.want)
		})
	}
}

func TestInferAndLoad_Batches(t *testing.T) {
	env := setupServer(t, nil)

	result := callTool(t, env.server, "infer_and_load", map[string]any{
		"file_path":  env.csv,
		"table_name": "leads",
		"batch_size": 2,
	})
	require.False(t, result.IsError, "unexpected error: %s", toolText(result))

	var report struct {
		RunID     string `json:"run_id"`
		Migration struct {
			State string `json:"state"`
		} `json:"migration"`
		Load struct {
			Committed int               `json:"committed"`
			Batches   []json.RawMessage `json:"batches"`
		} `json:"load"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "created", report.Migration.State)
	assert.Equal(t, 3, report.Load.Committed)
	assert.Len(t, report.Load.Batches, 2)
}

func TestInferAndLoad_InvalidBatchSize(t *testing.T) {
	env := setupServer(t, nil)

	result := callTool(t, env.server, "infer_and_load", map[string]any{"file_path": env.csv, "batch_size": 0.5})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "batch_size")
}

func TestQueryTable(t *testing.T) {
	env := setupServer(t, nil)
	env.load(t)

	t.Run("in list ordered", func(t *testing.T) {
		result := callTool(t, env.server, "query_table", map[string]any{
			"table_name": "leads",
			"where":      map[string]any{"score": []any{10, 30}},
			"order_by":   "score DESC",
		})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var res port.QueryResult
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &res))
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "Grace", res.Rows[0]["name"])
		assert.Equal(t, "Ada", res.Rows[1]["name"])
	})

	t.Run("equality", func(t *testing.T) {
		result := callTool(t, env.server, "query_table", map[string]any{
			"table_name": "leads",
			"where":      map[string]any{"email": "linus@example.com"},
		})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))
		assert.Contains(t, toolText(result), "Linus")
		assert.NotContains(t, toolText(result), "Grace")
	})

	t.Run("limit", func(t *testing.T) {
		result := callTool(t, env.server, "query_table", map[string]any{"table_name": "leads", "limit": 1})
		require.False(t, result.IsError)

		var res port.QueryResult
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &res))
		assert.Len(t, res.Rows, 1)
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name string
			args map[string]any
			want string
		}{
			{"missing table name", map[string]any{}, "table_name is required"},
			{"unknown table", map[string]any{"table_name": "nope"}, "query failed"},
			{"where not an object", map[string]any{"table_name": "leads", "where": "score = 1"}, "where must be an object"},
			{"nested value", map[string]any{"table_name": "leads", "where": map[string]any{"score": map[string]any{"gt": 1}}}, "nested"},
			{"unknown column", map[string]any{"table_name": "leads", "where": map[string]any{"nope": 1}}, "query failed"},
			{"negative limit", map[string]any{"table_name": "leads", "limit": -1}, "limit"},
			{"bad order by", map[string]any{"table_name": "leads", "order_by": "score; DROP TABLE leads"}, "query failed"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result := callTool(t, env.server, "query_table", tt.args)
				assert.True(t, result.IsError)
				assert.Contains(t, toolText(result), tt.want)
			})
		}
	})
}

func TestTableStats(t *testing.T) {
	env := setupServer(t, nil)
	env.load(t)

	result := callTool(t, env.server, "table_stats", map[string]any{"table_name": "leads"})
	require.False(t, result.IsError, "unexpected error: %s", toolText(result))

	var stats struct {
		Table    string              `json:"table"`
		RowCount int64               `json:"row_count"`
		Columns  []domain.LiveColumn `json:"columns"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &stats))
	assert.Equal(t, "leads", stats.Table)
	assert.Equal(t, int64(3), stats.RowCount)

	names := make([]string, 0, len(stats.Columns))
	for _, c := range stats.Columns {
		names = append(names, c.Name)
	}
	assert.Subset(t, names, []string{"id", "name", "email", "score", "website"})

	missing := callTool(t, env.server, "table_stats", map[string]any{"table_name": "nope"})
	assert.True(t, missing.IsError)
}

func TestShowConfig(t *testing.T) {
	env := setupServer(t, nil)

	before := callTool(t, env.server, "show_config", map[string]any{"table_name": "leads"})
	assert.True(t, before.IsError)
	assert.Contains(t, toolText(before), "no config persisted")

	env.load(t)

	after := callTool(t, env.server, "show_config", map[string]any{"table_name": "leads"})
	require.False(t, after.IsError, "unexpected error: %s", toolText(after))
	assert.Contains(t, toolText(after), `"table_name":"leads"`)
	assert.Contains(t, toolText(after), `"email"`)
}

func TestExportTable(t *testing.T) {
	sink := &fakeSink{}
	env := setupServer(t, sink)
	env.load(t)

	result := callTool(t, env.server, "export_table", map[string]any{
		"table_name": "leads",
		"target":     "tblLeads",
		"where":      map[string]any{"score": []any{10, 20}},
	})
	require.False(t, result.IsError, "unexpected error: %s", toolText(result))

	var res port.SinkResult
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &res))
	assert.Equal(t, "tblLeads", res.Target)
	assert.Equal(t, 2, res.Written)

	require.Len(t, sink.writes, 1)
	assert.Equal(t, port.SinkURL, sink.writes[0].Fields["website"])

	missingTarget := callTool(t, env.server, "export_table", map[string]any{"table_name": "leads"})
	assert.True(t, missingTarget.IsError)
	assert.Contains(t, toolText(missingTarget), "target is required")

	sink.err = errors.New("bitable unavailable")
	failed := callTool(t, env.server, "export_table", map[string]any{"table_name": "leads", "target": "tblLeads"})
	assert.True(t, failed.IsError)
	assert.Contains(t, toolText(failed), "bitable unavailable")
}
