package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// inflight is the per-request state kept between the before and after hooks.
type inflight struct {
	start time.Time
	table string
	span  trace.Span
}

// toolCalls tracks calls by JSON-RPC id.
type toolCalls struct {
	m sync.Map
}

func (c *toolCalls) begin(id any, st *inflight) { c.m.Store(id, st) }

// end returns the state for id, or a zero state if the before hook never ran.
func (c *toolCalls) end(id any) *inflight {
	if v, ok := c.m.LoadAndDelete(id); ok {
		return v.(*inflight)
	}
	return &inflight{start: time.Now()}
}

// ToolCallHooks logs every tool call and, when given, records a span and the
// call duration per tool.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	hooks := &server.Hooks{}
	calls := &toolCalls{}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		st := &inflight{start: time.Now()}
		st.table, _ = req.GetArguments()["table_name"].(string)

		if tracer != nil {
			attrs := []attribute.KeyValue{attribute.String("mcp.tool.name", req.Params.Name)}
			if st.table != "" {
				attrs = append(attrs, attribute.String("db.collection.name", st.table))
			}
			_, st.span = tracer.Start(ctx, "mcp.tool.call", trace.WithAttributes(attrs...))
		}
		calls.begin(id, st)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		st := calls.end(id)
		elapsed := time.Since(st.start)

		failed := false
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			failed = true
		}
		level := slog.LevelInfo
		if failed {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "tool call",
			slog.String("mcp.tool.name", req.Params.Name),
			slog.String("db.table", st.table),
			slog.Duration("duration", elapsed),
			slog.Bool("error", failed),
		)

		if inst != nil {
			inst.RecordToolDuration(ctx, req.Params.Name, float64(elapsed.Milliseconds()))
		}
		if st.span != nil {
			if failed {
				st.span.SetStatus(codes.Error, "tool returned error")
				st.span.RecordError(fmt.Errorf("tool %s returned error", req.Params.Name))
			}
			st.span.End()
		}
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		req, ok := message.(*mcp.CallToolRequest)
		if !ok {
			return
		}
		st := calls.end(id)
		logger.LogAttrs(ctx, slog.LevelError, "tool call failed",
			slog.String("mcp.tool.name", req.Params.Name),
			slog.String("db.table", st.table),
			slog.Duration("duration", time.Since(st.start)),
			slog.String("error", err.Error()),
		)
		if st.span != nil {
			st.span.RecordError(err)
			st.span.SetStatus(codes.Error, err.Error())
			st.span.End()
		}
	})

	return hooks
}
