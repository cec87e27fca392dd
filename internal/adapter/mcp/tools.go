package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/guillermoBallester/tablesmith/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "tablesmith"

// Tool descriptions
const (
	descInferConfig = "Infer a table config from a CSV or XLSX file without touching the database. " +
		"Returns the column types, nullability, special types (email, phone, url, datetime, ...), " +
		"and the planned unique, normal and fulltext indexes. " +
		"A config already persisted for the table is returned as-is unless regenerate is true, " +
		"so hand edits survive. Use this to review a schema before loading."

	descInferAndLoad = "Infer (or reuse) the table config for a CSV or XLSX file, create the destination table " +
		"with its indexes, and load every row in batches of one transaction each. " +
		"An existing table is reused and reported with a drift summary unless replace is true, " +
		"in which case it is dropped and recreated. " +
		"If a batch fails, batches committed before it are kept and the report says which rows failed."

	descQueryTable = "Query rows of a loaded table with equality conditions. " +
		"where maps column names to a value (col = value) or to an array of values (col IN (...)); " +
		"conditions are combined with AND. order_by accepts a SQL ORDER BY list such as \"score DESC, name\". " +
		"A server-side row limit is enforced; PII columns may be masked."

	descTableStats = "Show the live columns, row count and persisted config of a table. " +
		"Call this before query_table to learn which columns exist."

	descShowConfig = "Show the persisted config of a table: field definitions in column order and index lists."

	descExportTable = "Query rows of a table and append them to a Bitable (Feishu/Lark) table. " +
		"Field types are derived from the table config: numbers, URLs, dates and checkboxes are converted."

	descFilePath   = "Path to a .csv, .tsv or .xlsx file readable by the server"
	descTableName  = "Destination table name (defaults to auto_generated_table)"
	descSheet      = "Worksheet name for XLSX files (defaults to the first sheet)"
	descRegenerate = "Re-infer the config even when one is persisted. Defaults to false."
	descWhere      = "Object of column -> value or column -> [values]"
)

// Services groups what the tools call into. Export is optional.
type Services struct {
	Ingest  *service.IngestService
	Query   *service.QueryService
	Export  *service.ExportService
	Configs port.ConfigRepository
}

func RegisterTools(s *server.MCPServer, svc Services) {
	s.AddTool(
		mcp.NewTool("infer_config",
			mcp.WithDescription(descInferConfig),
			mcp.WithString("file_path", mcp.Required(), mcp.Description(descFilePath)),
			mcp.WithString("table_name", mcp.Description(descTableName)),
			mcp.WithString("sheet", mcp.Description(descSheet)),
			mcp.WithBoolean("regenerate", mcp.Description(descRegenerate)),
		),
		inferConfigHandler(svc.Ingest),
	)

	s.AddTool(
		mcp.NewTool("infer_and_load",
			mcp.WithDescription(descInferAndLoad),
			mcp.WithString("file_path", mcp.Required(), mcp.Description(descFilePath)),
			mcp.WithString("table_name", mcp.Description(descTableName)),
			mcp.WithString("sheet", mcp.Description(descSheet)),
			mcp.WithBoolean("replace",
				mcp.Description("Drop and recreate the table if it exists. Defaults to false."),
			),
			mcp.WithNumber("batch_size",
				mcp.Description("Rows per transaction (defaults to the server setting)"),
			),
			mcp.WithBoolean("regenerate", mcp.Description(descRegenerate)),
		),
		inferAndLoadHandler(svc.Ingest),
	)

	s.AddTool(
		mcp.NewTool("query_table",
			mcp.WithDescription(descQueryTable),
			mcp.WithString("table_name", mcp.Required(), mcp.Description("Table to query")),
			mcp.WithObject("where", mcp.Description(descWhere)),
			mcp.WithString("order_by", mcp.Description("ORDER BY list, e.g. \"created_at DESC\"")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		queryTableHandler(svc.Query),
	)

	s.AddTool(
		mcp.NewTool("table_stats",
			mcp.WithDescription(descTableStats),
			mcp.WithString("table_name", mcp.Required(), mcp.Description("Table to describe")),
		),
		tableStatsHandler(svc.Query),
	)

	s.AddTool(
		mcp.NewTool("show_config",
			mcp.WithDescription(descShowConfig),
			mcp.WithString("table_name", mcp.Required(), mcp.Description("Table whose config to show")),
		),
		showConfigHandler(svc.Configs),
	)

	if svc.Export != nil {
		s.AddTool(
			mcp.NewTool("export_table",
				mcp.WithDescription(descExportTable),
				mcp.WithString("table_name", mcp.Required(), mcp.Description("Table to export")),
				mcp.WithString("target", mcp.Required(), mcp.Description("Bitable table ID (tbl...)")),
				mcp.WithObject("where", mcp.Description(descWhere)),
				mcp.WithNumber("limit", mcp.Description("Maximum rows to export")),
			),
			exportTableHandler(svc.Export),
		)
	}
}

func inferConfigHandler(ingest *service.IngestService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		path, ok := args["file_path"].(string)
		if !ok || path == "" {
			return mcp.NewToolResultError("file_path is required"), nil
		}
		table, _ := args["table_name"].(string)
		sheet, _ := args["sheet"].(string)
		regenerate, _ := args["regenerate"].(bool)

		ctx = service.WithOperation(ctx, "infer_config")
		ds, err := ingest.ReadFile(ctx, path, port.ReadOptions{Sheet: sheet})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read file: %v", err)), nil
		}
		report, err := ingest.InferConfig(ctx, ds, table, regenerate)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to infer config: %v", err)), nil
		}
		return jsonResult(report)
	}
}

func inferAndLoadHandler(ingest *service.IngestService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		path, ok := args["file_path"].(string)
		if !ok || path == "" {
			return mcp.NewToolResultError("file_path is required"), nil
		}
		sheet, _ := args["sheet"].(string)
		req := service.LoadRequest{}
		req.Table, _ = args["table_name"].(string)
		req.Replace, _ = args["replace"].(bool)
		req.Regenerate, _ = args["regenerate"].(bool)
		if n, ok := args["batch_size"].(float64); ok {
			if n < 1 || n != math.Trunc(n) {
				return mcp.NewToolResultError("batch_size must be a positive integer"), nil
			}
			req.BatchSize = int(n)
		}

		ctx = service.WithOperation(ctx, "infer_and_load")
		ds, err := ingest.ReadFile(ctx, path, port.ReadOptions{Sheet: sheet})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read file: %v", err)), nil
		}
		report, err := ingest.InferAndLoad(ctx, ds, req)
		if err != nil {
			return partialResult(report, err), nil
		}
		return jsonResult(report)
	}
}

func queryTableHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		table, ok := args["table_name"].(string)
		if !ok || table == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}
		conditions, err := service.ConditionsFromMap(args["where"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		orderBy, _ := args["order_by"].(string)
		limit, err := parseLimit(args["limit"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ctx = service.WithOperation(ctx, "query_table")
		result, err := query.Query(ctx, table, conditions, orderBy, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return jsonResult(result)
	}
}

func tableStatsHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, ok := request.GetArguments()["table_name"].(string)
		if !ok || table == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		ctx = service.WithOperation(ctx, "table_stats")
		stats, err := query.Stats(ctx, table)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read stats: %v", err)), nil
		}
		return jsonResult(stats)
	}
}

func showConfigHandler(configs port.ConfigRepository) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, ok := request.GetArguments()["table_name"].(string)
		if !ok || table == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		cfg, err := configs.Load(ctx, service.TableName(table))
		if errors.Is(err, domain.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no config persisted for table %q; run infer_config first", table)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load config: %v", err)), nil
		}
		return jsonResult(cfg)
	}
}

func exportTableHandler(export *service.ExportService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		table, ok := args["table_name"].(string)
		if !ok || table == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}
		target, ok := args["target"].(string)
		if !ok || target == "" {
			return mcp.NewToolResultError("target is required"), nil
		}
		conditions, err := service.ConditionsFromMap(args["where"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		limit, err := parseLimit(args["limit"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ctx = service.WithOperation(ctx, "export_table")
		res, err := export.Export(ctx, table, target, conditions, limit)
		if err != nil {
			return partialResult(res, err), nil
		}
		return jsonResult(res)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// partialResult reports err together with whatever progress was made before it.
func partialResult(progress any, err error) *mcp.CallToolResult {
	msg := err.Error()
	if progress != nil {
		if data, mErr := json.Marshal(progress); mErr == nil && string(data) != "null" {
			msg += "\n" + string(data)
		}
	}
	return mcp.NewToolResultError(msg)
}

func parseLimit(raw any) (int, error) {
	if raw == nil {
		return 0, nil
	}
	n, ok := raw.(float64)
	if !ok || n < 0 || n != math.Trunc(n) {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return int(n), nil
}
