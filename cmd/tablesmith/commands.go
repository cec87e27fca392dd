package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/guillermoBallester/tablesmith/internal/core/service"
	"github.com/spf13/cobra"
)

// withApp loads the config, wires the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	return runApp(cmd, false, fn)
}

// withOfflineApp is withApp for commands that never touch the destination:
// no DATABASE_URL is required and no connection is opened.
func withOfflineApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	return runApp(cmd, true, fn)
}

func runApp(cmd *cobra.Command, offline bool, fn func(ctx context.Context, a *app) error) error {
	cfg, logger, err := loadConfig(cmd, offline)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, logger, offline)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Warn("shutdown", slog.String("error", err.Error()))
		}
	}()
	return fn(ctx, a)
}

func newInferCmd() *cobra.Command {
	var (
		table, sheet string
		regenerate   bool
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "infer <file>",
		Short: "Infer and persist the table config for a CSV/XLSX file without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOfflineApp(cmd, func(ctx context.Context, a *app) error {
				ctx = service.WithOperation(ctx, "infer")
				ds, err := a.ingest.ReadFile(ctx, args[0], port.ReadOptions{Sheet: sheet})
				if err != nil {
					return err
				}
				report, err := a.ingest.InferConfig(ctx, ds, table, regenerate)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				renderInfer(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "destination table name (default auto_generated_table)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet for XLSX files (default first sheet)")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "re-infer even when a config is persisted")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newLoadCmd() *cobra.Command {
	var (
		table, sheet        string
		replace, regenerate bool
		asJSON              bool
	)
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Infer (or reuse) the config, create the table and load every row in batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ctx = service.WithOperation(ctx, "load")
				ds, err := a.ingest.ReadFile(ctx, args[0], port.ReadOptions{Sheet: sheet})
				if err != nil {
					return err
				}
				report, err := a.ingest.InferAndLoad(ctx, ds, service.LoadRequest{
					Table:      table,
					Replace:    replace,
					Regenerate: regenerate,
				})
				if report != nil && report.Infer != nil {
					if asJSON {
						if jErr := writeJSON(cmd.OutOrStdout(), report); jErr != nil {
							return errors.Join(err, jErr)
						}
					} else {
						renderIngest(cmd.OutOrStdout(), report)
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "destination table name (default auto_generated_table)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet for XLSX files (default first sheet)")
	cmd.Flags().BoolVar(&replace, "replace", false, "drop and recreate the table if it exists")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "re-infer even when a config is persisted")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var (
		where   []string
		orderBy string
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Query rows with equality conditions",
		Example: "  tablesmith query leads --where status=new|contacted --where city=Berlin \\\n" +
			"    --order-by 'created_at DESC' --limit 20",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conditions, err := service.ParseConditions(where)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ctx = service.WithOperation(ctx, "query")
				res, err := a.query.Query(ctx, args[0], conditions, orderBy, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				renderRows(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "condition column=value; value a|b means IN (a, b); repeatable")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "ORDER BY column list, e.g. \"score DESC, name\"")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (default and cap: max-rows)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats <table>",
		Short: "Show live columns, row count and persisted config of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ctx = service.WithOperation(ctx, "stats")
				stats, err := a.query.Stats(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				renderStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		target string
		where  []string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "export <table>",
		Short: "Append queried rows to a Bitable table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conditions, err := service.ParseConditions(where)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.export == nil {
					return errors.New("export needs BITABLE_APP_ID, BITABLE_APP_SECRET and BITABLE_APP_TOKEN")
				}
				ctx = service.WithOperation(ctx, "export")
				res, err := a.export.Export(ctx, args[0], target, conditions, limit)
				if res != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s in %d batches\n", res.Written, res.Target, res.Batches)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&target, "sink", "", "Bitable table ID to append to")
	cmd.Flags().StringArrayVar(&where, "where", nil, "condition column=value; value a|b means IN (a, b); repeatable")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (default and cap: max-rows)")
	_ = cmd.MarkFlagRequired("sink")
	return cmd
}
