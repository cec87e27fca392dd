package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

// BuildResult is the outcome of one inference pass.
type BuildResult struct {
	Config      *domain.Config
	Schema      *domain.TableSchema
	Plan        domain.IndexPlan
	Profiles    []domain.ColumnProfile
	Ambiguous   []string
	IndexIssues []domain.IndexIssue
}

// ConfigBuilder infers a TableSchema and IndexPlan from a dataset.
type ConfigBuilder struct {
	detector domain.Detector
	infer    domain.InferOptions
	logger   *slog.Logger
}

func NewConfigBuilder(detector domain.Detector, infer domain.InferOptions, logger *slog.Logger) *ConfigBuilder {
	return &ConfigBuilder{detector: detector, infer: infer, logger: logger}
}

// Build profiles every column, infers storage types, applies the table policy and
// plans indexes. Source columns that clash with synthetic names must already be
// renamed (see domain.Dataset.RenameReserved).
func (b *ConfigBuilder) Build(ctx context.Context, ds *domain.Dataset, table string, pol port.TablePolicy) (*BuildResult, error) {
	if table == "" {
		table = domain.DefaultTableName
	}
	if ds == nil || len(ds.Columns) == 0 {
		return nil, fmt.Errorf("%w: dataset has no columns", domain.ErrInvalidConfig)
	}

	profiles := domain.ProfileDataset(ds, b.detector)
	res := &BuildResult{Profiles: profiles}

	columns := make([]domain.ColumnDescriptor, 0, len(profiles)+3)
	columns = append(columns, domain.ColumnDescriptor{
		Name:          domain.ColumnID,
		StorageType:   domain.TypeBigInt,
		Comment:       "primary key",
		SpecialType:   domain.SpecialPrimaryKey,
		AutoIncrement: true,
	})

	bySource := make(map[string]domain.ColumnDescriptor, len(profiles))
	for _, p := range profiles {
		desc := b.describe(ctx, p, pol)
		if desc.ambiguous {
			res.Ambiguous = append(res.Ambiguous, p.Name)
		}
		columns = append(columns, desc.ColumnDescriptor)
		bySource[p.Name] = desc.ColumnDescriptor
	}

	columns = append(columns,
		domain.ColumnDescriptor{
			Name:        domain.ColumnCreatedAt,
			StorageType: domain.TypeTimestamp,
			Default:     domain.DefaultCurrentTimestamp,
			Comment:     "row creation time",
			SpecialType: domain.SpecialTimestamp,
		},
		domain.ColumnDescriptor{
			Name:        domain.ColumnUpdatedAt,
			StorageType: domain.TypeTimestamp,
			Default:     domain.DefaultCurrentTimestampOnUpdate,
			Comment:     "row update time",
			SpecialType: domain.SpecialTimestamp,
		},
	)

	comment := domain.DefaultTableComment
	if pol.Comment != "" {
		comment = pol.Comment
	}
	schema := &domain.TableSchema{
		Name:               table,
		Engine:             domain.DefaultEngine,
		Charset:            domain.DefaultCharset,
		Collate:            domain.DefaultCollate,
		Comment:            comment,
		AutoIncrementStart: domain.DefaultAutoIncrementStart,
		Columns:            columns,
		PrimaryKey:         []string{domain.ColumnID},
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	intents := mergeIntents(domain.SuggestIndexIntents(profiles, bySource), pol)
	plan, issues := domain.PlanIndexes(schema, intents)
	for _, issue := range issues {
		b.logger.WarnContext(ctx, "index definition skipped",
			slog.String("db.table", table),
			slog.String("index.kind", string(issue.Kind)),
			slog.String("error", issue.Error()),
		)
	}

	res.Schema = schema
	res.Plan = plan
	res.IndexIssues = issues
	res.Config = domain.NewConfig(schema, plan)

	b.logger.InfoContext(ctx, "schema inferred",
		slog.String("db.table", table),
		slog.Int("columns", len(columns)),
		slog.Int("unique_keys", len(plan.UniqueKeys)),
		slog.Int("normal_indexes", len(plan.NormalIndexes)),
		slog.Int("fulltext_indexes", len(plan.FulltextIndexes)),
	)
	return res, nil
}

type describedColumn struct {
	domain.ColumnDescriptor
	ambiguous bool
}

func (b *ConfigBuilder) describe(ctx context.Context, p domain.ColumnProfile, pol port.TablePolicy) describedColumn {
	inf := domain.InferStorageType(p, b.infer)
	if inf.Ambiguous {
		b.logger.WarnContext(ctx, "column type fallback",
			slog.String("db.column", p.Name),
			slog.String("db.type", inf.StorageType),
			slog.String("error", domain.ErrTypeInferenceAmbiguity.Error()),
		)
	}

	nullable := true
	if pol.InferNullability {
		nullable = p.Nullable()
	}

	desc := domain.ColumnDescriptor{
		Name:        p.Name,
		StorageType: inf.StorageType,
		Nullable:    nullable,
		Comment:     p.Name,
		SpecialType: inf.SpecialType,
	}

	hasDefault := false
	if cp, ok := pol.Columns[p.Name]; ok {
		if cp.StorageType != "" {
			desc.StorageType = cp.StorageType
		}
		if cp.SpecialType != "" {
			desc.SpecialType = cp.SpecialType
		}
		if cp.Required != nil {
			desc.Nullable = !*cp.Required
		}
		if cp.Comment != "" {
			desc.Comment = cp.Comment
		}
		if cp.HasDefault {
			desc.Default = cp.Default
			hasDefault = true
		}
	}
	if !desc.Nullable && !hasDefault {
		desc.Default = domain.DefaultFor(p.Kind, desc.SpecialType)
	}
	return describedColumn{ColumnDescriptor: desc, ambiguous: inf.Ambiguous}
}

// mergeIntents adds policy-declared indexes and removes suppressed columns.
func mergeIntents(in domain.IndexIntents, pol port.TablePolicy) domain.IndexIntents {
	in.UniqueKeys = append(in.UniqueKeys, pol.UniqueKeys...)
	in.NormalIndexes = append(in.NormalIndexes, pol.NormalIndexes...)
	in.FulltextIndexes = append(in.FulltextIndexes, pol.FulltextIndexes...)
	if len(pol.SkipIndexes) == 0 {
		return in
	}

	skip := func(col string) bool { return slices.Contains(pol.SkipIndexes, col) }
	in.NormalIndexes = slices.DeleteFunc(in.NormalIndexes, skip)
	in.FulltextIndexes = slices.DeleteFunc(in.FulltextIndexes, skip)
	in.UniqueKeys = slices.DeleteFunc(in.UniqueKeys, func(tuple []string) bool {
		return slices.ContainsFunc(tuple, skip)
	})
	return in
}
