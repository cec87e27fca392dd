package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/guillermoBallester/tablesmith/internal/adapter/sqldb"
	"github.com/guillermoBallester/tablesmith/internal/adapter/sqlite"
	"github.com/guillermoBallester/tablesmith/internal/audit"
	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openSQLite(t *testing.T) *sqldb.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// leadsDataset builds n rows of name, email, phone, score and website.
func leadsDataset(t *testing.T, n int) *domain.Dataset {
	t.Helper()
	header := []string{"name", "email", "phone", "score", "website"}
	records := make([][]string, n)
	for i := range records {
		records[i] = []string{
			fmt.Sprintf("Lead %04d", i),
			fmt.Sprintf("lead%04d@example.com", i),
			fmt.Sprintf("138%08d", i),
			fmt.Sprintf("%d", i%100),
			fmt.Sprintf("https://example.com/leads/%d", i),
		}
	}
	ds, err := domain.DatasetFromRecords(header, records)
	require.NoError(t, err)
	return ds
}

// memConfigs is an in-memory port.ConfigRepository.
type memConfigs struct {
	mu      sync.Mutex
	configs map[string]*domain.Config
	saves   int
}

func newMemConfigs() *memConfigs {
	return &memConfigs{configs: map[string]*domain.Config{}}
}

func (m *memConfigs) Load(_ context.Context, table string) (*domain.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[table]
	if !ok {
		return nil, fmt.Errorf("config for %q: %w", table, domain.ErrNotFound)
	}
	return cfg, nil
}

func (m *memConfigs) Save(_ context.Context, cfg *domain.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.TableConfig.TableName] = cfg
	m.saves++
	return nil
}

func (m *memConfigs) Location(table string) string { return "mem://" + table }

// failingStore fails the failAt-th InsertBatch call (1-based) without touching
// the wrapped store.
type failingStore struct {
	port.Store
	mu     sync.Mutex
	calls  int
	failAt int
}

func (f *failingStore) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls == f.failAt
	f.mu.Unlock()
	if fail {
		return 0, errors.New("duplicate entry")
	}
	return f.Store.InsertBatch(ctx, table, columns, rows)
}

// recordingAuditor keeps every entry in memory.
type recordingAuditor struct {
	mu      sync.Mutex
	entries []port.AuditEntry
}

func (r *recordingAuditor) Record(_ context.Context, e port.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAuditor) Close() error { return nil }

func (r *recordingAuditor) Entries() []port.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]port.AuditEntry(nil), r.entries...)
}

type ingestFixture struct {
	store   port.Store
	configs *memConfigs
	auditor *recordingAuditor
	svc     *IngestService
}

func newIngestFixture(t *testing.T, st port.Store, pol port.PolicySource) *ingestFixture {
	t.Helper()
	logger := testLogger()
	f := &ingestFixture{store: st, configs: newMemConfigs(), auditor: &recordingAuditor{}}
	f.svc = NewIngestService(IngestDeps{
		Store:     st,
		Configs:   f.configs,
		Policies:  pol,
		Builder:   NewConfigBuilder(domain.NewDetector(), domain.InferOptions{}, logger),
		Migrator:  NewSchemaMigrator(logger, nil),
		Loader:    NewBatchLoader(f.auditor, logger, nil, nil),
		BatchSize: 1000,
		Logger:    logger,
	})
	return f
}

func newTestQueryService(st port.Store, configs port.ConfigRepository, pol port.PolicySource, opts QueryOptions) *QueryService {
	return NewQueryService(st, domain.NewOrderByValidator(), configs, pol, audit.NoopAuditor{}, testLogger(), nil, nil, opts)
}

// staticPolicy serves one table policy for every table.
type staticPolicy struct{ pol port.TablePolicy }

func (s staticPolicy) TablePolicy(string) (port.TablePolicy, bool) { return s.pol, true }
