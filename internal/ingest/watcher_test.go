package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/export"
	"github.com/billscan/billscan/internal/hybrid"
	"github.com/billscan/billscan/internal/jobs"
	"github.com/billscan/billscan/internal/registry"
	"github.com/billscan/billscan/internal/repository"
	"github.com/billscan/billscan/internal/textextract"
)

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, _ string) (textextract.Result, error) {
	return textextract.Result{
		Text:       "Invoice Number: INV-9\nGrand Total: $42.00",
		Confidence: 93,
		Engine:     "ocr:eng",
		Pages:      1,
	}, nil
}

func newWatcherEnv(t *testing.T) (*Watcher, *jobs.Pipeline, string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	log := slog.Default()
	reg := registry.Default()
	jobRepo := repository.NewJobRepository(db, log)
	exportRepo := repository.NewExportRepository(db, log)
	engine := hybrid.NewEngine(reg, hybrid.NewPatternExtractor(reg), nil, hybrid.Config{}, log)
	exporter := export.NewService(jobRepo, exportRepo, t.TempDir(), log)

	pipe := jobs.NewPipeline(jobRepo,
		repository.NewDocumentRepository(db, log),
		repository.NewExtractionRepository(db, log),
		exportRepo, stubExtractor{}, engine, exporter,
		jobs.NopSink{}, jobs.Policy{}, log)

	inbox := t.TempDir()
	w := NewWatcher(Config{Dir: inbox, StoreDir: t.TempDir()}, pipe, log)
	return w, pipe, inbox
}

func dropFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("fake scan bytes"), 0o644))
	return path
}

func TestStoreMovesFileOutOfInbox(t *testing.T) {
	w, _, inbox := newWatcherEnv(t)
	path := dropFile(t, inbox, "invoice.png")

	in, err := w.store(path)
	require.NoError(t, err)
	assert.Equal(t, "invoice.png", in.OriginalName)
	assert.Equal(t, int64(15), in.FileSize)
	assert.NotEmpty(t, in.ContentHash)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "inbox file is consumed")
	_, err = os.Stat(in.StoredPath)
	assert.NoError(t, err)
}

func TestConsiderRunsFullPipeline(t *testing.T) {
	w, pipe, inbox := newWatcherEnv(t)
	path := dropFile(t, inbox, "invoice.png")
	ctx := context.Background()

	w.consider(ctx, path)

	list, err := pipe.ListJobs(ctx, "inbox")
	require.NoError(t, err)
	require.Len(t, list, 1)

	job, err := pipe.GetJob(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	require.NotNil(t, job.ExcelPath)
	require.Len(t, job.Documents, 1)
	assert.True(t, job.Documents[0].HasText())
	assert.NotEmpty(t, job.Documents[0].Fields)
}

func TestConsiderSkipsUnsupportedAndHidden(t *testing.T) {
	w, pipe, inbox := newWatcherEnv(t)
	ctx := context.Background()

	w.consider(ctx, dropFile(t, inbox, "notes.txt"))
	w.consider(ctx, dropFile(t, inbox, ".hidden.png"))
	w.consider(ctx, filepath.Join(inbox, "missing.png"))

	list, err := pipe.ListJobs(ctx, "inbox")
	require.NoError(t, err)
	assert.Empty(t, list)
}
