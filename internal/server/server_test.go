package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/billscan/billscan/internal/entity"
	"github.com/billscan/billscan/internal/export"
	"github.com/billscan/billscan/internal/hybrid"
	"github.com/billscan/billscan/internal/jobs"
	"github.com/billscan/billscan/internal/registry"
	"github.com/billscan/billscan/internal/repository"
	"github.com/billscan/billscan/internal/server"
	"github.com/billscan/billscan/internal/textextract"
)

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, path string) (textextract.Result, error) {
	return textextract.Result{
		Text:       "Invoice Number: INV-2024-0042\nGrand Total: $100.00",
		Confidence: 91,
		Engine:     "ocr:eng",
		Pages:      1,
	}, nil
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	log := slog.Default()
	reg := registry.Default()
	jobRepo := repository.NewJobRepository(db, log)
	docRepo := repository.NewDocumentRepository(db, log)
	fieldRepo := repository.NewExtractionRepository(db, log)
	exportRepo := repository.NewExportRepository(db, log)

	engine := hybrid.NewEngine(reg, hybrid.NewPatternExtractor(reg), nil, hybrid.Config{}, log)
	exporter := export.NewService(jobRepo, exportRepo, t.TempDir(), log)
	pipe := jobs.NewPipeline(jobRepo, docRepo, fieldRepo, exportRepo,
		stubExtractor{}, engine, exporter, jobs.NopSink{}, jobs.Policy{}, log)

	return server.New(pipe, reg, exportRepo, t.TempDir(), log)
}

func doJSON(t *testing.T, srv *server.Server, method, path string, body io.Reader) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var payload map[string]json.RawMessage
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), "body: %s", raw)
	}
	return resp, payload
}

func uploadFile(t *testing.T, srv *server.Server, filename string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake document bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &payload), "body: %s", raw)
	return resp, payload
}

func jobFromPayload(t *testing.T, payload map[string]json.RawMessage) entity.Job {
	t.Helper()
	var job entity.Job
	require.NoError(t, json.Unmarshal(payload["job"], &job))
	return job
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListFields(t *testing.T) {
	srv := newTestServer(t)
	resp, payload := doJSON(t, srv, http.MethodGet, "/api/fields", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fields []registry.FieldInfo
	require.NoError(t, json.Unmarshal(payload["fields"], &fields))
	assert.Equal(t, registry.Default().Len(), len(fields))
	assert.Equal(t, "invoice_number", fields[0].Key)
}

func TestUploadCreatesPendingJob(t *testing.T) {
	srv := newTestServer(t)
	resp, payload := uploadFile(t, srv, "receipt.png")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	job := jobFromPayload(t, payload)
	assert.Equal(t, "pending", string(job.Status))
	assert.Equal(t, 1, job.TotalDocuments)
	require.Len(t, job.Documents, 1)
	assert.Equal(t, "receipt.png", job.Documents[0].OriginalName)
	assert.NotEmpty(t, job.Documents[0].ContentHash)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	srv := newTestServer(t)
	resp, payload := uploadFile(t, srv, "notes.txt")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(payload["error"]), "notes.txt")
}

func TestFullPipelineOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	_, payload := uploadFile(t, srv, "invoice.png")
	job := jobFromPayload(t, payload)
	base := "/api/jobs/" + job.ID.String()

	resp, payload := doJSON(t, srv, http.MethodPost, base+"/ocr", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := jobFromPayload(t, payload)
	assert.Equal(t, "completed", string(got.Status))
	require.Len(t, got.Documents, 1)
	assert.True(t, got.Documents[0].HasText())

	body := bytes.NewBufferString(`{"fields":["invoice_number","total_amount","po_number"]}`)
	resp, payload = doJSON(t, srv, http.MethodPost, base+"/extract", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = jobFromPayload(t, payload)
	assert.Equal(t, "completed", string(got.Status))
	require.Len(t, got.Documents[0].Fields, 3)
	assert.NotEmpty(t, payload["confidence"], "aggregate confidence is present once text exists")
	assert.Contains(t, string(payload["detected_fields"]), "invoice_number")

	resp, payload = doJSON(t, srv, http.MethodPost, base+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = jobFromPayload(t, payload)
	require.NotNil(t, got.ExcelPath)

	req := httptest.NewRequest(http.MethodGet, base+"/download", nil)
	dl, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Contains(t, dl.Header.Get("Content-Disposition"), ".xlsx")
}

func TestGetJobNotFound(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, srv, http.MethodGet, "/api/jobs/3c7a4a4e-16a4-4bb1-b058-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetJobInvalidID(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, srv, http.MethodGet, "/api/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRetryRejectedOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	_, payload := uploadFile(t, srv, "invoice.png")
	job := jobFromPayload(t, payload)

	// Retrying a pending job is the idempotent no-op rewind.
	resp, _ := doJSON(t, srv, http.MethodPost, "/api/jobs/"+job.ID.String()+"/retry", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, _ = doJSON(t, srv, http.MethodPost, "/api/jobs/"+job.ID.String()+"/ocr", nil)
	resp, _ = doJSON(t, srv, http.MethodPost, "/api/jobs/"+job.ID.String()+"/retry", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "completed jobs cannot be retried")
}

func TestDeleteJobOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	_, payload := uploadFile(t, srv, "invoice.png")
	job := jobFromPayload(t, payload)
	base := "/api/jobs/" + job.ID.String()

	resp, _ := doJSON(t, srv, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadWithoutArtifact(t *testing.T) {
	srv := newTestServer(t)
	_, payload := uploadFile(t, srv, "invoice.png")
	job := jobFromPayload(t, payload)

	resp, _ := doJSON(t, srv, http.MethodGet, "/api/jobs/"+job.ID.String()+"/download", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
