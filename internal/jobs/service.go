// Package jobs owns the processing lifecycle: the state machine over
// pending/processing/completed/failed, the three stage triggers, retry and
// delete, per-job exclusive execution, and progress/terminal events.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/entity"
	"github.com/billscan/billscan/internal/hybrid"
	"github.com/billscan/billscan/internal/repository"
	"github.com/billscan/billscan/internal/textextract"
)

// Stage names carried on events and logs.
const (
	StageTextExtraction = "text_extraction"
	StageExtraction     = "extraction"
	StageExport         = "export"
)

// FieldEngine is the hybrid extraction contract the pipeline depends on.
type FieldEngine interface {
	Extract(ctx context.Context, text string, selected []string) []hybrid.FieldResult
}

// Exporter assembles and writes the export artifact for a job whose
// extraction has completed, returning the recorded snapshot.
type Exporter interface {
	Export(ctx context.Context, jobID uuid.UUID) (*entity.ExportRecord, error)
}

// DocumentInput references one already-stored upload to attach to a new job.
type DocumentInput struct {
	OriginalName string
	StoredPath   string
	FileSize     int64
	MIMEType     string
	ContentHash  string
}

// Policy holds the pipeline's behavioral knobs.
type Policy struct {
	// DocWorkers bounds concurrent per-document tasks within one stage run.
	DocWorkers int
	// PartialSuccess lets a multi-document job complete when some documents
	// fail fatally. Off by default: export expects a complete dataset, so
	// one document's fatal error fails the whole job and the run's partial
	// results are rolled back.
	PartialSuccess bool
}

type Pipeline struct {
	jobs      repository.JobRepository
	docs      repository.DocumentRepository
	fields    repository.ExtractionRepository
	exports   repository.ExportRepository
	extractor textextract.TextExtractor
	engine    FieldEngine
	exporter  Exporter
	sink      Sink
	locks     *KeyedLock
	policy    Policy
	logger    *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

func NewPipeline(
	jobRepo repository.JobRepository,
	docRepo repository.DocumentRepository,
	fieldRepo repository.ExtractionRepository,
	exportRepo repository.ExportRepository,
	extractor textextract.TextExtractor,
	engine FieldEngine,
	exporter Exporter,
	sink Sink,
	policy Policy,
	logger *slog.Logger,
) *Pipeline {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if policy.DocWorkers <= 0 {
		policy.DocWorkers = 4
	}
	return &Pipeline{
		jobs:      jobRepo,
		docs:      docRepo,
		fields:    fieldRepo,
		exports:   exportRepo,
		extractor: extractor,
		engine:    engine,
		exporter:  exporter,
		sink:      sink,
		locks:     NewKeyedLock(),
		policy:    policy,
		logger:    logger,
		running:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// SubmitJob creates a pending job over already-stored documents. Storage is
// the caller's concern; the pipeline only records references.
func (p *Pipeline) SubmitJob(ctx context.Context, ownerID string, inputs []DocumentInput) (*entity.Job, error) {
	if len(inputs) == 0 {
		return nil, common.ValidationError("a job needs at least one document")
	}
	job := &entity.Job{OwnerID: ownerID, TotalDocuments: len(inputs)}
	docs := make([]entity.Document, 0, len(inputs))
	for _, in := range inputs {
		docs = append(docs, entity.Document{
			OriginalName: in.OriginalName,
			StoredPath:   in.StoredPath,
			FileSize:     in.FileSize,
			MIMEType:     in.MIMEType,
			ContentHash:  in.ContentHash,
		})
	}
	if err := p.jobs.CreateWithDocuments(ctx, job, docs); err != nil {
		return nil, err
	}
	p.logger.Info("job submitted", "job_id", job.ID, "documents", len(inputs))
	return p.jobs.GetWithDocuments(ctx, job.ID)
}

func (p *Pipeline) GetJob(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	return p.jobs.GetWithDocuments(ctx, jobID)
}

func (p *Pipeline) ListJobs(ctx context.Context, ownerID string) ([]entity.Job, error) {
	return p.jobs.List(ctx, ownerID)
}

// RunTextExtraction runs stage 1 over every document in the job, with
// bounded parallelism, and returns the updated job snapshot.
func (p *Pipeline) RunTextExtraction(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	return p.runStage(ctx, jobID, StageTextExtraction, nil, func(run *stageRun) error {
		return p.textExtractionStage(run)
	})
}

// RunExtraction runs stage 2 for the selected field keys over every
// document. An empty selection means every registered field. Documents must
// already have text.
func (p *Pipeline) RunExtraction(ctx context.Context, jobID uuid.UUID, selected []string) (*entity.Job, error) {
	precheck := func(job *entity.Job) error {
		for i := range job.Documents {
			if !job.Documents[i].HasText() {
				return common.ValidationError("document %q has no extracted text; run text extraction first", job.Documents[i].OriginalName)
			}
		}
		return nil
	}
	return p.runStage(ctx, jobID, StageExtraction, precheck, func(run *stageRun) error {
		return p.extractionStage(run, selected)
	})
}

// RunExport runs stage 3: it assembles the export artifact from stored
// extraction rows and records it.
func (p *Pipeline) RunExport(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	precheck := func(job *entity.Job) error {
		for i := range job.Documents {
			if len(job.Documents[i].Fields) == 0 {
				return common.ValidationError("document %q has no extraction results; run extraction first", job.Documents[i].OriginalName)
			}
		}
		return nil
	}
	return p.runStage(ctx, jobID, StageExport, precheck, func(run *stageRun) error {
		rec, err := p.exporter.Export(run.ctx, jobID)
		if err != nil {
			return err
		}
		return p.jobs.SetExcelPath(run.ctx, jobID, &rec.FilePath)
	})
}

// Retry rewinds a failed job to pending: every document's text and
// extraction rows are cleared and the error message is dropped. Retrying an
// already-pending job is an idempotent no-op rewind.
func (p *Pipeline) Retry(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	if !p.locks.Acquire(jobID) {
		return nil, common.ValidationError("job is currently processing")
	}
	defer p.locks.Release(jobID)

	job, err := p.jobs.GetWithDocuments(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case constants.JobStatusFailed:
		// rewind below
	case constants.JobStatusPending:
		// idempotent: a repeated retry stays pending with no extra rows
	default:
		return nil, common.ValidationError("retry requires a failed job, status is %s", job.Status)
	}

	for i := range job.Documents {
		if err := p.docs.ClearResults(ctx, job.Documents[i].ID); err != nil {
			return nil, err
		}
	}
	if job.ExcelPath != nil {
		if err := p.jobs.SetExcelPath(ctx, jobID, nil); err != nil {
			return nil, err
		}
	}
	if job.Status == constants.JobStatusFailed {
		if err := p.jobs.UpdateStatus(ctx, jobID, constants.JobStatusPending, nil); err != nil {
			return nil, err
		}
	}
	p.logger.Info("job rewound for retry", "job_id", jobID)
	return p.jobs.GetWithDocuments(ctx, jobID)
}

// Delete cancels any in-flight stage for the job (best-effort), removes all
// rows, and removes stored files and export artifacts from disk.
func (p *Pipeline) Delete(ctx context.Context, jobID uuid.UUID) error {
	job, err := p.jobs.GetWithDocuments(ctx, jobID)
	if err != nil {
		return err
	}
	recs, err := p.exports.ListByJob(ctx, jobID)
	if err != nil {
		return err
	}

	// Rows go first, then cancellation: an unwinding stage re-checks
	// existence and discards its result instead of resurrecting the job.
	if err := p.jobs.Delete(ctx, jobID); err != nil {
		return err
	}
	p.mu.Lock()
	if cancel, ok := p.running[jobID]; ok {
		cancel()
	}
	p.mu.Unlock()

	for i := range job.Documents {
		removeFile(p.logger, job.Documents[i].StoredPath)
	}
	for i := range recs {
		removeFile(p.logger, recs[i].FilePath)
	}
	p.logger.Info("job deleted", "job_id", jobID, "documents", len(job.Documents))
	return nil
}

// stageRun carries the per-invocation state a stage body needs.
type stageRun struct {
	ctx  context.Context
	job  *entity.Job
	prog *progressEmitter
}

type stageFunc func(run *stageRun) error

// runStage is the shared state-machine walk for every stage trigger: take
// the per-job lock, validate, move to processing, run the body, finalize
// duration, land in completed or failed, and emit the terminal event.
func (p *Pipeline) runStage(ctx context.Context, jobID uuid.UUID, stage string, precheck func(*entity.Job) error, body stageFunc) (*entity.Job, error) {
	if !p.locks.Acquire(jobID) {
		return nil, common.ValidationError("job is currently processing")
	}
	defer p.locks.Release(jobID)

	job, err := p.jobs.GetWithDocuments(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == constants.JobStatusFailed {
		return nil, common.ValidationError("job is failed; retry it first")
	}
	if len(job.Documents) == 0 {
		return nil, common.ValidationError("job has no documents")
	}
	if precheck != nil {
		if err := precheck(job); err != nil {
			return nil, err
		}
	}

	if err := p.jobs.UpdateStatus(ctx, jobID, constants.JobStatusProcessing, nil); err != nil {
		return nil, err
	}
	start := time.Now()

	stageCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.running[jobID] = cancel
	p.mu.Unlock()
	defer func() {
		cancel()
		p.mu.Lock()
		delete(p.running, jobID)
		p.mu.Unlock()
	}()

	run := &stageRun{
		ctx:  stageCtx,
		job:  job,
		prog: newProgressEmitter(p.sink, jobID, stage, len(job.Documents)),
	}
	stageErr := body(run)

	// Finalization must land even when the triggering request was cancelled:
	// the state machine never leaves a job parked in processing.
	finCtx := context.WithoutCancel(ctx)

	// A job deleted mid-run must not be written to again.
	if _, err := p.jobs.GetByID(finCtx, jobID); common.IsCode(err, common.CodeNotFound) {
		p.logger.Info("job deleted during stage, discarding result", "job_id", jobID, "stage", stage)
		return nil, err
	}

	if err := p.jobs.SetProcessingTime(finCtx, jobID, time.Since(start)); err != nil {
		return nil, err
	}

	if stageErr != nil {
		msg := stageErr.Error()
		if err := p.jobs.UpdateStatus(finCtx, jobID, constants.JobStatusFailed, &msg); err != nil {
			return nil, err
		}
		p.emitTerminal(jobID, stage, constants.JobStatusFailed, msg)
		p.logger.Error("stage failed", "job_id", jobID, "stage", stage, "error", stageErr)
		return p.jobs.GetWithDocuments(finCtx, jobID)
	}

	if err := p.jobs.UpdateStatus(finCtx, jobID, constants.JobStatusCompleted, nil); err != nil {
		return nil, err
	}
	p.emitTerminal(jobID, stage, constants.JobStatusCompleted, "")
	p.logger.Info("stage completed", "job_id", jobID, "stage", stage, "elapsed", time.Since(start))
	return p.jobs.GetWithDocuments(finCtx, jobID)
}

func (p *Pipeline) emitTerminal(jobID uuid.UUID, stage string, status constants.JobStatus, errMsg string) {
	typ := EventCompleted
	if status == constants.JobStatusFailed {
		typ = EventFailed
	}
	p.sink.Publish(Event{
		JobID:  jobID,
		Type:   typ,
		Stage:  stage,
		Status: status,
		Error:  errMsg,
		At:     time.Now().UTC(),
	})
}

// textExtractionStage runs the stage-1 worker pool. On the default
// whole-job-failure policy the first fatal document error cancels the run
// and every document's partial result is rolled back.
func (p *Pipeline) textExtractionStage(run *stageRun) error {
	var (
		mu         sync.Mutex
		totalPages int
		succeeded  int
		firstErr   error
	)

	g, gctx := errgroup.WithContext(run.ctx)
	g.SetLimit(p.policy.DocWorkers)
	for i := range run.job.Documents {
		doc := run.job.Documents[i]
		g.Go(func() error {
			res, err := p.extractor.Extract(gctx, doc.StoredPath)
			if err != nil {
				err = fmt.Errorf("%s: %w", doc.OriginalName, err)
				if p.policy.PartialSuccess {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					run.prog.step()
					return nil
				}
				return err
			}
			// Deletion checkpoint: never persist for a job that is gone.
			if _, err := p.jobs.GetByID(gctx, run.job.ID); err != nil {
				return err
			}
			if err := p.docs.SetText(gctx, doc.ID, res.Text, res.Confidence, res.Engine, res.Pages); err != nil {
				return err
			}
			mu.Lock()
			totalPages += res.Pages
			succeeded++
			mu.Unlock()
			run.prog.step()
			return nil
		})
	}
	// Under PartialSuccess, workers swallow fatal per-document errors, so a
	// non-nil Wait result is always an internal or cancellation error.
	if err := g.Wait(); err != nil {
		if !p.policy.PartialSuccess {
			p.rollbackDocuments(run.job)
		}
		return err
	}
	if p.policy.PartialSuccess && succeeded == 0 {
		return firstErr
	}
	return p.jobs.SetTotals(run.ctx, run.job.ID, len(run.job.Documents), totalPages)
}

// extractionStage runs the hybrid engine per document and replaces the
// stored rows for the selected fields.
func (p *Pipeline) extractionStage(run *stageRun, selected []string) error {
	g, gctx := errgroup.WithContext(run.ctx)
	g.SetLimit(p.policy.DocWorkers)
	for i := range run.job.Documents {
		doc := run.job.Documents[i]
		g.Go(func() error {
			results := p.engine.Extract(gctx, *doc.Text, selected)
			rows := make([]entity.ExtractionField, 0, len(results))
			for _, r := range results {
				rows = append(rows, entity.ExtractionField{
					FieldKey:   r.Key,
					FieldLabel: r.Label,
					Value:      r.Value,
					Confidence: r.Confidence,
					Method:     r.Method,
				})
			}
			if _, err := p.jobs.GetByID(gctx, run.job.ID); err != nil {
				return err
			}
			if err := p.fields.Replace(gctx, doc.ID, rows); err != nil {
				return fmt.Errorf("%s: %w", doc.OriginalName, err)
			}
			run.prog.step()
			return nil
		})
	}
	return g.Wait()
}

// rollbackDocuments clears whatever the failed run managed to persist so a
// failed job never presents a partially-populated dataset.
func (p *Pipeline) rollbackDocuments(job *entity.Job) {
	ctx := context.Background()
	for i := range job.Documents {
		if err := p.docs.ClearResults(ctx, job.Documents[i].ID); err != nil {
			p.logger.Warn("rollback failed for document", "document_id", job.Documents[i].ID, "error", err)
		}
	}
}

func removeFile(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove file", "path", path, "error", err)
	}
}
