// Package server is the HTTP surface over the pipeline: upload, stage
// triggers, job inspection, retry, delete and artifact download.
package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/jobs"
	"github.com/billscan/billscan/internal/registry"
	"github.com/billscan/billscan/internal/repository"
)

const maxUploadBytes = 50 * 1024 * 1024

type Server struct {
	app       *fiber.App
	pipe      *jobs.Pipeline
	reg       *registry.Registry
	exports   repository.ExportRepository
	uploadDir string
	logger    *slog.Logger
}

func New(pipe *jobs.Pipeline, reg *registry.Registry, exports repository.ExportRepository, uploadDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipe:      pipe,
		reg:       reg,
		exports:   exports,
		uploadDir: uploadDir,
		logger:    logger,
	}
	s.app = fiber.New(fiber.Config{
		AppName:      "billscan",
		BodyLimit:    maxUploadBytes,
		ErrorHandler: s.errorHandler,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/health", s.health)
	api.Get("/fields", s.listFields)
	api.Post("/upload", s.upload)
	api.Get("/jobs", s.listJobs)
	api.Get("/jobs/:id", s.getJob)
	api.Post("/jobs/:id/ocr", s.runTextExtraction)
	api.Post("/jobs/:id/extract", s.runExtraction)
	api.Post("/jobs/:id/export", s.runExport)
	api.Post("/jobs/:id/retry", s.retry)
	api.Delete("/jobs/:id", s.deleteJob)
	api.Get("/jobs/:id/download", s.download)
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// errorHandler maps the error taxonomy onto HTTP statuses with a uniform
// JSON body.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	code := common.CodeOf(err)
	status := fiber.StatusInternalServerError
	switch code {
	case common.CodeValidation:
		status = fiber.StatusBadRequest
	case common.CodeNotFound:
		status = fiber.StatusNotFound
	case common.CodeDecodeError:
		status = fiber.StatusUnprocessableEntity
	case common.CodeRecognitionTimeout:
		status = fiber.StatusGatewayTimeout
	case common.CodeModelUnavailable:
		status = fiber.StatusServiceUnavailable
	}

	msg := err.Error()
	var ae *common.AppError
	if errors.As(err, &ae) {
		// The message is the surfaced detail; causes stay in the logs.
		msg = ae.Message
	}
	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		msg = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}
