package server

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/jobs"
)

// upload accepts a multipart batch of billing documents, stores each file
// under the upload directory, and submits one job over all of them.
func (s *Server) upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return common.ValidationError("expected multipart form: %v", err)
	}
	files := form.File["files"]
	if len(files) == 0 {
		return common.ValidationError("no files uploaded, use form field \"files\"")
	}
	for _, fh := range files {
		if !constants.IsAllowedExt(filepath.Ext(fh.Filename)) {
			return common.ValidationError("unsupported file type %q", fh.Filename)
		}
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return common.InternalError("create upload directory", err)
	}

	inputs := make([]jobs.DocumentInput, 0, len(files))
	stored := make([]string, 0, len(files))
	for _, fh := range files {
		in, err := s.storeUpload(fh)
		if err != nil {
			// Half-stored batches are removed; the job is all-or-nothing.
			for _, p := range stored {
				_ = os.Remove(p)
			}
			return err
		}
		stored = append(stored, in.StoredPath)
		inputs = append(inputs, in)
	}

	owner := c.FormValue("owner")
	job, err := s.pipe.SubmitJob(c.UserContext(), owner, inputs)
	if err != nil {
		for _, p := range stored {
			_ = os.Remove(p)
		}
		return err
	}
	s.logger.Info("upload accepted", "job_id", job.ID, "documents", len(inputs))
	return c.Status(fiber.StatusCreated).JSON(s.jobView(job))
}

func (s *Server) storeUpload(fh *multipart.FileHeader) (jobs.DocumentInput, error) {
	src, err := fh.Open()
	if err != nil {
		return jobs.DocumentInput{}, common.ValidationError("cannot read upload %q: %v", fh.Filename, err)
	}
	defer src.Close()

	ext := constants.NormalizeExt(filepath.Ext(fh.Filename))
	path := filepath.Join(s.uploadDir, uuid.NewString()+"."+ext)
	dst, err := os.Create(path)
	if err != nil {
		return jobs.DocumentInput{}, common.InternalError("store upload", err)
	}
	defer dst.Close()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(dst, h), src)
	if err != nil {
		_ = os.Remove(path)
		return jobs.DocumentInput{}, common.InternalError("store upload", err)
	}

	return jobs.DocumentInput{
		OriginalName: fh.Filename,
		StoredPath:   path,
		FileSize:     size,
		MIMEType:     fh.Header.Get("Content-Type"),
		ContentHash:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}
