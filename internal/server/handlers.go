package server

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/confidence"
	"github.com/billscan/billscan/internal/detect"
	"github.com/billscan/billscan/internal/entity"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) listFields(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"fields": s.reg.List()})
}

func (s *Server) listJobs(c *fiber.Ctx) error {
	list, err := s.pipe.ListJobs(c.UserContext(), c.Query("owner"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"jobs": list, "count": len(list)})
}

func (s *Server) getJob(c *fiber.Ctx) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	job, err := s.pipe.GetJob(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(s.jobView(job))
}

func (s *Server) runTextExtraction(c *fiber.Ctx) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	job, err := s.pipe.RunTextExtraction(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(s.jobView(job))
}

type extractRequest struct {
	Fields []string `json:"fields"`
}

func (s *Server) runExtraction(c *fiber.Ctx) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	var req extractRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return common.ValidationError("invalid request body: %v", err)
		}
	}
	job, err := s.pipe.RunExtraction(c.UserContext(), id, req.Fields)
	if err != nil {
		return err
	}
	return c.JSON(s.jobView(job))
}

func (s *Server) runExport(c *fiber.Ctx) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	job, err := s.pipe.RunExport(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(s.jobView(job))
}

func (s *Server) retry(c *fiber.Ctx) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	job, err := s.pipe.Retry(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(s.jobView(job))
}

func (s *Server) deleteJob(c *fiber.Ctx) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	if err := s.pipe.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": id})
}

func (s *Server) download(c *fiber.Ctx) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	job, err := s.pipe.GetJob(c.UserContext(), id)
	if err != nil {
		return err
	}
	if job.ExcelPath == nil {
		return common.NotFoundError("job has no export artifact")
	}
	return c.Download(*job.ExcelPath, filepath.Base(*job.ExcelPath))
}

func jobID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, common.ValidationError("invalid job id %q", c.Params("id"))
	}
	return id, nil
}

// jobView decorates the job snapshot with its aggregate confidence, rounded
// to integer percent at this presentation boundary, plus the advisory
// per-document field-detection flags. Both appear only once at least one
// document has extracted text.
func (s *Server) jobView(job *entity.Job) fiber.Map {
	view := fiber.Map{"job": job}
	var docAggs []float64
	detected := fiber.Map{}
	for i := range job.Documents {
		doc := &job.Documents[i]
		if !doc.HasText() {
			continue
		}
		confs := make([]float64, 0, len(doc.Fields))
		for _, f := range doc.Fields {
			confs = append(confs, f.Confidence)
		}
		docAggs = append(docAggs, confidence.DocumentAggregate(*doc.TextConfidence, confs))
		detected[doc.ID.String()] = detect.DetectedKeys(*doc.Text, s.reg)
	}
	if len(docAggs) > 0 {
		view["confidence"] = confidence.RoundPercent(confidence.JobAggregate(docAggs))
		view["detected_fields"] = detected
	}
	return view
}
