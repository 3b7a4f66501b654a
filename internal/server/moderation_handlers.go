package server

import (
	"github.com/gofiber/fiber/v2"

	"intelliblog/internal/models"
)

// GetModerationHistory handles GET /api/admin/moderation
func (s *Server) GetModerationHistory(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	records, err := s.moderationRepo.List(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"records": records})
}

// GetJob handles GET /api/admin/jobs/:id. The job ID is the one returned to
// the dispatcher; the response includes the per-step checkpoints.
func (s *Server) GetJob(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid job ID"))
	}
	job, err := s.jobRepo.GetJob(c.Context(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(job)
}
