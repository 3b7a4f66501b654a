package server

import (
	"github.com/gofiber/fiber/v2"
)

// Subscribe handles POST /api/subscriptions/:authorId
func (s *Server) Subscribe(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "authorId")
	if err != nil {
		return nil
	}
	if err := s.subService.Subscribe(c.Context(), currentUserID(c), authorID); err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"subscribed": true})
}

// Unsubscribe handles DELETE /api/subscriptions/:authorId
func (s *Server) Unsubscribe(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "authorId")
	if err != nil {
		return nil
	}
	if err := s.subService.Unsubscribe(c.Context(), currentUserID(c), authorID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetMySubscriptions handles GET /api/subscriptions
func (s *Server) GetMySubscriptions(c *fiber.Ctx) error {
	subs, err := s.subService.ListSubscriptions(c.Context(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}
