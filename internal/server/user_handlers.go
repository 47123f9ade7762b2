package server

import (
	"hushfeed/internal/middleware"
	"hushfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.repService.Profile(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetMyXPEvents lists the caller's XP history, newest first.
func (s *Server) GetMyXPEvents(c *fiber.Ctx) error {
	page := parsePagination(c)
	events, err := s.repService.XPEvents(c.UserContext(), middleware.CurrentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(events)
}

func (s *Server) GetLeaderboard(c *fiber.Ctx) error {
	entries, err := s.repService.Leaderboard(c.UserContext(), c.QueryInt("limit", service.DefaultPageSize))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}

// GetFeatureFlags returns configured flags evaluated for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"flags": s.featureFlags.Snapshot(middleware.CurrentUserID(c)),
	})
}
