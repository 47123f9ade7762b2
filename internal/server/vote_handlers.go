package server

import (
	"hushfeed/internal/middleware"
	"hushfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CastVoteRequest is the body of POST /api/items/:kind/:id/vote.
type CastVoteRequest struct {
	Direction string `json:"direction"`
}

// SetVoteRequest is the body of PUT /api/items/:kind/:id/vote.
type SetVoteRequest struct {
	State string `json:"state"`
}

// CastVote toggles the caller's vote: repeating a direction retracts it.
func (s *Server) CastVote(c *fiber.Ctx) error {
	ref, err := parseItemRef(c)
	if err != nil {
		return nil
	}
	var req CastVoteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	dir, err := models.ParseDirection(req.Direction)
	if err != nil {
		return respondError(c, err)
	}

	res, err := s.ledger.CastVote(c.UserContext(), middleware.CurrentUserID(c), ref, dir)
	if err != nil {
		return respondError(c, err)
	}
	s.afterVote(c, res)
	return c.JSON(res)
}

// SetVote moves the caller's vote to an explicit state. Resending the same
// state changes nothing, so clients may retry it freely.
func (s *Server) SetVote(c *fiber.Ctx) error {
	ref, err := parseItemRef(c)
	if err != nil {
		return nil
	}
	var req SetVoteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	state, err := models.ParseVoteState(req.State)
	if err != nil {
		return respondError(c, err)
	}

	res, err := s.ledger.SetVote(c.UserContext(), middleware.CurrentUserID(c), ref, state)
	if err != nil {
		return respondError(c, err)
	}
	s.afterVote(c, res)
	return c.JSON(res)
}

// GetVote returns the caller's vote on an item and its counters.
func (s *Server) GetVote(c *fiber.Ctx) error {
	ref, err := parseItemRef(c)
	if err != nil {
		return nil
	}
	state, err := s.feedService.VoteState(c.UserContext(), ref, middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

func (s *Server) afterVote(c *fiber.Ctx, res *models.VoteResult) {
	if res.XPDelta != 0 {
		s.repService.XPChanged(c.UserContext(), res.AuthorID)
	}
}
