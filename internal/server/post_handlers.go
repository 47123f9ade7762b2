package server

import (
	"hushfeed/internal/ledger"
	"hushfeed/internal/middleware"
	"hushfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateCommentRequest is the body of POST /api/posts/:id/comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// GetPosts lists the feed, newest first or by score with ?sort=top.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c)
	posts, err := s.feedService.ListPosts(c.UserContext(), service.ListPostsInput{
		Sort:     c.Query("sort"),
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: middleware.CurrentUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.feedService.GetPost(c.UserContext(), id, middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost publishes a post and grants its author XP.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req ledger.PostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	userID := middleware.CurrentUserID(c)
	res, err := s.ledger.CreatePost(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	s.repService.XPChanged(c.UserContext(), userID)
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) GetComments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c)
	comments, err := s.feedService.ListComments(c.UserContext(), id, middleware.CurrentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment replies to a post, bumping its comment count and granting
// the commenter XP.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	userID := middleware.CurrentUserID(c)
	res, err := s.ledger.CreateComment(c.UserContext(), userID, id, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	s.repService.XPChanged(c.UserContext(), userID)
	return c.Status(fiber.StatusCreated).JSON(res)
}
