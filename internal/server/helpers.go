package server

import (
	"errors"

	"hushfeed/internal/middleware"
	"hushfeed/internal/models"
	"hushfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already wrote the response. Handlers
// return nil on it so the ErrorHandler does not overwrite the body.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

func parsePagination(c *fiber.Ctx) Pagination {
	limit, offset := service.Page(c.QueryInt("limit", service.DefaultPageSize), c.QueryInt("offset", 0))
	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a positive route parameter, answering 400 otherwise.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithAppError(c, models.NewValidationError("Invalid "+param))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseItemRef reads the :kind and :id route parameters.
func parseItemRef(c *fiber.Ctx) (models.ItemRef, error) {
	kind, err := models.ParseItemKind(c.Params("kind"))
	if err != nil {
		_ = models.RespondWithAppError(c, err)
		return models.ItemRef{}, errResponseWritten
	}
	id, err := parseID(c, "id")
	if err != nil {
		return models.ItemRef{}, err
	}
	return models.ItemRef{Kind: kind, ID: id}, nil
}

// parseBody decodes the JSON body into dest, answering 400 on failure.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// respondError answers with err's status. Errors outside the taxonomy are
// logged and reported as internal so driver messages never reach clients.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		middleware.Logger.ErrorContext(c.UserContext(), "Request failed", "path", c.Path(), "error", err)
		err = models.NewInternalError(err)
	}
	return models.RespondWithAppError(c, err)
}
