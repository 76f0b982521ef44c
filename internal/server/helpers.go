package server

import (
	"errors"
	"strconv"
	"strings"

	"postapp/internal/auth"
	"postapp/internal/middleware"
	"postapp/internal/models"
	"postapp/internal/repository"
	"postapp/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// defaultPageSize applies when the client sends no usable limit.
const defaultPageSize = 20

// parseID extracts a route parameter as a positive ID. label names the
// parameter in the validation message ("post ID", "comment ID").
func parseID(c *fiber.Ctx, param, label string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewValidationError("Invalid "+label, models.FieldError{
			Field:   param,
			Message: "must be a positive integer",
		})
	}
	return uint(id), nil
}

// pageParams reads page and limit. Out-of-range values are normalized, never
// rejected.
func pageParams(c *fiber.Ctx) (page, limit int) {
	page = repository.ClampPage(c.QueryInt("page", 1))
	limit = c.QueryInt("limit", defaultPageSize)
	return page, limit
}

// optionalUintQuery parses an optional positive integer query parameter.
func optionalUintQuery(c *fiber.Ctx, name string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, models.NewValidationError("Invalid "+name, models.FieldError{
			Field:   name,
			Message: "must be a positive integer",
		})
	}
	id := uint(v)
	return &id, nil
}

// actor returns the identity the guard attached. Zero on anonymous requests.
func actor(c *fiber.Ctx) auth.Identity {
	id, _ := middleware.UserID(c)
	username, _ := c.Locals(middleware.LocalUsername).(string)
	return auth.Identity{UserID: id, Username: username}
}

// viewerID is the caller's user ID, or 0 when anonymous.
func viewerID(c *fiber.Ctx) uint {
	id, _ := middleware.UserID(c)
	return id
}

// bodyPayload decodes the request body into a field map for validation.
func bodyPayload(c *fiber.Ctx) (validation.Payload, error) {
	p, err := validation.ParsePayload(c.Body())
	if errors.Is(err, validation.ErrMalformedBody) {
		return nil, models.NewValidationError("", models.FieldError{
			Field:   "body",
			Message: err.Error(),
		})
	}
	return p, err
}

// respond writes the success envelope. payload keys sit beside success and
// message.
func respond(c *fiber.Ctx, status int, message string, payload fiber.Map) error {
	body := fiber.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}
