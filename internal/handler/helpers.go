package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/avatair-api/internal/middleware"
	"github.com/noah-isme/avatair-api/internal/service"
	"github.com/noah-isme/avatair-api/internal/utils"
)

// Guards are the route-level middlewares a handler may attach. Nil guards
// let requests through.
type Guards struct {
	Required  fiber.Handler
	Optional  fiber.Handler
	Admin     fiber.Handler
	Privilege fiber.Handler
	RateLimit fiber.Handler
}

func passthrough(c *fiber.Ctx) error {
	return c.Next()
}

func (g Guards) required() fiber.Handler  { return orPassthrough(g.Required) }
func (g Guards) optional() fiber.Handler  { return orPassthrough(g.Optional) }
func (g Guards) rateLimit() fiber.Handler { return orPassthrough(g.RateLimit) }

// admin resolves an optional token first so either an admin role or the
// admin password satisfies the policy.
func (g Guards) admin() []fiber.Handler {
	return []fiber.Handler{g.optional(), orPassthrough(g.Admin)}
}

// participant is the chain for public session routes: rate limit, optional
// token, then the privilege mark.
func (g Guards) participant() []fiber.Handler {
	return []fiber.Handler{g.rateLimit(), g.optional(), orPassthrough(g.Privilege)}
}

func orPassthrough(h fiber.Handler) fiber.Handler {
	if h == nil {
		return passthrough
	}
	return h
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		UserID:     middleware.UserID(c),
		Role:       middleware.UserRole(c),
		Privileged: middleware.Privileged(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := middleware.RequestLogger(c, base)
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// parseBody decodes and validates a JSON body. The returned error is safe to
// send to the client.
func parseBody(c *fiber.Ctx, validate *validator.Validate, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return errors.New("invalid payload")
	}
	if validate != nil {
		if err := validate.Struct(dst); err != nil {
			return errors.New(validationMessage(err))
		}
	}
	return nil
}

func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid payload"
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, fieldErr.Field())
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// handleError maps service error kinds to HTTP statuses.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrPolicyViolation):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrValidation) || isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRemoteServiceUnavailable):
		requestLogger(logger, c).Warn().Err(err).Msg("generative service unavailable")
		return utils.SendError(c, fiber.StatusBadGateway, "generative service unavailable")
	default:
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
