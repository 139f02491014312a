package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/avatair-api/internal/service"
	"github.com/noah-isme/avatair-api/internal/utils"
)

// AdminHandler exposes account-level maintenance.
type AdminHandler struct {
	surveys service.SurveyService
	logger  zerolog.Logger
}

// NewAdminHandler constructs the admin handler.
func NewAdminHandler(surveys service.SurveyService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		surveys: surveys,
		logger:  logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register wires admin routes; every route passes the admin policy.
func (h *AdminHandler) Register(router fiber.Router, guards Guards) {
	router.Delete("/users/:id/surveys", append(guards.admin(), h.deleteOwnerSurveys)...)
}

func (h *AdminHandler) deleteOwnerSurveys(c *fiber.Ctx) error {
	result, err := h.surveys.DeleteByOwner(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err, "failed to delete owner surveys")
	}

	requestLogger(h.logger, c).Info().
		Str("owner_id", result.OwnerID).
		Int64("surveys", result.SurveysDeleted).
		Int64("responses", result.ResponsesDeleted).
		Msg("owner cascade completed")
	return utils.SendSuccess(c, "owner surveys deleted", result)
}
