package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/avatair-api/internal/dto"
	"github.com/noah-isme/avatair-api/internal/service"
	"github.com/noah-isme/avatair-api/internal/utils"
)

// SurveyHandler manages survey definitions and their archives.
type SurveyHandler struct {
	surveys  service.SurveyService
	exports  service.ExportService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewSurveyHandler constructs the survey handler.
func NewSurveyHandler(surveys service.SurveyService, exports service.ExportService, validate *validator.Validate, logger zerolog.Logger) *SurveyHandler {
	return &SurveyHandler{
		surveys:  surveys,
		exports:  exports,
		validate: validate,
		logger:   logger.With().Str("component", "survey_handler").Logger(),
	}
}

// Register wires survey routes.
func (h *SurveyHandler) Register(router fiber.Router, guards Guards) {
	router.Get("", guards.required(), h.list)
	router.Post("/create", guards.required(), h.create)
	router.Patch("/edit", guards.required(), h.update)
	router.Delete("/delete", guards.required(), h.delete)
	router.Post("/download", guards.required(), h.download)
	router.Post("/publish", guards.required(), h.publish)
	router.Get("/:id", guards.optional(), h.get)
}

func (h *SurveyHandler) list(c *fiber.Ctx) error {
	surveys, err := h.surveys.List(c.UserContext(), actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to list surveys")
	}
	return utils.SendSuccess(c, "surveys retrieved", surveys)
}

func (h *SurveyHandler) get(c *fiber.Ctx) error {
	survey, err := h.surveys.Get(c.UserContext(), c.Params("id"), actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to load survey")
	}
	return utils.SendSuccess(c, "survey retrieved", survey)
}

func (h *SurveyHandler) create(c *fiber.Ctx) error {
	var req dto.SurveyCreateRequest
	if err := parseBody(c, nil, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	survey, err := h.surveys.Create(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "failed to create survey")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "survey created", survey)
}

func (h *SurveyHandler) update(c *fiber.Ctx) error {
	var req dto.SurveyUpdateRequest
	if err := parseBody(c, nil, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	survey, err := h.surveys.Update(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "failed to update survey")
	}
	return utils.SendSuccess(c, "survey updated", survey)
}

func (h *SurveyHandler) delete(c *fiber.Ctx) error {
	var req dto.SurveyIDRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.surveys.Delete(c.UserContext(), req.ID, actorFromContext(c)); err != nil {
		return handleError(c, h.logger, err, "failed to delete survey")
	}
	return utils.SendSuccess(c, "survey deleted", nil)
}

func (h *SurveyHandler) download(c *fiber.Ctx) error {
	var req dto.SurveyIDRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	archive, err := h.exports.Export(c.UserContext(), req.ID, actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to export survey")
	}
	return utils.SendBinary(c, archive.ContentType, archive.Filename, archive.Data)
}

func (h *SurveyHandler) publish(c *fiber.Ctx) error {
	var req dto.SurveyIDRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	published, err := h.exports.Publish(c.UserContext(), req.ID, actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to publish survey archive")
	}
	return utils.SendSuccess(c, "survey archive published", published)
}
