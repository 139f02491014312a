package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/avatair-api/internal/dto"
	"github.com/noah-isme/avatair-api/internal/service"
	"github.com/noah-isme/avatair-api/internal/utils"
)

// AvatarHandler serves generation rounds.
type AvatarHandler struct {
	service  service.ResponseService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewAvatarHandler constructs the avatar handler.
func NewAvatarHandler(svc service.ResponseService, validate *validator.Validate, logger zerolog.Logger) *AvatarHandler {
	return &AvatarHandler{
		service:  svc,
		validate: validate,
		logger:   logger.With().Str("component", "avatar_handler").Logger(),
	}
}

// Register wires avatar routes.
func (h *AvatarHandler) Register(router fiber.Router, guards Guards) {
	router.Post("/generate", append(guards.participant(), h.generate)...)
}

func (h *AvatarHandler) generate(c *fiber.Ctx) error {
	var req dto.AvatarGenerateRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	artifact, err := h.service.Generate(c.UserContext(), service.GenerateInput{
		ResponseID: req.ResponseID,
		Iterations: req.Iterations,
		Size:       req.Size,
		Prompt:     req.Prompt,
		Actor:      actorFromContext(c),
	})
	if err != nil {
		return handleError(c, h.logger, err, "failed to generate avatar")
	}

	return utils.SendBinary(c, artifact.ContentType, "", artifact.Image)
}
