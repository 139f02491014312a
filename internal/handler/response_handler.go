package handler

import (
	"encoding/base64"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/avatair-api/internal/dto"
	"github.com/noah-isme/avatair-api/internal/models"
	"github.com/noah-isme/avatair-api/internal/service"
	"github.com/noah-isme/avatair-api/internal/utils"
)

// ResponseHandler exposes the response lifecycle.
type ResponseHandler struct {
	service  service.ResponseService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewResponseHandler constructs the response handler.
func NewResponseHandler(svc service.ResponseService, validate *validator.Validate, logger zerolog.Logger) *ResponseHandler {
	return &ResponseHandler{
		service:  svc,
		validate: validate,
		logger:   logger.With().Str("component", "response_handler").Logger(),
	}
}

// Register wires response routes. Participant routes identify the session by
// its response id; management routes require a token.
func (h *ResponseHandler) Register(router fiber.Router, guards Guards) {
	router.Post("/create", append(guards.participant(), h.create)...)
	router.Patch("/optimize", append(guards.participant(), h.optimize)...)
	router.Post("/initialize", append(guards.participant(), h.initialize)...)
	router.Post("/result", append(guards.participant(), h.result)...)
	router.Patch("/logprompt", guards.required(), h.logPrompt)
	router.Patch("/logbuffer", guards.required(), h.logBuffer)
	router.Delete("/delete", guards.required(), h.delete)
	router.Delete("/deleteall", append(guards.admin(), h.deleteAll)...)
	router.Get("/:id", guards.required(), h.get)
}

func (h *ResponseHandler) create(c *fiber.Ctx) error {
	var req dto.ResponseCreateRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	seed := models.Response{
		ActiveField:     req.ActiveField,
		SliderScore:     scoreMap(req.SliderScore),
		StarScore:       scoreMap(req.StarScore),
		SelectScore:     scoreMap(req.SelectScore),
		SwipeScore:      scoreMap(req.SwipeScore),
		FilterResponses: datatypes.NewJSONType(nonNil(req.FilterResponses)),
	}

	id, err := h.service.Create(c.UserContext(), req.SurveyID, seed, actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to create response")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "response created", dto.ResponseCreateResponse{ResponseID: id})
}

func (h *ResponseHandler) get(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err, "failed to load response")
	}

	return utils.SendSuccess(c, "response retrieved", toResponseDetail(view))
}

func (h *ResponseHandler) optimize(c *fiber.Ctx) error {
	var req dto.ResponseOptimizeRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stream, err := h.service.Optimize(c.UserContext(), req.ResponseID, req.Ratings, actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to optimize response")
	}

	return utils.SendStream(c, stream.ContentType, stream.Body)
}

func (h *ResponseHandler) initialize(c *fiber.Ctx) error {
	var req dto.ResponseInitializeRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stream, err := h.service.InitializeFinal(c.UserContext(), req.ResponseID, req.Prompt, actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to initialize final round")
	}

	return utils.SendStream(c, stream.ContentType, stream.Body)
}

func (h *ResponseHandler) result(c *fiber.Ctx) error {
	var req dto.ResponseIDRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	artifact, err := h.service.FinalizeResult(c.UserContext(), req.ResponseID, actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to finalize response")
	}

	return utils.SendBinary(c, artifact.ContentType, "", artifact.Image)
}

func (h *ResponseHandler) logPrompt(c *fiber.Ctx) error {
	var req dto.ResponseLogPromptRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.LogPrompt(c.UserContext(), req.ResponseID, req.Prompt); err != nil {
		return handleError(c, h.logger, err, "failed to log prompt")
	}

	return utils.SendSuccess(c, "prompt logged", nil)
}

func (h *ResponseHandler) logBuffer(c *fiber.Ctx) error {
	var req dto.ResponseLogImageRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	image, err := base64.StdEncoding.DecodeString(req.Buffer)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "buffer must be base64 encoded")
	}

	if err := h.service.LogImage(c.UserContext(), req.ResponseID, image); err != nil {
		return handleError(c, h.logger, err, "failed to log image")
	}

	return utils.SendSuccess(c, "image logged", nil)
}

func (h *ResponseHandler) delete(c *fiber.Ctx) error {
	var req dto.ResponseIDRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), req.ResponseID); err != nil {
		return handleError(c, h.logger, err, "failed to delete response")
	}

	return utils.SendSuccess(c, "response deleted", nil)
}

func (h *ResponseHandler) deleteAll(c *fiber.Ctx) error {
	var req dto.ResponseDeleteManyRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	deleted, err := h.service.DeleteBulk(c.UserContext(), req.Key, req.Regex)
	if err != nil {
		return handleError(c, h.logger, err, "failed to delete responses")
	}

	requestLogger(h.logger, c).Info().Str("key", req.Key).Int64("deleted", deleted).Msg("bulk response delete")
	return utils.SendSuccess(c, "responses deleted", dto.ResponseDeleteManyResponse{Deleted: deleted})
}

func toResponseDetail(view service.ResponseView) dto.ResponseDetail {
	response := view.Response
	detail := dto.ResponseDetail{
		ID:              response.ID,
		ResponseID:      response.ResponseID,
		SurveyID:        response.SurveyID,
		CreatedAt:       response.CreatedAt,
		State:           string(view.State),
		ActiveField:     response.ActiveField,
		FilterResponses: nonNil(response.FilterResponses.Data()),
		PromptStrings:   nonNil(response.PromptStrings),
		ImageCount:      len(response.GeneratedImageBatch),
		Ratings:         response.Ratings,
	}

	scores := map[string]interface{}{}
	for field, values := range map[string]datatypes.JSONMap{
		models.ScoreFieldSlider: response.SliderScore,
		models.ScoreFieldStar:   response.StarScore,
		models.ScoreFieldSelect: response.SelectScore,
		models.ScoreFieldSwipe:  response.SwipeScore,
	} {
		if len(values) > 0 {
			scores[field] = values
		}
	}
	if len(scores) > 0 {
		detail.Scores = scores
	}

	return detail
}

func scoreMap(values map[string]float64) datatypes.JSONMap {
	if len(values) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
