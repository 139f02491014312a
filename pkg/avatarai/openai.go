package avatarai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig configures the OpenAI-backed generator.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ImageModel string
	ImageSize  string
	MinLatency time.Duration
	Sessions   SessionStore
	Logger     zerolog.Logger
}

// OpenAIGenerator produces avatars with the OpenAI images API and uses chat
// completions to revise prompts from participant ratings.
type OpenAIGenerator struct {
	client   *openai.Client
	cfg      OpenAIConfig
	sessions SessionStore
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewOpenAIGenerator builds an OpenAI generator.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("openai generator requires a session store")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = openai.CreateImageModelDallE3
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = openai.CreateImageSize1024x1024
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIGenerator{
		client:   openai.NewClientWithConfig(config),
		cfg:      cfg,
		sessions: cfg.Sessions,
		tracer:   otel.Tracer("github.com/noah-isme/avatair-api/pkg/avatarai/openai"),
		logger:   cfg.Logger.With().Str("component", "openai_generator").Logger(),
	}, nil
}

func (g *OpenAIGenerator) GenerateAvatar(parent context.Context, req AvatarRequest) (Artifact, error) {
	ctx, span := g.startSpan(parent, endpointAvatar)
	defer span.End()

	start := time.Now()
	artifact, err := g.generateAvatar(ctx, req)
	return g.finishArtifact(span, endpointAvatar, start, artifact, err)
}

func (g *OpenAIGenerator) generateAvatar(ctx context.Context, req AvatarRequest) (Artifact, error) {
	if err := waitFloor(ctx, g.cfg.MinLatency); err != nil {
		return Artifact{}, err
	}

	session, err := g.loadSession(ctx, req.ResponseID)
	if err != nil {
		return Artifact{}, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = session.Prompt
	}
	if prompt == "" {
		prompt = "A neutral studio portrait of a computer generated avatar."
	}

	artifact, err := g.createImage(ctx, prompt)
	if err != nil {
		return Artifact{}, err
	}

	if req.ResponseID != "" {
		session.Prompt = artifact.Prompt
		if req.Size > 0 {
			session.Size = req.Size
		}
		if err := g.saveSession(ctx, req.ResponseID, session); err != nil {
			return Artifact{}, err
		}
	}

	return artifact, nil
}

func (g *OpenAIGenerator) Optimize(parent context.Context, req OptimizeRequest) (Stream, error) {
	ctx, span := g.startSpan(parent, endpointOptimize)
	defer span.End()

	start := time.Now()
	stream, err := g.optimize(ctx, req)
	return g.finishStream(span, endpointOptimize, start, stream, err)
}

func (g *OpenAIGenerator) optimize(ctx context.Context, req OptimizeRequest) (Stream, error) {
	if err := waitFloor(ctx, g.cfg.MinLatency); err != nil {
		return Stream{}, err
	}

	session, err := g.loadSession(ctx, req.ResponseID)
	if err != nil {
		return Stream{}, err
	}
	session.Ratings = append(session.Ratings, req.Ratings)

	revised, err := g.complete(ctx, optimizeSystemPrompt(), optimizeUserPrompt(session.Prompt, req.Ratings))
	if err != nil {
		return Stream{}, err
	}
	session.Prompt = revised

	if err := g.saveSession(ctx, req.ResponseID, session); err != nil {
		return Stream{}, err
	}

	return jsonStream(map[string]string{"responseId": req.ResponseID, "prompt": revised})
}

func (g *OpenAIGenerator) RequestFinal(parent context.Context, req FinalRequest) (Stream, error) {
	ctx, span := g.startSpan(parent, endpointFinal)
	defer span.End()

	start := time.Now()
	stream, err := g.requestFinal(ctx, req)
	return g.finishStream(span, endpointFinal, start, stream, err)
}

func (g *OpenAIGenerator) requestFinal(ctx context.Context, req FinalRequest) (Stream, error) {
	if err := waitFloor(ctx, g.cfg.MinLatency); err != nil {
		return Stream{}, err
	}

	session, err := g.loadSession(ctx, req.ResponseID)
	if err != nil {
		return Stream{}, err
	}

	final, err := g.complete(ctx, finalSystemPrompt(), finalUserPrompt(req))
	if err != nil {
		return Stream{}, err
	}

	session.FinalPrompt = final
	session.Ratings = req.Ratings
	session.Size = req.Size
	if err := g.saveSession(ctx, req.ResponseID, session); err != nil {
		return Stream{}, err
	}

	return jsonStream(map[string]string{"responseId": req.ResponseID, "prompt": final})
}

func (g *OpenAIGenerator) FetchResult(parent context.Context, responseID string) (Artifact, error) {
	ctx, span := g.startSpan(parent, endpointResult)
	defer span.End()

	start := time.Now()
	artifact, err := g.fetchResult(ctx, responseID)
	return g.finishArtifact(span, endpointResult, start, artifact, err)
}

func (g *OpenAIGenerator) fetchResult(ctx context.Context, responseID string) (Artifact, error) {
	if err := waitFloor(ctx, g.cfg.MinLatency); err != nil {
		return Artifact{}, err
	}

	session, err := g.loadSession(ctx, responseID)
	if err != nil {
		return Artifact{}, err
	}

	prompt := session.FinalPrompt
	if prompt == "" {
		prompt = session.Prompt
	}
	if prompt == "" {
		return Artifact{}, fmt.Errorf("%w: no prompt recorded for session", ErrUnavailable)
	}

	return g.createImage(ctx, prompt)
}

func (g *OpenAIGenerator) createImage(ctx context.Context, prompt string) (Artifact, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.cfg.ImageModel,
		N:              1,
		Size:           g.cfg.ImageSize,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: create image: %v", ErrUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return Artifact{}, fmt.Errorf("%w: no image returned", ErrUnavailable)
	}

	returned := prompt
	if revised := strings.TrimSpace(resp.Data[0].RevisedPrompt); revised != "" {
		returned = revised
	}

	artifact, err := imageArtifact(returned, resp.Data[0].B64JSON)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return artifact, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.cfg.ChatModel,
		MaxTokens: 300,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned from openai", ErrUnavailable)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	return content, nil
}

func (g *OpenAIGenerator) loadSession(ctx context.Context, responseID string) (Session, error) {
	if responseID == "" {
		return Session{}, nil
	}
	session, _, err := g.sessions.Load(ctx, responseID)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return session, nil
}

func (g *OpenAIGenerator) saveSession(ctx context.Context, responseID string, session Session) error {
	if responseID == "" {
		return nil
	}
	if err := g.sessions.Save(ctx, responseID, session); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (g *OpenAIGenerator) startSpan(ctx context.Context, endpoint string) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, "openai.generate", trace.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("model", g.cfg.ImageModel),
	))
}

func (g *OpenAIGenerator) finishArtifact(span trace.Span, endpoint string, start time.Time, artifact Artifact, err error) (Artifact, error) {
	observeCall("openai", endpoint, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("openai generation failed")
		return Artifact{}, err
	}
	return artifact, nil
}

func (g *OpenAIGenerator) finishStream(span trace.Span, endpoint string, start time.Time, stream Stream, err error) (Stream, error) {
	observeCall("openai", endpoint, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("openai generation failed")
		return Stream{}, err
	}
	return stream, nil
}

func jsonStream(payload interface{}) (Stream, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Stream{}, fmt.Errorf("%w: encode payload: %v", ErrUnavailable, err)
	}
	return Stream{ContentType: "application/json", Body: io.NopCloser(bytes.NewReader(encoded))}, nil
}

func optimizeSystemPrompt() string {
	return "You refine image prompts for avatar portraits. Given the current prompt and the participant's ratings, " +
		"reply with a single revised prompt and nothing else."
}

func optimizeUserPrompt(current string, ratings json.RawMessage) string {
	builder := strings.Builder{}
	builder.WriteString("## Current prompt\n")
	builder.WriteString(current)
	builder.WriteString("\n\n## Ratings\n")
	builder.Write(ratings)
	return builder.String()
}

func finalSystemPrompt() string {
	return "You compose the final image prompt of an avatar survey session. Respect every constraint listed, " +
		"weigh the rating history, and reply with a single prompt and nothing else."
}

func finalUserPrompt(req FinalRequest) string {
	builder := strings.Builder{}
	builder.WriteString("## Constraints\n")
	builder.Write(req.PreVariables)
	builder.WriteString("\n\n## Participant prompt\n")
	builder.WriteString(req.Prompt)
	builder.WriteString("\n\n## Ratings\n")
	for _, rating := range req.Ratings {
		builder.Write(rating)
		builder.WriteString("\n")
	}
	return builder.String()
}
