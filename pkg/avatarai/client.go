package avatarai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMinLatency is the floor every call waits before it is issued.
const DefaultMinLatency = 400 * time.Millisecond

const (
	endpointAvatar   = "/avatar"
	endpointOptimize = "/optimize"
	endpointFinal    = "/survey"
	endpointResult   = "/result"
)

var (
	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "avatair",
		Subsystem: "generator",
		Name:      "call_duration_seconds",
		Help:      "Duration of generative service calls, latency floor included",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"backend", "endpoint"})

	callTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avatair",
		Subsystem: "generator",
		Name:      "calls_total",
		Help:      "Number of generative service calls by outcome",
	}, []string{"backend", "endpoint", "outcome"})
)

// ClientConfig configures the remote avatar API client.
type ClientConfig struct {
	BaseURL    string
	MinLatency time.Duration
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Client talks to the remote avatar API over JSON.
type Client struct {
	http       *resty.Client
	schema     *jsonschema.Schema
	minLatency time.Duration
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewClient builds a resty-backed client for the remote avatar API.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("avatar api base url is required")
	}

	if cfg.MinLatency < 0 {
		cfg.MinLatency = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	schema, err := compileArtifactSchema()
	if err != nil {
		return nil, err
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &Client{
		http:       httpClient,
		schema:     schema,
		minLatency: cfg.MinLatency,
		tracer:     otel.Tracer("github.com/noah-isme/avatair-api/pkg/avatarai"),
		logger:     cfg.Logger.With().Str("component", "avatar_api_client").Logger(),
	}, nil
}

// GenerateAvatar requests one round of images and returns the artifact the
// remote service selected for it.
func (c *Client) GenerateAvatar(ctx context.Context, req AvatarRequest) (Artifact, error) {
	return c.fetchArtifact(ctx, endpointAvatar, req.ResponseID, req)
}

// Optimize submits ratings and relays the remote body unparsed.
func (c *Client) Optimize(ctx context.Context, req OptimizeRequest) (Stream, error) {
	return c.openStream(ctx, endpointOptimize, req.ResponseID, req)
}

// RequestFinal asks the remote service to prepare the terminal artifact.
func (c *Client) RequestFinal(ctx context.Context, req FinalRequest) (Stream, error) {
	return c.openStream(ctx, endpointFinal, req.ResponseID, req)
}

// FetchResult retrieves the terminal artifact of a session.
func (c *Client) FetchResult(ctx context.Context, responseID string) (Artifact, error) {
	body := map[string]string{"responseId": responseID}
	return c.fetchArtifact(ctx, endpointResult, responseID, body)
}

func (c *Client) fetchArtifact(parent context.Context, endpoint, responseID string, body interface{}) (Artifact, error) {
	ctx, span := c.startSpan(parent, endpoint, responseID)
	defer span.End()

	start := time.Now()
	artifact, err := c.doArtifact(ctx, endpoint, body)
	c.observe(endpoint, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Str("response_id", responseID).Msg("generation call failed")
		return Artifact{}, err
	}

	return artifact, nil
}

func (c *Client) doArtifact(ctx context.Context, endpoint string, body interface{}) (Artifact, error) {
	if err := waitFloor(ctx, c.minLatency); err != nil {
		return Artifact{}, fmt.Errorf("%w: %s: %w", ErrUnavailable, endpoint, err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: post %s: %w", ErrUnavailable, endpoint, err)
	}
	if resp.IsError() {
		return Artifact{}, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, endpoint, resp.StatusCode())
	}

	var document interface{}
	if err := sonic.Unmarshal(resp.Body(), &document); err != nil {
		return Artifact{}, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, endpoint, err)
	}

	artifact, err := decodeArtifact(c.schema, document)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}

	return artifact, nil
}

func (c *Client) openStream(parent context.Context, endpoint, responseID string, body interface{}) (Stream, error) {
	ctx, span := c.startSpan(parent, endpoint, responseID)
	defer span.End()

	start := time.Now()
	stream, err := c.doStream(ctx, endpoint, body)
	c.observe(endpoint, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Str("response_id", responseID).Msg("generation call failed")
		return Stream{}, err
	}

	return stream, nil
}

func (c *Client) doStream(ctx context.Context, endpoint string, body interface{}) (Stream, error) {
	if err := waitFloor(ctx, c.minLatency); err != nil {
		return Stream{}, fmt.Errorf("%w: %s: %w", ErrUnavailable, endpoint, err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(endpoint)
	if err != nil {
		return Stream{}, fmt.Errorf("%w: post %s: %w", ErrUnavailable, endpoint, err)
	}

	raw := resp.RawBody()
	if resp.IsError() {
		if raw != nil {
			_ = raw.Close()
		}
		return Stream{}, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, endpoint, resp.StatusCode())
	}
	if raw == nil {
		return Stream{}, fmt.Errorf("%w: %s returned no body", ErrUnavailable, endpoint)
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Stream{ContentType: contentType, Body: raw}, nil
}

func (c *Client) startSpan(ctx context.Context, endpoint, responseID string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "avatarai.call", trace.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Bool("session", responseID != ""),
	))
}

func (c *Client) observe(endpoint string, start time.Time, err error) {
	observeCall("avatair", endpoint, start, err)
}

func observeCall(backend, endpoint string, start time.Time, err error) {
	callDuration.WithLabelValues(backend, endpoint).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	callTotal.WithLabelValues(backend, endpoint, outcome).Inc()
}

// waitFloor blocks for d unless ctx is done first. Callers report a done
// context as ErrUnavailable, the same as a cancelled request.
func waitFloor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
