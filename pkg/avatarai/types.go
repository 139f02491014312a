package avatarai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// ErrUnavailable is returned for every failed generation call: transport
// errors, non-2xx statuses and malformed payloads alike.
var ErrUnavailable = errors.New("generation service unavailable")

// AvatarRequest asks the generator for a batch of images for one round.
type AvatarRequest struct {
	ResponseID string `json:"responseId"`
	Iterations int    `json:"iterations"`
	Size       int    `json:"size"`
	Prompt     string `json:"prompt"`
}

// OptimizeRequest submits the ratings of the latest round.
type OptimizeRequest struct {
	ResponseID string          `json:"responseId"`
	Ratings    json.RawMessage `json:"ratings"`
}

// FinalRequest drives the generator toward the session's terminal artifact.
type FinalRequest struct {
	PreVariables json.RawMessage   `json:"preVariables"`
	Ratings      []json.RawMessage `json:"ratings"`
	Prompt       string            `json:"prompt"`
	Size         int               `json:"size"`
	ResponseID   string            `json:"responseId"`
}

// Artifact is a single prompt/image pair returned by the generator.
type Artifact struct {
	Prompt      string
	Image       []byte
	ContentType string
}

// Stream is an unparsed remote payload relayed to the caller. Body must be
// closed by whoever consumes it.
type Stream struct {
	ContentType string
	Body        io.ReadCloser
}

// Generator is the typed adapter to the remote generative service.
type Generator interface {
	GenerateAvatar(ctx context.Context, req AvatarRequest) (Artifact, error)
	Optimize(ctx context.Context, req OptimizeRequest) (Stream, error)
	RequestFinal(ctx context.Context, req FinalRequest) (Stream, error)
	FetchResult(ctx context.Context, responseID string) (Artifact, error)
}
