package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/avatair-api/internal/events"
	"github.com/noah-isme/avatair-api/internal/models"
	"github.com/noah-isme/avatair-api/internal/repository"
	"github.com/noah-isme/avatair-api/pkg/avatarai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type testStores struct {
	db        *gorm.DB
	surveys   repository.SurveyRepository
	artifacts repository.ArtifactStore
}

func newTestStores(t *testing.T) testStores {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(append([]interface{}{&models.Survey{}}, repository.ArtifactModels()...)...))

	return testStores{
		db:        db,
		surveys:   repository.NewSurveyRepository(db),
		artifacts: repository.NewResponseRepository(db),
	}
}

func (s testStores) seedSurvey(t *testing.T, id string, activated bool, maxIterations, perPage int) models.Survey {
	t.Helper()

	params := models.DefaultSurveyParameters()
	params.MaxIterations = maxIterations
	params.AvatarsPerPage = perPage

	survey := models.Survey{
		ID:           id,
		UserID:       "owner-1",
		Activated:    activated,
		Title:        "Survey " + id,
		Parameters:   datatypes.NewJSONType(params),
		PreVariables: datatypes.NewJSONType(models.PreVariables{Gender: []string{"female"}, AgeRange: []float64{20, 30}}),
		RatingScales: datatypes.NewJSONType(models.DefaultRatingScales()),
		CreatedAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.surveys.Create(context.Background(), &survey))
	return survey
}

type stubGenerator struct {
	mu           sync.Mutex
	calls        []string
	avatarReqs   []avatarai.AvatarRequest
	optimizeReqs []avatarai.OptimizeRequest
	finalReqs    []avatarai.FinalRequest
	artifact     avatarai.Artifact
	err          error
}

func newStubGenerator() *stubGenerator {
	return &stubGenerator{artifact: avatarai.Artifact{Prompt: "remote prompt", Image: []byte("png-bytes"), ContentType: "image/png"}}
}

func (g *stubGenerator) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *stubGenerator) GenerateAvatar(ctx context.Context, req avatarai.AvatarRequest) (avatarai.Artifact, error) {
	g.record("avatar")
	g.avatarReqs = append(g.avatarReqs, req)
	if g.err != nil {
		return avatarai.Artifact{}, g.err
	}
	return g.artifact, nil
}

func (g *stubGenerator) Optimize(ctx context.Context, req avatarai.OptimizeRequest) (avatarai.Stream, error) {
	g.record("optimize")
	g.optimizeReqs = append(g.optimizeReqs, req)
	if g.err != nil {
		return avatarai.Stream{}, g.err
	}
	return streamOf("optimized"), nil
}

func (g *stubGenerator) RequestFinal(ctx context.Context, req avatarai.FinalRequest) (avatarai.Stream, error) {
	g.record("final")
	g.finalReqs = append(g.finalReqs, req)
	if g.err != nil {
		return avatarai.Stream{}, g.err
	}
	return streamOf("final"), nil
}

func (g *stubGenerator) FetchResult(ctx context.Context, responseID string) (avatarai.Artifact, error) {
	g.record("result")
	if g.err != nil {
		return avatarai.Artifact{}, g.err
	}
	return avatarai.Artifact{Prompt: "final prompt", Image: []byte("result-bytes"), ContentType: "image/png"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func streamOf(body string) avatarai.Stream {
	return avatarai.Stream{ContentType: "application/json", Body: io.NopCloser(strings.NewReader(body))}
}
