package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/avatair-api/internal/dto"
	"github.com/noah-isme/avatair-api/internal/events"
	"github.com/noah-isme/avatair-api/internal/models"
	"github.com/noah-isme/avatair-api/internal/observability"
	"github.com/noah-isme/avatair-api/internal/repository"
)

// Archive naming.
const (
	ArchiveFilename    = "survey.zip"
	ArchiveContentType = "application/zip"
	surveyEntry        = "survey.json"
	resultEntry        = "result.png"
)

// FileStorage abstracts archive upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ExportResult is an assembled archive ready to hand to a consumer.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService packages a survey and its responses into one archive.
type ExportService interface {
	Export(ctx context.Context, surveyID string, actor Actor) (ExportResult, error)
	Publish(ctx context.Context, surveyID string, actor Actor) (dto.SurveyPublishResponse, error)
}

type exportService struct {
	surveys   repository.SurveyRepository
	artifacts repository.ArtifactStore
	storage   FileStorage
	publisher events.Publisher
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewExportService constructs the export assembler. storage may be nil, in
// which case Publish is rejected.
func NewExportService(surveys repository.SurveyRepository, artifacts repository.ArtifactStore, storage FileStorage, publisher events.Publisher, logger zerolog.Logger) ExportService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &exportService{
		surveys:   surveys,
		artifacts: artifacts,
		storage:   storage,
		publisher: publisher,
		logger:    logger.With().Str("component", "export_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/avatair-api/internal/service/export"),
	}
}

func (s *exportService) Export(ctx context.Context, surveyID string, actor Actor) (ExportResult, error) {
	ctx, span := s.tracer.Start(ctx, "export.assemble", trace.WithAttributes(attribute.String("survey.id", surveyID)))
	defer span.End()

	start := time.Now()
	result, responses, err := s.assemble(ctx, surveyID, actor)
	observability.ExportDuration().Observe(time.Since(start).Seconds())
	if err != nil {
		observability.Exports().WithLabelValues(outcomeFor(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ExportResult{}, err
	}

	observability.Exports().WithLabelValues("success").Inc()
	observability.ExportSize().Observe(float64(len(result.Data)))
	span.SetAttributes(attribute.Int("export.responses", responses), attribute.Int("export.bytes", len(result.Data)))

	if err := s.publisher.Publish(ctx, events.Event{Type: events.SurveyExported, SurveyID: surveyID, Count: int64(responses)}); err != nil {
		s.logger.Warn().Err(err).Str("survey_id", surveyID).Msg("failed to publish export event")
	}

	return result, nil
}

func (s *exportService) Publish(ctx context.Context, surveyID string, actor Actor) (dto.SurveyPublishResponse, error) {
	if s.storage == nil {
		return dto.SurveyPublishResponse{}, ErrPublishingDisabled
	}

	result, err := s.Export(ctx, surveyID, actor)
	if err != nil {
		return dto.SurveyPublishResponse{}, err
	}

	name := path.Join(surveyID, result.Filename)
	url, err := s.storage.Upload(ctx, name, bytes.NewReader(result.Data))
	if err != nil {
		return dto.SurveyPublishResponse{}, fmt.Errorf("publish archive: %w", err)
	}

	s.logger.Info().Str("survey_id", surveyID).Int("bytes", len(result.Data)).Msg("survey archive published")
	return dto.SurveyPublishResponse{SurveyID: surveyID, URL: url, Bytes: len(result.Data)}, nil
}

func (s *exportService) assemble(ctx context.Context, surveyID string, actor Actor) (ExportResult, int, error) {
	survey, err := ownedSurvey(ctx, s.surveys, surveyID, actor)
	if err != nil {
		return ExportResult{}, 0, err
	}

	responses, err := s.artifacts.ListBySurvey(ctx, survey.ID)
	if err != nil {
		return ExportResult{}, 0, err
	}

	data, err := BuildArchive(survey, responses)
	if err != nil {
		return ExportResult{}, 0, err
	}

	return ExportResult{Filename: ArchiveFilename, ContentType: ArchiveContentType, Data: data}, len(responses), nil
}

// BuildArchive writes the survey and its responses into a zip archive.
// Entries are written in a fixed order and stamped with the survey's
// modification time, so identical inputs produce identical bytes.
func BuildArchive(survey models.Survey, responses []models.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := zip.NewWriter(buf)
	modified := survey.UpdatedAt.UTC()
	if modified.IsZero() {
		modified = survey.CreatedAt.UTC()
	}

	surveyJSON, err := json.MarshalIndent(survey, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode survey: %w", err)
	}
	if err := writeEntry(writer, surveyEntry, modified, surveyJSON); err != nil {
		return nil, err
	}

	threshold := survey.ImageThreshold()
	for k, response := range responses {
		dir := fmt.Sprintf("response%d", k+1)

		responseJSON, err := json.MarshalIndent(response.WithoutImages(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", dir, err)
		}
		if err := writeEntry(writer, fmt.Sprintf("%s/%s.json", dir, dir), modified, responseJSON); err != nil {
			return nil, err
		}

		for i, image := range response.GeneratedImageBatch {
			n := i + 1
			if n > threshold {
				continue
			}
			if err := writeEntry(writer, fmt.Sprintf("%s/images/image%d.png", dir, n), modified, image); err != nil {
				return nil, err
			}
		}

		// Images past the round threshold are terminal artifacts. A zip can
		// hold only one result.png per directory, so the latest one wins.
		if len(response.GeneratedImageBatch) > threshold {
			last := response.GeneratedImageBatch[len(response.GeneratedImageBatch)-1]
			if err := writeEntry(writer, fmt.Sprintf("%s/images/%s", dir, resultEntry), modified, last); err != nil {
				return nil, err
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	return buf.Bytes(), nil
}

func writeEntry(writer *zip.Writer, name string, modified time.Time, data []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	}
	entry, err := writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
