package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"

	"github.com/noah-isme/avatair-api/internal/models"
)

// ResponsesCollection is the collection holding response documents.
const ResponsesCollection = "responses"

type responseDocument struct {
	ID                  string                 `bson:"_id"`
	SurveyID            string                 `bson:"surveyId"`
	ResponseID          string                 `bson:"responseId"`
	CreatedAt           time.Time              `bson:"createdAt"`
	ActiveField         string                 `bson:"activeField,omitempty"`
	SliderScore         map[string]interface{} `bson:"sliderScore,omitempty"`
	StarScore           map[string]interface{} `bson:"starScore,omitempty"`
	SelectScore         map[string]interface{} `bson:"selectScore,omitempty"`
	SwipeScore          map[string]interface{} `bson:"swipeScore,omitempty"`
	FilterResponses     []string               `bson:"filterResponses"`
	PromptStrings       []string               `bson:"promptStrings"`
	GeneratedImageBatch [][]byte               `bson:"generatedImageBatch"`
	Ratings             []string               `bson:"ratings"`
}

type mongoResponseRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoResponseRepository builds the document-store artifact backend. Each
// append is a single $push so concurrent rounds never overwrite each other.
func NewMongoResponseRepository(db *mongo.Database) ArtifactStore {
	return &mongoResponseRepository{collection: db.Collection(ResponsesCollection), now: time.Now}
}

// EnsureResponseIndexes creates the indexes the Mongo backend relies on.
func EnsureResponseIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(ResponsesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "surveyId", Value: 1}}},
		{Keys: bson.D{{Key: "responseId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return wrapMongo("ensure response indexes", err)
}

func (r *mongoResponseRepository) CreateResponse(ctx context.Context, surveyID string, partial models.Response) (models.Response, error) {
	record := partial
	record.SurveyID = surveyID
	if record.ID == "" {
		record.ID = record.ResponseID
	}
	if record.ResponseID == "" {
		record.ResponseID = record.ID
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	record.PromptStrings = []string{}
	record.GeneratedImageBatch = nil
	record.Ratings = []json.RawMessage{}

	if _, err := r.collection.InsertOne(ctx, toDocument(record)); err != nil {
		return models.Response{}, wrapMongo("create response", err)
	}

	return record, nil
}

func (r *mongoResponseRepository) Get(ctx context.Context, query ResponseQuery) (models.Response, error) {
	filter := bson.M{"_id": query.ID}
	if query.SurveyID != "" {
		filter["surveyId"] = query.SurveyID
	}

	var doc responseDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return models.Response{}, wrapMongo("get response", err)
	}

	return fromDocument(doc), nil
}

func (r *mongoResponseRepository) Exists(ctx context.Context, id string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, wrapMongo("check response", err)
	}
	return count > 0, nil
}

func (r *mongoResponseRepository) AppendPrompt(ctx context.Context, id, text string) error {
	return r.push(ctx, "append prompt", id, "promptStrings", text)
}

func (r *mongoResponseRepository) AppendImage(ctx context.Context, id string, data []byte) error {
	return r.push(ctx, "append image", id, "generatedImageBatch", data)
}

func (r *mongoResponseRepository) AppendRating(ctx context.Context, id string, rating json.RawMessage) error {
	return r.push(ctx, "append rating", id, "ratings", string(rating))
}

func (r *mongoResponseRepository) push(ctx context.Context, op, id, field string, value interface{}) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{field: value}})
	if err != nil {
		return wrapMongo(op, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoResponseRepository) DeleteOne(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapMongo("delete response", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoResponseRepository) DeleteMany(ctx context.Context, matcher Matcher) (int64, error) {
	if matcher.Field == "" || matcher.Pattern == "" {
		return 0, fmt.Errorf("%w: matcher was not validated", ErrInvalidPattern)
	}

	filter := bson.M{matcher.Field: primitive.Regex{Pattern: matcher.Pattern}}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, wrapMongo("delete responses", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoResponseRepository) DeleteBySurvey(ctx context.Context, surveyID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"surveyId": surveyID})
	if err != nil {
		return 0, wrapMongo("delete survey responses", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoResponseRepository) ListBySurvey(ctx context.Context, surveyID string) ([]models.Response, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"surveyId": surveyID}, opts)
	if err != nil {
		return nil, wrapMongo("list responses", err)
	}
	defer cursor.Close(ctx)

	var docs []responseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapMongo("decode responses", err)
	}

	responses := make([]models.Response, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, fromDocument(doc))
	}
	return responses, nil
}

func toDocument(r models.Response) responseDocument {
	return responseDocument{
		ID:                  r.ID,
		SurveyID:            r.SurveyID,
		ResponseID:          r.ResponseID,
		CreatedAt:           r.CreatedAt,
		ActiveField:         r.ActiveField,
		SliderScore:         r.SliderScore,
		StarScore:           r.StarScore,
		SelectScore:         r.SelectScore,
		SwipeScore:          r.SwipeScore,
		FilterResponses:     nonNilStrings(r.FilterResponses.Data()),
		PromptStrings:       nonNilStrings(r.PromptStrings),
		GeneratedImageBatch: [][]byte{},
		Ratings:             []string{},
	}
}

func fromDocument(doc responseDocument) models.Response {
	record := models.Response{
		ID:                  doc.ID,
		SurveyID:            doc.SurveyID,
		ResponseID:          doc.ResponseID,
		CreatedAt:           doc.CreatedAt,
		ActiveField:         doc.ActiveField,
		SliderScore:         doc.SliderScore,
		StarScore:           doc.StarScore,
		SelectScore:         doc.SelectScore,
		SwipeScore:          doc.SwipeScore,
		PromptStrings:       nonNilStrings(doc.PromptStrings),
		GeneratedImageBatch: doc.GeneratedImageBatch,
		Ratings:             make([]json.RawMessage, 0, len(doc.Ratings)),
	}
	record.FilterResponses = datatypes.NewJSONType(nonNilStrings(doc.FilterResponses))
	for _, rating := range doc.Ratings {
		record.Ratings = append(record.Ratings, json.RawMessage(rating))
	}
	return record
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func wrapMongo(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}
