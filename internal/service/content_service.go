package service

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketing-backend/internal/event"
	"marketing-backend/internal/model"
	"marketing-backend/pkg/apierror"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type DocumentStore interface {
	Insert(ctx context.Context, doc model.Document) error
	Get(ctx context.Context, collection string, id string) (model.Document, error)
	List(ctx context.Context, q model.DocumentQuery) ([]model.Document, int, error)
	Update(ctx context.Context, doc model.Document) error
	Delete(ctx context.Context, collection string, id string) error
}

var requiredFields = map[string][]string{
	model.CollectionServices:     {"title", "description"},
	model.CollectionProjects:     {"title", "description"},
	model.CollectionTeam:         {"name", "position"},
	model.CollectionTestimonials: {"name", "quote"},
}

// reservedFields are managed by the server and dropped from client input.
var reservedFields = []string{"id", "created_at", "updated_at", "created_by", "updated_by"}

// ContentService manages the public site collections.
type ContentService struct {
	docs DocumentStore
	bus  event.Bus
	now  func() time.Time
}

func NewContentService(docs DocumentStore, bus event.Bus) *ContentService {
	if bus == nil {
		bus = event.Discard{}
	}
	return &ContentService{docs: docs, bus: bus, now: time.Now}
}

// IsContentCollection reports whether name is one of the editable site collections.
func IsContentCollection(name string) bool {
	_, ok := requiredFields[name]
	return ok
}

func (s *ContentService) List(ctx context.Context, collection string, filter model.ContentFilter) ([]model.Document, model.Meta, error) {
	if !IsContentCollection(collection) {
		return nil, model.Meta{}, unknownCollection(collection)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	match := map[string]any{}
	if filter.Published != nil {
		match["published"] = *filter.Published
	}
	if filter.Featured != nil {
		match["featured"] = *filter.Featured
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		match["category"] = category
	}

	docs, total, err := s.docs.List(ctx, model.DocumentQuery{Collection: collection, Match: match, Page: page, Limit: limit})
	if err != nil {
		return nil, model.Meta{}, err
	}
	return docs, pageMeta(page, limit, total), nil
}

// Get returns a document. When publishedOnly is set, drafts are reported as
// not found.
func (s *ContentService) Get(ctx context.Context, collection string, id string, publishedOnly bool) (model.Document, error) {
	if !IsContentCollection(collection) {
		return model.Document{}, unknownCollection(collection)
	}

	doc, err := s.docs.Get(ctx, collection, id)
	if err != nil {
		return model.Document{}, err
	}
	if publishedOnly && doc.Data["published"] != true {
		return model.Document{}, apierror.Wrap(model.ErrNotFound, "NOT_FOUND", collection+" not found", id, http.StatusNotFound)
	}
	return doc, nil
}

func (s *ContentService) Create(ctx context.Context, actorID string, collection string, data map[string]any) (model.Document, error) {
	if !IsContentCollection(collection) {
		return model.Document{}, unknownCollection(collection)
	}

	data = sanitizeData(data)
	if _, ok := data["published"]; !ok {
		data["published"] = true
	}
	if _, ok := data["featured"]; !ok {
		data["featured"] = false
	}
	data["created_by"] = actorID
	if err := validateDocument(collection, data); err != nil {
		return model.Document{}, err
	}

	now := s.now().UTC()
	doc := model.Document{
		ID:         uuid.NewString(),
		Collection: collection,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		return model.Document{}, err
	}

	s.bus.Publish(event.New(event.TypeContentCreated, actorID, contentRef(collection, doc.ID)))
	return doc, nil
}

// Update merges changes into the stored document. A null value removes the
// field.
func (s *ContentService) Update(ctx context.Context, actorID string, collection string, id string, changes map[string]any) (model.Document, error) {
	if !IsContentCollection(collection) {
		return model.Document{}, unknownCollection(collection)
	}

	doc, err := s.docs.Get(ctx, collection, id)
	if err != nil {
		return model.Document{}, err
	}

	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	for key, value := range sanitizeData(changes) {
		if value == nil {
			delete(doc.Data, key)
			continue
		}
		doc.Data[key] = value
	}
	doc.Data["updated_by"] = actorID
	if err := validateDocument(collection, doc.Data); err != nil {
		return model.Document{}, err
	}

	doc.UpdatedAt = s.now().UTC()
	if err := s.docs.Update(ctx, doc); err != nil {
		return model.Document{}, err
	}

	s.bus.Publish(event.New(event.TypeContentUpdated, actorID, contentRef(collection, id)))
	return doc, nil
}

func (s *ContentService) Delete(ctx context.Context, actorID string, collection string, id string) error {
	if !IsContentCollection(collection) {
		return unknownCollection(collection)
	}
	if err := s.docs.Delete(ctx, collection, id); err != nil {
		return err
	}

	s.bus.Publish(event.New(event.TypeContentDeleted, actorID, contentRef(collection, id)))
	return nil
}

func validateDocument(collection string, data map[string]any) error {
	for _, field := range requiredFields[collection] {
		value, ok := data[field].(string)
		if !ok || strings.TrimSpace(value) == "" {
			return apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", field+" is required", field, http.StatusBadRequest)
		}
	}

	for _, flag := range []string{"published", "featured"} {
		if value, ok := data[flag]; ok {
			if _, isBool := value.(bool); !isBool {
				return apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", flag+" must be a boolean", flag, http.StatusBadRequest)
			}
		}
	}

	if collection == model.CollectionTestimonials {
		rating, ok := data["rating"].(float64)
		if !ok || rating != math.Trunc(rating) || rating < 1 || rating > 5 {
			return apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", "rating must be a whole number from 1 to 5", "rating", http.StatusBadRequest)
		}
	}
	return nil
}

func sanitizeData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = value
	}
	for _, key := range reservedFields {
		delete(out, key)
	}
	return out
}

func normalizePage(page int, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func pageMeta(page int, limit int, total int) model.Meta {
	return model.Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}

func unknownCollection(name string) error {
	return apierror.Wrap(model.ErrNotFound, "NOT_FOUND", fmt.Sprintf("unknown collection %q", name), "", http.StatusNotFound)
}

func contentRef(collection string, id string) map[string]string {
	return map[string]string{"collection": collection, "id": id}
}
