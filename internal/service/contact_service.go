package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketing-backend/internal/event"
	"marketing-backend/internal/model"
	"marketing-backend/internal/util"
	"marketing-backend/pkg/apierror"
)

const (
	maxContactMessage = 5000
	maxContactLine    = 200
)

var contactStatuses = map[string]bool{
	model.ContactStatusNew:      true,
	model.ContactStatusRead:     true,
	model.ContactStatusReplied:  true,
	model.ContactStatusArchived: true,
}

type ContactNotifier interface {
	ContactAutoReply(ctx context.Context, contact model.ContactRequest) error
	ContactNotification(ctx context.Context, id string, contact model.ContactRequest) error
}

// ContactService stores contact-form submissions and sends the follow-up
// emails. Email delivery never fails a submission.
type ContactService struct {
	docs     DocumentStore
	notifier ContactNotifier
	delivery *Delivery
	bus      event.Bus
	now      func() time.Time
}

func NewContactService(docs DocumentStore, notifier ContactNotifier, bus event.Bus) *ContactService {
	if bus == nil {
		bus = event.Discard{}
	}
	return &ContactService{docs: docs, notifier: notifier, delivery: NewDelivery(0, 0), bus: bus, now: time.Now}
}

// SetDelivery replaces the runner used for the follow-up emails.
func (s *ContactService) SetDelivery(delivery *Delivery) {
	if delivery != nil {
		s.delivery = delivery
	}
}

func (s *ContactService) Submit(ctx context.Context, req model.ContactRequest, clientIP string, userAgent string) (model.ContactReceipt, error) {
	req = trimContact(req)
	if err := validateContact(req); err != nil {
		return model.ContactReceipt{}, err
	}

	now := s.now().UTC()
	doc := model.Document{
		ID:         uuid.NewString(),
		Collection: model.CollectionContacts,
		Data: map[string]any{
			"name":       req.Name,
			"email":      req.Email,
			"phone":      req.Phone,
			"company":    req.Company,
			"subject":    req.Subject,
			"message":    req.Message,
			"status":     model.ContactStatusNew,
			"ip":         clientIP,
			"user_agent": userAgent,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		return model.ContactReceipt{}, err
	}

	s.bus.Publish(event.New(event.TypeContactSubmitted, "", map[string]string{
		"id":      doc.ID,
		"name":    req.Name,
		"subject": req.Subject,
	}))

	receipt := model.ContactReceipt{Contact: doc}
	if s.notifier == nil {
		return receipt, nil
	}

	s.delivery.Dispatch(ctx, "contact notification", func(ctx context.Context) error {
		return s.notifier.ContactNotification(ctx, doc.ID, req)
	}, "contact_id", doc.ID)

	receipt.EmailSent = s.delivery.Send(ctx, "contact auto-reply", func(ctx context.Context) error {
		return s.notifier.ContactAutoReply(ctx, req)
	}, "contact_id", doc.ID)

	return receipt, nil
}

func (s *ContactService) List(ctx context.Context, filter model.ContentFilter) ([]model.Document, model.Meta, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	match := map[string]any{}
	if status := strings.TrimSpace(filter.Status); status != "" {
		if !contactStatuses[status] {
			return nil, model.Meta{}, invalidStatus(status)
		}
		match["status"] = status
	}

	docs, total, err := s.docs.List(ctx, model.DocumentQuery{Collection: model.CollectionContacts, Match: match, Page: page, Limit: limit})
	if err != nil {
		return nil, model.Meta{}, err
	}
	return docs, pageMeta(page, limit, total), nil
}

func (s *ContactService) UpdateStatus(ctx context.Context, actorID string, id string, status string) (model.Document, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !contactStatuses[status] {
		return model.Document{}, invalidStatus(status)
	}

	doc, err := s.docs.Get(ctx, model.CollectionContacts, id)
	if err != nil {
		return model.Document{}, err
	}

	doc.Data["status"] = status
	doc.Data["handled_by"] = actorID
	doc.UpdatedAt = s.now().UTC()
	if err := s.docs.Update(ctx, doc); err != nil {
		return model.Document{}, err
	}

	s.bus.Publish(event.New(event.TypeContactStatusChanged, actorID, map[string]string{"id": id, "status": status}))
	return doc, nil
}

func trimContact(req model.ContactRequest) model.ContactRequest {
	req.Name = util.CleanLine(req.Name, maxContactLine)
	req.Email = normalizeEmail(req.Email)
	req.Phone = util.CleanLine(req.Phone, maxContactLine)
	req.Company = util.CleanLine(req.Company, maxContactLine)
	req.Subject = util.CleanLine(req.Subject, maxContactLine)
	req.Message = util.CleanText(req.Message, 0)
	return req
}

func validateContact(req model.ContactRequest) error {
	switch {
	case req.Name == "":
		return apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", "name is required", "name", http.StatusBadRequest)
	case !validEmail(req.Email):
		return apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", "a valid email is required", "email", http.StatusBadRequest)
	case req.Message == "":
		return apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", "message is required", "message", http.StatusBadRequest)
	case len(req.Message) > maxContactMessage:
		return apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", "message is too long", "message", http.StatusBadRequest)
	}
	return nil
}

func invalidStatus(status string) error {
	return apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", "invalid contact status", status, http.StatusBadRequest)
}
