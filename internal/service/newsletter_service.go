package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketing-backend/internal/event"
	"marketing-backend/internal/model"
	"marketing-backend/pkg/apierror"
)

type SubscriberStore interface {
	FindByEmail(ctx context.Context, email string) (model.Subscriber, error)
	Create(ctx context.Context, s model.Subscriber) error
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
	List(ctx context.Context, activeOnly bool) ([]model.Subscriber, error)
}

type WelcomeSender interface {
	NewsletterWelcome(ctx context.Context, subscriber model.Subscriber) error
}

type NewsletterService struct {
	subscribers SubscriberStore
	welcome     WelcomeSender
	delivery    *Delivery
	bus         event.Bus
	now         func() time.Time
}

func NewNewsletterService(subscribers SubscriberStore, welcome WelcomeSender, bus event.Bus) *NewsletterService {
	if bus == nil {
		bus = event.Discard{}
	}
	return &NewsletterService{subscribers: subscribers, welcome: welcome, delivery: NewDelivery(0, 0), bus: bus, now: time.Now}
}

// SetDelivery replaces the runner used for the welcome email.
func (s *NewsletterService) SetDelivery(delivery *Delivery) {
	if delivery != nil {
		s.delivery = delivery
	}
}

// Subscribe is idempotent for active subscribers and reactivates former ones.
// The welcome email goes out only when the subscription is new or renewed.
func (s *NewsletterService) Subscribe(ctx context.Context, req model.SubscribeRequest) (model.SubscribeReceipt, error) {
	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		return model.SubscribeReceipt{}, apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", "a valid email is required", "email", http.StatusBadRequest)
	}
	now := s.now().UTC()

	existing, err := s.subscribers.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.Active:
		return model.SubscribeReceipt{Subscriber: existing}, nil
	case err == nil:
		if err := s.subscribers.SetActive(ctx, existing.ID, true, now); err != nil {
			return model.SubscribeReceipt{}, err
		}
		existing.Active = true
		existing.SubscribedAt = now
		existing.UnsubscribedAt = nil
		return s.welcomed(ctx, existing), nil
	case !errors.Is(err, model.ErrNotFound):
		return model.SubscribeReceipt{}, err
	}

	subscriber := model.Subscriber{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Active:       true,
		SubscribedAt: now,
	}
	if err := s.subscribers.Create(ctx, subscriber); err != nil {
		return model.SubscribeReceipt{}, err
	}
	return s.welcomed(ctx, subscriber), nil
}

func (s *NewsletterService) Unsubscribe(ctx context.Context, email string) error {
	existing, err := s.subscribers.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if !existing.Active {
		return nil
	}
	if err := s.subscribers.SetActive(ctx, existing.ID, false, s.now().UTC()); err != nil {
		return err
	}

	s.bus.Publish(event.New(event.TypeNewsletterLeft, "", map[string]string{"id": existing.ID}))
	return nil
}

func (s *NewsletterService) List(ctx context.Context, activeOnly bool) ([]model.Subscriber, error) {
	return s.subscribers.List(ctx, activeOnly)
}

func (s *NewsletterService) welcomed(ctx context.Context, subscriber model.Subscriber) model.SubscribeReceipt {
	s.bus.Publish(event.New(event.TypeNewsletterSubscribed, "", map[string]string{"id": subscriber.ID}))

	receipt := model.SubscribeReceipt{Subscriber: subscriber}
	if s.welcome == nil {
		return receipt
	}
	receipt.EmailSent = s.delivery.Send(ctx, "newsletter welcome email", func(ctx context.Context) error {
		return s.welcome.NewsletterWelcome(ctx, subscriber)
	}, "subscriber_id", subscriber.ID)
	return receipt
}
