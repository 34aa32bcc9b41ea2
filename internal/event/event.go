package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypePrincipalLogin       Type = "principal.login"
	TypePrincipalRegistered  Type = "principal.registered"
	TypePrincipalUpdated     Type = "principal.updated"
	TypeContentCreated       Type = "content.created"
	TypeContentUpdated       Type = "content.updated"
	TypeContentDeleted       Type = "content.deleted"
	TypeContactSubmitted     Type = "contact.submitted"
	TypeContactStatusChanged Type = "contact.status_changed"
	TypeNewsletterSubscribed Type = "newsletter.subscribed"
	TypeNewsletterLeft       Type = "newsletter.unsubscribed"
	TypeSuggestionGenerated  Type = "ai.suggestion_generated"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
}

func New(t Type, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}

// Discard is a Bus that drops everything. Services use it when no bus is wired.
type Discard struct{}

func (Discard) Publish(Event) {}

func (Discard) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event)
	return ch, func() {}
}
