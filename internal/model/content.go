package model

import "time"

const (
	CollectionServices     = "services"
	CollectionProjects     = "projects"
	CollectionTeam         = "team"
	CollectionTestimonials = "testimonials"
	CollectionContacts     = "contacts"
)

// Document is a schemaless record stored in a named collection.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"-"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type DocumentQuery struct {
	Collection string
	// Match restricts results to documents whose data contains every key/value.
	Match map[string]any
	Page  int
	Limit int
}

type DocumentList struct {
	Items []Document `json:"items"`
}

type Subscriber struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name,omitempty"`
	Active         bool       `json:"active"`
	SubscribedAt   time.Time  `json:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
}

type SubscriberList struct {
	Subscribers []Subscriber `json:"subscribers"`
}

type AnalyticsEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Path       string         `json:"path,omitempty"`
	Referrer   string         `json:"referrer,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	IP         string         `json:"-"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type AnalyticsSummary struct {
	Since       time.Time    `json:"since"`
	TotalEvents int          `json:"total_events"`
	ByType      []CountByKey `json:"by_type"`
	TopPaths    []CountByKey `json:"top_paths"`
	Sessions    int          `json:"unique_sessions"`
}

type Suggestion struct {
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type ContactReceipt struct {
	Contact   Document `json:"contact"`
	EmailSent bool     `json:"email_sent"`
}

type SubscribeReceipt struct {
	Subscriber Subscriber `json:"subscriber"`
	EmailSent  bool       `json:"email_sent"`
}

// ContentFilter narrows a collection listing. Nil flags are not applied.
type ContentFilter struct {
	Published *bool
	Featured  *bool
	Category  string
	Status    string
	Page      int
	Limit     int
}

const (
	ContactStatusNew      = "new"
	ContactStatusRead     = "read"
	ContactStatusReplied  = "replied"
	ContactStatusArchived = "archived"
)
