package repository

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"marketing-backend/internal/model"
)

// MemoryPrincipalStore keeps principals in process. It backs tests and local
// runs without DATABASE_URL.
type MemoryPrincipalStore struct {
	mu         sync.RWMutex
	principals map[string]model.Principal
	now        func() time.Time
}

func NewMemoryPrincipalStore() *MemoryPrincipalStore {
	return &MemoryPrincipalStore{principals: make(map[string]model.Principal), now: time.Now}
}

func (s *MemoryPrincipalStore) FindByID(_ context.Context, id string) (model.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return model.Principal{}, notFound("principal", id)
	}
	return clonePrincipal(p), nil
}

func (s *MemoryPrincipalStore) FindByEmail(_ context.Context, email string, activeOnly bool) (model.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(email))
	for _, p := range s.principals {
		if strings.ToLower(p.Email) != needle {
			continue
		}
		if activeOnly && !p.Active {
			break
		}
		return clonePrincipal(p), nil
	}
	return model.Principal{}, notFound("principal", email)
}

func (s *MemoryPrincipalStore) Create(_ context.Context, p model.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Email = strings.ToLower(p.Email)
	for _, existing := range s.principals {
		if existing.Email == p.Email {
			return alreadyExists("principal", p.Email)
		}
	}
	if _, ok := s.principals[p.ID]; ok {
		return alreadyExists("principal", p.ID)
	}
	s.principals[p.ID] = clonePrincipal(p)
	return nil
}

func (s *MemoryPrincipalStore) Update(_ context.Context, id string, patch model.PrincipalPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[id]
	if !ok {
		return notFound("principal", id)
	}
	p.Apply(patch, s.now().UTC())
	s.principals[id] = p
	return nil
}

func (s *MemoryPrincipalStore) List(_ context.Context) ([]model.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Principal, 0, len(s.principals))
	for _, p := range s.principals {
		out = append(out, clonePrincipal(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryPrincipalStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.principals), nil
}

func clonePrincipal(p model.Principal) model.Principal {
	if p.RefreshTokens != nil {
		p.RefreshTokens = append([]model.RefreshTokenEntry(nil), p.RefreshTokens...)
	}
	if p.LastLogin != nil {
		lastLogin := *p.LastLogin
		p.LastLogin = &lastLogin
	}
	return p
}

type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]model.Document
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]map[string]model.Document)}
}

func (s *MemoryDocumentStore) Insert(_ context.Context, doc model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.docs[doc.Collection]
	if !ok {
		coll = make(map[string]model.Document)
		s.docs[doc.Collection] = coll
	}
	if _, exists := coll[doc.ID]; exists {
		return alreadyExists(doc.Collection, doc.ID)
	}
	coll[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *MemoryDocumentStore) Get(_ context.Context, collection string, id string) (model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return model.Document{}, notFound(collection, id)
	}
	return cloneDocument(doc), nil
}

func (s *MemoryDocumentStore) List(_ context.Context, q model.DocumentQuery) ([]model.Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.Document, 0)
	for _, doc := range s.docs[q.Collection] {
		if containsAll(doc.Data, q.Match) {
			matched = append(matched, doc)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		oi, oj := orderOf(matched[i]), orderOf(matched[j])
		if oi != oj {
			return oi < oj
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start < 0 || start >= total {
		return []model.Document{}, total, nil
	}
	end := min(start+q.Limit, total)

	page := make([]model.Document, 0, end-start)
	for _, doc := range matched[start:end] {
		page = append(page, cloneDocument(doc))
	}
	return page, total, nil
}

func (s *MemoryDocumentStore) Update(_ context.Context, doc model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[doc.Collection][doc.ID]
	if !ok {
		return notFound(doc.Collection, doc.ID)
	}
	existing.Data = doc.Data
	existing.UpdatedAt = doc.UpdatedAt
	s.docs[doc.Collection][doc.ID] = cloneDocument(existing)
	return nil
}

func (s *MemoryDocumentStore) Delete(_ context.Context, collection string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][id]; !ok {
		return notFound(collection, id)
	}
	delete(s.docs[collection], id)
	return nil
}

// cloneDocument deep-copies Data through JSON, which also normalizes numbers
// to float64 the same way a JSONB round trip would.
func cloneDocument(doc model.Document) model.Document {
	if doc.Data == nil {
		return doc
	}
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return doc
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return doc
	}
	doc.Data = data
	return doc
}

func containsAll(data map[string]any, match map[string]any) bool {
	for key, want := range match {
		got, ok := data[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func orderOf(doc model.Document) float64 {
	if v, ok := doc.Data["order"].(float64); ok {
		return v
	}
	return float64(1<<31 - 1)
}

type MemorySubscriberStore struct {
	mu          sync.RWMutex
	subscribers map[string]model.Subscriber
}

func NewMemorySubscriberStore() *MemorySubscriberStore {
	return &MemorySubscriberStore{subscribers: make(map[string]model.Subscriber)}
}

func (s *MemorySubscriberStore) FindByEmail(_ context.Context, email string) (model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(email))
	for _, sub := range s.subscribers {
		if sub.Email == needle {
			return cloneSubscriber(sub), nil
		}
	}
	return model.Subscriber{}, notFound("subscriber", email)
}

func (s *MemorySubscriberStore) Create(_ context.Context, sub model.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.Email = strings.ToLower(sub.Email)
	for _, existing := range s.subscribers {
		if existing.Email == sub.Email {
			return alreadyExists("subscriber", sub.Email)
		}
	}
	s.subscribers[sub.ID] = cloneSubscriber(sub)
	return nil
}

func (s *MemorySubscriberStore) SetActive(_ context.Context, id string, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return notFound("subscriber", id)
	}
	sub.Active = active
	if active {
		sub.SubscribedAt = at
		sub.UnsubscribedAt = nil
	} else {
		sub.UnsubscribedAt = &at
	}
	s.subscribers[id] = sub
	return nil
}

func (s *MemorySubscriberStore) List(_ context.Context, activeOnly bool) ([]model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		if activeOnly && !sub.Active {
			continue
		}
		out = append(out, cloneSubscriber(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscribedAt.After(out[j].SubscribedAt) })
	return out, nil
}

func cloneSubscriber(sub model.Subscriber) model.Subscriber {
	if sub.UnsubscribedAt != nil {
		at := *sub.UnsubscribedAt
		sub.UnsubscribedAt = &at
	}
	return sub
}

type MemoryAnalyticsStore struct {
	mu     sync.RWMutex
	events []model.AnalyticsEvent
}

func NewMemoryAnalyticsStore() *MemoryAnalyticsStore {
	return &MemoryAnalyticsStore{}
}

func (s *MemoryAnalyticsStore) Insert(_ context.Context, e model.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *MemoryAnalyticsStore) Summary(_ context.Context, since time.Time, topN int) (model.AnalyticsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := model.AnalyticsSummary{Since: since}
	byType := make(map[string]int)
	byPath := make(map[string]int)
	sessions := make(map[string]struct{})

	for _, e := range s.events {
		if e.OccurredAt.Before(since) {
			continue
		}
		summary.TotalEvents++
		byType[e.Type]++
		if e.Path != "" {
			byPath[e.Path]++
		}
		if e.SessionID != "" {
			sessions[e.SessionID] = struct{}{}
		}
	}

	summary.ByType = topCounts(byType, topN)
	summary.TopPaths = topCounts(byPath, topN)
	summary.Sessions = len(sessions)
	return summary, nil
}

func topCounts(counts map[string]int, limit int) []model.CountByKey {
	out := make([]model.CountByKey, 0, len(counts))
	for key, count := range counts {
		out = append(out, model.CountByKey{Key: key, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
