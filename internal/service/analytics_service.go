package service

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketing-backend/internal/model"
	"marketing-backend/internal/util"
	"marketing-backend/pkg/apierror"
)

const (
	defaultSummaryDays = 30
	maxSummaryDays     = 365
	summaryTopN        = 10
	maxMetadataKeys    = 20
	maxFieldLength     = 512
)

var eventTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_.-]{0,63}$`)

type AnalyticsStore interface {
	Insert(ctx context.Context, e model.AnalyticsEvent) error
	Summary(ctx context.Context, since time.Time, topN int) (model.AnalyticsSummary, error)
}

type AnalyticsService struct {
	events AnalyticsStore
	now    func() time.Time
}

func NewAnalyticsService(events AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{events: events, now: time.Now}
}

func (s *AnalyticsService) Track(ctx context.Context, req model.AnalyticsEventRequest, clientIP string, userAgent string) (model.AnalyticsEvent, error) {
	eventType := strings.ToLower(strings.TrimSpace(req.Type))
	if !eventTypePattern.MatchString(eventType) {
		return model.AnalyticsEvent{}, apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", "invalid event type", req.Type, http.StatusBadRequest)
	}
	if len(req.Metadata) > maxMetadataKeys {
		return model.AnalyticsEvent{}, apierror.Wrap(model.ErrInvalidInput, "VALIDATION_ERROR", "too many metadata keys", "", http.StatusBadRequest)
	}

	e := model.AnalyticsEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Path:       clip(strings.TrimSpace(req.Path)),
		Referrer:   clip(strings.TrimSpace(req.Referrer)),
		SessionID:  clip(strings.TrimSpace(req.SessionID)),
		UserAgent:  clip(userAgent),
		IP:         clientIP,
		Metadata:   req.Metadata,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Insert(ctx, e); err != nil {
		return model.AnalyticsEvent{}, err
	}
	return e, nil
}

// Summary aggregates the last days of events. days is clamped to one year.
func (s *AnalyticsService) Summary(ctx context.Context, days int) (model.AnalyticsSummary, error) {
	if days < 1 {
		days = defaultSummaryDays
	}
	if days > maxSummaryDays {
		days = maxSummaryDays
	}

	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	return s.events.Summary(ctx, since, summaryTopN)
}

func clip(value string) string {
	return util.CleanLine(value, maxFieldLength)
}
