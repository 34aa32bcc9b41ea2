package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-backend/internal/model"
	"marketing-backend/internal/repository"
)

func TestAnalyticsService_TrackAndSummarize(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	svc := NewAnalyticsService(repository.NewMemoryAnalyticsStore())
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	for _, req := range []model.AnalyticsEventRequest{
		{Type: "page_view", Path: "/", SessionID: "s1"},
		{Type: "Page_View", Path: "/services", SessionID: "s1"},
		{Type: "cta_click", Path: "/", SessionID: "s2"},
	} {
		_, err := svc.Track(ctx, req, "10.0.0.1", "agent")
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-defaultSummaryDays*24*time.Hour), summary.Since)
	assert.Equal(t, 3, summary.TotalEvents)
	assert.Equal(t, 2, summary.Sessions)
	assert.Equal(t, model.CountByKey{Key: "page_view", Count: 2}, summary.ByType[0])
	assert.Equal(t, model.CountByKey{Key: "/", Count: 2}, summary.TopPaths[0])

	summary, err = svc.Summary(ctx, 10_000)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-maxSummaryDays*24*time.Hour), summary.Since)
}

func TestAnalyticsService_TrackValidates(t *testing.T) {
	svc := NewAnalyticsService(repository.NewMemoryAnalyticsStore())

	metadata := map[string]any{}
	for i := 0; i <= maxMetadataKeys; i++ {
		metadata[strings.Repeat("k", i+1)] = i
	}

	for name, req := range map[string]model.AnalyticsEventRequest{
		"empty type":     {Type: ""},
		"bad type":       {Type: "drop table;"},
		"metadata flood": {Type: "page_view", Metadata: metadata},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Track(context.Background(), req, "", "")
			assert.True(t, errors.Is(err, model.ErrInvalidInput))
		})
	}
}

func TestAnalyticsService_ClipsLongFields(t *testing.T) {
	svc := NewAnalyticsService(repository.NewMemoryAnalyticsStore())

	e, err := svc.Track(context.Background(), model.AnalyticsEventRequest{Type: "page_view", Path: strings.Repeat("p", 2000)}, "", "")
	require.NoError(t, err)
	assert.Len(t, e.Path, maxFieldLength)
}
