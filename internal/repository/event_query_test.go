package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"whatado/event-service/internal/models"
	"whatado/event-service/internal/policy"
)

func snapshot() *models.ViewerSnapshot {
	birth := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &models.ViewerSnapshot{
		UserID:    7,
		BirthDate: &birth,
		Gender:    models.GenderMale,
		Location:  &models.Point{Lat: 40, Lng: -111},
		Friends:   models.NewIDSet(3, 2),
		Interests: models.NewIDSet(100),
		Groups:    models.NewIDSet(),
	}
}

func TestBuildFeedQuery(t *testing.T) {
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(7 * 24 * time.Hour)
	now := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	query, args := buildFeedQuery(FeedQuery{
		Viewer:    snapshot(),
		Range:     models.TimeRange{Start: start, End: end},
		Take:      20,
		Skip:      40,
		Sort:      models.SortSoonest,
		Interests: policy.InterestsMatch,
		Radius:    10,
		Now:       now,
	})

	assert.Contains(t, query, "e.time BETWEEN ? AND ?")
	assert.Contains(t, query, "(e.privacy = 'PUBLIC' OR (e.privacy = 'GROUP' AND e.creator_id IN (?, ?)))")
	assert.NotContains(t, query, "'PRIVATE'")
	assert.Contains(t, query, "ST_Distance(e.coordinates, POINT(?, ?)) <= ?")
	assert.Contains(t, query, "(NOT EXISTS (SELECT 1 FROM event_interests ei WHERE ei.event_id = e.id) OR EXISTS (SELECT 1 FROM event_interests si WHERE si.event_id = e.id AND si.interest_id IN (?)))")
	assert.Contains(t, query, "ORDER BY e.time ASC, e.id ASC LIMIT ? OFFSET ?")

	assert.Equal(t, []interface{}{
		start, end,
		uint64(2), uint64(3),
		24, 24,
		"MALE",
		-111.0, 40.0, 10.0,
		uint64(100),
		20, 40,
	}, args)
}

func TestBuildFeedQuery_Variants(t *testing.T) {
	now := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no friends drops group branch", func(t *testing.T) {
		v := snapshot()
		v.Friends = models.NewIDSet()
		query, _ := buildFeedQuery(FeedQuery{Viewer: v, Take: 1, Now: now})
		assert.Contains(t, query, "e.privacy = 'PUBLIC' AND")
		assert.NotContains(t, query, "'GROUP'")
	})

	t.Run("newest ordering", func(t *testing.T) {
		query, _ := buildFeedQuery(FeedQuery{Viewer: snapshot(), Take: 1, Sort: models.SortNewest, Now: now})
		assert.Contains(t, query, "ORDER BY e.created_at DESC, e.id ASC")
	})

	t.Run("complement requires interests", func(t *testing.T) {
		query, _ := buildFeedQuery(FeedQuery{Viewer: snapshot(), Take: 1, Interests: policy.InterestsComplement, Now: now})
		assert.Contains(t, query, "EXISTS (SELECT 1 FROM event_interests ei WHERE ei.event_id = e.id) AND NOT EXISTS (SELECT 1 FROM event_interests si")
	})

	t.Run("viewer without interests", func(t *testing.T) {
		v := snapshot()
		v.Interests = models.NewIDSet()

		match, _ := buildFeedQuery(FeedQuery{Viewer: v, Take: 1, Interests: policy.InterestsMatch, Now: now})
		assert.Contains(t, match, "NOT EXISTS (SELECT 1 FROM event_interests ei WHERE ei.event_id = e.id)")
		assert.NotContains(t, match, "si.interest_id")

		other, _ := buildFeedQuery(FeedQuery{Viewer: v, Take: 1, Interests: policy.InterestsComplement, Now: now})
		assert.NotContains(t, other, "NOT EXISTS")
	})
}

func TestBuildSuggestedQuery(t *testing.T) {
	now := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildSuggestedQuery(SuggestedQuery{Viewer: snapshot(), Radius: 10, Now: now, Limit: 10})

	assert.Contains(t, query, "e.time > ?")
	assert.Contains(t, query, "dw.declined = TRUE")
	assert.Contains(t, query, "ORDER BY (SELECT COUNT(*) FROM event_invites ic WHERE ic.event_id = e.id) DESC, e.id ASC LIMIT ?")
	assert.NotContains(t, query, "OFFSET")
	assert.Equal(t, now, args[0])
	assert.Equal(t, uint64(7), args[len(args)-2])
	assert.Equal(t, 10, args[len(args)-1])
}
