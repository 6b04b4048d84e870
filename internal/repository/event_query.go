package repository

import (
	"fmt"

	"whatado/event-service/internal/models"
	"whatado/event-service/internal/policy"
	"whatado/event-service/pkg/db"
)

const selectEvents = `
		SELECT e.id, e.creator_id, e.group_id, e.title, e.description, e.location, e.picture_url, e.time,
			ST_Y(e.coordinates), ST_X(e.coordinates), e.privacy, e.filter_min_age, e.filter_max_age,
			e.filter_gender, e.filter_radius, e.flags, e.created_at, e.updated_at, c.username
		FROM events e
		JOIN users c ON c.id = e.creator_id`

// visibleTo adds the privacy, demographic and geospatial predicates the
// policy evaluator applies in process. The viewer must be complete.
func visibleTo(q *db.Query, v *models.ViewerSnapshot, age int, radius float64) {
	if v.Friends.Len() > 0 {
		ph, args := db.In(v.Friends.Slice())
		q.Where(fmt.Sprintf("(e.privacy = 'PUBLIC' OR (e.privacy = 'GROUP' AND e.creator_id IN (%s)))", ph), args...)
	} else {
		q.Where("e.privacy = 'PUBLIC'")
	}
	q.Where("e.filter_min_age <= ? AND e.filter_max_age >= ?", age, age)
	q.Where("(e.filter_gender = ? OR e.filter_gender = 'BOTH')", string(v.Gender))
	q.Where("ST_Distance(e.coordinates, POINT(?, ?)) <= ?", v.Location.Lng, v.Location.Lat, radius)
}

const hasInterests = "EXISTS (SELECT 1 FROM event_interests ei WHERE ei.event_id = e.id)"

// interestFilter renders the interest rule for mode
func interestFilter(q *db.Query, v *models.ViewerSnapshot, mode policy.InterestMode) {
	shared := ""
	var args []interface{}
	if v.Interests.Len() > 0 {
		var ph string
		ph, args = db.In(v.Interests.Slice())
		shared = fmt.Sprintf("EXISTS (SELECT 1 FROM event_interests si WHERE si.event_id = e.id AND si.interest_id IN (%s))", ph)
	}

	switch mode {
	case policy.InterestsMatch:
		if shared == "" {
			q.Where("NOT " + hasInterests)
			return
		}
		q.Where(fmt.Sprintf("(NOT %s OR %s)", hasInterests, shared), args...)
	case policy.InterestsComplement:
		if shared == "" {
			q.Where(hasInterests)
			return
		}
		q.Where(fmt.Sprintf("%s AND NOT %s", hasInterests, shared), args...)
	}
}

func buildFeedQuery(fq FeedQuery) (string, []interface{}) {
	q := db.NewQuery(selectEvents).
		Where("e.time BETWEEN ? AND ?", fq.Range.Start, fq.Range.End)
	visibleTo(q, fq.Viewer, policy.AgeAt(*fq.Viewer.BirthDate, fq.Now), fq.Radius)
	interestFilter(q, fq.Viewer, fq.Interests)

	if fq.Sort == models.SortNewest {
		q.OrderBy("e.created_at DESC, e.id ASC")
	} else {
		q.OrderBy("e.time ASC, e.id ASC")
	}
	return q.Limit(fq.Take).Offset(fq.Skip).Build()
}

func buildSuggestedQuery(sq SuggestedQuery) (string, []interface{}) {
	q := db.NewQuery(selectEvents).
		Where("e.time > ?", sq.Now)
	visibleTo(q, sq.Viewer, policy.AgeAt(*sq.Viewer.BirthDate, sq.Now), sq.Radius)
	interestFilter(q, sq.Viewer, policy.InterestsMatch)
	q.Where("NOT EXISTS (SELECT 1 FROM wannagos dw WHERE dw.event_id = e.id AND dw.user_id = ? AND dw.declined = TRUE)", sq.Viewer.UserID)

	return q.OrderBy("(SELECT COUNT(*) FROM event_invites ic WHERE ic.event_id = e.id) DESC, e.id ASC").
		Limit(sq.Limit).
		Build()
}
