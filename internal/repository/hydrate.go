package repository

import (
	"context"
	"fmt"

	"whatado/event-service/internal/models"
	"whatado/event-service/pkg/db"
)

// hydrate attaches related interests, invited users and wannagos with one
// query per relation for the whole page
func (r *eventRepository) hydrate(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}
	byID := make(map[uint64]*models.Event, len(events))
	ids := make([]uint64, 0, len(events))
	for _, e := range events {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}
	ph, args := db.In(ids)

	if err := r.hydrateInterests(ctx, byID, ph, args); err != nil {
		return wrapErr(err, "load event interests")
	}
	if err := r.hydrateInvited(ctx, byID, ph, args); err != nil {
		return wrapErr(err, "load invited users")
	}
	if err := r.hydrateWannagos(ctx, byID, ph, args); err != nil {
		return wrapErr(err, "load wannagos")
	}
	return nil
}

func (r *eventRepository) hydrateInterests(ctx context.Context, byID map[uint64]*models.Event, ph string, args []interface{}) error {
	query := fmt.Sprintf(`
		SELECT ei.event_id, i.id, i.name
		FROM event_interests ei
		JOIN interests i ON i.id = ei.interest_id
		WHERE ei.event_id IN (%s)
		ORDER BY ei.event_id, i.id
	`, ph)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var eventID uint64
		var i models.Interest
		if err := rows.Scan(&eventID, &i.ID, &i.Name); err != nil {
			return err
		}
		if e, ok := byID[eventID]; ok {
			e.RelatedInterests = append(e.RelatedInterests, i)
		}
	}
	return rows.Err()
}

func (r *eventRepository) hydrateInvited(ctx context.Context, byID map[uint64]*models.Event, ph string, args []interface{}) error {
	query := fmt.Sprintf(`
		SELECT iv.event_id, u.id, u.username
		FROM event_invites iv
		JOIN users u ON u.id = iv.user_id
		WHERE iv.event_id IN (%s)
		ORDER BY iv.event_id, u.id
	`, ph)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var eventID uint64
		var u models.UserSummary
		if err := rows.Scan(&eventID, &u.ID, &u.Username); err != nil {
			return err
		}
		if e, ok := byID[eventID]; ok {
			e.Invited = append(e.Invited, u)
		}
	}
	return rows.Err()
}

func (r *eventRepository) hydrateWannagos(ctx context.Context, byID map[uint64]*models.Event, ph string, args []interface{}) error {
	query := fmt.Sprintf(`
		SELECT w.id, w.event_id, w.user_id, w.declined, w.created_at, w.updated_at, u.username
		FROM wannagos w
		JOIN users u ON u.id = w.user_id
		WHERE w.event_id IN (%s)
		ORDER BY w.event_id, w.id
	`, ph)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var w models.Wannago
		var username string
		if err := rows.Scan(&w.ID, &w.EventID, &w.UserID, &w.Declined, &w.CreatedAt, &w.UpdatedAt, &username); err != nil {
			return err
		}
		w.User = &models.UserSummary{ID: w.UserID, Username: username}
		if e, ok := byID[w.EventID]; ok {
			e.Wannagos = append(e.Wannagos, w)
		}
	}
	return rows.Err()
}
