package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
	"whatado/event-service/pkg/db"
)

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (*models.Event, error) {
	var (
		e        models.Event
		groupID  sql.NullInt64
		picture  sql.NullString
		username string
	)
	err := s.Scan(
		&e.ID, &e.CreatorID, &groupID, &e.Title, &e.Description, &e.Location, &picture, &e.Time,
		&e.Coordinates.Lat, &e.Coordinates.Lng, &e.Privacy, &e.FilterMinAge, &e.FilterMaxAge,
		&e.FilterGender, &e.FilterRadius, &e.Flags, &e.CreatedAt, &e.UpdatedAt, &username,
	)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		g := uint64(groupID.Int64)
		e.GroupID = &g
	}
	if picture.Valid {
		p := picture.String
		e.PictureURL = &p
	}
	e.Creator = &models.UserSummary{ID: e.CreatorID, Username: username}
	e.Invited = []models.UserSummary{}
	e.Wannagos = []models.Wannago{}
	e.RelatedInterests = []models.Interest{}
	return &e, nil
}

func (r *eventRepository) list(ctx context.Context, action, query string, args ...interface{}) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err, action)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapErr(err, "scan event")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, action)
	}

	if err := r.hydrate(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) ListFeed(ctx context.Context, q FeedQuery) ([]*models.Event, error) {
	query, args := buildFeedQuery(q)
	return r.list(ctx, "list feed", query, args...)
}

func (r *eventRepository) ListSuggested(ctx context.Context, q SuggestedQuery) ([]*models.Event, error) {
	query, args := buildSuggestedQuery(q)
	return r.list(ctx, "list suggested events", query, args...)
}

func (r *eventRepository) ListForMember(ctx context.Context, userID uint64) ([]*models.Event, error) {
	query, args := db.NewQuery(selectEvents).
		Where("(e.creator_id = ? OR EXISTS (SELECT 1 FROM event_invites mi WHERE mi.event_id = e.id AND mi.user_id = ?))", userID, userID).
		OrderBy("e.time ASC, e.id ASC").
		Build()
	return r.list(ctx, "list member events", query, args...)
}

func (r *eventRepository) ListFlagged(ctx context.Context) ([]*models.Event, error) {
	query, args := db.NewQuery(selectEvents).
		Where("e.flags > 0").
		OrderBy("e.flags DESC, e.id ASC").
		Build()
	return r.list(ctx, "list flagged events", query, args...)
}

func (r *eventRepository) GetByID(ctx context.Context, id uint64) (*models.Event, error) {
	query, args := db.NewQuery(selectEvents).Where("e.id = ?", id).Build()
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrEventNotFound
	}
	if err != nil {
		return nil, wrapErr(err, "get event")
	}
	if err := r.hydrate(ctx, []*models.Event{e}); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *models.Event, interestIDs, invitedIDs []uint64) (uint64, error) {
	var id uint64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO events (creator_id, group_id, title, description, location, picture_url, time,
				coordinates, privacy, filter_min_age, filter_max_age, filter_gender, filter_radius,
				flags, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, POINT(?, ?), ?, ?, ?, ?, ?, 0, ?, ?)
		`
		res, err := tx.ExecContext(ctx, query,
			e.CreatorID, e.GroupID, e.Title, e.Description, e.Location, e.PictureURL, e.Time,
			e.Coordinates.Lng, e.Coordinates.Lat, string(e.Privacy), e.FilterMinAge, e.FilterMaxAge,
			string(e.FilterGender), e.FilterRadius, e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			return translateWrite(err, "create event")
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return wrapErr(err, "get event id")
		}
		id = uint64(lastID)

		if err := insertPairs(ctx, tx, "event_interests", "interest_id", id, interestIDs); err != nil {
			return translateWrite(err, "attach interests")
		}
		if err := insertPairs(ctx, tx, "event_invites", "user_id", id, invitedIDs); err != nil {
			return translateWrite(err, "create invitations")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *eventRepository) Update(ctx context.Context, e *models.Event, interestIDs []uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE events
			SET group_id = ?, title = ?, description = ?, location = ?, picture_url = ?, time = ?,
				coordinates = POINT(?, ?), privacy = ?, filter_min_age = ?, filter_max_age = ?,
				filter_gender = ?, filter_radius = ?, updated_at = ?
			WHERE id = ?
		`
		_, err := tx.ExecContext(ctx, query,
			e.GroupID, e.Title, e.Description, e.Location, e.PictureURL, e.Time,
			e.Coordinates.Lng, e.Coordinates.Lat, string(e.Privacy), e.FilterMinAge, e.FilterMaxAge,
			string(e.FilterGender), e.FilterRadius, e.UpdatedAt, e.ID,
		)
		if err != nil {
			return translateWrite(err, "update event")
		}
		if interestIDs == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_interests WHERE event_id = ?`, e.ID); err != nil {
			return wrapErr(err, "clear interests")
		}
		if err := insertPairs(ctx, tx, "event_interests", "interest_id", e.ID, interestIDs); err != nil {
			return translateWrite(err, "attach interests")
		}
		return nil
	})
}

func (r *eventRepository) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return wrapErr(err, "delete event")
	}
	return requireAffected(res, errs.ErrEventNotFound)
}

func (r *eventRepository) IncrementFlags(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE events SET flags = flags + 1 WHERE id = ?`, id)
	if err != nil {
		return wrapErr(err, "flag event")
	}
	return requireAffected(res, errs.ErrEventNotFound)
}

// insertPairs bulk inserts (event_id, column) rows
func insertPairs(ctx context.Context, q queryer, table, column string, eventID uint64, ids []uint64) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	values := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids)*2)
	for _, id := range ids {
		values = append(values, "(?, ?)")
		args = append(args, eventID, id)
	}
	query := fmt.Sprintf("INSERT INTO %s (event_id, %s) VALUES %s", table, column, strings.Join(values, ", "))
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

var errMissingReference = fmt.Errorf("referenced row does not exist: %w", errs.ErrNotFound)

// translateWrite maps constraint violations on writes to categories
func translateWrite(err error, action string) error {
	if db.IsMissingReference(err) {
		return fmt.Errorf("failed to %s: %w", action, errMissingReference)
	}
	return wrapErr(err, action)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, "read affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
