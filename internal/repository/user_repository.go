package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetViewerSnapshot(ctx context.Context, userID uint64) (*models.ViewerSnapshot, error) {
	query := `
		SELECT id, birthday, gender, ST_Y(location), ST_X(location)
		FROM users
		WHERE id = ?
	`
	var (
		id       uint64
		birthday sql.NullTime
		gender   sql.NullString
		lat, lng sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&id, &birthday, &gender, &lat, &lng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, wrapErr(err, "get viewer")
	}

	v := &models.ViewerSnapshot{UserID: id, Gender: models.Gender(gender.String)}
	if birthday.Valid {
		b := time.Date(birthday.Time.Year(), birthday.Time.Month(), birthday.Time.Day(), 0, 0, 0, 0, time.UTC)
		v.BirthDate = &b
	}
	if lat.Valid && lng.Valid {
		v.Location = &models.Point{Lat: lat.Float64, Lng: lng.Float64}
	}

	friends, err := queryIDs(ctx, r.db, `
		SELECT friend_id FROM user_friends WHERE user_id = ?
		UNION
		SELECT user_id FROM user_friends WHERE friend_id = ?
	`, userID, userID)
	if err != nil {
		return nil, wrapErr(err, "get friends")
	}
	interests, err := queryIDs(ctx, r.db, `SELECT interest_id FROM user_interests WHERE user_id = ?`, userID)
	if err != nil {
		return nil, wrapErr(err, "get user interests")
	}
	groups, err := queryIDs(ctx, r.db, `SELECT group_id FROM group_members WHERE user_id = ?`, userID)
	if err != nil {
		return nil, wrapErr(err, "get user groups")
	}

	v.Friends = models.NewIDSet(friends...)
	v.Interests = models.NewIDSet(interests...)
	v.Groups = models.NewIDSet(groups...)
	return v, nil
}

func (r *userRepository) Exists(ctx context.Context, userID uint64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&count)
	if err != nil {
		return false, wrapErr(err, "check user")
	}
	return count > 0, nil
}
