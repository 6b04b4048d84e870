package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
	"whatado/event-service/internal/policy"
	"whatado/event-service/pkg/db"
)

type UserRepository interface {
	GetViewerSnapshot(ctx context.Context, userID uint64) (*models.ViewerSnapshot, error)
	Exists(ctx context.Context, userID uint64) (bool, error)
}

type EventRepository interface {
	ListFeed(ctx context.Context, q FeedQuery) ([]*models.Event, error)
	ListSuggested(ctx context.Context, q SuggestedQuery) ([]*models.Event, error)
	ListForMember(ctx context.Context, userID uint64) ([]*models.Event, error)
	ListFlagged(ctx context.Context) ([]*models.Event, error)
	GetByID(ctx context.Context, id uint64) (*models.Event, error)
	Create(ctx context.Context, e *models.Event, interestIDs, invitedIDs []uint64) (uint64, error)
	// Update writes every column of e. interestIDs replaces the related
	// interests when non-nil.
	Update(ctx context.Context, e *models.Event, interestIDs []uint64) error
	Delete(ctx context.Context, id uint64) error
	IncrementFlags(ctx context.Context, id uint64) error
}

type AttendanceRepository interface {
	Invite(ctx context.Context, eventID, userID uint64) error
	Uninvite(ctx context.Context, eventID, userID uint64) error
	AddWannago(ctx context.Context, eventID, userID uint64) (models.WannagoOutcome, error)
	GetWannago(ctx context.Context, id uint64) (*models.Wannago, error)
	UpdateWannago(ctx context.Context, id uint64, declined bool) error
	DeleteWannago(ctx context.Context, id uint64) error
}

// FeedQuery selects one page of the primary or other feed
type FeedQuery struct {
	Viewer    *models.ViewerSnapshot
	Range     models.TimeRange
	Take      int
	Skip      int
	Sort      models.SortMode
	Interests policy.InterestMode
	Radius    float64
	Now       time.Time
}

// SuggestedQuery selects upcoming events ranked by invite count
type SuggestedQuery struct {
	Viewer *models.ViewerSnapshot
	Radius float64
	Now    time.Time
	Limit  int
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// wrapErr adds the failed action and tags retryable driver failures
func wrapErr(err error, action string) error {
	wrapped := fmt.Errorf("failed to %s: %w", action, err)
	if db.IsTransient(err) {
		return errs.Transient(wrapped)
	}
	return wrapped
}

func queryIDs(ctx context.Context, q queryer, query string, args ...interface{}) ([]uint64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func withTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(err, "commit transaction")
	}
	return nil
}
