package repository

import (
	"context"
	"database/sql"
	"errors"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
	"whatado/event-service/pkg/db"
)

type attendanceRepository struct {
	db *sql.DB
}

func NewAttendanceRepository(db *sql.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

// lockEvent serializes attendance changes on one event for the rest of tx
func lockEvent(ctx context.Context, tx *sql.Tx, eventID uint64) error {
	var id uint64
	err := tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = ? FOR UPDATE`, eventID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrEventNotFound
	}
	if err != nil {
		return wrapErr(err, "lock event")
	}
	return nil
}

func (r *attendanceRepository) Invite(ctx context.Context, eventID, userID uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockEvent(ctx, tx, eventID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO event_invites (event_id, user_id, created_at)
			VALUES (?, ?, ?)
		`, eventID, userID, now())
		switch {
		case db.IsDuplicate(err):
			return errs.ErrAlreadyInvited
		case db.IsMissingReference(err):
			return errs.ErrUserNotFound
		case err != nil:
			return wrapErr(err, "create invitation")
		}
		return nil
	})
}

func (r *attendanceRepository) Uninvite(ctx context.Context, eventID, userID uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockEvent(ctx, tx, eventID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_invites WHERE event_id = ? AND user_id = ?`, eventID, userID); err != nil {
			return wrapErr(err, "delete invitation")
		}
		ts := now()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO wannagos (event_id, user_id, declined, created_at, updated_at)
			VALUES (?, ?, TRUE, ?, ?)
			ON DUPLICATE KEY UPDATE declined = TRUE, updated_at = VALUES(updated_at)
		`, eventID, userID, ts, ts)
		if db.IsMissingReference(err) {
			return errs.ErrUserNotFound
		}
		if err != nil {
			return wrapErr(err, "decline wannago")
		}
		return nil
	})
}

// AddWannago relies on the (event_id, user_id) unique key. MySQL reports one
// affected row for an insert, two for an update that changed the row and
// zero when the existing row was already active. A declined row is
// reactivated on purpose rather than rejected as a duplicate.
func (r *attendanceRepository) AddWannago(ctx context.Context, eventID, userID uint64) (models.WannagoOutcome, error) {
	ts := now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO wannagos (event_id, user_id, declined, created_at, updated_at)
		VALUES (?, ?, FALSE, ?, ?)
		ON DUPLICATE KEY UPDATE updated_at = IF(declined, VALUES(updated_at), updated_at), declined = FALSE
	`, eventID, userID, ts, ts)
	if db.IsMissingReference(err) {
		return 0, errMissingReference
	}
	if err != nil {
		return 0, wrapErr(err, "add wannago")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(err, "read affected rows")
	}
	switch n {
	case 1:
		return models.WannagoCreated, nil
	case 2:
		return models.WannagoReactivated, nil
	}
	return 0, errs.ErrWannagoExists
}

func (r *attendanceRepository) GetWannago(ctx context.Context, id uint64) (*models.Wannago, error) {
	var w models.Wannago
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, user_id, declined, created_at, updated_at
		FROM wannagos
		WHERE id = ?
	`, id).Scan(&w.ID, &w.EventID, &w.UserID, &w.Declined, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrWannagoNotFound
	}
	if err != nil {
		return nil, wrapErr(err, "get wannago")
	}
	return &w, nil
}

// UpdateWannago sets the declined flag. Declining also withdraws the
// user's invitation to the event.
func (r *attendanceRepository) UpdateWannago(ctx context.Context, id uint64, declined bool) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var eventID, userID uint64
		err := tx.QueryRowContext(ctx, `SELECT event_id, user_id FROM wannagos WHERE id = ?`, id).Scan(&eventID, &userID)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrWannagoNotFound
		}
		if err != nil {
			return wrapErr(err, "get wannago")
		}
		if err := lockEvent(ctx, tx, eventID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE wannagos SET declined = ?, updated_at = ? WHERE id = ?`, declined, now(), id,
		); err != nil {
			return wrapErr(err, "update wannago")
		}
		if !declined {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_invites WHERE event_id = ? AND user_id = ?`, eventID, userID); err != nil {
			return wrapErr(err, "delete invitation")
		}
		return nil
	})
}

func (r *attendanceRepository) DeleteWannago(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wannagos WHERE id = ?`, id)
	if err != nil {
		return wrapErr(err, "delete wannago")
	}
	return requireAffected(res, errs.ErrWannagoNotFound)
}
