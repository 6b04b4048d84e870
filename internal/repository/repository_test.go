package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
	"whatado/event-service/internal/policy"
)

var eventColumns = []string{
	"id", "creator_id", "group_id", "title", "description", "location", "picture_url", "time",
	"ST_Y(e.coordinates)", "ST_X(e.coordinates)", "privacy", "filter_min_age", "filter_max_age",
	"filter_gender", "filter_radius", "flags", "created_at", "updated_at", "username",
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestUserRepository_GetViewerSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	ctx := context.Background()
	birthday := time.Date(1999, time.May, 4, 0, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(q("FROM users")).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "birthday", "gender", "lat", "lng"}).
				AddRow(7, birthday, "FEMALE", 40.5, -111.9))
		mock.ExpectQuery(q("UNION")).
			WithArgs(7, 7).
			WillReturnRows(sqlmock.NewRows([]string{"friend_id"}).AddRow(2).AddRow(3))
		mock.ExpectQuery(q("FROM user_interests")).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"interest_id"}).AddRow(100))
		mock.ExpectQuery(q("FROM group_members")).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"group_id"}))

		v, err := repo.GetViewerSnapshot(ctx, 7)
		require.NoError(t, err)
		assert.True(t, v.Complete())
		assert.Equal(t, models.GenderFemale, v.Gender)
		assert.Equal(t, &models.Point{Lat: 40.5, Lng: -111.9}, v.Location)
		assert.Equal(t, []uint64{2, 3}, v.Friends.Slice())
		assert.True(t, v.Interests.Has(100))
		assert.Equal(t, 0, v.Groups.Len())
	})

	t.Run("IncompleteProfile", func(t *testing.T) {
		mock.ExpectQuery(q("FROM users")).
			WithArgs(8).
			WillReturnRows(sqlmock.NewRows([]string{"id", "birthday", "gender", "lat", "lng"}).
				AddRow(8, nil, nil, nil, nil))
		mock.ExpectQuery(q("UNION")).WithArgs(8, 8).WillReturnRows(sqlmock.NewRows([]string{"friend_id"}))
		mock.ExpectQuery(q("FROM user_interests")).WithArgs(8).WillReturnRows(sqlmock.NewRows([]string{"interest_id"}))
		mock.ExpectQuery(q("FROM group_members")).WithArgs(8).WillReturnRows(sqlmock.NewRows([]string{"group_id"}))

		v, err := repo.GetViewerSnapshot(ctx, 8)
		require.NoError(t, err)
		assert.False(t, v.Complete())
		assert.Nil(t, v.Location)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(q("FROM users")).WithArgs(9).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetViewerSnapshot(ctx, 9)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("ConnectionDropped", func(t *testing.T) {
		mock.ExpectQuery(q("FROM users")).WithArgs(10).WillReturnError(mysql.ErrInvalidConn)

		_, err := repo.GetViewerSnapshot(ctx, 10)
		assert.ErrorIs(t, err, errs.ErrTransient)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func expectHydration(mock sqlmock.Sqlmock, eventID uint64, created time.Time) {
	mock.ExpectQuery(q("FROM event_interests ei")).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "id", "name"}).AddRow(eventID, 100, "hiking"))
	mock.ExpectQuery(q("FROM event_invites iv")).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "id", "username"}).AddRow(eventID, 9, "bob"))
	mock.ExpectQuery(q("FROM wannagos w")).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "declined", "created_at", "updated_at", "username"}).
			AddRow(3, eventID, 9, true, created, created, "bob"))
}

func TestEventRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEventRepository(db)
	ctx := context.Background()
	when := time.Date(2024, time.March, 2, 18, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(q("FROM events e")).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows(eventColumns).AddRow(
				5, 1, nil, "Hike", "Morning hike", "Y Mountain", nil, when,
				40.2, -111.6, "PUBLIC", 18, 30, "BOTH", 5.0, 0, when, when, "alice"))
		expectHydration(mock, 5, when)

		e, err := repo.GetByID(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, "Hike", e.Title)
		assert.Nil(t, e.GroupID)
		assert.Nil(t, e.PictureURL)
		assert.Equal(t, models.Point{Lat: 40.2, Lng: -111.6}, e.Coordinates)
		assert.Equal(t, "alice", e.Creator.Username)
		assert.Equal(t, []models.Interest{{ID: 100, Name: "hiking"}}, e.RelatedInterests)
		assert.Equal(t, []models.UserSummary{{ID: 9, Username: "bob"}}, e.Invited)
		require.Len(t, e.Wannagos, 1)
		assert.True(t, e.Wannagos[0].Declined)
		assert.Equal(t, "bob", e.Wannagos[0].User.Username)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(q("FROM events e")).WithArgs(6).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(ctx, 6)
		assert.ErrorIs(t, err, errs.ErrEventNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_ListFeed_EmptySkipsHydration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEventRepository(db)
	mock.ExpectQuery(q("e.time BETWEEN ? AND ?")).WillReturnRows(sqlmock.NewRows(eventColumns))

	events, err := repo.ListFeed(context.Background(), FeedQuery{
		Viewer:    snapshot(),
		Take:      10,
		Interests: policy.InterestsMatch,
		Radius:    10,
		Now:       time.Now(),
	})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NotNil(t, events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEventRepository(db)
	ctx := context.Background()
	when := time.Date(2024, time.March, 2, 18, 0, 0, 0, time.UTC)
	e := &models.Event{
		CreatorID:    1,
		Title:        "Board games",
		Time:         when,
		Coordinates:  models.Point{Lat: 40, Lng: -111},
		Privacy:      models.PrivacyPrivate,
		FilterMaxAge: 99,
		FilterGender: models.GenderBoth,
		CreatedAt:    when,
		UpdatedAt:    when,
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(q("INSERT INTO events")).WillReturnResult(sqlmock.NewResult(12, 1))
		mock.ExpectExec(q("INSERT INTO event_interests (event_id, interest_id) VALUES (?, ?), (?, ?)")).
			WithArgs(12, 100, 12, 200).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(q("INSERT INTO event_invites (event_id, user_id) VALUES (?, ?)")).
			WithArgs(12, 9).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		id, err := repo.Create(ctx, e, []uint64{100, 200, 100}, []uint64{9})
		require.NoError(t, err)
		assert.Equal(t, uint64(12), id)
	})

	t.Run("UnknownInvitee", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(q("INSERT INTO events")).WillReturnResult(sqlmock.NewResult(13, 1))
		mock.ExpectExec(q("INSERT INTO event_invites")).
			WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
		mock.ExpectRollback()

		_, err := repo.Create(ctx, e, nil, []uint64{404})
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_DeleteAndFlag(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEventRepository(db)
	ctx := context.Background()

	mock.ExpectExec(q("DELETE FROM events WHERE id = ?")).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM events WHERE id = ?")).WithArgs(6).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("UPDATE events SET flags = flags + 1")).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE events SET flags = flags + 1")).WithArgs(6).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(ctx, 5))
	assert.ErrorIs(t, repo.Delete(ctx, 6), errs.ErrEventNotFound)
	assert.NoError(t, repo.IncrementFlags(ctx, 5))
	assert.ErrorIs(t, repo.IncrementFlags(ctx, 6), errs.ErrEventNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_Invite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	lock := q("SELECT id FROM events WHERE id = ? FOR UPDATE")

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectExec(q("INSERT INTO event_invites")).
			WithArgs(5, 9, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.Invite(ctx, 5, 9))
	})

	t.Run("AlreadyInvited", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectExec(q("INSERT INTO event_invites")).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
		mock.ExpectRollback()

		err := repo.Invite(ctx, 5, 9)
		assert.ErrorIs(t, err, errs.ErrAlreadyInvited)
		assert.ErrorIs(t, err, errs.ErrConflict)
	})

	t.Run("EventMissing", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(6).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Invite(ctx, 6, 9), errs.ErrEventNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_Uninvite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec(q("DELETE FROM event_invites WHERE event_id = ? AND user_id = ?")).
		WithArgs(5, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("ON DUPLICATE KEY UPDATE declined = TRUE")).
		WithArgs(5, 9, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Uninvite(context.Background(), 5, 9))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_AddWannago(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	upsert := q("INSERT INTO wannagos")

	tests := []struct {
		name     string
		affected int64
		want     models.WannagoOutcome
		wantErr  error
	}{
		{"Created", 1, models.WannagoCreated, nil},
		{"Reactivated", 2, models.WannagoReactivated, nil},
		{"AlreadyActive", 0, 0, errs.ErrWannagoExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec(upsert).
				WithArgs(5, 9, sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, tt.affected))

			got, err := repo.AddWannago(ctx, 5, 9)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, errs.ErrConflict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_UpdateWannago(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	lookup := q("SELECT event_id, user_id FROM wannagos WHERE id = ?")
	lock := q("SELECT id FROM events WHERE id = ? FOR UPDATE")
	update := q("UPDATE wannagos SET declined = ?")
	uninvite := q("DELETE FROM event_invites WHERE event_id = ? AND user_id = ?")

	t.Run("DeclineWithdrawsInvitation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lookup).WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id"}).AddRow(5, 9))
		mock.ExpectQuery(lock).WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectExec(update).WithArgs(true, sqlmock.AnyArg(), 3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(uninvite).WithArgs(5, 9).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.UpdateWannago(ctx, 3, true))
	})

	t.Run("AcceptKeepsInvitation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lookup).WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"event_id", "user_id"}).AddRow(5, 9))
		mock.ExpectQuery(lock).WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectExec(update).WithArgs(false, sqlmock.AnyArg(), 3).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.NoError(t, repo.UpdateWannago(ctx, 3, false))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lookup).WithArgs(404).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.UpdateWannago(ctx, 404, false), errs.ErrWannagoNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		mock.ExpectExec(q("DELETE FROM wannagos")).WithArgs(404).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.DeleteWannago(ctx, 404), errs.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
