package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/tinylink/internal/storage"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var linkCols = []string{"id", "code", "target", "owner_id", "total_clicks", "last_clicked", "deleted", "created_at"}

// Helper to set up a mock DB and repository
func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *LinkRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := CreateLinkRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestInsertLink(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	now := time.Now()

	link := storage.Link{
		ID:        "id-1",
		Code:      "MYLINK1",
		Target:    "https://example.com",
		OwnerID:   "user-1",
		CreatedAt: now,
	}

	mock.ExpectQuery(`INSERT INTO links`).
		WithArgs(link.ID, link.Code, link.Target, link.OwnerID, link.CreatedAt).
		WillReturnRows(sqlmock.NewRows(linkCols).
			AddRow(link.ID, link.Code, link.Target, link.OwnerID, 0, nil, false, now))

	result, err := repo.InsertLink(context.Background(), link)

	require.NoError(t, err)
	assert.Equal(t, "MYLINK1", result.Code)
	assert.Equal(t, int64(0), result.TotalClicks)
	assert.Nil(t, result.LastClicked)
	assert.False(t, result.Deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLinkConflict(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO links`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.InsertLink(context.Background(), storage.Link{Code: "MYLINK1", Target: "https://example.com"})

	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLinkOtherError(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(`INSERT INTO links`).WillReturnError(boom)

	_, err := repo.InsertLink(context.Background(), storage.Link{Code: "MYLINK1", Target: "https://example.com"})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, storage.ErrConflict)
}

func TestFindLiveByCode(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	clicked := time.Now()

	mock.ExpectQuery(`SELECT id, code, target, owner_id, total_clicks, last_clicked, deleted, created_at FROM links WHERE code = \$1 AND NOT deleted;`).
		WithArgs("MYLINK1").
		WillReturnRows(sqlmock.NewRows(linkCols).
			AddRow("id-1", "MYLINK1", "https://example.com", "user-1", 7, clicked, false, clicked))

	result, err := repo.FindLiveByCode(context.Background(), "MYLINK1")

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.TotalClicks)
	require.NotNil(t, result.LastClicked)
	assert.True(t, clicked.Equal(*result.LastClicked))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLiveByCodeNotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`FROM links WHERE code = \$1 AND NOT deleted`).
		WithArgs("GONE123").
		WillReturnRows(sqlmock.NewRows(linkCols))

	_, err := repo.FindLiveByCode(context.Background(), "GONE123")

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindLatestByCode(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`ORDER BY deleted ASC, created_at DESC LIMIT 1`).
		WithArgs("MYLINK1").
		WillReturnRows(sqlmock.NewRows(linkCols).
			AddRow("id-1", "MYLINK1", "https://example.com", "user-1", 3, nil, true, time.Now()))

	result, err := repo.FindLatestByCode(context.Background(), "MYLINK1")

	require.NoError(t, err)
	assert.True(t, result.Deleted)
}

func TestCodeExists(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ABCDEFG").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.CodeExists(context.Background(), "ABCDEFG")

	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIncrementClicks(t *testing.T) {
	at := time.Now()

	t.Run("single atomic update", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectExec(`UPDATE links SET total_clicks = total_clicks \+ 1, last_clicked = \$1 WHERE code = \$2 AND NOT deleted;`).
			WithArgs(at, "MYLINK1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.IncrementClicks(context.Background(), "MYLINK1", at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row vanished", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectExec(`UPDATE links SET total_clicks`).
			WithArgs(at, "MYLINK1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.IncrementClicks(context.Background(), "MYLINK1", at), storage.ErrNotFound)
	})
}

func TestSoftDelete(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectExec(`UPDATE links SET deleted = true WHERE code = \$1 AND owner_id = \$2 AND NOT deleted;`).
		WithArgs("MYLINK1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "MYLINK1", "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteBatch(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`UPDATE links SET deleted = true`)
	prep.ExpectExec().WithArgs("AAAAAA1", "user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("BBBBBB2", "user-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.SoftDeleteBatch(context.Background(), []storage.DeleteTask{
		{Code: "AAAAAA1", OwnerID: "user-1"},
		{Code: "BBBBBB2", OwnerID: "user-1"},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteBatchRollback(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`UPDATE links SET deleted = true`)
	prep.ExpectExec().WithArgs("AAAAAA1", "user-1").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := repo.SoftDeleteBatch(context.Background(), []storage.DeleteTask{{Code: "AAAAAA1", OwnerID: "user-1"}})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwner(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	now := time.Now()
	live := false

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM links WHERE owner_id = \$1 AND deleted = \$2;`).
		WithArgs("user-1", false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	mock.ExpectQuery(`FROM links WHERE owner_id = \$1 AND deleted = \$2 ORDER BY total_clicks DESC, id DESC LIMIT 2 OFFSET 4;`).
		WithArgs("user-1", false).
		WillReturnRows(sqlmock.NewRows(linkCols).
			AddRow("id-1", "AAAAAA1", "https://a.example", "user-1", 9, now, false, now).
			AddRow("id-2", "BBBBBB2", "https://b.example", "user-1", 4, nil, false, now))

	links, total, err := repo.ListByOwner(context.Background(), storage.ListFilter{
		OwnerID: "user-1",
		Deleted: &live,
		SortBy:  storage.SortByTotalClicks,
		Desc:    true,
		Limit:   2,
		Offset:  4,
	})

	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, links, 2)
	assert.Equal(t, "AAAAAA1", links[0].Code)
	assert.Nil(t, links[1].LastClicked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser(t *testing.T) {
	userCols := []string{"id", "email", "password_hash", "created_at"}

	t.Run("lowercases email", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("ann@example.com", "hash").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow("7d1c9a5e-0000-4000-8000-000000000001", "ann@example.com", "hash", time.Now()))

		u, err := repo.CreateUser(context.Background(), storage.User{Email: "Ann@Example.com", PasswordHash: "hash"})

		require.NoError(t, err)
		assert.Equal(t, "ann@example.com", u.Email)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, mock, repo := setupMockDB(t)

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		_, err := repo.CreateUser(context.Background(), storage.User{Email: "ann@example.com", PasswordHash: "hash"})

		assert.ErrorIs(t, err, storage.ErrConflict)
	})
}

func TestFindUserByIDRejectsNonUUID(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	_, err := repo.FindUserByID(context.Background(), "not-a-uuid")

	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingContext(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	repo := CreateLinkRepository(db, zap.NewNop())
	assert.NoError(t, repo.PingContext(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
