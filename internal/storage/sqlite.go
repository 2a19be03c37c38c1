package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS links (
	id           TEXT PRIMARY KEY,
	code         TEXT NOT NULL,
	target       TEXT NOT NULL,
	owner_id     TEXT NOT NULL,
	total_clicks INTEGER NOT NULL DEFAULT 0,
	last_clicked INTEGER,
	deleted      INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS links_live_code_uniq ON links(code) WHERE deleted = 0;
CREATE INDEX IF NOT EXISTS links_owner_idx ON links(owner_id, created_at);
`

const sqliteLinkColumns = "id, code, target, owner_id, total_clicks, last_clicked, deleted, created_at"

var sqliteDialect = Dialect{
	Placeholder: func(int) string { return "?" },
	Time:        func(t time.Time) any { return t.UnixNano() },
}

// SQLiteStorage persists links in a single SQLite file. Timestamps are kept
// as unix nanoseconds.
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// one writer at a time keeps the click UPDATE serialized
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	_, _ = db.Exec("PRAGMA journal_mode = WAL;")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	logger.Info("sqlite storage ready", zap.String("path", path))

	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

func (s *SQLiteStorage) InsertLink(ctx context.Context, link Link) (*Link, error) {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO links(id, code, target, owner_id, created_at) VALUES (?, ?, ?, ?, ?);",
		link.ID, link.Code, link.Target, link.OwnerID, link.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrConflict
		}
		s.logger.Error("insert link failed", zap.String("code", link.Code), zap.Error(err))
		return nil, err
	}

	link.TotalClicks = 0
	link.LastClicked = nil
	link.Deleted = false

	return &link, nil
}

func (s *SQLiteStorage) FindLiveByCode(ctx context.Context, code string) (*Link, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqliteLinkColumns+" FROM links WHERE code = ? AND deleted = 0;", code)
	return scanSQLiteLink(row)
}

func (s *SQLiteStorage) FindLatestByCode(ctx context.Context, code string) (*Link, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqliteLinkColumns+" FROM links WHERE code = ? ORDER BY deleted ASC, created_at DESC LIMIT 1;", code)
	return scanSQLiteLink(row)
}

func (s *SQLiteStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM links WHERE code = ?);", code).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *SQLiteStorage) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE links SET total_clicks = total_clicks + 1, last_clicked = ? WHERE code = ? AND deleted = 0;",
		at.UnixNano(), code,
	)
	if err != nil {
		return err
	}
	return expectRows(res)
}

func (s *SQLiteStorage) SoftDelete(ctx context.Context, code, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE links SET deleted = 1 WHERE code = ? AND owner_id = ? AND deleted = 0;",
		code, ownerID,
	)
	if err != nil {
		return err
	}
	return expectRows(res)
}

func (s *SQLiteStorage) SoftDeleteBatch(ctx context.Context, tasks []DeleteTask) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "UPDATE links SET deleted = 1 WHERE code = ? AND owner_id = ? AND deleted = 0;")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range tasks {
		if _, err := stmt.ExecContext(ctx, t.Code, t.OwnerID); err != nil {
			s.logger.Error("batch delete failed", zap.String("code", t.Code), zap.Error(err))
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStorage) ListByOwner(ctx context.Context, f ListFilter) ([]Link, int, error) {
	where, args := f.Where(sqliteDialect)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links WHERE "+where+";", args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + sqliteLinkColumns + " FROM links WHERE " + where + " ORDER BY " + f.OrderBy()
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	} else if f.Offset > 0 {
		q += fmt.Sprintf(" LIMIT -1 OFFSET %d", f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	links := make([]Link, 0)
	for rows.Next() {
		l, err := scanSQLiteLink(rows)
		if err != nil {
			return nil, 0, err
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return links, total, nil
}

func (s *SQLiteStorage) CreateUser(ctx context.Context, u User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.Email = strings.ToLower(u.Email)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users(id, email, password_hash, created_at) VALUES (?, ?, ?, ?);",
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStorage) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = ?;", strings.ToLower(email))
	return scanSQLiteUser(row)
}

func (s *SQLiteStorage) FindUserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE id = ?;", id)
	return scanSQLiteUser(row)
}

func (s *SQLiteStorage) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLink(row rowScanner) (*Link, error) {
	var (
		l           Link
		lastClicked sql.NullInt64
		createdAt   int64
	)

	err := row.Scan(&l.ID, &l.Code, &l.Target, &l.OwnerID, &l.TotalClicks, &lastClicked, &l.Deleted, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	l.CreatedAt = time.Unix(0, createdAt).UTC()
	if lastClicked.Valid {
		t := time.Unix(0, lastClicked.Int64).UTC()
		l.LastClicked = &t
	}
	return &l, nil
}

func scanSQLiteUser(row rowScanner) (*User, error) {
	var (
		u         User
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return &u, nil
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// expectRows maps an UPDATE that touched nothing to ErrNotFound.
func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
