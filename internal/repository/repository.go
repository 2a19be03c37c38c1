package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/tinylink/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	email         TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS links (
	id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	code         VARCHAR(8) NOT NULL,
	target       TEXT NOT NULL,
	owner_id     TEXT NOT NULL,
	total_clicks BIGINT NOT NULL DEFAULT 0 CHECK (total_clicks >= 0),
	last_clicked TIMESTAMPTZ,
	deleted      BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS links_live_code_uniq ON links(code) WHERE NOT deleted;
CREATE INDEX IF NOT EXISTS links_owner_idx ON links(owner_id, created_at);
`

const linkColumns = "id, code, target, owner_id, total_clicks, last_clicked, deleted, created_at"

var pgDialect = storage.Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Time:        func(t time.Time) any { return t },
}

// InitDB opens the pgx pool and makes sure the schema exists.
func InitDB(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	logger.Info("Database connected and tables ready")
	return db, nil
}

type LinkRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func CreateLinkRepository(db *sql.DB, logger *zap.Logger) *LinkRepository {
	return &LinkRepository{
		db:     db,
		logger: logger,
	}
}

func (r *LinkRepository) InsertLink(ctx context.Context, link storage.Link) (*storage.Link, error) {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	row := r.db.QueryRowContext(ctx,
		"INSERT INTO links(id, code, target, owner_id, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING "+linkColumns+";",
		link.ID, link.Code, link.Target, link.OwnerID, link.CreatedAt,
	)

	created, err := scanLink(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, storage.ErrConflict
		}
		r.logger.Error("insert link failed", zap.String("code", link.Code), zap.Error(err))
		return nil, err
	}

	return created, nil
}

func (r *LinkRepository) FindLiveByCode(ctx context.Context, code string) (*storage.Link, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+linkColumns+" FROM links WHERE code = $1 AND NOT deleted;", code)
	return scanLink(row)
}

func (r *LinkRepository) FindLatestByCode(ctx context.Context, code string) (*storage.Link, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+linkColumns+" FROM links WHERE code = $1 ORDER BY deleted ASC, created_at DESC LIMIT 1;", code)
	return scanLink(row)
}

func (r *LinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM links WHERE code = $1);", code).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// IncrementClicks bumps the counter in one statement so concurrent redirects never lose an update.
func (r *LinkRepository) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE links SET total_clicks = total_clicks + 1, last_clicked = $1 WHERE code = $2 AND NOT deleted;",
		at, code,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *LinkRepository) SoftDelete(ctx context.Context, code, ownerID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE links SET deleted = true WHERE code = $1 AND owner_id = $2 AND NOT deleted;",
		code, ownerID,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *LinkRepository) SoftDeleteBatch(ctx context.Context, tasks []storage.DeleteTask) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "UPDATE links SET deleted = true WHERE code = $1 AND owner_id = $2 AND NOT deleted;")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range tasks {
		if _, err := stmt.ExecContext(ctx, t.Code, t.OwnerID); err != nil {
			_ = tx.Rollback()
			r.logger.Error("batch delete rolled back", zap.String("code", t.Code), zap.Error(err))
			return err
		}
	}

	return tx.Commit()
}

func (r *LinkRepository) ListByOwner(ctx context.Context, f storage.ListFilter) ([]storage.Link, int, error) {
	where, args := f.Where(pgDialect)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links WHERE "+where+";", args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	var q strings.Builder
	q.WriteString("SELECT " + linkColumns + " FROM links WHERE " + where + " ORDER BY " + f.OrderBy())
	if f.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		fmt.Fprintf(&q, " OFFSET %d", f.Offset)
	}
	q.WriteString(";")

	rows, err := r.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	links := make([]storage.Link, 0)
	for rows.Next() {
		l, err := scanLink(rows)
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

func (r *LinkRepository) CreateUser(ctx context.Context, u storage.User) (*storage.User, error) {
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO users(email, password_hash) VALUES ($1, $2) RETURNING id, email, password_hash, created_at;",
		strings.ToLower(u.Email), u.PasswordHash,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, storage.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *LinkRepository) FindUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = $1;", strings.ToLower(email))
	return scanUser(row)
}

func (r *LinkRepository) FindUserByID(ctx context.Context, id string) (*storage.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE id = $1;", id)
	return scanUser(row)
}

func (r *LinkRepository) PingContext(c context.Context) error {
	return r.db.PingContext(c)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(row scanner) (*storage.Link, error) {
	var (
		l           storage.Link
		lastClicked sql.NullTime
	)

	err := row.Scan(&l.ID, &l.Code, &l.Target, &l.OwnerID, &l.TotalClicks, &lastClicked, &l.Deleted, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	if lastClicked.Valid {
		t := lastClicked.Time
		l.LastClicked = &t
	}
	return &l, nil
}

func scanUser(row scanner) (*storage.User, error) {
	var u storage.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
