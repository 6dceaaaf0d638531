package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vibecodezero/subscriber-service/internal/domain"
)

// SQLiteAdapter stores subscribers in an embedded SQLite database. The
// UNIQUE constraints on email and unsubscribe_token make uniqueness
// authoritative at the storage layer.
type SQLiteAdapter struct {
	db *sql.DB
}

// NewSQLiteAdapter wraps an already-opened database handle. The schema is
// created by persistence.OpenSQLite / subsctl migrate.
func NewSQLiteAdapter(db *sql.DB) *SQLiteAdapter {
	return &SQLiteAdapter{db: db}
}

const sqliteSubscriberColumns = `
        id, email, status, source, unsubscribe_token,
        COALESCE(ip_address, ''), COALESCE(user_agent, ''),
        subscribed_at, created_at, updated_at`

func (a *SQLiteAdapter) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	const query = `SELECT` + sqliteSubscriberColumns + ` FROM subscribers WHERE email = ?`
	return a.fetchSingle(ctx, query, email)
}

func (a *SQLiteAdapter) FindByToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	const query = `SELECT` + sqliteSubscriberColumns + ` FROM subscribers WHERE unsubscribe_token = ?`
	return a.fetchSingle(ctx, query, token)
}

func (a *SQLiteAdapter) Insert(ctx context.Context, sub *domain.Subscriber) error {
	const query = `
        INSERT INTO subscribers (id, email, status, source, unsubscribe_token,
            ip_address, user_agent, subscribed_at, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?)`

	_, err := a.db.ExecContext(ctx, query,
		sub.ID,
		sub.Email,
		string(sub.Status),
		sub.Source,
		sub.UnsubscribeToken,
		sub.IPAddress,
		sub.UserAgent,
		sub.SubscribedAt.UTC(),
		sub.CreatedAt.UTC(),
		sub.UpdatedAt.UTC(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return Unavailable(err)
	}
	return nil
}

func (a *SQLiteAdapter) UpdateStatus(ctx context.Context, email string, status domain.SubscriberStatus) (*domain.Subscriber, error) {
	const query = `UPDATE subscribers SET status = ?, updated_at = ? WHERE email = ?`

	res, err := a.db.ExecContext(ctx, query, string(status), time.Now().UTC(), email)
	if err != nil {
		return nil, Unavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, Unavailable(err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return a.FindByEmail(ctx, email)
}

func (a *SQLiteAdapter) Count(ctx context.Context, filter Filter) (int, error) {
	query := `SELECT COUNT(*) FROM subscribers WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.SubscribedSince.IsZero() {
		query += ` AND subscribed_at >= ?`
		args = append(args, filter.SubscribedSince.UTC())
	}

	var count int
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, Unavailable(err)
	}
	return count, nil
}

func (a *SQLiteAdapter) List(ctx context.Context, page, pageSize int, filter Filter) (*Page, error) {
	if err := validatePagination(page, pageSize); err != nil {
		return nil, err
	}

	total, err := a.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	query := `SELECT` + sqliteSubscriberColumns + ` FROM subscribers WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.SubscribedSince.IsZero() {
		query += ` AND subscribed_at >= ?`
		args = append(args, filter.SubscribedSince.UTC())
	}
	query += ` ORDER BY subscribed_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Unavailable(err)
	}
	defer rows.Close()

	records := make([]domain.Subscriber, 0, pageSize)
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, Unavailable(err)
		}
		records = append(records, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(err)
	}
	return &Page{Records: records, TotalCount: total}, nil
}

func (a *SQLiteAdapter) CountBySource(ctx context.Context) ([]domain.SourceCount, error) {
	const query = `
        SELECT source, COUNT(*),
               COUNT(CASE WHEN status = 'active' THEN 1 END)
        FROM subscribers GROUP BY source ORDER BY COUNT(*) DESC`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, Unavailable(err)
	}
	defer rows.Close()

	var out []domain.SourceCount
	for rows.Next() {
		var sc domain.SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count, &sc.Active); err != nil {
			return nil, Unavailable(err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (a *SQLiteAdapter) fetchSingle(ctx context.Context, query string, arg any) (*domain.Subscriber, error) {
	sub, err := scanSubscriber(a.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, Unavailable(err)
	}
	return sub, nil
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	var status string
	if err := row.Scan(
		&sub.ID,
		&sub.Email,
		&status,
		&sub.Source,
		&sub.UnsubscribeToken,
		&sub.IPAddress,
		&sub.UserAgent,
		&sub.SubscribedAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sub.Status = domain.SubscriberStatus(status)
	return &sub, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	code := serr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		code == sqlite3.SQLITE_CONSTRAINT
}
