package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vibecodezero/subscriber-service/internal/domain"
)

// pgUniqueViolation is the Postgres error code for unique_violation.
const pgUniqueViolation = "23505"

// PostgresAdapter stores subscribers in a hosted Postgres database over a
// pgx pool. Backend errors are wrapped as ErrUnavailable so callers never
// see pgx error shapes.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresAdapter wraps an established pool.
func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

const pgSubscriberColumns = `
        id, email, status, source, unsubscribe_token,
        COALESCE(ip_address, ''), COALESCE(user_agent, ''),
        subscribed_at, created_at, updated_at`

func (a *PostgresAdapter) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	const query = `SELECT` + pgSubscriberColumns + ` FROM subscribers WHERE email = $1`
	return a.fetchSingle(ctx, query, email)
}

func (a *PostgresAdapter) FindByToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	const query = `SELECT` + pgSubscriberColumns + ` FROM subscribers WHERE unsubscribe_token = $1`
	return a.fetchSingle(ctx, query, token)
}

func (a *PostgresAdapter) Insert(ctx context.Context, sub *domain.Subscriber) error {
	const query = `
        INSERT INTO subscribers (id, email, status, source, unsubscribe_token,
            ip_address, user_agent, subscribed_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err := a.pool.Exec(ctx, query,
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
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateKey
		}
		return Unavailable(err)
	}
	return nil
}

func (a *PostgresAdapter) UpdateStatus(ctx context.Context, email string, status domain.SubscriberStatus) (*domain.Subscriber, error) {
	const query = `
        UPDATE subscribers SET status = $1, updated_at = $2 WHERE email = $3
        RETURNING` + pgSubscriberColumns

	sub, err := scanPgSubscriber(a.pool.QueryRow(ctx, query, string(status), time.Now().UTC(), email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, Unavailable(err)
	}
	return sub, nil
}

func (a *PostgresAdapter) Count(ctx context.Context, filter Filter) (int, error) {
	query := `SELECT COUNT(*) FROM subscribers`
	where, args := pgFilterClause(filter)
	query += where

	var count int
	if err := a.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, Unavailable(err)
	}
	return count, nil
}

func (a *PostgresAdapter) List(ctx context.Context, page, pageSize int, filter Filter) (*Page, error) {
	if err := validatePagination(page, pageSize); err != nil {
		return nil, err
	}

	total, err := a.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	query := `SELECT` + pgSubscriberColumns + ` FROM subscribers`
	where, args := pgFilterClause(filter)
	query += where
	query += fmt.Sprintf(` ORDER BY subscribed_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, Unavailable(err)
	}
	defer rows.Close()

	records := make([]domain.Subscriber, 0, pageSize)
	for rows.Next() {
		sub, err := scanPgSubscriber(rows)
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

func (a *PostgresAdapter) CountBySource(ctx context.Context) ([]domain.SourceCount, error) {
	const query = `
        SELECT source, COUNT(*),
               COUNT(*) FILTER (WHERE status = 'active')
        FROM subscribers GROUP BY source ORDER BY COUNT(*) DESC`

	rows, err := a.pool.Query(ctx, query)
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

func (a *PostgresAdapter) fetchSingle(ctx context.Context, query string, arg any) (*domain.Subscriber, error) {
	sub, err := scanPgSubscriber(a.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, Unavailable(err)
	}
	return sub, nil
}

func pgFilterClause(filter Filter) (string, []any) {
	where := ""
	args := []any{}
	appendCond := func(cond string, arg any) {
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		args = append(args, arg)
		where += fmt.Sprintf(cond, len(args))
	}
	if filter.Status != "" {
		appendCond("status = $%d", string(filter.Status))
	}
	if !filter.SubscribedSince.IsZero() {
		appendCond("subscribed_at >= $%d", filter.SubscribedSince.UTC())
	}
	return where, args
}

func scanPgSubscriber(row pgx.Row) (*domain.Subscriber, error) {
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
