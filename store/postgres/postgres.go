// Package postgres implements store.Store on PostgreSQL through database/sql
// and the pgx stdlib driver. Schema changes are embedded goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the pgx driver, pings and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", store.ErrUnavailable, err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// Migrate applies all pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return dbError(err)
	}
	return nil
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (store.Principal, error) {
	query := `
		SELECT id, identifier, secret_hash, status, metadata, created_at, last_auth_at
		FROM principals
		WHERE identifier = $1
	`
	return s.findPrincipal(ctx, query, identifier)
}

func (s *Store) FindByID(ctx context.Context, id string) (store.Principal, error) {
	query := `
		SELECT id, identifier, secret_hash, status, metadata, created_at, last_auth_at
		FROM principals
		WHERE id = $1
	`
	return s.findPrincipal(ctx, query, id)
}

func (s *Store) findPrincipal(ctx context.Context, query string, arg string) (store.Principal, error) {
	var (
		p        store.Principal
		status   string
		metadata []byte
		lastAuth sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&p.ID, &p.Identifier, &p.SecretHash, &status, &metadata, &p.CreatedAt, &lastAuth)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Principal{}, store.ErrNotFound
		}
		return store.Principal{}, dbError(err)
	}
	p.Status = store.Status(status)
	p.CreatedAt = p.CreatedAt.UTC()
	if lastAuth.Valid {
		p.LastAuthAt = lastAuth.Time.UTC()
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return store.Principal{}, fmt.Errorf("decode metadata: %w", err)
		}
		if len(p.Metadata) == 0 {
			p.Metadata = nil
		}
	}

	roles, err := loadRoles(ctx, s.db, p.ID)
	if err != nil {
		return store.Principal{}, err
	}
	p.Roles = roles
	return p, nil
}

func loadRoles(ctx context.Context, db DBTX, principalID string) ([]string, error) {
	query := `
		SELECT role
		FROM principal_roles
		WHERE principal_id = $1
		ORDER BY role
	`
	rows, err := db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, dbError(err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return roles, nil
}

// Create inserts the principal and its roles in one transaction.
func (s *Store) Create(ctx context.Context, p store.Principal) (store.Principal, error) {
	if p.Status == "" {
		p.Status = store.StatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	metadata := []byte("{}")
	if len(p.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(p.Metadata); err != nil {
			return store.Principal{}, fmt.Errorf("encode metadata: %w", err)
		}
	}

	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		query := `
			INSERT INTO principals (id, identifier, secret_hash, status, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, query, p.ID, p.Identifier, p.SecretHash, string(p.Status), metadata, p.CreatedAt); err != nil {
			return err
		}
		for _, role := range p.Roles {
			if _, err := tx.ExecContext(ctx, `INSERT INTO principal_roles (principal_id, role) VALUES ($1, $2)`, p.ID, role); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return store.Principal{}, store.ErrDuplicateIdentifier
		}
		return store.Principal{}, dbError(err)
	}
	return p.Clone(), nil
}

func (s *Store) RecordLogin(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE principals
		SET last_auth_at = $2
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, at.UTC())
	if err != nil {
		return dbError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateSecretHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE principals SET secret_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return dbError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetStatus changes a principal's status.
func (s *Store) SetStatus(ctx context.Context, id string, status store.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE principals SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return dbError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveRefresh(ctx context.Context, rec store.RefreshRecord) error {
	if rec.State == "" {
		rec.State = store.RefreshActive
	}
	query := `
		INSERT INTO refresh_tokens (id, principal_id, state, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.PrincipalID, string(rec.State), rec.ExpiresAt.UTC()); err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateIdentifier
		}
		return dbError(err)
	}
	return nil
}

// MarkRefreshConsumed is a single conditional UPDATE; the row lock makes
// concurrent callers for the same id see exactly one affected row.
func (s *Store) MarkRefreshConsumed(ctx context.Context, id string) (store.ConsumeResult, error) {
	query := `
		UPDATE refresh_tokens
		SET state = 'consumed', consumed_at = now()
		WHERE id = $1 AND state = 'active'
	`
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbError(err)
	}
	if n == 1 {
		return store.Consumed, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, dbError(err)
	}
	if exists {
		return store.AlreadyConsumed, nil
	}
	return store.NotFound, nil
}

func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM revoked_tokens
			WHERE token_id = $1 AND revoked_until > now()
		)
	`
	var revoked bool
	if err := s.db.QueryRowContext(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, dbError(err)
	}
	return revoked, nil
}

func (s *Store) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		query := `
			INSERT INTO revoked_tokens (token_id, revoked_until)
			VALUES ($1, $2)
			ON CONFLICT (token_id) DO UPDATE
			SET revoked_until = GREATEST(revoked_tokens.revoked_until, EXCLUDED.revoked_until)
		`
		if _, err := tx.ExecContext(ctx, query, tokenID, until.UTC()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE refresh_tokens SET state = 'revoked' WHERE id = $1 AND state = 'active'`, tokenID)
		return err
	})
	if err != nil {
		return dbError(err)
	}
	return nil
}

// PurgeExpired deletes revocation markers and refresh records past their lifetime.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, q := range []string{
		`DELETE FROM revoked_tokens WHERE revoked_until <= $1`,
		`DELETE FROM refresh_tokens WHERE expires_at <= $1`,
	} {
		res, err := s.db.ExecContext(ctx, q, now.UTC())
		if err != nil {
			return total, dbError(err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, tx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func dbError(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: db error: %w", store.ErrUnavailable, err)
}
