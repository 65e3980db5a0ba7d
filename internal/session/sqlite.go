package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLStore is a SQLite-backed Store.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// sessionRow is the persisted shape; permissions travel as a JSON array.
type sessionRow struct {
	Token       string    `db:"token"`
	Subject     string    `db:"subject"`
	Role        string    `db:"role"`
	Permissions string    `db:"permissions"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// NewSQLStore opens (or creates) the session database at path.
func NewSQLStore(path string) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &SQLStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize session schema: %w", err)
	}

	return store, nil
}

func (s *SQLStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		role TEXT NOT NULL,
		permissions TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)`)
	return err
}

func (s *SQLStore) Get(ctx context.Context, token string) (Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT token, subject, role, permissions, created_at, expires_at FROM sessions WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	var perms []string
	if err := json.Unmarshal([]byte(row.Permissions), &perms); err != nil {
		return Session{}, fmt.Errorf("decode session permissions: %w", err)
	}

	return Session{
		Token:       row.Token,
		Subject:     row.Subject,
		Role:        row.Role,
		Permissions: perms,
		CreatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

func (s *SQLStore) Put(ctx context.Context, sess Session) error {
	perms, err := json.Marshal(sess.Permissions)
	if err != nil {
		return fmt.Errorf("encode session permissions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, subject, role, permissions, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET
		   subject = excluded.subject,
		   role = excluded.role,
		   permissions = excluded.permissions,
		   expires_at = excluded.expires_at`,
		sess.Token, sess.Subject, sess.Role, string(perms), sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *SQLStore) Renew(ctx context.Context, token string, until time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE token = ?`, until, token)
	if err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLStore) Reap(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("reap sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
