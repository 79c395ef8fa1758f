package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wishkro/wishkro-go/pkg/credstore"
	"github.com/wishkro/wishkro-go/pkg/cryptox"

	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed credential store. Values can optionally be sealed
// at rest with a cryptox.Sealer so the database file alone is not enough to
// steal a session.
type Store struct {
	db     *sql.DB
	sealer *cryptox.Sealer
}

type Option func(*Store)

// WithSealer encrypts values before they are written and decrypts them on
// read. A store written with a sealer cannot be read without it.
func WithSealer(s *cryptox.Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

func NewStore(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Single writer is plenty for a credential store, and one connection
	// keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &Store{db: db}
	for _, opt := range opts {
		opt(st)
	}
	return st, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", credstore.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credstore/sqlite: get %q: %w", key, err)
	}

	if s.sealer != nil {
		plain, err := s.sealer.Open(value)
		if err != nil {
			return "", fmt.Errorf("credstore/sqlite: unseal %q: %w", key, err)
		}
		return plain, nil
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(value)
		if err != nil {
			return fmt.Errorf("credstore/sqlite: seal %q: %w", key, err)
		}
		value = sealed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("credstore/sqlite: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key); err != nil {
		return fmt.Errorf("credstore/sqlite: remove %q: %w", key, err)
	}
	return nil
}
