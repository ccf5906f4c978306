package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the optional expansion journal: an append-only record of every
// asset announced to the chat surface. It is pure observability; the dedup
// and localization caches never touch it.
type Store struct {
	db *sql.DB
}

type Expansion struct {
	ID        string
	AssetID   string
	Number    string
	Channel   string
	Source    string
	CreatedAt time.Time
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS expansions (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL,
		number TEXT NOT NULL,
		channel TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		created_at_unix INTEGER NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate expansions: %w", err)
	}
	return nil
}

type InsertExpansionInput struct {
	AssetID string
	Number  string
	Channel string
	Source  string
}

func (s *Store) InsertExpansion(ctx context.Context, input InsertExpansionInput) (Expansion, error) {
	if strings.TrimSpace(input.AssetID) == "" {
		return Expansion{}, fmt.Errorf("asset id is required")
	}
	expansion := Expansion{
		ID:        "exp-" + uuid.NewString(),
		AssetID:   strings.TrimSpace(input.AssetID),
		Number:    strings.TrimSpace(input.Number),
		Channel:   strings.TrimSpace(input.Channel),
		Source:    strings.TrimSpace(input.Source),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expansions (id, asset_id, number, channel, source, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		expansion.ID, expansion.AssetID, expansion.Number, expansion.Channel, expansion.Source,
		expansion.CreatedAt.Unix(),
	)
	if err != nil {
		return Expansion{}, fmt.Errorf("insert expansion: %w", err)
	}
	return expansion, nil
}

// RecentExpansions returns the newest journal rows, newest first.
func (s *Store) RecentExpansions(ctx context.Context, limit int) ([]Expansion, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asset_id, number, channel, source, created_at_unix
		 FROM expansions ORDER BY created_at_unix DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query expansions: %w", err)
	}
	defer rows.Close()

	var expansions []Expansion
	for rows.Next() {
		var expansion Expansion
		var createdAt int64
		if err := rows.Scan(&expansion.ID, &expansion.AssetID, &expansion.Number,
			&expansion.Channel, &expansion.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expansion: %w", err)
		}
		expansion.CreatedAt = time.Unix(createdAt, 0).UTC()
		expansions = append(expansions, expansion)
	}
	return expansions, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
