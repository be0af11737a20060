// Package pgvector implements the archival passage store on Postgres with
// the pgvector extension: passages live in one table with a fixed-width
// vector column, and similarity ranking happens in the database via the
// cosine-distance operator.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/mnemos/internal/memory/backend"
)

// Config configures the store.
type Config struct {
	// DSN is the Postgres connection string.
	DSN string

	// Dimension is the vector column width. Every inserted and queried
	// embedding must already be padded to this width.
	Dimension int

	// RunMigrations creates the extension and table on startup.
	RunMigrations bool

	// ConnectTimeout bounds the startup ping. Default 10s.
	ConnectTimeout time.Duration
}

// Store is a pgvector-backed passage store.
type Store struct {
	db        *sql.DB
	dimension int
}

// Open connects, pings, and optionally migrates.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: dsn is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("pgvector: dimension is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pgvector: ping database: %w", err)
	}

	store := &Store{db: db, dimension: cfg.Dimension}
	if cfg.RunMigrations {
		if err := store.migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store, nil
}

// NewStore wraps an existing handle (used by tests).
func NewStore(db *sql.DB, dimension int) *Store {
	return &Store{db: db, dimension: dimension}
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS archival_passages (
			id         TEXT PRIMARY KEY,
			agent_id   TEXT NOT NULL,
			text       TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_archival_passages_agent ON archival_passages(agent_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector: migrate: %w", err)
		}
	}
	return nil
}

// Insert stores passages in one transaction.
func (s *Store) Insert(ctx context.Context, passages []*backend.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgvector: begin insert: %w", err)
	}
	for _, p := range passages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO archival_passages (id, agent_id, text, embedding, created_at)
			VALUES ($1, $2, $3, $4::vector, $5)
		`, p.ID, p.AgentID, p.Text, formatVector(p.Embedding), p.CreatedAt.UTC())
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("pgvector: insert passage %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgvector: commit insert: %w", err)
	}
	return nil
}

// Search ranks by cosine distance in the database. pgvector's <=> operator
// returns distance, so similarity is 1 - distance.
func (s *Store) Search(ctx context.Context, agentID string, embedding []float32, limit int) ([]*backend.Match, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, text, created_at, embedding <=> $2::vector AS distance
		FROM archival_passages
		WHERE agent_id = $1
		ORDER BY distance
		LIMIT $3
	`, agentID, formatVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	var matches []*backend.Match
	for rows.Next() {
		var p backend.Passage
		var createdAt time.Time
		var distance float64
		if err := rows.Scan(&p.ID, &p.AgentID, &p.Text, &createdAt, &distance); err != nil {
			return nil, fmt.Errorf("pgvector: scan passage: %w", err)
		}
		p.CreatedAt = createdAt.UTC()
		matches = append(matches, &backend.Match{
			Passage: &p,
			Score:   float32(1 - distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: iterate passages: %w", err)
	}
	return matches, nil
}

// Count reports the agent's passage count.
func (s *Store) Count(ctx context.Context, agentID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM archival_passages WHERE agent_id = $1`, agentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgvector: count: %w", err)
	}
	return n, nil
}

// DeleteAgent removes every passage of one agent.
func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM archival_passages WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("pgvector: delete agent %s: %w", agentID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// formatVector renders a pgvector literal: [0.1,0.2,...].
func formatVector(vec []float32) string {
	var b strings.Builder
	b.Grow(len(vec)*10 + 2)
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
