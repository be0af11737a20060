// Package sqlitestore implements the archival passage store on SQLite
// (pure-Go driver). Embeddings live in a BLOB column as packed little-endian
// float32; similarity ranking happens in process over one agent's passages,
// which stays cheap at the archive sizes a single local agent accumulates.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/mnemos/internal/memory/backend"
)

const schema = `
CREATE TABLE IF NOT EXISTS archival_passages (
	id         TEXT PRIMARY KEY,
	agent_id   TEXT NOT NULL,
	text       TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archival_passages_agent ON archival_passages(agent_id);
`

// Store is a SQLite-backed passage store.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path (":memory:" for tests) and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert stores passages in one transaction.
func (s *Store) Insert(ctx context.Context, passages []*backend.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin insert: %w", err)
	}
	for _, p := range passages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO archival_passages (id, agent_id, text, embedding, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.AgentID, p.Text, packVector(p.Embedding), p.CreatedAt.UTC())
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlitestore: insert passage %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit insert: %w", err)
	}
	return nil
}

// Search ranks the agent's passages by cosine similarity in process.
func (s *Store) Search(ctx context.Context, agentID string, embedding []float32, limit int) ([]*backend.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, text, embedding, created_at
		FROM archival_passages WHERE agent_id = ?
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: search: %w", err)
	}
	defer rows.Close()

	var matches []*backend.Match
	for rows.Next() {
		var p backend.Passage
		var blob []byte
		var createdAt time.Time
		if err := rows.Scan(&p.ID, &p.AgentID, &p.Text, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan passage: %w", err)
		}
		p.Embedding = unpackVector(blob)
		p.CreatedAt = createdAt.UTC()
		matches = append(matches, &backend.Match{
			Passage: &p,
			Score:   backend.CosineSimilarity(embedding, p.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: iterate passages: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count reports the agent's passage count.
func (s *Store) Count(ctx context.Context, agentID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM archival_passages WHERE agent_id = ?`, agentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: count: %w", err)
	}
	return n, nil
}

// DeleteAgent removes every passage of one agent.
func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM archival_passages WHERE agent_id = ?`, agentID)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete agent %s: %w", agentID, err)
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

// packVector encodes a vector as little-endian float32 bits.
func packVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// unpackVector decodes packVector's output.
func unpackVector(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
