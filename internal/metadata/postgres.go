package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/mnemos/internal/engine"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// PostgresStore implements Store on Postgres, with agent state and the two
// config blobs stored as JSON columns.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStoreFromDSN opens and pings a Postgres-backed metadata store.
func NewPostgresStoreFromDSN(dsn string, connectTimeout time.Duration) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing database handle (used by tests).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases database resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateUser persists a user.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, created_at)
		VALUES ($1,$2,$3,$4)
	`, user.ID, user.Email, user.Name, user.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.ID, err)
	}
	return nil
}

// GetUser loads a user by id.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, created_at FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Email, &user.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user %s: %w", id, err)
	}
	user.CreatedAt = createdAt.UTC()
	return &user, nil
}

const agentColumns = "id, owner_id, name, preset, llm_config, embedding_config, state, messages_total, created_at"

// GetAgent loads an agent record scoped to its owner.
func (s *PostgresStore) GetAgent(ctx context.Context, ownerID, agentID string) (*engine.AgentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE owner_id = $1 AND id = $2
	`, ownerID, agentID)
	record, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return record, err
}

// SaveAgent creates or replaces an agent record.
func (s *PostgresStore) SaveAgent(ctx context.Context, record *engine.AgentRecord) error {
	llmConfig, err := json.Marshal(record.LLM)
	if err != nil {
		return fmt.Errorf("encode llm config: %w", err)
	}
	embeddingConfig, err := json.Marshal(record.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding config: %w", err)
	}
	state, err := json.Marshal(record.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (`+agentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			messages_total = EXCLUDED.messages_total
	`,
		record.ID,
		record.OwnerID,
		record.Name,
		record.Preset,
		llmConfig,
		embeddingConfig,
		state,
		record.MessagesTotal,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert agent %s: %w", record.ID, err)
	}
	return nil
}

// ListAgents returns the owner's agent records.
func (s *PostgresStore) ListAgents(ctx context.Context, ownerID string) ([]*engine.AgentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE owner_id = $1 ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var records []*engine.AgentRecord
	for rows.Next() {
		record, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return records, nil
}

// CreateToken persists a bearer token.
func (s *PostgresStore) CreateToken(ctx context.Context, token *Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (id, user_id, token, name, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, token.ID, token.UserID, token.Token, nullableString(token.Name), token.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert token %s: %w", token.ID, err)
	}
	return nil
}

// GetUserByToken resolves a bearer credential to its user.
func (s *PostgresStore) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM tokens WHERE token = $1
	`, token).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select token: %w", err)
	}
	return s.GetUser(ctx, userID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(scanner rowScanner) (*engine.AgentRecord, error) {
	var record engine.AgentRecord
	var llmConfig, embeddingConfig, state []byte
	var createdAt time.Time

	err := scanner.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Name,
		&record.Preset,
		&llmConfig,
		&embeddingConfig,
		&state,
		&record.MessagesTotal,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(llmConfig, &record.LLM); err != nil {
		return nil, fmt.Errorf("decode llm config for %s: %w", record.ID, err)
	}
	if err := json.Unmarshal(embeddingConfig, &record.Embedding); err != nil {
		return nil, fmt.Errorf("decode embedding config for %s: %w", record.ID, err)
	}
	if err := json.Unmarshal(state, &record.State); err != nil {
		return nil, fmt.Errorf("decode state for %s: %w", record.ID, err)
	}
	record.CreatedAt = createdAt.UTC()
	return &record, nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
