package recall

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// PostgresConfig holds connection pool settings for the Postgres-backed
// recall store.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns default pool settings.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresStore implements Store on Postgres. The messages table is the
// append-only mirror of every agent's log.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStoreFromDSN opens and pings a Postgres-backed recall store.
func NewPostgresStoreFromDSN(dsn string, config *PostgresConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
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

const messageColumns = "id, agent_id, owner_id, role, content, name, tool_call_id, tool_calls, model, created_at"

// Append records messages in order inside one transaction.
func (s *PostgresStore) Append(ctx context.Context, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		toolCalls, err := marshalToolCalls(msg.ToolCalls)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (`+messageColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			msg.ID,
			msg.AgentID,
			msg.OwnerID,
			string(msg.Role),
			msg.Content,
			nullableString(msg.Name),
			nullableString(msg.ToolCallID),
			toolCalls,
			nullableString(msg.Model),
			msg.CreatedAt.UTC(),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert message %s: %w", msg.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Get returns one message by id, or nil when absent.
func (s *PostgresStore) Get(ctx context.Context, agentID, messageID string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE agent_id = $1 AND id = $2
	`, agentID, messageID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

// GetAll returns the agent's messages in append order, paged.
func (s *PostgresStore) GetAll(ctx context.Context, agentID string, offset, limit int) ([]*models.Message, int, error) {
	return s.query(ctx, agentID,
		`agent_id = $1`, []any{agentID},
		offset, limit)
}

// SearchText returns messages containing query, case-insensitively, paged.
func (s *PostgresStore) SearchText(ctx context.Context, agentID, query string, offset, limit int) ([]*models.Message, int, error) {
	return s.query(ctx, agentID,
		`agent_id = $1 AND content ILIKE '%' || $2 || '%'`, []any{agentID, query},
		offset, limit)
}

// SearchDate returns messages created within [start, end], paged.
func (s *PostgresStore) SearchDate(ctx context.Context, agentID string, start, end time.Time, offset, limit int) ([]*models.Message, int, error) {
	return s.query(ctx, agentID,
		`agent_id = $1 AND created_at >= $2 AND created_at <= $3`, []any{agentID, start.UTC(), end.UTC()},
		offset, limit)
}

// Size reports the number of stored messages for the agent.
func (s *PostgresStore) Size(ctx context.Context, agentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE agent_id = $1`, agentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) query(ctx context.Context, agentID, where string, args []any, offset, limit int) ([]*models.Message, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count matches: %w", err)
	}

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	pagedArgs := append(append([]any{}, args...), limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE `+where+
			fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2),
		pagedArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var results []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate messages: %w", err)
	}
	return results, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(scanner rowScanner) (*models.Message, error) {
	var msg models.Message
	var role string
	var name, toolCallID, model sql.NullString
	var toolCalls []byte
	var createdAt time.Time

	err := scanner.Scan(
		&msg.ID,
		&msg.AgentID,
		&msg.OwnerID,
		&role,
		&msg.Content,
		&name,
		&toolCallID,
		&toolCalls,
		&model,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Role = models.Role(role)
	msg.Name = name.String
	msg.ToolCallID = toolCallID.String
	msg.Model = model.String
	// Stored values may predate UTC normalization; convert on load.
	msg.CreatedAt = createdAt.UTC()

	if len(toolCalls) > 0 {
		if err := json.Unmarshal(toolCalls, &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("decode tool_calls for %s: %w", msg.ID, err)
		}
	}
	return &msg, nil
}

func marshalToolCalls(calls []models.ToolCall) ([]byte, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("encode tool_calls: %w", err)
	}
	return b, nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
