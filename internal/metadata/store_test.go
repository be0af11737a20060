package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/haasonsaas/mnemos/internal/engine"
	"github.com/haasonsaas/mnemos/pkg/models"
)

func TestMemoryStoreAgents(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := &engine.AgentRecord{
		ID:      "agent-1",
		OwnerID: "owner-1",
		Name:    "test",
		LLM:     engine.LLMConfig{Model: "gpt-4"},
		State:   engine.StateBlob{Persona: "p", Messages: []string{"m1"}},
	}
	if err := store.SaveAgent(ctx, record); err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}

	got, err := store.GetAgent(ctx, "owner-1", "agent-1")
	if err != nil || got == nil {
		t.Fatalf("GetAgent: %v %v", got, err)
	}
	if got.State.Persona != "p" || got.State.Messages[0] != "m1" {
		t.Fatalf("state = %+v", got.State)
	}

	// Wrong owner misses.
	if got, _ := store.GetAgent(ctx, "other", "agent-1"); got != nil {
		t.Fatal("agent leaked across owners")
	}

	// Stored record is isolated from later mutation.
	record.State.Persona = "mutated"
	got2, _ := store.GetAgent(ctx, "owner-1", "agent-1")
	if got2.State.Persona != "p" {
		t.Fatal("store shares state with caller")
	}

	agents, err := store.ListAgents(ctx, "owner-1")
	if err != nil || len(agents) != 1 {
		t.Fatalf("ListAgents: %v %v", agents, err)
	}
}

func TestMemoryStoreTokens(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	user := &models.User{ID: "user-1", Email: "u@example.com", CreatedAt: time.Now()}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := store.CreateToken(ctx, &Token{ID: "t1", UserID: "user-1", Token: "bearer-value"}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	got, err := store.GetUserByToken(ctx, "bearer-value")
	if err != nil || got == nil || got.ID != "user-1" {
		t.Fatalf("GetUserByToken: %v %v", got, err)
	}
	if got, _ := store.GetUserByToken(ctx, "wrong"); got != nil {
		t.Fatal("unknown token must resolve to nil")
	}
}

func TestPostgresSaveAndGetAgent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewPostgresStore(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO agents").
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &engine.AgentRecord{
		ID:        "agent-1",
		OwnerID:   "owner-1",
		LLM:       engine.LLMConfig{Model: "gpt-4", ContextWindow: 8192},
		State:     engine.StateBlob{Persona: "p", Human: "h", System: "s"},
		CreatedAt: time.Now(),
	}
	if err := store.SaveAgent(ctx, record); err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}

	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "name", "preset", "llm_config", "embedding_config", "state", "messages_total", "created_at",
	}).AddRow("agent-1", "owner-1", "", "",
		[]byte(`{"provider":"openai","model":"gpt-4","context_window":8192}`),
		[]byte(`{"provider":"openai","model":"","embedding_dim":1536,"embedding_chunk_size":300}`),
		[]byte(`{"persona":"p","human":"h","system":"s","functions":null,"messages":["m1"]}`),
		12, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM agents").
		WillReturnRows(rows)

	got, err := store.GetAgent(ctx, "owner-1", "agent-1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.LLM.ContextWindow != 8192 || got.State.Persona != "p" || got.MessagesTotal != 12 {
		t.Fatalf("decoded record = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresGetUserByToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT user_id FROM tokens").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectQuery("SELECT id, email, name, created_at FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "created_at"}).
			AddRow("user-1", "u@example.com", "U", time.Now()))

	got, err := store.GetUserByToken(context.Background(), "tok")
	if err != nil || got == nil || got.ID != "user-1" {
		t.Fatalf("GetUserByToken: %v %v", got, err)
	}
}
