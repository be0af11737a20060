package recall

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/haasonsaas/mnemos/pkg/models"
)

func TestPostgresAppendTransactional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msgs := []*models.Message{
		{ID: "m1", AgentID: "a1", OwnerID: "o1", Role: models.RoleUser, Content: "hi", CreatedAt: time.Now()},
		{ID: "m2", AgentID: "a1", OwnerID: "o1", Role: models.RoleAssistant, Content: "hello", CreatedAt: time.Now()},
	}
	if err := store.Append(context.Background(), msgs...); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresAppendRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WillReturnError(errBoom{})
	mock.ExpectRollback()

	msg := &models.Message{ID: "m1", AgentID: "a1", Role: models.RoleUser, Content: "hi", CreatedAt: time.Now()}
	if err := store.Append(context.Background(), msg); err == nil {
		t.Fatal("expected append error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestPostgresSearchTextNormalizesUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewPostgresStore(db)

	loc := time.FixedZone("PST", -8*3600)
	stored := time.Date(2024, 3, 1, 4, 0, 0, 0, loc)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rows := sqlmock.NewRows([]string{
		"id", "agent_id", "owner_id", "role", "content", "name", "tool_call_id", "tool_calls", "model", "created_at",
	}).AddRow("m1", "a1", "o1", "user", "hello go", nil, nil, nil, "gpt-4", stored)
	mock.ExpectQuery("SELECT (.+) FROM messages").
		WillReturnRows(rows)

	results, total, err := store.SearchText(context.Background(), "a1", "go", 0, 5)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if total != 1 || len(results) != 1 {
		t.Fatalf("total=%d len=%d", total, len(results))
	}
	if results[0].CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at not normalized to UTC: %v", results[0].CreatedAt)
	}
	if results[0].Model != "gpt-4" {
		t.Fatalf("model = %q", results[0].Model)
	}
}
