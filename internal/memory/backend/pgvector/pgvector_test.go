package pgvector

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/haasonsaas/mnemos/internal/memory/backend"
)

func TestFormatVector(t *testing.T) {
	got := formatVector([]float32{0, 1.5, -2})
	want := "[0,1.5,-2]"
	if got != want {
		t.Fatalf("formatVector = %q, want %q", got, want)
	}
	if got := formatVector(nil); got != "[]" {
		t.Fatalf("empty vector = %q", got)
	}
}

func TestInsertTransactional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewStore(db, 4)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO archival_passages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO archival_passages").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	passages := []*backend.Passage{
		{ID: "p1", AgentID: "a1", Text: "one", Embedding: []float32{1, 0, 0, 0}, CreatedAt: time.Now()},
		{ID: "p2", AgentID: "a1", Text: "two", Embedding: []float32{0, 1, 0, 0}, CreatedAt: time.Now()},
	}
	if err := store.Insert(context.Background(), passages); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewStore(db, 4)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO archival_passages").
		WillReturnError(errBoom{})
	mock.ExpectRollback()

	err = store.Insert(context.Background(), []*backend.Passage{
		{ID: "p1", AgentID: "a1", Text: "x", Embedding: []float32{1}, CreatedAt: time.Now()},
	})
	if err == nil {
		t.Fatal("expected insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestSearchConvertsDistanceToScore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewStore(db, 4)

	rows := sqlmock.NewRows([]string{"id", "agent_id", "text", "created_at", "distance"}).
		AddRow("p1", "a1", "closest", time.Now(), 0.1).
		AddRow("p2", "a1", "farther", time.Now(), 0.6)
	mock.ExpectQuery("SELECT (.+) FROM archival_passages").
		WillReturnRows(rows)

	matches, err := store.Search(context.Background(), "a1", []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d", len(matches))
	}
	if matches[0].Score <= matches[1].Score {
		t.Fatal("distance-to-score conversion lost ordering")
	}
	if matches[0].Passage.Text != "closest" {
		t.Fatalf("best match = %q", matches[0].Passage.Text)
	}
}

func TestCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewStore(db, 4)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.Count(context.Background(), "a1")
	if err != nil || n != 7 {
		t.Fatalf("Count = %d, err %v", n, err)
	}
}
