package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newSourceWithMock(t *testing.T) (*Source, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewSource(db), mock, func() { _ = db.Close() }
}

func TestFetchRowsPrependsHeader(t *testing.T) {
	source, mock, done := newSourceWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT filename, url").
		WillReturnRows(sqlmock.NewRows([]string{"filename", "url"}).
			AddRow("dorm-handbook.pdf", "https://policy.vinuni.edu.vn/dorm").
			AddRow("tuition.pdf", "https://policy.vinuni.edu.vn/tuition"))

	rows, err := source.FetchRows(context.Background())
	if err != nil {
		t.Fatalf("FetchRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "filename" || rows[2][1] != "https://policy.vinuni.edu.vn/tuition" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFetchRowsWrapsQueryError(t *testing.T) {
	source, mock, done := newSourceWithMock(t)
	defer done()

	dbErr := errors.New("connection refused")
	mock.ExpectQuery("SELECT filename, url").WillReturnError(dbErr)

	_, err := source.FetchRows(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpsertSkipsHeaderAndIncompleteRows(t *testing.T) {
	source, mock, done := newSourceWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reference_links").
		WithArgs("dorm-handbook.pdf", "https://policy.vinuni.edu.vn/dorm").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	written, err := source.Upsert(context.Background(), [][]string{
		{"Filename", "URL"},
		{" dorm-handbook.pdf ", "https://policy.vinuni.edu.vn/dorm"},
		{"orphan.pdf", "  "},
		{"lonely.pdf"},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if written != 1 {
		t.Fatalf("expected 1 row written, got %d", written)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	source, mock, done := newSourceWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(schemaLockID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS reference_links").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := source.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
