package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hg554889/team-tracker-2-sub001/backend/internal/collab"
)

func TestReportStore_GetField(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual)) error = %v", err)
	}
	defer db.Close()
	s := NewReportStore(db)

	mock.ExpectQuery("SELECT goals FROM reports WHERE id = ?").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"goals"}).AddRow("ship v2"))

	got, err := s.GetField(context.Background(), "r1", "goals")
	if err != nil {
		t.Fatalf("GetField() error = %v", err)
	}
	if got != "ship v2" {
		t.Fatalf("GetField() = %q, want %q", got, "ship v2")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReportStore_GetField_NullColumn(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual)) error = %v", err)
	}
	defer db.Close()
	s := NewReportStore(db)

	// 从未编辑过的字段列是 NULL，按空串处理
	mock.ExpectQuery("SELECT notes FROM reports WHERE id = ?").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"notes"}).AddRow(nil))

	got, err := s.GetField(context.Background(), "r1", "notes")
	if err != nil {
		t.Fatalf("GetField() error = %v", err)
	}
	if got != "" {
		t.Fatalf("GetField() = %q, want empty", got)
	}
}

func TestReportStore_GetField_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual)) error = %v", err)
	}
	defer db.Close()
	s := NewReportStore(db)

	mock.ExpectQuery("SELECT goals FROM reports WHERE id = ?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"goals"}))

	if _, err := s.GetField(context.Background(), "missing", "goals"); !errors.Is(err, collab.ErrReportNotFound) {
		t.Fatalf("GetField() error = %v, want ErrReportNotFound", err)
	}
}

func TestReportStore_GetField_RejectsUnknownField(t *testing.T) {
	db, _, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual)) error = %v", err)
	}
	defer db.Close()
	s := NewReportStore(db)

	// 列名白名单：未知字段不能拼进 SQL
	if _, err := s.GetField(context.Background(), "r1", "password"); !errors.Is(err, collab.ErrInvalidField) {
		t.Fatalf("GetField() error = %v, want ErrInvalidField", err)
	}
}

func TestReportStore_SaveField(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual)) error = %v", err)
	}
	defer db.Close()
	s := NewReportStore(db)

	mock.ExpectExec("UPDATE reports SET plans = ?, updated_at = NOW() WHERE id = ?").
		WithArgs("new plan", "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.SaveField(context.Background(), "r1", "plans", "new plan"); err != nil {
		t.Fatalf("SaveField() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReportStore_SaveField_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual)) error = %v", err)
	}
	defer db.Close()
	s := NewReportStore(db)

	mock.ExpectExec("UPDATE reports SET plans = ?, updated_at = NOW() WHERE id = ?").
		WithArgs("x", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM reports WHERE id = ?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	if err := s.SaveField(context.Background(), "missing", "plans", "x"); !errors.Is(err, collab.ErrReportNotFound) {
		t.Fatalf("SaveField() error = %v, want ErrReportNotFound", err)
	}
}

func TestReportStore_SaveField_SameValueZeroRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual)) error = %v", err)
	}
	defer db.Close()
	s := NewReportStore(db)

	// 同值 UPDATE 影响 0 行，但报告存在，视为成功（幂等保存）
	mock.ExpectExec("UPDATE reports SET goals = ?, updated_at = NOW() WHERE id = ?").
		WithArgs("same", "r1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM reports WHERE id = ?").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	if err := s.SaveField(context.Background(), "r1", "goals", "same"); err != nil {
		t.Fatalf("SaveField() error = %v", err)
	}
}
