package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hg554889/team-tracker-2-sub001/backend/internal/collab"
)

// 可写回的字段 -> reports 表列名。
// 只允许白名单内的列名拼进 SQL，字段合法性在 collab 层已校验过一次。
var reportColumns = map[string]string{
	"goals":  "goals",
	"plans":  "plans",
	"issues": "issues",
	"notes":  "notes",
}

type ReportStore struct{ db *sql.DB }

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) GetField(ctx context.Context, reportID, field string) (string, error) {
	col, ok := reportColumns[field]
	if !ok {
		return "", collab.ErrInvalidField
	}
	var content sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT `+col+` FROM reports WHERE id = ?`,
		reportID,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", collab.ErrReportNotFound
	}
	if err != nil {
		return "", err
	}
	return content.String, nil
}

func (s *ReportStore) SaveField(ctx context.Context, reportID, field, content string) error {
	col, ok := reportColumns[field]
	if !ok {
		return collab.ErrInvalidField
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET `+col+` = ?, updated_at = NOW() WHERE id = ?`,
		content,
		reportID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// UPDATE 同值时 MySQL 也可能报 0 行，这里只在报告确实不存在时报错
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM reports WHERE id = ?`, reportID,
		).Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return collab.ErrReportNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}
