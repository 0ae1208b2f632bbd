package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hg554889/team-tracker-2-sub001/backend/internal/collab"
)

// SessionStore collab_sessions 表的读改写，(report_id, field) 唯一
type SessionStore struct{ db *gorm.DB }

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Get(ctx context.Context, reportID, field string) (*collab.Session, error) {
	var sess collab.Session
	err := s.db.WithContext(ctx).
		Where("report_id = ? AND field = ?", reportID, field).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *collab.Session) error {
	if sess.ID == 0 {
		return s.db.WithContext(ctx).Create(sess).Error
	}
	return s.db.WithContext(ctx).Save(sess).Error
}
