package collab

import (
	"time"
)

// 操作日志上限：超过 opLogMax 条时裁剪为最近 opLogTrim 条。
// 日志是有损审计痕迹，不是回放日志。
const (
	opLogMax  = 500
	opLogTrim = 250
)

// 可协作编辑的报告字段集合，边界处统一校验
var recognizedFields = map[string]struct{}{
	"goals":  {},
	"plans":  {},
	"issues": {},
	"notes":  {},
}

func IsRecognizedField(field string) bool {
	_, ok := recognizedFields[field]
	return ok
}

type Collaborator struct {
	UserID       uint64    `json:"userId"`
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	Cursor       int       `json:"cursor"`
}

type LogEntry struct {
	UserID    uint64    `json:"userId"`
	Operation Operation `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// Session 每个 (reportID, field) 一条记录，持久化在 collab_sessions 表。
// 记录级的读改写是同一会话并发修改的串行化点。
type Session struct {
	ID            uint64         `gorm:"primaryKey" json:"-"`
	ReportID      string         `gorm:"column:report_id;size:64;uniqueIndex:idx_report_field" json:"reportId"`
	Field         string         `gorm:"column:field;size:32;uniqueIndex:idx_report_field" json:"field"`
	Content       string         `gorm:"column:content;type:longtext" json:"content"`
	Version       uint64         `gorm:"column:version" json:"version"`
	Collaborators []Collaborator `gorm:"column:collaborators;serializer:json;type:json" json:"collaborators"`
	Operations    []LogEntry     `gorm:"column:operations;serializer:json;type:json" json:"-"`
	IsLocked      bool           `gorm:"column:is_locked" json:"isLocked"`
	LockedBy      *uint64        `gorm:"column:locked_by" json:"lockedBy"`
	CreatedAt     time.Time      `json:"-"`
	UpdatedAt     time.Time      `json:"-"`
}

func (Session) TableName() string { return "collab_sessions" }

func (s *Session) collaborator(userID uint64) *Collaborator {
	for i := range s.Collaborators {
		if s.Collaborators[i].UserID == userID {
			return &s.Collaborators[i]
		}
	}
	return nil
}

// upsertCollaborator 幂等加入：已存在只刷新 lastActiveAt
func (s *Session) upsertCollaborator(userID uint64, username string, now time.Time) {
	if c := s.collaborator(userID); c != nil {
		c.LastActiveAt = now
		if username != "" {
			c.Username = username
		}
		return
	}
	s.Collaborators = append(s.Collaborators, Collaborator{
		UserID:       userID,
		Username:     username,
		JoinedAt:     now,
		LastActiveAt: now,
	})
}

// removeCollaborator 移除成员；若该成员持有锁则一并释放，离开不能把会话锁死
func (s *Session) removeCollaborator(userID uint64) bool {
	for i := range s.Collaborators {
		if s.Collaborators[i].UserID == userID {
			s.Collaborators = append(s.Collaborators[:i], s.Collaborators[i+1:]...)
			if s.LockedBy != nil && *s.LockedBy == userID {
				s.IsLocked = false
				s.LockedBy = nil
			}
			return true
		}
	}
	return false
}

func (s *Session) appendOperation(userID uint64, op Operation, now time.Time) {
	s.Operations = append(s.Operations, LogEntry{UserID: userID, Operation: op, Timestamp: now})
	if len(s.Operations) > opLogMax {
		trimmed := make([]LogEntry, opLogTrim)
		copy(trimmed, s.Operations[len(s.Operations)-opLogTrim:])
		s.Operations = trimmed
	}
}

func (s *Session) lockedByOther(userID uint64) bool {
	return s.IsLocked && s.LockedBy != nil && *s.LockedBy != userID
}
