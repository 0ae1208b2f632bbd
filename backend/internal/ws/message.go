package ws

import (
	"github.com/hg554889/team-tracker-2-sub001/backend/internal/cache"
	"github.com/hg554889/team-tracker-2-sub001/backend/internal/collab"
)

type ClientMessage struct {
	Type      string            `json:"type"`
	ReportID  string            `json:"reportId,omitempty"`
	Field     string            `json:"field,omitempty"`
	Operation *collab.Operation `json:"operation,omitempty"`
	Cursor    int               `json:"cursor"`
}

// 出站消息接口
type OutboundMessage interface {
	MessageType() string
}

func (m ServerMessage) MessageType() string       { return m.Type }
func (m InitializedMessage) MessageType() string  { return m.Type }
func (m OpAppliedMessage) MessageType() string    { return m.Type }
func (m CursorUpdateMessage) MessageType() string { return m.Type }
func (m CollaboratorMessage) MessageType() string { return m.Type }
func (m LockMessage) MessageType() string         { return m.Type }

type PresenceMember struct {
	UserID   uint64 `json:"userId"`
	Username string `json:"username,omitempty"`
}

// 通用消息：error / report-saved / presence / ignored
type ServerMessage struct {
	Type     string           `json:"type"`
	ReportID string           `json:"reportId,omitempty"`
	Field    string           `json:"field,omitempty"`
	Message  string           `json:"message,omitempty"`
	Members  []PresenceMember `json:"members,omitempty"`
}

// 只发给加入方的会话快照
type InitializedMessage struct {
	Type          string                `json:"type"` // 固定 "collaboration-initialized"
	ReportID      string                `json:"reportId"`
	Field         string                `json:"field"`
	Content       string                `json:"content"`
	Version       uint64                `json:"version"`
	Collaborators []collab.Collaborator `json:"collaborators"`
}

// 广播给房间的"已应用操作"，content 为服务端权威内容
type OpAppliedMessage struct {
	Type      string           `json:"type"` // 固定 "operation-applied"
	ReportID  string           `json:"reportId"`
	Field     string           `json:"field"`
	Operation collab.Operation `json:"operation"`
	Version   uint64           `json:"version"`
	Content   string           `json:"content"`
	UserID    uint64           `json:"userId"`
}

type CursorUpdateMessage struct {
	Type     string `json:"type"` // 固定 "cursor-update"
	ReportID string `json:"reportId"`
	Field    string `json:"field"`
	UserID   uint64 `json:"userId"`
	Cursor   int    `json:"cursor"`
}

type CollaboratorMessage struct {
	Type     string `json:"type"` // "collaborator-joined" / "collaborator-left"
	ReportID string `json:"reportId"`
	Field    string `json:"field"`
	UserID   uint64 `json:"userId"`
	Username string `json:"username,omitempty"`
}

type LockMessage struct {
	Type     string `json:"type"` // "section-locked" / "section-unlocked"
	ReportID string `json:"reportId"`
	Field    string `json:"field"`
	UserID   uint64 `json:"userId"`
}

func presenceMembers(members []cache.PresenceMember) []PresenceMember {
	out := make([]PresenceMember, len(members))
	for i, m := range members {
		out[i] = PresenceMember{UserID: m.UserID, Username: m.Username}
	}
	return out
}
