package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hg554889/team-tracker-2-sub001/backend/internal/collab"
)

const presenceTTL = 600 * time.Second

type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	userID   uint64
	username string

	// 最近一次 join 的会话，apply-operation / cursor-update / save-report 作用于它
	reportID string
	field    string
	// 本连接加入过的所有房间，断开时逐个 removeCollaborator
	joined map[string][2]string

	// sendMu 保护 closed 与 send 的关闭时序：
	// 广播方可能在连接退出期间入队，关闭后入队会 panic
	sendMu sync.Mutex
	closed bool
	send   chan OutboundMessage

	svc collab.Service
}

func NewConn(ws *websocket.Conn, hub *Hub, userID uint64, username string, svc collab.Service) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		userID:   userID,
		username: username,
		joined:   make(map[string][2]string),
		send:     make(chan OutboundMessage, 32),
		svc:      svc,
	}
}

// Enqueue 非阻塞入队，队列满了则丢弃该消息；连接已关闭时直接丢弃
func (c *Conn) Enqueue(msg OutboundMessage) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// closeSend 关闭发送队列，让 writeLoop 退出；重复调用无副作用
func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// sendError 错误只回给触发方，不进房间广播
func (c *Conn) sendError(err error) {
	code := "INTERNAL_ERROR"
	switch {
	case collab.IsClientError(err):
		code = err.Error()
	case errors.Is(err, collab.ErrDatabase):
		// 细节进日志，客户端只拿到统一错误码
		log.Printf("ws: database error (user=%d, report=%s, field=%s): %v", c.userID, c.reportID, c.field, err)
		code = collab.ErrDatabase.Error()
	default:
		log.Printf("ws: internal error (user=%d): %v", c.userID, err)
	}
	c.Enqueue(ServerMessage{Type: "error", Message: code})
}

func (c *Conn) handleJoin(ctx context.Context, msg ClientMessage) {
	s, err := c.svc.InitializeCollaboration(ctx, msg.ReportID, c.userID, c.username, msg.Field)
	if err != nil {
		c.sendError(err)
		return
	}
	c.reportID = msg.ReportID
	c.field = msg.Field
	room := RoomKey(msg.ReportID, msg.Field)
	c.hub.Join(room, c)
	c.joined[room] = [2]string{msg.ReportID, msg.Field}

	if err := c.hub.presence.AddMember(ctx, room, c.userID, c.username, presenceTTL); err != nil {
		log.Printf("ws: presence add member (room=%s): %v", room, err)
	}

	c.Enqueue(InitializedMessage{
		Type:          "collaboration-initialized",
		ReportID:      s.ReportID,
		Field:         s.Field,
		Content:       s.Content,
		Version:       s.Version,
		Collaborators: s.Collaborators,
	})
	c.hub.Broadcast(room, CollaboratorMessage{
		Type:     "collaborator-joined",
		ReportID: msg.ReportID,
		Field:    msg.Field,
		UserID:   c.userID,
		Username: c.username,
	})
}

func (c *Conn) handleApplyOperation(ctx context.Context, msg ClientMessage) {
	if msg.Operation == nil {
		c.sendError(collab.ErrInvalidArguments)
		return
	}
	s, err := c.svc.ApplyOperation(ctx, c.reportID, c.userID, c.field, *msg.Operation)
	if err != nil {
		c.sendError(err)
		return
	}
	c.hub.Broadcast(RoomKey(c.reportID, c.field), OpAppliedMessage{
		Type:      "operation-applied",
		ReportID:  s.ReportID,
		Field:     s.Field,
		Operation: *msg.Operation,
		Version:   s.Version,
		Content:   s.Content,
		UserID:    c.userID,
	})
}

func (c *Conn) handleCursorUpdate(ctx context.Context, msg ClientMessage) {
	applied, err := c.svc.UpdateCursor(ctx, c.reportID, c.userID, c.field, msg.Cursor)
	if err != nil {
		// 光标是尽力而为，失败只打日志
		log.Printf("ws: cursor update (user=%d, report=%s): %v", c.userID, c.reportID, err)
		return
	}
	if !applied {
		// 会话不存在或本人不在成员表里，不替非成员对外报光标
		return
	}
	room := RoomKey(c.reportID, c.field)
	if b, err := json.Marshal(map[string]any{"userId": c.userID, "cursor": msg.Cursor}); err == nil {
		if err := c.hub.presence.SetCursor(ctx, room, c.userID, b, presenceTTL); err != nil {
			log.Printf("ws: cursor cache (room=%s): %v", room, err)
		}
	}
	c.hub.Broadcast(room, CursorUpdateMessage{
		Type:     "cursor-update",
		ReportID: c.reportID,
		Field:    c.field,
		UserID:   c.userID,
		Cursor:   msg.Cursor,
	})
}

func (c *Conn) handleSave(ctx context.Context) {
	if err := c.svc.SaveToReport(ctx, c.reportID, c.field); err != nil {
		c.sendError(err)
		return
	}
	c.Enqueue(ServerMessage{Type: "report-saved", ReportID: c.reportID, Field: c.field})
}

func (c *Conn) handleLock(ctx context.Context, lock bool) {
	var err error
	if lock {
		_, err = c.svc.Lock(ctx, c.reportID, c.userID, c.field)
	} else {
		_, err = c.svc.Unlock(ctx, c.reportID, c.userID, c.field)
	}
	if err != nil {
		c.sendError(err)
		return
	}
	typ := "section-locked"
	if !lock {
		typ = "section-unlocked"
	}
	c.hub.Broadcast(RoomKey(c.reportID, c.field), LockMessage{
		Type:     typ,
		ReportID: c.reportID,
		Field:    c.field,
		UserID:   c.userID,
	})
}

func (c *Conn) handleHeartbeat(ctx context.Context) {
	for room := range c.joined {
		if err := c.hub.presence.AddMember(ctx, room, c.userID, c.username, presenceTTL); err != nil {
			log.Printf("ws: presence refresh (room=%s): %v", room, err)
		}
	}
	if c.reportID == "" {
		return
	}
	members, err := c.hub.presence.GetAliveMembers(ctx, RoomKey(c.reportID, c.field))
	if err != nil {
		log.Printf("ws: presence query (report=%s): %v", c.reportID, err)
		return
	}
	c.Enqueue(ServerMessage{
		Type:     "presence",
		ReportID: c.reportID,
		Field:    c.field,
		Members:  presenceMembers(members),
	})
}

func (c *Conn) readLoop(ctx context.Context) {
	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			log.Printf("ws: read (user=%d, report=%s): %v", c.userID, c.reportID, err)
			return
		}
		switch msg.Type {
		case "join-collaboration":
			c.handleJoin(ctx, msg)
		case "apply-operation":
			c.handleApplyOperation(ctx, msg)
		case "cursor-update":
			c.handleCursorUpdate(ctx, msg)
		case "save-report":
			c.handleSave(ctx)
		case "lock-section":
			c.handleLock(ctx, true)
		case "unlock-section":
			c.handleLock(ctx, false)
		case "heartbeat":
			c.handleHeartbeat(ctx)
		default:
			c.Enqueue(ServerMessage{Type: "ignored", Message: "unknown message type"})
		}
	}
}

func (c *Conn) writeLoop() {
	// 持续消费发送队列直到 readLoop 关闭通道
	for msg := range c.send {
		_ = c.ws.WriteJSON(msg)
	}
}

// teardown 连接断开后的清理：逐房间移除成员并广播 collaborator-left。
// 用独立的 context：请求 context 在断开时已经取消。
func (c *Conn) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for room, rf := range c.joined {
		if _, err := c.svc.RemoveCollaborator(ctx, rf[0], c.userID, rf[1]); err != nil {
			log.Printf("ws: remove collaborator (room=%s, user=%d): %v", room, c.userID, err)
		}
		c.hub.Leave(room, c)
		if err := c.hub.presence.RemoveMember(ctx, room, c.userID); err != nil {
			log.Printf("ws: presence remove (room=%s): %v", room, err)
		}
		c.hub.Broadcast(room, CollaboratorMessage{
			Type:     "collaborator-left",
			ReportID: rf[0],
			Field:    rf[1],
			UserID:   c.userID,
			Username: c.username,
		})
	}
}
