package ws

import (
	"fmt"
	"sync"

	"github.com/hg554889/team-tracker-2-sub001/backend/internal/cache"
)

// RoomKey 每个 (reportID, field) 对应一个房间
func RoomKey(reportID, field string) string {
	return fmt.Sprintf("collab-%s-%s", reportID, field)
}

type Hub struct {
	// Redis 在线状态，跨实例共享；房间成员表本身在进程内
	presence cache.PresenceCache
	// rooms 的并发访问保护：加入/离开/广播都会先拿锁
	mu sync.RWMutex
	// roomKey -> set of connections
	// 房间里存连接而不是 userID：同一用户可开多个标签页，广播要逐连接发
	rooms map[string]map[*Conn]struct{}
}

func NewHub(p cache.PresenceCache) *Hub {
	return &Hub{presence: p, rooms: make(map[string]map[*Conn]struct{})}
}

func (h *Hub) Join(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *Hub) Leave(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast fire-and-forget：逐连接入队，队列满则丢弃。
// 消息相互之间的顺序由会话管理器的串行应用顺序决定，这里不重排不合批。
// 持锁期间把成员拷贝成切片再投递，避免与 Join/Leave 并发改写同一张表。
func (h *Hub) Broadcast(room string, msg OutboundMessage) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.Enqueue(msg)
	}
}
