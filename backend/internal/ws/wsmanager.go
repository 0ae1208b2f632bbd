package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hg554889/team-tracker-2-sub001/backend/internal/collab"
)

// 全局的 WebSocket upgrader（允许本地开发环境的来源）
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

type Manager struct {
	hub *Hub
	svc collab.Service
}

func NewManager(hub *Hub, svc collab.Service) *Manager {
	return &Manager{hub: hub, svc: svc}
}

// WebSocketConnect 鉴权中间件已把 userId/username 写进 gin context，
// 未通过鉴权的请求到不了这里。
func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID := c.GetUint64("userId")
	username := c.GetString("username")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	wsConn := NewConn(conn, m.hub, userID, username, m.svc)

	// 先启动写循环，保证入队的消息能被及时发出
	go wsConn.writeLoop()
	// 读循环阻塞至连接关闭；先退出所有房间再关发送队列，
	// 否则清理窗口期内的广播会打到已关闭的通道上
	wsConn.readLoop(c.Request.Context())
	wsConn.teardown()
	wsConn.closeSend()
}
