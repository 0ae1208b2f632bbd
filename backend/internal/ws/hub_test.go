package ws

import (
	"testing"
)

func newTestConn() *Conn {
	return &Conn{
		joined: make(map[string][2]string),
		send:   make(chan OutboundMessage, 8),
	}
}

func drain(c *Conn) []OutboundMessage {
	var out []OutboundMessage
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestRoomKey(t *testing.T) {
	if got := RoomKey("r42", "goals"); got != "collab-r42-goals" {
		t.Fatalf("RoomKey() = %q, want %q", got, "collab-r42-goals")
	}
}

func TestHub_JoinBroadcastLeave(t *testing.T) {
	h := NewHub(nil)
	a, b := newTestConn(), newTestConn()
	room := RoomKey("r1", "goals")

	h.Join(room, a)
	h.Join(room, b)

	h.Broadcast(room, ServerMessage{Type: "report-saved"})
	if msgs := drain(a); len(msgs) != 1 || msgs[0].MessageType() != "report-saved" {
		t.Fatalf("conn a received %v, want one report-saved", msgs)
	}
	if msgs := drain(b); len(msgs) != 1 {
		t.Fatalf("conn b received %d messages, want 1", len(msgs))
	}

	h.Leave(room, b)
	h.Broadcast(room, ServerMessage{Type: "report-saved"})
	if msgs := drain(b); len(msgs) != 0 {
		t.Fatalf("conn b received %d messages after leave, want 0", len(msgs))
	}
	if msgs := drain(a); len(msgs) != 1 {
		t.Fatalf("conn a received %d messages, want 1", len(msgs))
	}
}

func TestHub_BroadcastIsolatedPerRoom(t *testing.T) {
	h := NewHub(nil)
	a, b := newTestConn(), newTestConn()
	h.Join(RoomKey("r1", "goals"), a)
	h.Join(RoomKey("r1", "plans"), b)

	// 同一报告的不同字段是不同房间
	h.Broadcast(RoomKey("r1", "goals"), ServerMessage{Type: "cursor-update"})
	if msgs := drain(b); len(msgs) != 0 {
		t.Fatalf("other room received %d messages, want 0", len(msgs))
	}
	if msgs := drain(a); len(msgs) != 1 {
		t.Fatalf("target room received %d messages, want 1", len(msgs))
	}
}

func TestConn_EnqueueDropsWhenFull(t *testing.T) {
	c := &Conn{send: make(chan OutboundMessage, 1)}
	c.Enqueue(ServerMessage{Type: "a"})
	// 队列满：静默丢弃而不是阻塞
	c.Enqueue(ServerMessage{Type: "b"})
	msgs := drain(c)
	if len(msgs) != 1 || msgs[0].MessageType() != "a" {
		t.Fatalf("queue = %v, want only the first message", msgs)
	}
}
