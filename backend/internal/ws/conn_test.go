package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hg554889/team-tracker-2-sub001/backend/internal/cache"
	"github.com/hg554889/team-tracker-2-sub001/backend/internal/collab"
)

// fakeService 只记录断开清理相关的调用
type fakeService struct {
	mu      sync.Mutex
	removed [][2]string
}

func (f *fakeService) InitializeCollaboration(ctx context.Context, reportID string, userID uint64, username, field string) (*collab.Session, error) {
	return &collab.Session{ReportID: reportID, Field: field}, nil
}

func (f *fakeService) ApplyOperation(ctx context.Context, reportID string, userID uint64, field string, op collab.Operation) (*collab.Session, error) {
	return &collab.Session{ReportID: reportID, Field: field}, nil
}

func (f *fakeService) UpdateCursor(ctx context.Context, reportID string, userID uint64, field string, cursor int) (bool, error) {
	return true, nil
}

func (f *fakeService) RemoveCollaborator(ctx context.Context, reportID string, userID uint64, field string) (*collab.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, [2]string{reportID, field})
	return nil, nil
}

func (f *fakeService) SaveToReport(ctx context.Context, reportID, field string) error { return nil }

func (f *fakeService) Lock(ctx context.Context, reportID string, userID uint64, field string) (*collab.Session, error) {
	return nil, nil
}

func (f *fakeService) Unlock(ctx context.Context, reportID string, userID uint64, field string) (*collab.Session, error) {
	return nil, nil
}

type fakePresence struct {
	mu      sync.Mutex
	removed []string
}

func (f *fakePresence) AddMember(ctx context.Context, room string, userID uint64, username string, ttl time.Duration) error {
	return nil
}

func (f *fakePresence) RemoveMember(ctx context.Context, room string, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, room)
	return nil
}

func (f *fakePresence) GetAliveMembers(ctx context.Context, room string) ([]cache.PresenceMember, error) {
	return nil, nil
}

func (f *fakePresence) SetCursor(ctx context.Context, room string, userID uint64, jsonData []byte, ttl time.Duration) error {
	return nil
}

func (f *fakePresence) GetCursor(ctx context.Context, room string, userID uint64) ([]byte, error) {
	return nil, nil
}

// 一个房间上并发广播与加入/离开：成员表的读写不能互踩
func TestHub_BroadcastDuringJoinLeave(t *testing.T) {
	h := NewHub(nil)
	room := RoomKey("r1", "goals")
	stay := newTestConn()
	h.Join(room, stay)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					h.Broadcast(room, ServerMessage{Type: "cursor-update"})
				}
			}
		}()
		go func() {
			defer wg.Done()
			c := newTestConn()
			for {
				select {
				case <-done:
					return
				default:
					h.Join(room, c)
					drain(c)
					h.Leave(room, c)
				}
			}
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(done)
	wg.Wait()
}

func TestConn_EnqueueAfterCloseIsNoop(t *testing.T) {
	c := newTestConn()
	c.closeSend()
	// 清理窗口期间的入队直接丢弃，不触发 send on closed channel
	c.Enqueue(ServerMessage{Type: "cursor-update"})
	// 重复关闭无副作用
	c.closeSend()
}

func TestHub_BroadcastToDepartingConn(t *testing.T) {
	h := NewHub(nil)
	room := RoomKey("r1", "goals")
	departing, other := newTestConn(), newTestConn()
	h.Join(room, departing)
	h.Join(room, other)

	// 连接已关发送队列但尚未离开房间：广播要照常送达其余成员
	departing.closeSend()
	h.Broadcast(room, ServerMessage{Type: "report-saved"})
	if msgs := drain(other); len(msgs) != 1 {
		t.Fatalf("other conn received %d messages, want 1", len(msgs))
	}
}

func TestConn_TeardownLeavesAllRooms(t *testing.T) {
	svc := &fakeService{}
	presence := &fakePresence{}
	h := NewHub(presence)
	c := &Conn{
		hub:      h,
		userID:   7,
		username: "alice",
		joined:   make(map[string][2]string),
		send:     make(chan OutboundMessage, 8),
		svc:      svc,
	}
	watcher := newTestConn()

	goals, plans := RoomKey("r1", "goals"), RoomKey("r1", "plans")
	h.Join(goals, c)
	c.joined[goals] = [2]string{"r1", "goals"}
	h.Join(plans, c)
	c.joined[plans] = [2]string{"r1", "plans"}
	h.Join(goals, watcher)

	c.teardown()
	c.closeSend()

	if len(svc.removed) != 2 {
		t.Fatalf("RemoveCollaborator called %d times, want 2", len(svc.removed))
	}
	if len(presence.removed) != 2 {
		t.Fatalf("presence RemoveMember called %d times, want 2", len(presence.removed))
	}
	// 离开后对原房间的广播不再送达本连接
	h.Broadcast(goals, ServerMessage{Type: "report-saved"})
	// 留守的连接要收到 collaborator-left 和后续广播
	var left, saved int
	for _, msg := range drain(watcher) {
		switch msg.MessageType() {
		case "collaborator-left":
			left++
		case "report-saved":
			saved++
		}
	}
	if left != 1 || saved != 1 {
		t.Fatalf("watcher got left=%d saved=%d, want 1 and 1", left, saved)
	}
}
