package collab

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 协作会话管理接口
type Service interface {
	// 加载或创建会话并把调用者加入成员表（幂等），返回会话快照
	InitializeCollaboration(ctx context.Context, reportID string, userID uint64, username, field string) (*Session, error)

	// 校验锁与操作后应用变换，版本 +1，追加操作日志并持久化，返回更新后的会话用于广播
	ApplyOperation(ctx context.Context, reportID string, userID uint64, field string, op Operation) (*Session, error)

	// 尽力而为：会话或成员不存在时静默返回
	UpdateCursor(ctx context.Context, reportID string, userID uint64, field string, cursor int) (bool, error)

	// 移除成员；该成员持锁则释放；最后一个成员离开时把内容刷回报告
	RemoveCollaborator(ctx context.Context, reportID string, userID uint64, field string) (*Session, error)

	// 把会话当前内容写回报告对应字段（幂等快照写入）
	SaveToReport(ctx context.Context, reportID, field string) error

	// 协作式排他锁（建议性质，只挡 well-behaved 客户端）
	Lock(ctx context.Context, reportID string, userID uint64, field string) (*Session, error)
	Unlock(ctx context.Context, reportID string, userID uint64, field string) (*Session, error)
}

// 会话存储接口，不存在时返回 (nil, nil)
type SessionStore interface {
	Get(ctx context.Context, reportID, field string) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// 报告存储接口（持久化桥的写回目标，首次 join 的内容来源）
type ReportStore interface {
	GetField(ctx context.Context, reportID, field string) (string, error)
	SaveField(ctx context.Context, reportID, field, content string) error
}

type manager struct {
	sessions SessionStore
	reports  ReportStore

	// 操作审计事件异步发 Kafka，为 nil 时跳过
	dispatcher *KafkaDispatcher

	// 同一会话的修改逐个进入：per-session 互斥量，key = reportID + "\x00" + field
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(sessions SessionStore, reports ReportStore, dispatcher *KafkaDispatcher) Service {
	return &manager{
		sessions:   sessions,
		reports:    reports,
		dispatcher: dispatcher,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (m *manager) sessionMutex(reportID, field string) *sync.Mutex {
	key := reportID + "\x00" + field
	m.mu.Lock()
	defer m.mu.Unlock()
	mu := m.locks[key]
	if mu == nil {
		mu = &sync.Mutex{}
		m.locks[key] = mu
	}
	return mu
}

func validateArgs(reportID string, userID uint64, field string) error {
	if reportID == "" || userID == 0 {
		return ErrInvalidArguments
	}
	if !IsRecognizedField(field) {
		return ErrInvalidField
	}
	return nil
}

func dbErr(err error) error {
	return fmt.Errorf("%w: %v", ErrDatabase, err)
}

func (m *manager) InitializeCollaboration(ctx context.Context, reportID string, userID uint64, username, field string) (*Session, error) {
	if err := validateArgs(reportID, userID, field); err != nil {
		return nil, err
	}
	mu := m.sessionMutex(reportID, field)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.sessions.Get(ctx, reportID, field)
	if err != nil {
		return nil, dbErr(err)
	}
	if s == nil {
		// 懒创建：用报告里已持久化的字段内容做种子
		content, err := m.reports.GetField(ctx, reportID, field)
		if err != nil {
			if IsClientError(err) {
				return nil, err
			}
			return nil, dbErr(err)
		}
		s = &Session{ReportID: reportID, Field: field, Content: content}
	}
	s.upsertCollaborator(userID, username, time.Now())
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, dbErr(err)
	}
	return s, nil
}

func (m *manager) ApplyOperation(ctx context.Context, reportID string, userID uint64, field string, op Operation) (*Session, error) {
	if err := validateArgs(reportID, userID, field); err != nil {
		return nil, err
	}
	mu := m.sessionMutex(reportID, field)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.sessions.Get(ctx, reportID, field)
	if err != nil {
		return nil, dbErr(err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if s.lockedByOther(userID) {
		return nil, ErrReportLocked
	}

	// 失败时不落盘：状态变更与错误互斥
	content, err := op.Apply(s.Content)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.Content = content
	s.Version++
	s.appendOperation(userID, op, now)
	if c := s.collaborator(userID); c != nil {
		c.LastActiveAt = now
	}
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, dbErr(err)
	}

	if m.dispatcher != nil {
		evt := OpAppliedEvent{
			EventType:   "OP_APPLIED",
			OperationID: uuid.NewString(),
			ReportID:    reportID,
			Field:       field,
			UserID:      userID,
			Version:     s.Version,
			Operation:   op,
			AppliedAt:   now,
		}
		if err := m.dispatcher.Enqueue(ctx, evt); err != nil {
			// 审计流允许丢，不影响主链路
			log.Printf("collab: drop audit event report=%s field=%s: %v", reportID, field, err)
		}
	}
	return s, nil
}

// UpdateCursor 返回值表示这次光标是否真正记录了下来：
// 会话不存在或调用方不是成员时静默跳过，调用方据此决定要不要对外广播
func (m *manager) UpdateCursor(ctx context.Context, reportID string, userID uint64, field string, cursor int) (bool, error) {
	if err := validateArgs(reportID, userID, field); err != nil {
		return false, err
	}
	mu := m.sessionMutex(reportID, field)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.sessions.Get(ctx, reportID, field)
	if err != nil {
		return false, dbErr(err)
	}
	if s == nil {
		return false, nil
	}
	c := s.collaborator(userID)
	if c == nil {
		return false, nil
	}
	if cursor < 0 {
		cursor = 0
	}
	if n := len([]rune(s.Content)); cursor > n {
		cursor = n
	}
	c.Cursor = cursor
	c.LastActiveAt = time.Now()
	if err := m.sessions.Save(ctx, s); err != nil {
		return false, dbErr(err)
	}
	return true, nil
}

func (m *manager) RemoveCollaborator(ctx context.Context, reportID string, userID uint64, field string) (*Session, error) {
	if err := validateArgs(reportID, userID, field); err != nil {
		return nil, err
	}
	mu := m.sessionMutex(reportID, field)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.sessions.Get(ctx, reportID, field)
	if err != nil {
		return nil, dbErr(err)
	}
	if s == nil {
		return nil, nil
	}
	if !s.removeCollaborator(userID) {
		return s, nil
	}
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, dbErr(err)
	}
	// 最后一个成员离开：把当前内容刷回报告
	if len(s.Collaborators) == 0 {
		if err := m.reports.SaveField(ctx, reportID, field, s.Content); err != nil {
			return s, dbErr(err)
		}
	}
	return s, nil
}

func (m *manager) SaveToReport(ctx context.Context, reportID, field string) error {
	if reportID == "" {
		return ErrInvalidArguments
	}
	if !IsRecognizedField(field) {
		return ErrInvalidField
	}
	mu := m.sessionMutex(reportID, field)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.sessions.Get(ctx, reportID, field)
	if err != nil {
		return dbErr(err)
	}
	if s == nil {
		return ErrSessionNotFound
	}
	if err := m.reports.SaveField(ctx, reportID, field, s.Content); err != nil {
		if IsClientError(err) {
			return err
		}
		return dbErr(err)
	}
	return nil
}

func (m *manager) Lock(ctx context.Context, reportID string, userID uint64, field string) (*Session, error) {
	if err := validateArgs(reportID, userID, field); err != nil {
		return nil, err
	}
	mu := m.sessionMutex(reportID, field)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.sessions.Get(ctx, reportID, field)
	if err != nil {
		return nil, dbErr(err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if s.lockedByOther(userID) {
		return nil, ErrReportLocked
	}
	s.IsLocked = true
	s.LockedBy = &userID
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, dbErr(err)
	}
	return s, nil
}

func (m *manager) Unlock(ctx context.Context, reportID string, userID uint64, field string) (*Session, error) {
	if err := validateArgs(reportID, userID, field); err != nil {
		return nil, err
	}
	mu := m.sessionMutex(reportID, field)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.sessions.Get(ctx, reportID, field)
	if err != nil {
		return nil, dbErr(err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if s.lockedByOther(userID) {
		return nil, ErrReportLocked
	}
	s.IsLocked = false
	s.LockedBy = nil
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, dbErr(err)
	}
	return s, nil
}
