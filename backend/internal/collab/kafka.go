package collab

import "time"

// Kafka 上的操作审计事件（下游做分析/审计用，允许有损）
type OpAppliedEvent struct {
	EventType   string    `json:"eventType"` // 固定 "OP_APPLIED"
	OperationID string    `json:"operationId"`
	ReportID    string    `json:"reportId"`
	Field       string    `json:"field"`
	UserID      uint64    `json:"userId"`
	Version     uint64    `json:"version"`
	Operation   Operation `json:"operation"`
	AppliedAt   time.Time `json:"appliedAt"`
}
