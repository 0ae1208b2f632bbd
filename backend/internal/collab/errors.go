package collab

import "errors"

// 错误码直接作为对客户端的 error 事件内容，保持大写下划线风格
var (
	ErrInvalidArguments     = errors.New("INVALID_ARGUMENTS")
	ErrInvalidField         = errors.New("INVALID_FIELD")
	ErrInvalidOperationType = errors.New("INVALID_OPERATION_TYPE")
	ErrInvalidPosition      = errors.New("INVALID_POSITION")
	ErrContentTooLarge      = errors.New("CONTENT_TOO_LARGE")
	ErrSessionNotFound      = errors.New("SESSION_NOT_FOUND")
	ErrReportLocked         = errors.New("REPORT_LOCKED")
	ErrReportNotFound       = errors.New("REPORT_NOT_FOUND")
	// 持久层故障统一归类，具体原因只打日志，不下发客户端
	ErrDatabase = errors.New("DATABASE_ERROR")
)

// IsClientError 判断错误是否属于业务/校验类（可原样下发给触发方）。
// 数据库错误不在其列：对外只给 DATABASE_ERROR，细节留在服务端日志。
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrInvalidArguments,
		ErrInvalidField,
		ErrInvalidOperationType,
		ErrInvalidPosition,
		ErrContentTooLarge,
		ErrSessionNotFound,
		ErrReportLocked,
		ErrReportNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
