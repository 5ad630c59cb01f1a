package errors

import (
	"fmt"
	"strings"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown      ErrorCode = 1000
	ErrInvalidParam ErrorCode = 1001
	ErrNotFound     ErrorCode = 1002
	ErrInternal     ErrorCode = 1003

	// 会话错误 (2000-2999)
	ErrSessionNotFound  ErrorCode = 2000
	ErrSessionExists    ErrorCode = 2001
	ErrInvalidCapacity  ErrorCode = 2002
	ErrPhaseViolation   ErrorCode = 2003
	ErrDuplicatePlayer  ErrorCode = 2004
	ErrLobbyFull        ErrorCode = 2005
	ErrNotEnoughPlayers ErrorCode = 2006
	ErrUnauthorized     ErrorCode = 2007
	ErrNotOwner         ErrorCode = 2008
	ErrAlreadyRevealed  ErrorCode = 2009
	ErrInvalidSlot      ErrorCode = 2010
	ErrPlayerNotFound   ErrorCode = 2011

	// 投票错误 (3000-3999)
	ErrVoteInProgress ErrorCode = 3000
	ErrNoActiveRound  ErrorCode = 3001
	ErrNotEligible    ErrorCode = 3002
	ErrSelfVote       ErrorCode = 3003
	ErrInvalidTarget  ErrorCode = 3004

	// 持久化错误 (4000-4999)
	ErrPersistenceFailure ErrorCode = 4000
	ErrRevisionConflict   ErrorCode = 4001
	ErrCorruptRecord      ErrorCode = 4002

	// 配置错误 (5000-5999)
	ErrConfigLoad        ErrorCode = 5000
	ErrConfigValidate    ErrorCode = 5001
	ErrCatalogIncomplete ErrorCode = 5002
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	// 通用错误
	ErrUnknown:      "未知错误",
	ErrInvalidParam: "无效的参数",
	ErrNotFound:     "资源未找到",
	ErrInternal:     "内部错误",

	// 会话错误
	ErrSessionNotFound:  "游戏会话不存在",
	ErrSessionExists:    "该频道已有进行中的游戏",
	ErrInvalidCapacity:  "无效的避难所容量",
	ErrPhaseViolation:   "当前阶段不允许该操作",
	ErrDuplicatePlayer:  "玩家已在游戏中",
	ErrLobbyFull:        "大厅已满",
	ErrNotEnoughPlayers: "玩家人数不足",
	ErrUnauthorized:     "只有主持人可以执行该操作",
	ErrNotOwner:         "只能操作自己的角色卡",
	ErrAlreadyRevealed:  "该属性已经公开",
	ErrInvalidSlot:      "无效的角色卡槽位",
	ErrPlayerNotFound:   "玩家不在游戏中",

	// 投票错误
	ErrVoteInProgress: "本轮投票尚未结束",
	ErrNoActiveRound:  "当前没有进行中的投票",
	ErrNotEligible:    "没有投票资格",
	ErrSelfVote:       "不能投票给自己",
	ErrInvalidTarget:  "投票目标无效",

	// 持久化错误
	ErrPersistenceFailure: "状态持久化失败",
	ErrRevisionConflict:   "状态版本冲突",
	ErrCorruptRecord:      "持久化记录已损坏",

	// 配置错误
	ErrConfigLoad:        "配置加载失败",
	ErrConfigValidate:    "配置验证失败",
	ErrCatalogIncomplete: "内容目录不完整",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode `json:"code"`    // 错误码
	Message string    `json:"message"` // 错误消息
	Details string    `json:"details"` // 详细信息
	Cause   error     `json:"-"`       // 原始错误
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch GetCode(err) {
	case ErrPersistenceFailure, ErrRevisionConflict:
		return true
	default:
		return false
	}
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrSessionNotFound, ErrPlayerNotFound, ErrNotFound:
		return 404 // Not Found
	case ErrUnauthorized, ErrNotOwner:
		return 403 // Forbidden
	case ErrSessionExists, ErrDuplicatePlayer, ErrVoteInProgress, ErrAlreadyRevealed:
		return 409 // Conflict
	case ErrPersistenceFailure, ErrRevisionConflict:
		return 503 // Service Unavailable
	case ErrInternal, ErrUnknown:
		return 500 // Internal Server Error
	default:
		return 400 // Bad Request
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	Timestamp int64     `json:"timestamp"`
}
