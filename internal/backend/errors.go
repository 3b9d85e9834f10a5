package backend

import (
	"errors"
)

type errKind int

const (
	kindSubmission errKind = iota + 1
	kindTransient
	kindNotFound
)

// Error 后端错误，包含用户友好消息和原始错误
// 传输层异常一律在 Client 边界转换成这三类，上层不接触原始异常
type Error struct {
	kind        errKind
	UserMessage string // 中文，给用户看
	RawError    error  // 原始错误，写日志
}

func (e *Error) Error() string {
	return e.UserMessage
}

func (e *Error) Unwrap() error {
	return e.RawError
}

// NewSubmissionError 提交阶段失败（远端拒绝、不可达、认证失败）
func NewSubmissionError(msg string, raw error) *Error {
	return &Error{kind: kindSubmission, UserMessage: msg, RawError: raw}
}

// NewTransientError 轮询阶段暂时性失败（跳过本次，保留原状态）
func NewTransientError(msg string, raw error) *Error {
	return &Error{kind: kindTransient, UserMessage: msg, RawError: raw}
}

// NewNotFoundError 远端任务或结果文件已不存在
func NewNotFoundError(msg string, raw error) *Error {
	return &Error{kind: kindNotFound, UserMessage: msg, RawError: raw}
}

func isKind(err error, kind errKind) bool {
	var be *Error
	return errors.As(err, &be) && be.kind == kind
}

func IsSubmission(err error) bool { return isKind(err, kindSubmission) }

func IsTransient(err error) bool { return isKind(err, kindTransient) }

func IsNotFound(err error) bool { return isKind(err, kindNotFound) }
