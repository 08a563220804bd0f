package workflow

import (
	"errors"
	"fmt"
)

// Kind 工作流错误分类
// 四类错误都会中止当前操作并回滚事务,不做自动重试
type Kind string

const (
	KindValidation Kind = "validation" // 输入不合法
	KindNotFound   Kind = "not_found"  // 对象不存在(含跨租户访问)
	KindForbidden  Kind = "forbidden"  // 无权限
	KindConflict   Kind = "conflict"   // 当前状态下操作不成立
)

// Error 带分类的工作流错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf 构造输入校验错误
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf 构造对象不存在错误
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbiddenf 构造权限错误
func Forbiddenf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Conflictf 构造状态冲突错误
func Conflictf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind Kind) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind == kind
	}
	return false
}

// KindOf 返回错误分类,非工作流错误返回空串
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}
