package apperr

import (
	"errors"
	"fmt"
)

// 에러 분류
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrTransient            = errors.New("transient failure")
)

// Error 분류(kind)와 사용자 메시지를 함께 담는 에러
type Error struct {
	kind  error
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Message 응답에 노출할 메시지
func (e *Error) Message() string {
	return e.msg
}

// Is errors.Is(err, apperr.ErrForbidden) 형태 비교 지원
func (e *Error) Is(target error) bool {
	return e.kind == target
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NotFound 리소스 없음
func NotFound(msg string) error {
	return &Error{kind: ErrNotFound, msg: msg}
}

// Forbidden 권한 없음
func Forbidden(msg string) error {
	return &Error{kind: ErrForbidden, msg: msg}
}

// InvalidArgument 잘못된 입력
func InvalidArgument(msg string) error {
	return &Error{kind: ErrInvalidArgument, msg: msg}
}

// AuthenticationFailed 인증 실패
func AuthenticationFailed(msg string) error {
	return &Error{kind: ErrAuthenticationFailed, msg: msg}
}

// Transient 일시적인 I/O 실패 (DB, Redis)
func Transient(msg string, cause error) error {
	return &Error{kind: ErrTransient, msg: msg, cause: cause}
}

// MessageOf 사용자에게 보여줄 메시지 추출
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
