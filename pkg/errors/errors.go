package errors

import (
	"errors"
	"fmt"

	"coinpulse/pkg/errors/ecode"
)

// 带错误码的error，handler层统一通过DecodeErr还原成响应码

type CodeError struct {
	Code    int
	Message string
	cause   error
}

func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *CodeError) Unwrap() error {
	return e.cause
}

// WithCode 创建一个带错误码的error
func WithCode(code int, message string) error {
	if message == "" {
		message = ecode.Text(code)
	}
	return &CodeError{Code: code, Message: message}
}

// WithCodef 创建一个带错误码的error，message支持格式化
func WithCodef(code int, format string, args ...interface{}) error {
	return &CodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误并附加错误码
func Wrap(err error, code int, message string) error {
	if message == "" {
		message = ecode.Text(code)
	}
	return &CodeError{Code: code, Message: message, cause: err}
}

// DecodeErr 解出错误码和提示信息，nil视为成功
func DecodeErr(err error) (int, string) {
	if err == nil {
		return ecode.Success, ecode.Text(ecode.Success)
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code, ce.Message
	}
	return ecode.Unknown, err.Error()
}

// IsCode 判断err是否携带指定错误码
func IsCode(err error, code int) bool {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
