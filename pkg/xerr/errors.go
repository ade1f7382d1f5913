package xerr

import (
	"errors"
	"fmt"
)

// 常用错误码定义，和 HTTP 状态码保持一致，网关直接用
const (
	OK                 = 200
	RequestParamsError = 400
	Unauthorized       = 401
	RecordNotFound     = 404
	TooManyRequests    = 429
	ServerCommonError  = 500
	StoreUnavailable   = 503
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	err  error
}

func (e *CodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s: %v", e.Code, e.Msg, e.err)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.err }

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap 保留原始错误，errors.Is 仍然可用
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: msg, err: err}
}

// CodeOf 取错误链上第一个 CodeError 的 code，没有则是 500
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerCommonError
}

func MapErrMsg(code int) string {
	switch code {
	case RequestParamsError:
		return "invalid parameters"
	case Unauthorized:
		return "unauthorized"
	case RecordNotFound:
		return "record not found"
	case TooManyRequests:
		return "too many requests"
	case StoreUnavailable:
		return "store unavailable"
	case ServerCommonError:
		return "internal error"
	default:
		return "unknown error"
	}
}
