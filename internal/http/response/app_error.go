package response

import "errors"

// AppError 携带接口错误码的错误，处理器可整体交给 RespondMappedError 输出
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

// Unwrap 保留原始错误，errors.Is 可穿透到业务哨兵错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 以接口错误码包装原始错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// AsAppError 从错误链中取出最外层的 AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
