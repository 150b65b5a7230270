package client

import (
	"fmt"

	"github.com/TIANLI0/DetectKit/model"
)

// FallbackMessage 后端未给出错误信息时的提示
const FallbackMessage = "请求失败"

// RequestFailedError 后端返回了响应，但 envelope 标记为失败
type RequestFailedError struct {
	Status   int
	Message  string
	Envelope *model.Envelope
}

func (e *RequestFailedError) Error() string {
	return e.Message
}

// NetworkError 没有拿到可用的响应：超时、连接失败、非 2xx 且不是 envelope
type NetworkError struct {
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return FallbackMessage
	}
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func statusError(status int) error {
	return fmt.Errorf("Request failed with status code %d", status)
}

// interceptError 标记请求拦截阶段产生的错误
type interceptError struct {
	err error
}

func (e *interceptError) Error() string { return e.err.Error() }
func (e *interceptError) Unwrap() error { return e.err }
