package utils

import "github.com/google/uuid"

// NewRequestID 生成请求追踪ID
func NewRequestID() string {
	return uuid.NewString()
}
