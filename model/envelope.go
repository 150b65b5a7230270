package model

import "encoding/json"

// Envelope 后端统一响应结构
type Envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
	Analysis string          `json:"analysis,omitempty"`
}

// HasData 判断 data 字段是否存在且不为 null
func (e *Envelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

// DecodeData 将 data 字段解析到 v
func (e *Envelope) DecodeData(v any) error {
	if !e.HasData() {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
