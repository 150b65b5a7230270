package model

import "encoding/json"

// Detection 单个检测目标
type Detection struct {
	BBox       [4]int          `json:"bbox"` // x1, y1, x2, y2
	Confidence float64         `json:"confidence"`
	Class      string          `json:"class"`
	Category   string          `json:"category"`
	Color      json.RawMessage `json:"color,omitempty"` // "#RRGGBB" 或 BGR 数组
}

// ClassCount 按类别汇总
type ClassCount struct {
	Count int      `json:"count"`
	Items []string `json:"items"`
}

// DetectResult 图片检测结果
type DetectResult struct {
	Detections    []Detection           `json:"detections"`
	ClassCounts   map[string]ClassCount `json:"class_counts"`
	DetectedImage string                `json:"detected_image,omitempty"` // base64 PNG
	Message       string                `json:"message,omitempty"`
}

// AnalyzeResult 图纸分析结果
type AnalyzeResult struct {
	Analysis string `json:"analysis"`
}

// ModelInfo 可用模型信息
type ModelInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
}

// ModelStatus 模型状态
type ModelStatus struct {
	Status          string               `json:"status,omitempty"`
	CurrentModel    string               `json:"current_model,omitempty"`
	Loaded          bool                 `json:"loaded"`
	AvailableModels map[string]ModelInfo `json:"available_models,omitempty"`
}
