// Package api 定义检测服务的接口调用
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/TIANLI0/DetectKit/client"
	"github.com/TIANLI0/DetectKit/model"
)

const (
	DetectPath      = "/api/detection/detect"
	AnalyzePath     = "/api/detection/analyze"
	ModelStatusPath = "/api/detection/model/status"
)

type DetectionAPI struct {
	client *client.Client
}

func NewDetectionAPI(c *client.Client) *DetectionAPI {
	return &DetectionAPI{client: c}
}

// DetectImage 图片检测
func (a *DetectionAPI) DetectImage(ctx context.Context, form *client.FormData) (*model.DetectResult, error) {
	env, err := a.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		URL:    DetectPath,
		Form:   orEmpty(form),
	})
	if err != nil {
		return nil, err
	}

	var result model.DetectResult
	if err := env.DecodeData(&result); err != nil {
		return nil, fmt.Errorf("decode detect result: %w", err)
	}
	if result.Message == "" {
		result.Message = env.Message
	}
	return &result, nil
}

// AnalyzeImage 图纸分析，后端可能把结果放在 data 中，也可能放在顶层 analysis 字段
func (a *DetectionAPI) AnalyzeImage(ctx context.Context, form *client.FormData) (*model.AnalyzeResult, error) {
	env, err := a.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		URL:    AnalyzePath,
		Form:   orEmpty(form),
	})
	if err != nil {
		return nil, err
	}

	var result model.AnalyzeResult
	if err := env.DecodeData(&result); err != nil {
		return nil, fmt.Errorf("decode analyze result: %w", err)
	}
	if result.Analysis == "" {
		result.Analysis = env.Analysis
	}
	return &result, nil
}

// GetModelStatus 获取模型状态
func (a *DetectionAPI) GetModelStatus(ctx context.Context) (*model.ModelStatus, error) {
	env, err := a.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		URL:    ModelStatusPath,
	})
	if err != nil {
		return nil, err
	}

	var status model.ModelStatus
	if err := env.DecodeData(&status); err != nil {
		return nil, fmt.Errorf("decode model status: %w", err)
	}
	return &status, nil
}

func orEmpty(form *client.FormData) *client.FormData {
	if form == nil {
		return &client.FormData{}
	}
	return form
}
