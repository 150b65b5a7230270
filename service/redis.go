package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TIANLI0/DetectKit/config"
	"github.com/TIANLI0/DetectKit/model"
	"github.com/TIANLI0/DetectKit/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// DetectKey 检测结果缓存键，指定模型时单独缓存
func DetectKey(md5, modelPath string) string {
	key := "detect:" + md5
	if modelPath != "" {
		key += ":" + modelPath
	}
	return key
}

// GetDetectResult 从缓存获取检测结果，未命中时返回 nil, nil
func (s *RedisService) GetDetectResult(ctx context.Context, key string) (*model.DetectResult, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var result model.DetectResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.L(ctx).Error("failed to unmarshal detect result",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// SetDetectResult 写入检测结果缓存
func (s *RedisService) SetDetectResult(ctx context.Context, key string, result *model.DetectResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
