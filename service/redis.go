package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/TIANLI0/TipGuide/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TargetCache 按图片MD5缓存目标提取结果
//
// 键中包含流水线配置的指纹，标定参数变化后旧结果自动失效。
type TargetCache struct {
	client      *redis.Client
	ttl         time.Duration
	fingerprint string
}

func NewTargetCache(cfg *config.RedisConfig, pipeline *config.PipelineConfig) *TargetCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &TargetCache{
		client:      client,
		ttl:         cfg.TTL,
		fingerprint: pipelineFingerprint(pipeline),
	}
}

func (s *TargetCache) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *TargetCache) key(md5 string) string {
	return "targets:" + s.fingerprint + ":" + md5
}

// GetTargetResult 从缓存获取提取结果，未命中时返回 nil, nil
func (s *TargetCache) GetTargetResult(ctx context.Context, md5 string) (*model.TargetResult, error) {
	data, err := s.client.Get(ctx, s.key(md5)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var result model.TargetResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal target result",
			zap.String("md5", md5), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// SetTargetResult 写入缓存，不保存标注图
func (s *TargetCache) SetTargetResult(ctx context.Context, md5 string, result *model.TargetResult) error {
	stored := *result
	stored.Overlay = ""
	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, s.key(md5), data, s.ttl).Err()
}

func (s *TargetCache) Close() error {
	return s.client.Close()
}

func pipelineFingerprint(cfg *config.PipelineConfig) string {
	data, err := json.Marshal([]any{cfg.Region, cfg.Mask, cfg.Lanes, cfg.Mapping})
	if err != nil {
		return "default"
	}
	return utils.BytesMD5(data)[:12]
}
