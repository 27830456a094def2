package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TIANLI0/TipGuide/metrics"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/TIANLI0/TipGuide/utils"
	"go.uber.org/zap"
)

// GuidanceService 依次引导机器人到达每个目标点
//
// 机器人同一时间只能执行一个回合。
type GuidanceService struct {
	robot        chan struct{}
	queueTimeout time.Duration
	controller   *MotionController
	metrics      *metrics.Metrics
}

func NewGuidanceService(controller *MotionController, queueTimeout time.Duration, m *metrics.Metrics) *GuidanceService {
	return &GuidanceService{
		robot:        make(chan struct{}, 1),
		queueTimeout: queueTimeout,
		controller:   controller,
		metrics:      m,
	}
}

// Guide 按顺序为每个目标执行一个控制回合
//
// 单个目标超时只记录结果并继续下一个；策略或环境调用失败时返回已完成的回合和错误。
func (g *GuidanceService) Guide(ctx context.Context, targets []model.Target) ([]model.EpisodeResult, error) {
	qctx, cancel := context.WithTimeout(ctx, g.queueTimeout)
	defer cancel()

	select {
	case g.robot <- struct{}{}:
		defer func() { <-g.robot }()
	case <-qctx.Done():
		return nil, ErrQueueFull
	}

	results := make([]model.EpisodeResult, 0, len(targets))
	for _, t := range targets {
		id := utils.NewEpisodeID()
		start := time.Now()

		utils.Logger.Info("episode started",
			zap.String("episode_id", id),
			zap.Int("lane", t.Lane),
			zap.Float64("goal_x", t.Goal.X),
			zap.Float64("goal_y", t.Goal.Y),
			zap.Float64("goal_z", t.Goal.Z))

		ep, err := g.controller.Run(ctx, t.Goal)
		if err != nil {
			g.metrics.Episodes.WithLabelValues("error").Inc()
			return results, fmt.Errorf("episode %s lane %d: %w", id, t.Lane, err)
		}

		res := model.EpisodeResult{
			ID:            id,
			Target:        t,
			Outcome:       ep.Outcome(),
			Iterations:    ep.Iterations,
			SettleSteps:   ep.SettleSteps,
			FinalPosition: model.GoalPosition{X: ep.Position.X, Y: ep.Position.Y, Z: ep.Position.Z},
			FinalDistance: ep.Distance,
			DurationMs:    time.Since(start).Milliseconds(),
		}
		results = append(results, res)

		g.metrics.Episodes.WithLabelValues(string(res.Outcome)).Inc()
		g.metrics.EpisodeIters.Observe(float64(ep.Iterations))

		if err := ep.Err(); errors.Is(err, ErrConvergenceTimeout) {
			utils.Logger.Warn("episode timed out",
				zap.String("episode_id", id),
				zap.Int("lane", t.Lane),
				zap.Error(err))
			continue
		}

		utils.Logger.Info("episode done",
			zap.String("episode_id", id),
			zap.Int("iterations", ep.Iterations),
			zap.Float64("distance", ep.Distance))
	}

	return results, nil
}
