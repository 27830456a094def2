package service

import (
	"context"
	"fmt"
	"time"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/TIANLI0/TipGuide/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/golang/geo/r3"
	"go.uber.org/zap"
)

// EpisodeState 控制回合状态
type EpisodeState int

const (
	StateApproaching EpisodeState = iota
	StateConverged
	StateSettling
	StateDone
	StateTimedOut
)

func (s EpisodeState) String() string {
	switch s {
	case StateApproaching:
		return "approaching"
	case StateConverged:
		return "converged"
	case StateSettling:
		return "settling"
	case StateDone:
		return "done"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal 是否为终止状态
func (s EpisodeState) Terminal() bool {
	return s == StateDone || s == StateTimedOut
}

// Episode 一次闭环控制的结果
type Episode struct {
	State       EpisodeState
	Goal        r3.Vector
	Position    r3.Vector
	Distance    float64
	Iterations  int
	EngageSteps int
	SettleSteps int
}

// Converged 是否到达目标并完成稳定动作
func (e *Episode) Converged() bool {
	return e.State == StateDone
}

// Err 超时返回 ErrConvergenceTimeout
func (e *Episode) Err() error {
	if e.State == StateTimedOut {
		return fmt.Errorf("%d iterations, distance %.6f m: %w", e.Iterations, e.Distance, ErrConvergenceTimeout)
	}
	return nil
}

// Outcome 对外的结果类型
func (e *Episode) Outcome() model.EpisodeOutcome {
	if e.State == StateTimedOut {
		return model.OutcomeTimedOut
	}
	return model.OutcomeConverged
}

// MotionController 查询策略、执行动作，直到末端执行器与目标距离小于阈值
type MotionController struct {
	policy      Policy
	env         Environment
	threshold   float64
	maxIter     int
	settleSteps int
	engage      []float64
	hold        []float64
	stepRetries uint64
}

func NewMotionController(cfg *config.ControlConfig, policy Policy, env Environment) *MotionController {
	return &MotionController{
		policy:      policy,
		env:         env,
		threshold:   cfg.ConvergenceThreshold,
		maxIter:     cfg.MaxIterations,
		settleSteps: cfg.SettleSteps,
		engage:      cfg.EngageAction,
		hold:        cfg.HoldAction,
		stepRetries: cfg.StepRetries,
	}
}

// Run 执行一个控制回合
//
// 超时不是错误：返回的 Episode 处于 StateTimedOut，Err() 给出 ErrConvergenceTimeout。
// 返回的 error 仅表示策略或环境调用失败。
func (mc *MotionController) Run(ctx context.Context, goal model.GoalPosition) (*Episode, error) {
	g := [3]float64{goal.X, goal.Y, goal.Z}
	if gs, ok := mc.policy.(goalSetter); ok {
		gs.SetGoal(g)
	}
	if err := mc.env.SetGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("set goal: %w", err)
	}

	obs, err := mc.env.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset environment: %w", err)
	}

	ep := &Episode{
		State: StateApproaching,
		Goal:  r3.Vector{X: goal.X, Y: goal.Y, Z: goal.Z},
	}
	if pos, err := position(obs); err == nil {
		ep.Position = pos
		ep.Distance = pos.Distance(ep.Goal)
	}

	for !ep.State.Terminal() {
		switch ep.State {
		case StateApproaching:
			if ep.Iterations >= mc.maxIter {
				ep.State = StateTimedOut
				continue
			}
			action, _, err := mc.policy.Predict(ctx, obs)
			if err != nil {
				return ep, fmt.Errorf("policy predict at iteration %d: %w", ep.Iterations, err)
			}
			obs, err = mc.step(ctx, ep, action)
			if err != nil {
				return ep, err
			}
			ep.Iterations++
			if ep.Distance < mc.threshold {
				ep.State = StateConverged
			}

		case StateConverged:
			if _, err := mc.step(ctx, ep, mc.engage); err != nil {
				return ep, fmt.Errorf("engage: %w", err)
			}
			ep.EngageSteps++
			ep.State = StateSettling

		case StateSettling:
			for ep.SettleSteps < mc.settleSteps {
				if _, err := mc.step(ctx, ep, mc.hold); err != nil {
					return ep, fmt.Errorf("settle step %d: %w", ep.SettleSteps, err)
				}
				ep.SettleSteps++
			}
			ep.State = StateDone
		}
	}

	if ep.State == StateTimedOut {
		utils.Logger.Warn("episode did not converge",
			zap.Int("iterations", ep.Iterations),
			zap.Float64("distance", ep.Distance))
	}

	return ep, nil
}

// step 执行一个动作并更新位置，环境调用失败时指数退避重试
func (mc *MotionController) step(ctx context.Context, ep *Episode, action []float64) ([]float64, error) {
	var res StepResult
	op := func() error {
		r, err := mc.env.Step(ctx, action)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		res = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second

	notify := func(err error, wait time.Duration) {
		utils.Logger.Warn("environment step failed, retrying",
			zap.Error(err),
			zap.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, mc.stepRetries), ctx), notify); err != nil {
		return nil, fmt.Errorf("environment step: %w", err)
	}

	pos, err := position(res.Observation)
	if err != nil {
		return nil, err
	}
	ep.Position = pos
	ep.Distance = pos.Distance(ep.Goal)
	return res.Observation, nil
}

// position 观测向量前三个分量为末端执行器位置
func position(obs []float64) (r3.Vector, error) {
	if len(obs) < 3 {
		return r3.Vector{}, fmt.Errorf("observation has %d values, need at least 3", len(obs))
	}
	return r3.Vector{X: obs[0], Y: obs[1], Z: obs[2]}, nil
}
