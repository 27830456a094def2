package service

import (
	"context"
	"errors"
	"sync"
)

// fakeEnv 位置直接累加动作前三个分量，每个轴限制在 [-limit, limit]
type fakeEnv struct {
	mu sync.Mutex

	pos     [3]float64
	goal    [3]float64
	gain    float64
	limit   float64
	actions [][]float64
	calls   int
	// failSteps 前 N 次 Step 返回错误
	failSteps int
	resetErr  error
	shortObs  bool
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{gain: 1, limit: 10}
}

func (e *fakeEnv) Reset(_ context.Context) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resetErr != nil {
		return nil, e.resetErr
	}
	e.pos = [3]float64{}
	return e.obs(), nil
}

func (e *fakeEnv) Step(_ context.Context, action []float64) (StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if e.calls <= e.failSteps {
		return StepResult{}, errors.New("robot busy")
	}
	e.actions = append(e.actions, append([]float64(nil), action...))
	if e.shortObs {
		return StepResult{Observation: []float64{0, 0}}, nil
	}
	for i := 0; i < 3 && i < len(action); i++ {
		e.pos[i] = min(max(e.pos[i]+e.gain*action[i], -e.limit), e.limit)
	}
	return StepResult{Observation: e.obs()}, nil
}

func (e *fakeEnv) SetGoal(_ context.Context, goal [3]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.goal = goal
	return nil
}

func (e *fakeEnv) obs() []float64 {
	return []float64{e.pos[0], e.pos[1], e.pos[2], e.goal[0], e.goal[1], e.goal[2]}
}

// jumpPolicy 直接给出到目标的位移
type jumpPolicy struct{}

func (jumpPolicy) Predict(_ context.Context, obs []float64) ([]float64, any, error) {
	return []float64{obs[3] - obs[0], obs[4] - obs[1], obs[5] - obs[2], 0}, nil, nil
}

// idlePolicy 从不移动
type idlePolicy struct{}

func (idlePolicy) Predict(context.Context, []float64) ([]float64, any, error) {
	return []float64{0, 0, 0, 0}, nil, nil
}

type failingPolicy struct{}

func (failingPolicy) Predict(context.Context, []float64) ([]float64, any, error) {
	return nil, nil, errors.New("model unavailable")
}
