package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TIANLI0/TipGuide/metrics"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuidance(t *testing.T, env *fakeEnv, policy Policy) (*GuidanceService, *metrics.Metrics) {
	t.Helper()
	cfg := testConfig()
	m := metrics.New()
	mc := NewMotionController(&cfg.Control, policy, env)
	return NewGuidanceService(mc, 50*time.Millisecond, m), m
}

func TestGuidanceServiceRunsEveryTarget(t *testing.T) {
	env := newFakeEnv()
	env.limit = 1
	g, m := newGuidance(t, env, jumpPolicy{})

	targets := []model.Target{
		{Lane: 1, SkeletonID: 1, Goal: testGoal},
		// 超出工作空间，无法到达
		{Lane: 2, SkeletonID: 2, Goal: model.GoalPosition{X: 5, Y: 0.1, Z: 0.1}},
		{Lane: 3, SkeletonID: 3, Goal: model.GoalPosition{X: 0.2, Y: 0.1, Z: 0.17}},
	}

	results, err := g.Guide(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, model.OutcomeConverged, results[0].Outcome)
	assert.Equal(t, 1, results[0].Iterations)
	assert.Equal(t, 100, results[0].SettleSteps)
	assert.Equal(t, targets[0], results[0].Target)
	assert.NotEmpty(t, results[0].ID)

	assert.Equal(t, model.OutcomeTimedOut, results[1].Outcome)
	assert.Equal(t, 500, results[1].Iterations)
	assert.InDelta(t, 1.0, results[1].FinalPosition.X, 1e-12)

	assert.Equal(t, model.OutcomeConverged, results[2].Outcome)
	assert.NotEqual(t, results[0].ID, results[2].ID)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Episodes.WithLabelValues("converged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Episodes.WithLabelValues("timed_out")))
}

func TestGuidanceServiceStopsOnEnvironmentError(t *testing.T) {
	env := newFakeEnv()
	env.resetErr = errors.New("connection refused")
	g, m := newGuidance(t, env, jumpPolicy{})

	results, err := g.Guide(context.Background(), []model.Target{{Lane: 1, Goal: testGoal}})
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, results)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Episodes.WithLabelValues("error")))
}

func TestGuidanceServiceQueueFull(t *testing.T) {
	g, _ := newGuidance(t, newFakeEnv(), jumpPolicy{})
	g.robot <- struct{}{}
	defer func() { <-g.robot }()

	_, err := g.Guide(context.Background(), []model.Target{{Lane: 1, Goal: testGoal}})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestGuidanceServiceNoTargets(t *testing.T) {
	g, _ := newGuidance(t, newFakeEnv(), jumpPolicy{})

	results, err := g.Guide(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
