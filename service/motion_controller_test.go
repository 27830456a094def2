package service

import (
	"context"
	"testing"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGoal = model.GoalPosition{X: 0.12, Y: 0.18, Z: 0.17}

func TestMotionControllerConvergesAndSettles(t *testing.T) {
	cfg := testConfig().Control
	env := newFakeEnv()
	mc := NewMotionController(&cfg, jumpPolicy{}, env)

	ep, err := mc.Run(context.Background(), testGoal)
	require.NoError(t, err)

	assert.Equal(t, StateDone, ep.State)
	assert.True(t, ep.Converged())
	assert.NoError(t, ep.Err())
	assert.Equal(t, model.OutcomeConverged, ep.Outcome())
	assert.Equal(t, 1, ep.Iterations)
	assert.Equal(t, 1, ep.EngageSteps)
	assert.Equal(t, cfg.SettleSteps, ep.SettleSteps)
	assert.Less(t, ep.Distance, cfg.ConvergenceThreshold)
	assert.Equal(t, vec(testGoal), env.goal)

	// 1 次逼近 + 1 次下压 + 100 次保持
	require.Len(t, env.actions, 102)
	assert.Equal(t, cfg.EngageAction, env.actions[1])
	for _, a := range env.actions[2:] {
		assert.Equal(t, cfg.HoldAction, a)
	}
}

func TestMotionControllerTimesOut(t *testing.T) {
	cfg := testConfig().Control
	env := newFakeEnv()
	mc := NewMotionController(&cfg, idlePolicy{}, env)

	ep, err := mc.Run(context.Background(), testGoal)
	require.NoError(t, err)

	assert.Equal(t, StateTimedOut, ep.State)
	assert.False(t, ep.Converged())
	assert.ErrorIs(t, ep.Err(), ErrConvergenceTimeout)
	assert.Equal(t, model.OutcomeTimedOut, ep.Outcome())
	assert.Equal(t, cfg.MaxIterations, ep.Iterations)
	assert.Zero(t, ep.EngageSteps)
	assert.Zero(t, ep.SettleSteps)
	assert.Len(t, env.actions, cfg.MaxIterations)
}

func TestMotionControllerDefaultIterationCap(t *testing.T) {
	cfg := config.Default().Control
	env := newFakeEnv()
	mc := NewMotionController(&cfg, idlePolicy{}, env)

	ep, err := mc.Run(context.Background(), testGoal)
	require.NoError(t, err)

	assert.Equal(t, StateTimedOut, ep.State)
	assert.Equal(t, 100000, ep.Iterations)
	assert.Equal(t, 100000, env.calls)
}

func TestMotionControllerRetriesFlakyStep(t *testing.T) {
	cfg := testConfig().Control
	env := newFakeEnv()
	env.failSteps = 2
	mc := NewMotionController(&cfg, jumpPolicy{}, env)

	ep, err := mc.Run(context.Background(), testGoal)
	require.NoError(t, err)

	assert.True(t, ep.Converged())
	assert.Equal(t, 1, ep.Iterations)
	assert.Equal(t, 104, env.calls)
}

func TestMotionControllerStepFailure(t *testing.T) {
	cfg := testConfig().Control
	cfg.StepRetries = 1
	env := newFakeEnv()
	env.failSteps = 1000
	mc := NewMotionController(&cfg, jumpPolicy{}, env)

	ep, err := mc.Run(context.Background(), testGoal)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robot busy")
	assert.Equal(t, 0, ep.Iterations)
	assert.Equal(t, 2, env.calls)
}

func TestMotionControllerPolicyFailure(t *testing.T) {
	cfg := testConfig().Control
	mc := NewMotionController(&cfg, failingPolicy{}, newFakeEnv())

	_, err := mc.Run(context.Background(), testGoal)
	assert.ErrorContains(t, err, "model unavailable")
}

func TestMotionControllerShortObservation(t *testing.T) {
	cfg := testConfig().Control
	env := newFakeEnv()
	env.shortObs = true
	mc := NewMotionController(&cfg, jumpPolicy{}, env)

	_, err := mc.Run(context.Background(), testGoal)
	assert.ErrorContains(t, err, "need at least 3")
}

func TestMotionControllerCancelled(t *testing.T) {
	cfg := testConfig().Control
	env := newFakeEnv()
	env.failSteps = 1000
	mc := NewMotionController(&cfg, jumpPolicy{}, env)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mc.Run(ctx, testGoal)
	assert.Error(t, err)
	assert.Equal(t, 1, env.calls)
}

func TestEpisodeStateTerminal(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateTimedOut.Terminal())
	assert.False(t, StateApproaching.Terminal())
	assert.False(t, StateSettling.Terminal())
	assert.Equal(t, "timed_out", StateTimedOut.String())
}
