package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDControllerClampsOutput(t *testing.T) {
	p := &PIDController{Kp: 10, Dt: 0.05, MaxOutput: 1}
	assert.Equal(t, 1.0, p.Update(5))
	assert.Equal(t, -1.0, p.Update(-5))
	assert.InDelta(t, 0.5, p.Update(0.05), 1e-12)
}

func TestPIDControllerIntegralAndReset(t *testing.T) {
	p := &PIDController{Ki: 1, Dt: 0.5}
	p.Update(2)
	assert.InDelta(t, 2.0, p.Update(2), 1e-12)

	p.Reset()
	assert.InDelta(t, 1.0, p.Update(2), 1e-12)
}

func TestPIDControllerDerivativeSkipsFirstSample(t *testing.T) {
	p := &PIDController{Kd: 1, Dt: 0.1}
	assert.Zero(t, p.Update(1))
	assert.InDelta(t, -5.0, p.Update(0.5), 1e-9)
}

func TestPIDPolicyDrivesEnvironmentToGoal(t *testing.T) {
	cfg := testConfig()
	env := newFakeEnv()
	env.gain = cfg.Control.PID.Dt

	policy := NewPIDPolicy(&cfg.Control.PID)
	mc := NewMotionController(&cfg.Control, policy, env)

	ep, err := mc.Run(context.Background(), testGoal)
	require.NoError(t, err)

	assert.True(t, ep.Converged())
	assert.Greater(t, ep.Iterations, 1)
	assert.Less(t, ep.Iterations, cfg.Control.MaxIterations)
	assert.InDelta(t, testGoal.X, ep.Position.X, cfg.Control.ConvergenceThreshold)
	assert.InDelta(t, testGoal.Y, ep.Position.Y, cfg.Control.ConvergenceThreshold)
	assert.InDelta(t, testGoal.Z, ep.Position.Z, cfg.Control.ConvergenceThreshold)
}

func TestPIDPolicyShortObservation(t *testing.T) {
	policy := NewPIDPolicy(&testConfig().Control.PID)
	_, _, err := policy.Predict(context.Background(), []float64{1})
	assert.Error(t, err)
}

func TestNewPolicy(t *testing.T) {
	cfg := testConfig()

	p, err := NewPolicy(&cfg.Control, &cfg.Models)
	require.NoError(t, err)
	assert.IsType(t, &RemotePolicy{}, p)

	cfg.Control.Policy = "pid"
	p, err = NewPolicy(&cfg.Control, &cfg.Models)
	require.NoError(t, err)
	assert.IsType(t, &PIDPolicy{}, p)

	cfg.Control.Policy = "sac"
	_, err = NewPolicy(&cfg.Control, &cfg.Models)
	assert.Error(t, err)
}
