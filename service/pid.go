package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/golang/geo/r3"
)

// PIDController 单轴 PID 控制器
type PIDController struct {
	Kp        float64
	Ki        float64
	Kd        float64
	Dt        float64
	MaxOutput float64

	integral float64
	prevErr  float64
	primed   bool
}

// Update 根据当前误差计算输出，输出限幅在 ±MaxOutput
func (p *PIDController) Update(err float64) float64 {
	p.integral += err * p.Dt

	derivative := 0.0
	if p.primed && p.Dt > 0 {
		derivative = (err - p.prevErr) / p.Dt
	}
	p.prevErr = err
	p.primed = true

	out := p.Kp*err + p.Ki*p.integral + p.Kd*derivative
	if p.MaxOutput > 0 {
		out = min(max(out, -p.MaxOutput), p.MaxOutput)
	}
	return out
}

// Reset 清除积分与微分状态
func (p *PIDController) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.primed = false
}

// PIDPolicy 由三个轴向 PID 组成的本地策略，动作为 [vx, vy, vz, 0]
type PIDPolicy struct {
	mu   sync.Mutex
	axes [3]*PIDController
	goal r3.Vector
}

func NewPIDPolicy(cfg *config.PIDConfig) *PIDPolicy {
	p := &PIDPolicy{}
	for i := range p.axes {
		p.axes[i] = &PIDController{
			Kp:        cfg.Kp,
			Ki:        cfg.Ki,
			Kd:        cfg.Kd,
			Dt:        cfg.Dt,
			MaxOutput: cfg.MaxOutput,
		}
	}
	return p
}

// SetGoal 设置目标并重置控制器状态
func (p *PIDPolicy) SetGoal(goal [3]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.goal = r3.Vector{X: goal[0], Y: goal[1], Z: goal[2]}
	for _, a := range p.axes {
		a.Reset()
	}
}

func (p *PIDPolicy) Predict(_ context.Context, observation []float64) ([]float64, any, error) {
	pos, err := position(observation)
	if err != nil {
		return nil, nil, fmt.Errorf("pid policy: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.goal.Sub(pos)
	return []float64{
		p.axes[0].Update(e.X),
		p.axes[1].Update(e.Y),
		p.axes[2].Update(e.Z),
		0,
	}, nil, nil
}
