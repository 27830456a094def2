package service

import (
	"fmt"

	"github.com/TIANLI0/TipGuide/config"
)

// NewPolicy 根据配置选择远程强化学习策略或本地 PID 策略
func NewPolicy(ctrl *config.ControlConfig, models *config.ModelsConfig) (Policy, error) {
	switch ctrl.Policy {
	case "", "remote":
		return NewRemotePolicy(models), nil
	case "pid":
		return NewPIDPolicy(&ctrl.PID), nil
	default:
		return nil, fmt.Errorf("unknown control policy %q", ctrl.Policy)
	}
}
