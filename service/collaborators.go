package service

import (
	"context"

	"gocv.io/x/gocv"
)

// Segmenter 将裁剪后的培养板图像转换为概率掩码
//
// 返回的掩码与输入同尺寸，类型为 CV_32F，取值范围 [0,1]，由调用方负责 Close。
type Segmenter interface {
	PredictMask(ctx context.Context, img gocv.Mat) (gocv.Mat, error)
}

// Policy 根据观测向量给出动作
type Policy interface {
	Predict(ctx context.Context, observation []float64) (action []float64, state any, err error)
}

// Environment 执行动作并返回新的观测，前三个分量为末端执行器位置
type Environment interface {
	Reset(ctx context.Context) ([]float64, error)
	Step(ctx context.Context, action []float64) (StepResult, error)
	SetGoal(ctx context.Context, goal [3]float64) error
}

// StepResult 单步执行结果
type StepResult struct {
	Observation []float64      `json:"observation"`
	Reward      float64        `json:"reward"`
	Terminated  bool           `json:"terminated"`
	Truncated   bool           `json:"truncated"`
	Info        map[string]any `json:"info,omitempty"`
}

// goalSetter 需要知道目标点的本地策略（例如 PID）
type goalSetter interface {
	SetGoal(goal [3]float64)
}
