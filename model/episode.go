package model

// EpisodeOutcome 控制回合结束状态
type EpisodeOutcome string

const (
	OutcomeConverged EpisodeOutcome = "converged"
	OutcomeTimedOut  EpisodeOutcome = "timed_out"
)

// EpisodeResult 单个目标的闭环控制结果
type EpisodeResult struct {
	ID            string         `json:"id"`
	Target        Target         `json:"target"`
	Outcome       EpisodeOutcome `json:"outcome"`
	Iterations    int            `json:"iterations"`
	SettleSteps   int            `json:"settle_steps"`
	FinalPosition GoalPosition   `json:"final_position"`
	FinalDistance float64        `json:"final_distance"`
	DurationMs    int64          `json:"duration_ms"`
}

// GuidanceResult 一次引导请求的全部回合
type GuidanceResult struct {
	MD5      string          `json:"md5"`
	Targets  *TargetResult   `json:"targets"`
	Episodes []EpisodeResult `json:"episodes"`
}

// APIResponse 通用成功响应
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应，Data 携带出错前已完成的部分结果
type ErrorResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
