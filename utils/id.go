package utils

import (
	"time"

	"github.com/google/uuid"
)

// GenerateID 生成基于时间戳的ID
func GenerateID() int64 {
	return time.Now().UnixNano()
}

// NewEpisodeID 生成控制回合ID
func NewEpisodeID() string {
	return uuid.NewString()
}
