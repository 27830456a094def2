package service

import (
	"fmt"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/model"
)

// CoordinateMapper 像素坐标到机器人坐标系（米）的仿射变换
type CoordinateMapper struct {
	plateWidthMM   float64
	xOffset        float64
	yOffset        float64
	insertionDepth float64
}

func NewCoordinateMapper(cfg *config.MappingConfig) *CoordinateMapper {
	return &CoordinateMapper{
		plateWidthMM:   cfg.PlateWidthMM,
		xOffset:        cfg.XOffset,
		yOffset:        cfg.YOffset,
		insertionDepth: cfg.InsertionDepth,
	}
}

// ConversionFactor 每像素对应的毫米数
func (cm *CoordinateMapper) ConversionFactor(rangeY int) (float64, error) {
	if rangeY <= 0 {
		return 0, fmt.Errorf("invalid range_y %d", rangeY)
	}
	return cm.plateWidthMM / float64(rangeY), nil
}

// Map 列对应 x，行对应 y，z 为固定插入深度
func (cm *CoordinateMapper) Map(p model.PixelPoint, conversionFactor float64) model.GoalPosition {
	return model.GoalPosition{
		X: float64(p.Col)*conversionFactor/1000 + cm.xOffset,
		Y: float64(p.Row)*conversionFactor/1000 + cm.yOffset,
		Z: cm.insertionDepth,
	}
}
