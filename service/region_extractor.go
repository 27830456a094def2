package service

import (
	"fmt"
	"image"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/TIANLI0/TipGuide/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// RegionExtractor 负责定位培养板边缘并裁剪感兴趣区域
type RegionExtractor struct {
	bottomMargin int
	rightMargin  int
	cannyLow     float32
	cannyHigh    float32
}

// Region 裁剪结果，Crop 由调用方 Close
type Region struct {
	Crop gocv.Mat
	// Offset 裁剪区域左上角在原图中的位置
	Offset image.Point
	// Edges 边缘像素的最小/最大行列（含端点）
	Edges  model.BBox
	RangeY int
}

// Close 释放裁剪图像
func (r *Region) Close() error {
	return r.Crop.Close()
}

// Bounds 裁剪区域在原图中的矩形
func (r *Region) Bounds() image.Rectangle {
	return image.Rect(r.Offset.X, r.Offset.Y, r.Offset.X+r.Crop.Cols(), r.Offset.Y+r.Crop.Rows())
}

func NewRegionExtractor(cfg *config.RegionConfig) *RegionExtractor {
	return &RegionExtractor{
		bottomMargin: cfg.BottomMargin,
		rightMargin:  cfg.RightMargin,
		cannyLow:     cfg.CannyLow,
		cannyHigh:    cfg.CannyHigh,
	}
}

// Extract 去除底部和右侧边距后做边缘检测，按边缘范围裁剪出近似正方形的区域
func (re *RegionExtractor) Extract(img gocv.Mat) (*Region, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image: %w", ErrNoPlateEdgeDetected)
	}

	rows := img.Rows() - re.bottomMargin
	cols := img.Cols() - re.rightMargin
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("image %dx%d smaller than margins: %w", img.Cols(), img.Rows(), ErrNoPlateEdgeDetected)
	}

	trimmed := img.Region(image.Rect(0, 0, cols, rows))
	defer trimmed.Close()

	gray := re.toGray(trimmed)
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, re.cannyLow, re.cannyHigh)

	bounds, ok := nonZeroBounds(edges)
	if !ok {
		return nil, ErrNoPlateEdgeDetected
	}

	rangeY := bounds.Bottom - bounds.Top
	if rangeY <= 0 {
		return nil, fmt.Errorf("degenerate plate edge at row %d: %w", bounds.Top, ErrNoPlateEdgeDetected)
	}

	mid := (bounds.Left + bounds.Right) / 2
	left := max(0, mid-rangeY/2)
	right := min(cols, mid-rangeY/2+rangeY)

	rect := image.Rect(left, bounds.Top, right, bounds.Bottom)
	view := img.Region(rect)
	crop := view.Clone()
	view.Close()

	utils.Logger.Debug("plate region extracted",
		zap.Int("top", bounds.Top),
		zap.Int("bottom", bounds.Bottom),
		zap.Int("left", left),
		zap.Int("right", right),
		zap.Int("range_y", rangeY))

	return &Region{
		Crop:   crop,
		Offset: rect.Min,
		Edges:  bounds,
		RangeY: rangeY,
	}, nil
}

// toGray 转换为单通道灰度图
func (re *RegionExtractor) toGray(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch img.Channels() {
	case 1:
		img.CopyTo(&gray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

// nonZeroBounds 计算非零像素的最小/最大行列
func nonZeroBounds(mask gocv.Mat) (model.BBox, bool) {
	data := continuousBytes(mask)
	cols := mask.Cols()

	found := false
	var b model.BBox
	for i, v := range data {
		if v == 0 {
			continue
		}
		y, x := i/cols, i%cols
		if !found {
			b = model.BBox{Top: y, Left: x, Bottom: y, Right: x}
			found = true
			continue
		}
		b.Top = min(b.Top, y)
		b.Bottom = max(b.Bottom, y)
		b.Left = min(b.Left, x)
		b.Right = max(b.Right, x)
	}
	return b, found
}
