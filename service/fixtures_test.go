package service

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// 合成培养板：边框外接矩形 x 460..1460, y 40..1040
var plateRect = image.Rect(460, 40, 1460, 1040)

// 裁剪坐标系中的五条根：列、起始行、根尖行
var syntheticRoots = []struct {
	col, top, tip int
}{
	{100, 350, 650},
	{300, 350, 680},
	{500, 350, 710},
	{700, 350, 740},
	{900, 350, 770},
}

func newPlateImage(t *testing.T) gocv.Mat {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 1080, 1920, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&img, plateRect, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 3)
	require.False(t, img.Empty())
	return img
}

func newBlankImage(t *testing.T) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 1080, 1920, gocv.MatTypeCV8UC3)
}

func zeroMat(rows, cols int, mt gocv.MatType) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, mt)
}

func fillRect(m gocv.Mat, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetUCharAt(y, x, v)
		}
	}
}

// rootSegmenter 在裁剪图同尺寸的概率图上画出单像素宽的竖直根
type rootSegmenter struct {
	calls int
}

func (s *rootSegmenter) PredictMask(_ context.Context, img gocv.Mat) (gocv.Mat, error) {
	s.calls++
	mask := zeroMat(img.Rows(), img.Cols(), gocv.MatTypeCV32F)
	for _, r := range syntheticRoots {
		for y := r.top; y <= r.tip && y < img.Rows(); y++ {
			mask.SetFloatAt(y, r.col, 0.9)
		}
	}
	return mask, nil
}

// emptySegmenter 什么都没检测到
type emptySegmenter struct{}

func (emptySegmenter) PredictMask(_ context.Context, img gocv.Mat) (gocv.Mat, error) {
	return zeroMat(img.Rows(), img.Cols(), gocv.MatTypeCV32F), nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Control.MaxIterations = 500
	return cfg
}

func vec(g model.GoalPosition) [3]float64 {
	return [3]float64{g.X, g.Y, g.Z}
}
