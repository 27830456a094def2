package service

import (
	"fmt"
	"image"

	"github.com/TIANLI0/TipGuide/config"
	"gocv.io/x/gocv"
)

// MaskRefiner 负责平滑并二值化分割模型输出的概率掩码
type MaskRefiner struct {
	kernelSize int
	threshold  float32
}

func NewMaskRefiner(cfg *config.MaskConfig) *MaskRefiner {
	return &MaskRefiner{
		kernelSize: cfg.KernelSize,
		threshold:  cfg.Threshold,
	}
}

// Refine 先膨胀后腐蚀（闭运算），再按阈值输出 {0,1} 的 CV_8U 掩码
func (mr *MaskRefiner) Refine(prob gocv.Mat) (gocv.Mat, error) {
	if prob.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty probability mask")
	}

	src := gocv.NewMat()
	defer src.Close()
	if prob.Type() == gocv.MatTypeCV8U {
		prob.ConvertToWithParams(&src, gocv.MatTypeCV32F, 1.0/255, 0)
	} else {
		prob.ConvertTo(&src, gocv.MatTypeCV32F)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: mr.kernelSize, Y: mr.kernelSize})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(src, &dilated, kernel)

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.Erode(dilated, &closed, kernel)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(closed, &binary, mr.threshold, 1, gocv.ThresholdBinary)

	final := gocv.NewMat()
	binary.ConvertTo(&final, gocv.MatTypeCV8U)

	return final, nil
}
