package service

import (
	"encoding/binary"
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// matFromBytes 复制 data 构造连续的 Mat
func matFromBytes(rows, cols int, mt gocv.MatType, data []byte) (gocv.Mat, error) {
	view, err := gocv.NewMatFromBytes(rows, cols, mt, data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("build %dx%d mat: %w", cols, rows, err)
	}
	defer view.Close()
	return view.Clone(), nil
}

// matFromFloats 由行优先的 float32 数据构造 CV_32F 单通道 Mat
func matFromFloats(rows, cols int, data []float32) (gocv.Mat, error) {
	if len(data) != rows*cols {
		return gocv.NewMat(), fmt.Errorf("mask data has %d values, want %d", len(data), rows*cols)
	}
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return matFromBytes(rows, cols, gocv.MatTypeCV32F, buf)
}

// continuousBytes 返回单通道 8 位图像的行优先像素
func continuousBytes(m gocv.Mat) []byte {
	if m.IsContinuous() {
		return m.ToBytes()
	}
	c := m.Clone()
	defer c.Close()
	return c.ToBytes()
}
