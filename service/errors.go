package service

import "errors"

var (
	// ErrNoPlateEdgeDetected 裁剪后的图像中没有任何边缘像素，整条流水线终止
	ErrNoPlateEdgeDetected = errors.New("no plate edge detected")
	// ErrNoComponentsFound 所有连通区域都被过滤，视为空帧
	ErrNoComponentsFound = errors.New("no components found")
	// ErrNoTipFound 骨架子图没有节点，跳过该植株
	ErrNoTipFound = errors.New("no tip found")
	// ErrConvergenceTimeout 迭代次数耗尽仍未收敛
	ErrConvergenceTimeout = errors.New("did not converge within iteration budget")
	// ErrQueueFull 等待处理槽位超时
	ErrQueueFull = errors.New("processing queue is full")
)
