package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
	"time"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/metrics"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/TIANLI0/TipGuide/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// TargetService 负责从培养板图像提取根尖目标点
type TargetService struct {
	semaphore       chan struct{}
	queueTimeout    time.Duration
	segmenter       Segmenter
	regionExtractor *RegionExtractor
	maskRefiner     *MaskRefiner
	partitioner     *ComponentPartitioner
	skeletonBuilder *SkeletonGraphBuilder
	tipSelector     *TipSelector
	mapper          *CoordinateMapper
	metrics         *metrics.Metrics
}

func NewTargetService(cfg *config.PipelineConfig, segmenter Segmenter, m *metrics.Metrics) *TargetService {
	return &TargetService{
		semaphore:       make(chan struct{}, max(1, cfg.MaxConcurrent)),
		queueTimeout:    cfg.QueueTimeout,
		segmenter:       segmenter,
		regionExtractor: NewRegionExtractor(&cfg.Region),
		maskRefiner:     NewMaskRefiner(&cfg.Mask),
		partitioner:     NewComponentPartitioner(&cfg.Lanes),
		skeletonBuilder: NewSkeletonGraphBuilder(),
		tipSelector:     NewTipSelector(),
		mapper:          NewCoordinateMapper(&cfg.Mapping),
		metrics:         m,
	}
}

// ProcessFile 读取图片文件并提取目标点
func (s *TargetService) ProcessFile(ctx context.Context, imagePath string, md5 string) (*model.TargetResult, error) {
	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("failed to read image %s", imagePath)
	}
	defer img.Close()

	return s.Extract(ctx, img, md5)
}

// Extract 依次执行裁剪、分割、掩码优化、槽位划分、骨架分析、根尖选择与坐标转换
//
// 没有连通区域或根尖时返回空的 Targets，只有找不到培养板时返回 ErrNoPlateEdgeDetected。
func (s *TargetService) Extract(ctx context.Context, img gocv.Mat, md5 string) (*model.TargetResult, error) {
	// 并发控制
	qctx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-qctx.Done():
		return nil, ErrQueueFull
	}

	startTime := time.Now()
	s.metrics.ImagesProcessed.Inc()
	defer func() {
		s.metrics.PipelineDuration.Observe(time.Since(startTime).Seconds())
	}()

	utils.Logger.Info("processing plate image",
		zap.String("md5", md5),
		zap.Int("width", img.Cols()),
		zap.Int("height", img.Rows()))

	region, err := s.regionExtractor.Extract(img)
	if err != nil {
		s.metrics.StageFailures.WithLabelValues("region").Inc()
		return nil, err
	}
	defer region.Close()

	conversion, err := s.mapper.ConversionFactor(region.RangeY)
	if err != nil {
		return nil, err
	}

	result := &model.TargetResult{
		MD5:    md5,
		Width:  img.Cols(),
		Height: img.Rows(),
		Region: model.BBox{
			Top:    region.Offset.Y,
			Left:   region.Offset.X,
			Bottom: region.Offset.Y + region.Crop.Rows(),
			Right:  region.Offset.X + region.Crop.Cols(),
		},
		RangeY:           region.RangeY,
		ConversionFactor: conversion,
		Lanes:            map[int]model.Component{},
		Targets:          []model.Target{},
		Timestamp:        time.Now().Unix(),
	}

	prob, err := s.segmenter.PredictMask(ctx, region.Crop)
	if err != nil {
		s.metrics.StageFailures.WithLabelValues("segmentation").Inc()
		return nil, fmt.Errorf("segmentation: %w", err)
	}
	defer prob.Close()

	// 分割模型输出尺寸不同时还原到裁剪尺寸
	if prob.Rows() != region.Crop.Rows() || prob.Cols() != region.Crop.Cols() {
		resized := gocv.NewMat()
		gocv.Resize(prob, &resized, image.Point{X: region.Crop.Cols(), Y: region.Crop.Rows()}, 0, 0, gocv.InterpolationLinear)
		prob.Close()
		prob = resized
	}

	binary, err := s.maskRefiner.Refine(prob)
	if err != nil {
		s.metrics.StageFailures.WithLabelValues("mask").Inc()
		return nil, err
	}
	defer binary.Close()

	lanes, err := s.partitioner.Partition(binary, region.RangeY)
	if errors.Is(err, ErrNoComponentsFound) {
		s.metrics.StageFailures.WithLabelValues("components").Inc()
		utils.Logger.Info("no plants detected", zap.String("md5", md5))
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	defer lanes.Close()
	result.Lanes = lanes.Lanes

	summary := s.skeletonBuilder.Build(lanes.Labeled)
	utils.Logger.Debug("skeleton summarized",
		zap.Int("pixels", summary.Pixels),
		zap.Int("junctions", summary.Junctions),
		zap.Int("skeletons", len(summary.SkeletonIDs)),
		zap.Int("tip_branches", len(summary.Branches)))

	for _, id := range summary.SkeletonIDs {
		tip, err := s.tipSelector.Select(id, summary.BySkeleton(id))
		if errors.Is(err, ErrNoTipFound) {
			utils.Logger.Debug("skeleton without tip", zap.Int("skeleton_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}

		target := model.Target{
			Lane:          lanes.LaneAt(tip.Pixel),
			SkeletonID:    id,
			Tip:           tip.Pixel,
			Goal:          s.mapper.Map(tip.Pixel, conversion),
			PrimaryNodes:  tip.PrimaryNodes,
			PrimaryLength: tip.PrimaryLength,
			BranchNodes:   tip.Nodes,
		}
		utils.Logger.Debug("tip selected",
			zap.Int("skeleton_id", id),
			zap.Int("lane", target.Lane),
			zap.Int("row", tip.Pixel.Row),
			zap.Int("col", tip.Pixel.Col),
			zap.Int("primary_nodes", tip.PrimaryNodes),
			zap.Float64("primary_length", tip.PrimaryLength),
			zap.Int("nodes", tip.Nodes))
		result.Targets = append(result.Targets, target)
	}

	sort.SliceStable(result.Targets, func(i, j int) bool {
		if result.Targets[i].Lane != result.Targets[j].Lane {
			return result.Targets[i].Lane < result.Targets[j].Lane
		}
		return result.Targets[i].SkeletonID < result.Targets[j].SkeletonID
	})
	s.metrics.TargetsFound.Add(float64(len(result.Targets)))

	utils.Logger.Info("plate image processed",
		zap.String("md5", md5),
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("lanes", len(result.Lanes)),
		zap.Int("targets", len(result.Targets)))

	return result, nil
}

// RenderOverlay 在原图上标出裁剪区域与根尖，返回 Base64 编码的 PNG
func (s *TargetService) RenderOverlay(img gocv.Mat, result *model.TargetResult) string {
	canvas := img.Clone()
	defer canvas.Close()

	region := image.Rect(result.Region.Left, result.Region.Top, result.Region.Right, result.Region.Bottom)
	gocv.Rectangle(&canvas, region, color.RGBA{G: 255, A: 255}, 2)

	for _, t := range result.Targets {
		p := image.Pt(result.Region.Left+t.Tip.Col, result.Region.Top+t.Tip.Row)
		gocv.Circle(&canvas, p, 8, color.RGBA{R: 255, A: 255}, 2)
		gocv.PutText(&canvas, fmt.Sprintf("%d", t.Lane), p.Add(image.Pt(10, -10)),
			gocv.FontHersheySimplex, 1, color.RGBA{R: 255, A: 255}, 2)
	}

	data, err := gocv.IMEncode(".png", canvas)
	if err != nil {
		utils.Logger.Error("failed to encode overlay", zap.Error(err))
		return ""
	}
	defer data.Close()

	return base64.StdEncoding.EncodeToString(data.GetBytes())
}
