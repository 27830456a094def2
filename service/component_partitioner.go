package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/TIANLI0/TipGuide/config"
	"github.com/TIANLI0/TipGuide/model"
	"github.com/TIANLI0/TipGuide/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// ComponentPartitioner 将二值掩码的连通区域分配到等宽的水平槽位（lane）
type ComponentPartitioner struct {
	lanes   int
	minArea int
	minTop  int
	maxTop  int
	minLeft *int
	maxLeft int
}

// LaneAssignment 每个槽位面积最大的连通区域
type LaneAssignment struct {
	// Lanes 槽位编号（从1开始）到连通区域
	Lanes map[int]model.Component
	// Labeled 与掩码同尺寸的 CV_8U 图像，像素值为所属槽位编号，背景为0
	Labeled   gocv.Mat
	LaneWidth float64
}

// Close 释放槽位标注图像
func (la *LaneAssignment) Close() error {
	return la.Labeled.Close()
}

// LaneAt 返回像素所在的槽位编号，0 表示背景
func (la *LaneAssignment) LaneAt(p model.PixelPoint) int {
	if p.Row < 0 || p.Col < 0 || p.Row >= la.Labeled.Rows() || p.Col >= la.Labeled.Cols() {
		return 0
	}
	return int(la.Labeled.GetUCharAt(p.Row, p.Col))
}

func NewComponentPartitioner(cfg *config.LaneConfig) *ComponentPartitioner {
	lanes := cfg.Count
	if lanes <= 0 {
		lanes = 5
	}
	return &ComponentPartitioner{
		lanes:   lanes,
		minArea: cfg.MinArea,
		minTop:  cfg.MinTop,
		maxTop:  cfg.MaxTop,
		minLeft: cfg.MinLeft,
		maxLeft: cfg.MaxLeft,
	}
}

// Partition 对 {0,1} 掩码做连通域分析，按左边界把候选区域分到槽位
//
// rangeY 为培养板边缘的行跨度，槽位宽度为 rangeY/lanes。
func (cp *ComponentPartitioner) Partition(mask gocv.Mat, rangeY int) (*LaneAssignment, error) {
	if mask.Empty() {
		return nil, fmt.Errorf("empty mask: %w", ErrNoComponentsFound)
	}
	if rangeY <= 0 {
		return nil, fmt.Errorf("invalid range_y %d", rangeY)
	}

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)

	candidates := make([]model.Component, 0, n)
	for i := 1; i < n; i++ {
		c := model.Component{
			ID:     i,
			Left:   int(stats.GetIntAt(i, int(gocv.CCStatLeft))),
			Top:    int(stats.GetIntAt(i, int(gocv.CCStatTop))),
			Width:  int(stats.GetIntAt(i, int(gocv.CCStatWidth))),
			Height: int(stats.GetIntAt(i, int(gocv.CCStatHeight))),
			Area:   int(stats.GetIntAt(i, int(gocv.CCStatArea))),
			Centroid: [2]float64{
				centroids.GetDoubleAt(i, 0),
				centroids.GetDoubleAt(i, 1),
			},
		}
		if cp.keep(c) {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Area > candidates[j].Area
	})

	laneWidth := float64(rangeY) / float64(cp.lanes)
	best := make(map[int]model.Component, cp.lanes)
	for _, c := range candidates {
		lane := cp.laneIndex(c.Left, laneWidth)
		cur, ok := best[lane]
		if !ok {
			best[lane] = c
			continue
		}
		if c.Area > cur.Area && cp.inLane(c.Left, lane, laneWidth) {
			best[lane] = c
		}
	}

	if len(best) == 0 {
		utils.Logger.Info("no components survived filtering",
			zap.Int("labels", n-1),
			zap.Int("min_area", cp.minArea))
		return nil, ErrNoComponentsFound
	}

	labeled, err := cp.paint(labels, best)
	if err != nil {
		return nil, err
	}

	return &LaneAssignment{
		Lanes:     best,
		Labeled:   labeled,
		LaneWidth: laneWidth,
	}, nil
}

// keep 面积、上边界和左边界过滤
func (cp *ComponentPartitioner) keep(c model.Component) bool {
	if c.Area < cp.minArea {
		return false
	}
	if c.Top < cp.minTop || c.Top > cp.maxTop {
		return false
	}
	if cp.minLeft != nil && c.Left < *cp.minLeft {
		return false
	}
	return c.Left <= cp.maxLeft
}

func (cp *ComponentPartitioner) laneIndex(left int, laneWidth float64) int {
	lane := int(math.Floor(float64(left)/laneWidth)) + 1
	return min(max(lane, 1), cp.lanes)
}

func (cp *ComponentPartitioner) inLane(left, lane int, laneWidth float64) bool {
	x := float64(left)
	return x >= float64(lane-1)*laneWidth && x < float64(lane)*laneWidth
}

// paint 把获胜区域的像素写成槽位编号
func (cp *ComponentPartitioner) paint(labels gocv.Mat, best map[int]model.Component) (gocv.Mat, error) {
	laneOf := make(map[int32]uint8, len(best))
	for lane, c := range best {
		laneOf[int32(c.ID)] = uint8(lane)
	}

	ids, err := labels.DataPtrInt32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("read component labels: %w", err)
	}

	rows, cols := labels.Rows(), labels.Cols()
	out := make([]byte, rows*cols)
	for i, id := range ids {
		if lane, ok := laneOf[id]; ok {
			out[i] = lane
		}
	}
	return matFromBytes(rows, cols, gocv.MatTypeCV8U, out)
}
