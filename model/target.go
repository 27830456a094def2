package model

// BBox 边界框（像素）
type BBox struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
}

// Width 宽度
func (b BBox) Width() int { return b.Right - b.Left }

// Height 高度
func (b BBox) Height() int { return b.Bottom - b.Top }

// PixelPoint 像素坐标（行，列）
type PixelPoint struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Component 连通区域
type Component struct {
	ID       int        `json:"id"`
	Area     int        `json:"area"`
	Top      int        `json:"top"`
	Left     int        `json:"left"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Centroid [2]float64 `json:"centroid"`
}

// GoalPosition 机器人坐标系下的目标点（米）
type GoalPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Target 单株植物的根尖目标
type Target struct {
	Lane       int          `json:"lane"`
	SkeletonID int          `json:"skeleton_id"`
	Tip        PixelPoint   `json:"tip"`
	Goal       GoalPosition `json:"goal"`
	// PrimaryNodes / PrimaryLength 主根（分支图最大连通分量）的节点数与总长度（像素）
	PrimaryNodes  int     `json:"primary_nodes"`
	PrimaryLength float64 `json:"primary_length"`
	// BranchNodes 该骨架分支图的节点总数
	BranchNodes int `json:"branch_nodes"`
}

// TargetResult 一张培养板图像的提取结果
type TargetResult struct {
	MD5              string            `json:"md5"`
	Width            int               `json:"width"`
	Height           int               `json:"height"`
	Region           BBox              `json:"region"`
	RangeY           int               `json:"range_y"`
	ConversionFactor float64           `json:"conversion_factor"`
	Lanes            map[int]Component `json:"lanes"`
	Targets          []Target          `json:"targets"`
	Timestamp        int64             `json:"timestamp"`
	Overlay          string            `json:"overlay,omitempty"`
}
