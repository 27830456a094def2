package service

import (
	"math"
	"sort"

	"github.com/TIANLI0/TipGuide/model"
	"gocv.io/x/gocv"
)

// BranchType 骨架分支类型
type BranchType int

const (
	// BranchEndpointToEndpoint 两端都是自由端点的孤立分支
	BranchEndpointToEndpoint BranchType = iota
	// BranchJunctionToEndpoint 一端为交叉点、一端为自由端点
	BranchJunctionToEndpoint
	// BranchJunctionToJunction 连接两个交叉点
	BranchJunctionToJunction
	// BranchCycle 没有端点的闭环
	BranchCycle
)

func (t BranchType) String() string {
	switch t {
	case BranchEndpointToEndpoint:
		return "endpoint-endpoint"
	case BranchJunctionToEndpoint:
		return "junction-endpoint"
	case BranchJunctionToJunction:
		return "junction-junction"
	case BranchCycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// IsTip 分支是否终止于自由端点
func (t BranchType) IsTip() bool {
	return t == BranchEndpointToEndpoint || t == BranchJunctionToEndpoint
}

// Branch 骨架上两个节点之间的像素路径
//
// 节点ID为像素的行优先索引，Src 总是不大于 Dst。
type Branch struct {
	SkeletonID int
	Type       BranchType
	Distance   float64
	Euclidean  float64
	Src        int64
	Dst        int64
	SrcPixel   model.PixelPoint
	DstPixel   model.PixelPoint
}

// SkeletonSummary 按骨架子图分组的末端分支
type SkeletonSummary struct {
	Width  int
	Height int
	// Branches 仅包含末端分支，按路径长度升序
	Branches    []Branch
	SkeletonIDs []int
	// Pixels 骨架像素数量
	Pixels int
	// Junctions 度数大于2的像素数量
	Junctions int
}

// BySkeleton 返回某个骨架子图的末端分支
func (s SkeletonSummary) BySkeleton(id int) []Branch {
	var out []Branch
	for _, b := range s.Branches {
		if b.SkeletonID == id {
			out = append(out, b)
		}
	}
	return out
}

// SkeletonGraphBuilder 将槽位标注图细化为骨架并汇总成分支表
type SkeletonGraphBuilder struct{}

func NewSkeletonGraphBuilder() *SkeletonGraphBuilder {
	return &SkeletonGraphBuilder{}
}

// Build 二值化、细化并汇总骨架
func (sb *SkeletonGraphBuilder) Build(lanes gocv.Mat) SkeletonSummary {
	w, h := lanes.Cols(), lanes.Rows()
	px := continuousBytes(lanes)
	for i, v := range px {
		if v != 0 {
			px[i] = 1
		}
	}

	thin(px, w, h)
	return summarize(px, w, h)
}

// Skeletonize 返回 {0,255} 的骨架图像，便于调试输出
func (sb *SkeletonGraphBuilder) Skeletonize(mask gocv.Mat) (gocv.Mat, error) {
	w, h := mask.Cols(), mask.Rows()
	px := continuousBytes(mask)
	for i, v := range px {
		if v != 0 {
			px[i] = 1
		}
	}
	thin(px, w, h)
	for i, v := range px {
		px[i] = v * 255
	}
	return matFromBytes(h, w, gocv.MatTypeCV8U, px)
}

// 8邻域偏移，顺序为 P2..P9（从正上方顺时针）
var ring = [8][2]int{{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}}

// thin Zhang-Suen 细化后去除阶梯像素，原地修改 {0,1} 像素
func thin(px []uint8, w, h int) {
	at := func(x, y int) uint8 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return px[y*w+x]
	}

	var del []int
	for {
		changed := false
		for pass := 0; pass < 2; pass++ {
			del = del[:0]
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					if px[y*w+x] == 0 {
						continue
					}
					var p [8]uint8
					b := 0
					for k, d := range ring {
						p[k] = at(x+d[0], y+d[1])
						b += int(p[k])
					}
					if b < 2 || b > 6 {
						continue
					}
					a := 0
					for k := 0; k < 8; k++ {
						if p[k] == 0 && p[(k+1)%8] == 1 {
							a++
						}
					}
					if a != 1 {
						continue
					}
					// p[0]=P2 p[2]=P4 p[4]=P6 p[6]=P8
					if pass == 0 {
						if p[0]*p[2]*p[4] != 0 || p[2]*p[4]*p[6] != 0 {
							continue
						}
					} else {
						if p[0]*p[2]*p[6] != 0 || p[0]*p[4]*p[6] != 0 {
							continue
						}
					}
					del = append(del, y*w+x)
				}
			}
			for _, i := range del {
				px[i] = 0
			}
			if len(del) > 0 {
				changed = true
			}
		}
		if !changed {
			removeStaircases(px, w, h)
			return
		}
	}
}

// removeStaircases 删除阶梯拐角处多余的像素，使骨架在8连通意义下为单像素宽
//
// 像素有两个相邻的正交邻居且删除后邻域仍连通时删除，按光栅顺序原地处理。
func removeStaircases(px []uint8, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if px[y*w+x] == 0 {
				continue
			}
			var p [8]uint8
			for k, d := range ring {
				nx, ny := x+d[0], y+d[1]
				if nx >= 0 && ny >= 0 && nx < w && ny < h {
					p[k] = px[ny*w+nx]
				}
			}
			// p[0]=N p[2]=E p[4]=S p[6]=W
			corner := p[0]&p[2] | p[2]&p[4] | p[4]&p[6] | p[6]&p[0]
			if corner == 1 && simpleNeighborhood(p) {
				px[y*w+x] = 0
			}
		}
	}
}

// simpleNeighborhood 邻域内的前景像素是否构成唯一的8连通分量
func simpleNeighborhood(p [8]uint8) bool {
	var seen [8]bool
	components := 0
	for s := range p {
		if p[s] == 0 || seen[s] {
			continue
		}
		components++
		seen[s] = true
		stack := []int{s}
		for len(stack) > 0 {
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for q := range p {
				if p[q] == 0 || seen[q] {
					continue
				}
				dx := ring[c][0] - ring[q][0]
				dy := ring[c][1] - ring[q][1]
				if max(dx, -dx) <= 1 && max(dy, -dy) <= 1 {
					seen[q] = true
					stack = append(stack, q)
				}
			}
		}
	}
	return components == 1
}

// skeletonGrid 骨架像素的邻接查询
type skeletonGrid struct {
	px   []uint8
	w, h int
}

func (g skeletonGrid) neighbors(i int) []int {
	x, y := i%g.w, i/g.w
	out := make([]int, 0, 8)
	for _, d := range ring {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
			continue
		}
		j := ny*g.w + nx
		if g.px[j] != 0 {
			out = append(out, j)
		}
	}
	return out
}

func (g skeletonGrid) point(i int) model.PixelPoint {
	return model.PixelPoint{Row: i / g.w, Col: i % g.w}
}

func (g skeletonGrid) stepLength(a, b int) float64 {
	if a%g.w != b%g.w && a/g.w != b/g.w {
		return math.Sqrt2
	}
	return 1
}

// summarize 以度数不为2的像素为节点，沿度数为2的像素追踪分支
func summarize(px []uint8, w, h int) SkeletonSummary {
	g := skeletonGrid{px: px, w: w, h: h}
	summary := SkeletonSummary{Width: w, Height: h}

	degree := make([]int, len(px))
	for i, v := range px {
		if v == 0 {
			continue
		}
		summary.Pixels++
		degree[i] = len(g.neighbors(i))
		if degree[i] > 2 {
			summary.Junctions++
		}
	}

	skeletonID := labelSkeletons(g)
	seen := make(map[int]bool)
	for _, id := range skeletonID {
		if id != 0 && !seen[id] {
			seen[id] = true
			summary.SkeletonIDs = append(summary.SkeletonIDs, id)
		}
	}
	sort.Ints(summary.SkeletonIDs)

	isNode := func(i int) bool { return px[i] != 0 && degree[i] != 2 }
	visited := make([]bool, len(px))

	var branches []Branch
	addBranch := func(src, dst int, dist float64, typ BranchType) {
		if src > dst {
			src, dst = dst, src
		}
		sp, dp := g.point(src), g.point(dst)
		dr, dc := float64(dp.Row-sp.Row), float64(dp.Col-sp.Col)
		branches = append(branches, Branch{
			SkeletonID: skeletonID[src],
			Type:       typ,
			Distance:   dist,
			Euclidean:  math.Hypot(dr, dc),
			Src:        int64(src),
			Dst:        int64(dst),
			SrcPixel:   sp,
			DstPixel:   dp,
		})
	}
	classify := func(a, b int) BranchType {
		ja, jb := degree[a] > 2, degree[b] > 2
		switch {
		case ja && jb:
			return BranchJunctionToJunction
		case ja || jb:
			return BranchJunctionToEndpoint
		default:
			return BranchEndpointToEndpoint
		}
	}

	for n := range px {
		if !isNode(n) || degree[n] == 0 {
			continue
		}
		for _, p := range g.neighbors(n) {
			if isNode(p) {
				if n < p {
					addBranch(n, p, g.stepLength(n, p), classify(n, p))
				}
				continue
			}
			if visited[p] {
				continue
			}
			prev, cur := n, p
			dist := g.stepLength(n, p)
			visited[cur] = true
			for !isNode(cur) {
				next := -1
				for _, q := range g.neighbors(cur) {
					if q != prev && !visited[q] {
						next = q
						break
					}
				}
				if next < 0 {
					// 回到起点的环
					for _, q := range g.neighbors(cur) {
						if q != prev && isNode(q) {
							next = q
							break
						}
					}
				}
				if next < 0 {
					break
				}
				dist += g.stepLength(cur, next)
				prev, cur = cur, next
				if !isNode(cur) {
					visited[cur] = true
				}
			}
			if isNode(cur) {
				addBranch(n, cur, dist, classify(n, cur))
			}
		}
	}

	// 没有任何节点的闭环
	for i := range px {
		if px[i] == 0 || degree[i] != 2 || visited[i] {
			continue
		}
		prev, cur := -1, i
		dist := 0.0
		visited[cur] = true
		for {
			next := -1
			for _, q := range g.neighbors(cur) {
				if q != prev && !visited[q] {
					next = q
					break
				}
			}
			if next < 0 {
				if prev >= 0 {
					dist += g.stepLength(cur, i)
				}
				break
			}
			dist += g.stepLength(cur, next)
			visited[next] = true
			prev, cur = cur, next
		}
		addBranch(i, i, dist, BranchCycle)
	}

	tips := branches[:0]
	for _, b := range branches {
		if b.Type.IsTip() {
			tips = append(tips, b)
		}
	}
	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Distance < tips[j].Distance
	})
	summary.Branches = tips

	return summary
}

// labelSkeletons 8连通标记骨架子图，编号从1开始，按首个像素的行优先顺序
func labelSkeletons(g skeletonGrid) []int {
	ids := make([]int, len(g.px))
	next := 0
	var stack []int
	for i, v := range g.px {
		if v == 0 || ids[i] != 0 {
			continue
		}
		next++
		ids[i] = next
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, j := range g.neighbors(cur) {
				if ids[j] == 0 {
					ids[j] = next
					stack = append(stack, j)
				}
			}
		}
	}
	return ids
}
