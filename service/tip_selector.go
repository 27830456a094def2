package service

import (
	"fmt"
	"math"

	"github.com/TIANLI0/TipGuide/model"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Tip 单个骨架子图选出的根尖
type Tip struct {
	SkeletonID int
	NodeID     int64
	Pixel      model.PixelPoint
	// PrimaryNodes 分支图最大连通分量的节点数（主根）
	PrimaryNodes int
	// PrimaryLength 最大连通分量内分支路径长度之和（像素）
	PrimaryLength float64
	// Nodes 分支图节点总数
	Nodes int
}

// TipSelector 为每个骨架子图选出一个根尖像素
type TipSelector struct{}

func NewTipSelector() *TipSelector {
	return &TipSelector{}
}

// Select 以分支端点为节点、路径长度为权重建立无向图，取目标节点ID最大的分支终点作为根尖
func (ts *TipSelector) Select(skeletonID int, branches []Branch) (Tip, error) {
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, b := range branches {
		if b.SkeletonID != skeletonID {
			continue
		}
		addNode(g, b.Src)
		addNode(g, b.Dst)
		if b.Src != b.Dst {
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(b.Src), simple.Node(b.Dst), b.Distance))
		}
	}

	nodes := g.Nodes().Len()
	if nodes == 0 {
		return Tip{}, fmt.Errorf("skeleton %d: %w", skeletonID, ErrNoTipFound)
	}

	primary, length := primaryComponent(g)

	var best *Branch
	for i := range branches {
		b := &branches[i]
		if b.SkeletonID != skeletonID {
			continue
		}
		if best == nil || b.Dst > best.Dst {
			best = b
		}
	}

	return Tip{
		SkeletonID:    skeletonID,
		NodeID:        best.Dst,
		Pixel:         best.DstPixel,
		PrimaryNodes:  primary,
		PrimaryLength: length,
		Nodes:         nodes,
	}, nil
}

// primaryComponent 节点最多的连通分量，节点数相同时取总长度更长的
func primaryComponent(g *simple.WeightedUndirectedGraph) (int, float64) {
	bestNodes, bestLength := 0, 0.0
	for _, cc := range topo.ConnectedComponents(g) {
		members := make(map[int64]bool, len(cc))
		for _, n := range cc {
			members[n.ID()] = true
		}

		length := 0.0
		edges := g.WeightedEdges()
		for edges.Next() {
			e := edges.WeightedEdge()
			if members[e.From().ID()] {
				length += e.Weight()
			}
		}

		if len(cc) > bestNodes || (len(cc) == bestNodes && length > bestLength) {
			bestNodes, bestLength = len(cc), length
		}
	}
	return bestNodes, bestLength
}

func addNode(g *simple.WeightedUndirectedGraph, id int64) {
	if g.Node(id) == nil {
		g.AddNode(simple.Node(id))
	}
}
