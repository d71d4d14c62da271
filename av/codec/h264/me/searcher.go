// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import (
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
	"github.com/pkg/errors"
)

// MaxSubme 最大分像素细化等级
const MaxSubme = 11

// subpelIterations[subme] = {refine_hpel, refine_qpel, me_hpel, me_qpel}
var subpelIterations = [MaxSubme + 1][4]int{
	{0, 0, 0, 0},
	{1, 1, 0, 0},
	{0, 1, 1, 0},
	{0, 2, 1, 0},
	{0, 2, 1, 1},
	{0, 2, 1, 2},
	{0, 0, 2, 2},
	{0, 0, 2, 2},
	{0, 0, 4, 10},
	{0, 0, 4, 10},
	{0, 0, 4, 10},
	{0, 0, 4, 10},
}

// Params 搜索参数
type Params struct {
	Method   Method
	Range    int  // 整像素搜索范围
	Subme    int  // 分像素细化等级 0..11
	ChromaME bool // 分像素阶段计入色度代价
}

// Validate 检查参数
func (p Params) Validate() error {
	if p.Method < MethodDia || p.Method > MethodTESA {
		return errors.Errorf("invalid motion search method %d", int(p.Method))
	}
	if p.Range < 4 || p.Range > 1024 {
		return errors.Errorf("motion search range %d out of [4,1024]", p.Range)
	}
	if p.Subme < 0 || p.Subme > MaxSubme {
		return errors.Errorf("subme %d out of [0,%d]", p.Subme, MaxSubme)
	}
	return nil
}

// Block 一次运动搜索的输入输出
type Block struct {
	Size pixel.Size
	X, Y int // 块在图像中的亮度坐标

	Src          *pixel.Plane // 待编码图像
	SrcU, SrcV   *pixel.Plane // 色度，可为空
	Ref          *pixel.Ref
	Weight       *pixel.Weight
	ChromaWeight [2]*pixel.Weight

	Costs    *CostTable
	Limits   Limits
	MVP      mv.Vector // 码率原点
	RefIndex int
	RefCost  int // 参考索引的码率代价

	// 输出
	MV     mv.Vector // 1/4 像素
	Cost   int       // 失真加矢量码率
	CostMV int       // 矢量码率
	CostRD uint64    // 精确率失真代价
}

// Counters 搜索统计
type Counters struct {
	Searches     int64
	FpelProbes   int64
	SubpelProbes int64
	ChromaProbes int64
	BidirProbes  int64
	RDProbes     int64
	EarlyExits   int64
	HalfpelSkips int64
	BidirSkipped int64
}

// Add 累加
func (c *Counters) Add(o *Counters) {
	c.Searches += o.Searches
	c.FpelProbes += o.FpelProbes
	c.SubpelProbes += o.SubpelProbes
	c.ChromaProbes += o.ChromaProbes
	c.BidirProbes += o.BidirProbes
	c.RDProbes += o.RDProbes
	c.EarlyExits += o.EarlyExits
	c.HalfpelSkips += o.HalfpelSkips
	c.BidirSkipped += o.BidirSkipped
}

// Searcher 运动搜索器，持有临时缓冲区，不能并发使用
type Searcher struct {
	Counters

	params   Params
	mbcmp    pixel.CompareFunc
	fpelcmp  pixel.CompareFunc // 整像素及快速分像素阶段
	satd     bool
	fpelSATD bool

	pix   [16 * 16]uint8
	cpix  [2][8 * 8]uint8
	bpix  [2][9][16 * 16]uint8
	avg   [16 * 16]uint8
	mvsad []mvsad
}

// NewSearcher 创建搜索器
func NewSearcher(p Params) (*Searcher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Searcher{params: p, mbcmp: pixel.SAD, fpelcmp: pixel.SAD}
	if p.Subme > 1 {
		s.mbcmp = pixel.SATD
		s.satd = true
		// tesa 的整像素阶段与 mbcmp 一致
		if p.Method == MethodTESA {
			s.fpelcmp = pixel.SATD
			s.fpelSATD = true
		}
	}
	return s, nil
}

// Params .
func (s *Searcher) Params() Params { return s.params }

// MBCmp 分像素阶段使用的代价函数
func (s *Searcher) MBCmp() pixel.CompareFunc { return s.mbcmp }

func fenc(b *Block) ([]uint8, int) {
	return b.Src.Data[b.Src.Offset(b.X, b.Y):], b.Src.Stride
}

// bits 1/4 像素矢量 (mx, my) 相对预测矢量的码率
func bits(b *Block, mx, my int) int {
	return b.Costs.MV(mx-int(b.MVP.X)) + b.Costs.MV(my-int(b.MVP.Y))
}

// predict 取 1/4 像素矢量 (mx, my) 的亮度预测
func (s *Searcher) predict(b *Block, mx, my int) ([]uint8, int) {
	return b.Ref.Get(s.pix[:], 16, b.X, b.Y, mx, my, b.Size.W(), b.Size.H(), b.Weight)
}

// fpelCost 整像素 fpelcmp 代价，不含码率；越出整像素框时返回 costMax
func (s *Searcher) fpelCost(b *Block, mx, my int) int {
	return s.fpelWith(s.fpelcmp, b, mx, my)
}

// fpelSAD 整像素 SAD，tesa 建候选池用
func (s *Searcher) fpelSAD(b *Block, mx, my int) int {
	return s.fpelWith(pixel.SAD, b, mx, my)
}

func (s *Searcher) fpelWith(cmp pixel.CompareFunc, b *Block, mx, my int) int {
	if !b.Limits.Fpel.Contains(mx, my) {
		return costMax
	}
	s.FpelProbes++
	enc, es := fenc(b)
	ref, rs := s.predict(b, mx<<2, my<<2)
	return cmp(enc, es, ref, rs, b.Size.W(), b.Size.H())
}

// spelFast 分像素 fpelcmp 加码率；越出分像素框时返回 costMax
func (s *Searcher) spelFast(b *Block, mx, my int) int {
	if !b.Limits.Spel.Contains(mx, my) {
		return costMax
	}
	s.SubpelProbes++
	enc, es := fenc(b)
	ref, rs := s.predict(b, mx, my)
	return s.fpelcmp(enc, es, ref, rs, b.Size.W(), b.Size.H()) + bits(b, mx, my)
}

// spelCmp 分像素 mbcmp 加码率，不含色度
func (s *Searcher) spelCmp(b *Block, mx, my int) int {
	if !b.Limits.Spel.Contains(mx, my) {
		return costMax
	}
	s.SubpelProbes++
	enc, es := fenc(b)
	ref, rs := s.predict(b, mx, my)
	return s.mbcmp(enc, es, ref, rs, b.Size.W(), b.Size.H()) + bits(b, mx, my)
}

// chromaCost 单个色度平面的 mbcmp
func (s *Searcher) chromaCost(b *Block, plane, mx, my int) int {
	s.ChromaProbes++
	src := b.SrcU
	if plane == 1 {
		src = b.SrcV
	}
	w, h := b.Size.W()>>1, b.Size.H()>>1
	cx, cy := b.X>>1, b.Y>>1
	b.Ref.GetChroma(plane, s.cpix[plane][:], 8, cx, cy, mx, my, w, h, b.ChromaWeight[plane])
	return s.mbcmp(src.Data[src.Offset(cx, cy):], src.Stride, s.cpix[plane][:], 8, w, h)
}

func (s *Searcher) chromaME(b *Block) bool {
	return s.params.ChromaME && b.Size <= pixel.Size8x8 &&
		b.SrcU != nil && b.SrcV != nil && b.Ref.Chroma[0] != nil && b.Ref.Chroma[1] != nil
}

// Cost 计算 b.MV 处的 mbcmp 加矢量码率，启用色度时包含色度代价，不修改 b
func (s *Searcher) Cost(b *Block) int {
	mx, my := int(b.MV.X), int(b.MV.Y)
	cost := s.spelCmp(b, mx, my)
	if cost < costMax && s.chromaME(b) {
		cost += s.chromaCost(b, 0, mx, my) + s.chromaCost(b, 1, mx, my)
	}
	return cost
}

// tagged 带方向标记的代价，代价相同时标记小者优先
type tagged struct {
	cost int
	tag  int
}

func (t tagged) less(o tagged) bool {
	return t.cost < o.cost || (t.cost == o.cost && t.tag < o.tag)
}

func (t tagged) min(o tagged) tagged {
	if o.less(t) {
		return o
	}
	return t
}
