// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import (
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
)

var (
	// (x-1)%6
	mod6m1 = [8]int{5, 0, 1, 2, 3, 4, 5, 0}
	// 半径 2 的六边形，首尾重复以免取模
	hex2    = [8][2]int{{-1, -2}, {-2, 0}, {-1, 2}, {1, 2}, {2, 0}, {1, -2}, {-1, -2}, {-2, 0}}
	square1 = [9][2]int{{0, 0}, {0, -1}, {0, 1}, {-1, 0}, {1, 0}, {-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	// 上、下、左、右
	dia1 = [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}
	hex4 = [16][2]int{
		{0, -4}, {0, 4}, {-2, -3}, {2, -3},
		{-4, -2}, {4, -2}, {-4, -1}, {4, -1},
		{-4, 0}, {4, 0}, {-4, 1}, {4, 1},
		{-4, 2}, {4, 2}, {-2, 3}, {2, 3},
	}
	rangeMul = [4][4]int{
		{3, 3, 4, 4},
		{3, 4, 4, 4},
		{4, 4, 4, 5},
		{4, 4, 5, 6},
	}
	pixelSizeShift = [7]uint{0, 1, 1, 2, 3, 3, 4}
)

func fpel(v int) int { return (v + 2) >> 2 }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// fpelSearch 整像素搜索状态
type fpelSearch struct {
	s     *Searcher
	b     *Block
	bmx   int
	bmy   int
	bcost int
}

// cost 整像素点的 SAD 加码率
func (f *fpelSearch) cost(mx, my int) int {
	c := f.s.fpelCost(f.b, mx, my)
	if c == costMax {
		return c
	}
	return c + bits(f.b, mx<<2, my<<2)
}

// try 严格小于时替换当前最优
func (f *fpelSearch) try(mx, my int) {
	if c := f.cost(mx, my); c < f.bcost {
		f.bcost, f.bmx, f.bmy = c, mx, my
	}
}

func (f *fpelSearch) inside(mx, my int) bool {
	return f.b.Limits.Fpel.Contains(mx, my)
}

func (f *fpelSearch) sadThresh(v int) bool {
	return f.bcost < v>>pixelSizeShift[f.b.Size]
}

// SearchRef 在一个参考帧上搜索 b 的最佳矢量：候选起点、整像素搜索、分像素细化。
// mvc 为候选矢量（1/4 像素）。halfpelThresh 非空时用于多参考帧的提前终止，并被更新。
func (s *Searcher) SearchRef(b *Block, mvc []mv.Vector, halfpelThresh *int) {
	s.Searches++
	f := &fpelSearch{s: s, b: b, bcost: costMax}
	fbox := b.Limits.Fpel
	subme := s.params.Subme

	var (
		pmx, pmy  int
		pmv       mv.Vector // subme>=3 时为 1/4 像素，否则为整像素
		bpred     mv.Vector
		bpredCost = costMax
	)

	if subme >= 3 {
		bpred = mv.V(mv.Clip3(int(b.MVP.X), fbox.MinX<<2, fbox.MaxX<<2),
			mv.Clip3(int(b.MVP.Y), fbox.MinY<<2, fbox.MaxY<<2))
		pmv = bpred
		pmx, pmy = fpel(int(bpred.X)), fpel(int(bpred.Y))
		bpredCost = s.spelFast(b, int(bpred.X), int(bpred.Y))
		pmvCost := bpredCost

		if cands := predictorClip(mvc, fbox, pmv); len(cands) > 0 {
			best := tagged{bpredCost, 0}
			for i, c := range cands {
				best = best.min(tagged{s.spelFast(b, int(c.X), int(c.Y)), i + 1})
			}
			if best.tag > 0 {
				bpred = cands[best.tag-1]
			}
			bpredCost = best.cost
		}

		f.bmx, f.bmy = fpel(int(bpred.X)), fpel(int(bpred.Y))
		if bpred.X&3 != 0 || bpred.Y&3 != 0 {
			f.bcost = f.cost(f.bmx, f.bmy)
		} else {
			f.bcost = bpredCost
		}

		if !pmv.IsZero() {
			if f.bmx != 0 || f.bmy != 0 {
				f.try(0, 0)
			}
		} else if pmvCost < f.bcost {
			f.bcost, f.bmx, f.bmy = pmvCost, 0, 0
		}
	} else {
		pmx = mv.Clip3(fpel(int(b.MVP.X)), fbox.MinX, fbox.MaxX)
		pmy = mv.Clip3(fpel(int(b.MVP.Y)), fbox.MinY, fbox.MaxY)
		f.bmx, f.bmy = pmx, pmy
		pmv = mv.V(pmx, pmy)
		// 取整后的预测矢量不计码率
		f.bcost = s.fpelCost(b, pmx, pmy)

		if cands := predictorRoundClip(mvc, fbox, pmv); len(cands) > 0 {
			best := tagged{f.bcost, 0}
			for i, c := range cands {
				best = best.min(tagged{f.cost(int(c.X), int(c.Y)), i + 1})
			}
			if best.tag > 0 {
				f.bmx, f.bmy = int(cands[best.tag-1].X), int(cands[best.tag-1].Y)
			}
			f.bcost = best.cost
		}

		if !pmv.IsZero() {
			f.try(0, 0)
		}
	}

	switch s.params.Method {
	case MethodDia:
		f.dia(s.params.Range)
	case MethodHex:
		f.hex(s.params.Range)
	case MethodUMH:
		f.umh(pmx, pmy, mvc)
	case MethodESA:
		f.esa(false)
	case MethodTESA:
		f.esa(true)
	}

	bmv := mv.V(f.bmx<<2, f.bmy<<2)
	if subme < 3 {
		b.CostMV = bits(b, f.bmx<<2, f.bmy<<2)
		b.Cost = f.bcost
		if f.bmx == pmx && f.bmy == pmy {
			b.Cost += b.CostMV
		}
		b.MV = bmv
	} else if bpredCost < f.bcost {
		b.MV, b.Cost = bpred, bpredCost
		b.CostMV = bits(b, int(bpred.X), int(bpred.Y))
	} else {
		b.MV, b.Cost = bmv, f.bcost
		b.CostMV = bits(b, int(bmv.X), int(bmv.Y))
	}

	if subme >= 2 {
		it := subpelIterations[subme]
		s.refineSubpel(b, it[2], it[3], halfpelThresh, false)
	}
}

// RefineQpel 对最终选中的分区做分像素细化，8x8 及更大分区先扣除参考索引代价
func (s *Searcher) RefineQpel(b *Block) {
	it := subpelIterations[s.params.Subme]
	if b.Size <= pixel.Size8x8 {
		b.Cost -= b.RefCost
	}
	s.refineSubpel(b, it[0], it[1], nil, true)
}

// RefineQpelRefdupe 对与已搜索参考帧内容相同的参考帧，仅做少量 1/4 像素细化
func (s *Searcher) RefineQpelRefdupe(b *Block, halfpelThresh *int) {
	q := subpelIterations[s.params.Subme][3]
	if q > 2 {
		q = 2
	}
	s.refineSubpel(b, 0, q, halfpelThresh, false)
}

// predictorClip 去掉零矢量和与 pmv 相同的候选，并裁剪到整像素框对应的 1/4 像素范围
func predictorClip(mvc []mv.Vector, fbox Box, pmv mv.Vector) []mv.Vector {
	out := make([]mv.Vector, 0, len(mvc))
	qbox := Box{fbox.MinX << 2, fbox.MinY << 2, fbox.MaxX << 2, fbox.MaxY << 2}
	for _, c := range mvc {
		if c.IsZero() || c == pmv {
			continue
		}
		out = append(out, qbox.Clip(c))
	}
	return out
}

// predictorRoundClip 候选取整到整像素后去重并裁剪
func predictorRoundClip(mvc []mv.Vector, fbox Box, pmv mv.Vector) []mv.Vector {
	out := make([]mv.Vector, 0, len(mvc))
	for _, c := range mvc {
		r := mv.V(fpel(int(c.X)), fpel(int(c.Y)))
		if r.IsZero() || r == pmv {
			continue
		}
		out = append(out, fbox.Clip(r))
	}
	return out
}

// predictorDifference 相邻候选之差的绝对值和，衡量候选的一致程度
func predictorDifference(mvc []mv.Vector) int {
	sum := 0
	for i := 0; i+1 < len(mvc); i++ {
		sum += abs(int(mvc[i].X)-int(mvc[i+1].X)) + abs(int(mvc[i].Y)-int(mvc[i+1].Y))
	}
	return sum
}

// dia 半径 1 菱形搜索
func (f *fpelSearch) dia(rng int) {
	for i := rng; i > 0; i-- {
		best := tagged{f.bcost, 0}
		for k, d := range dia1 {
			best = best.min(tagged{f.cost(f.bmx+d[0], f.bmy+d[1]), k + 1})
		}
		if best.tag == 0 {
			break
		}
		f.bmx += dia1[best.tag-1][0]
		f.bmy += dia1[best.tag-1][1]
		f.bcost = best.cost
		if !f.inside(f.bmx, f.bmy) {
			break
		}
	}
}

// hex 半径 2 六边形搜索，沿改进方向只计算新露出的三个点，最后做一次方形细化
func (f *fpelSearch) hex(rng int) {
	best := tagged{f.bcost, 0}
	for j := 0; j < 6; j++ {
		best = best.min(tagged{f.cost(f.bmx+hex2[j+1][0], f.bmy+hex2[j+1][1]), j + 2})
	}
	if best.tag != 0 {
		dir := best.tag - 2
		f.bmx += hex2[dir+1][0]
		f.bmy += hex2[dir+1][1]
		f.bcost = best.cost
		for i := rng>>1 - 1; i > 0 && f.inside(f.bmx, f.bmy); i-- {
			best = tagged{f.bcost, 0}
			for j := 0; j < 3; j++ {
				best = best.min(tagged{f.cost(f.bmx+hex2[dir+j][0], f.bmy+hex2[dir+j][1]), j + 1})
			}
			if best.tag == 0 {
				break
			}
			dir += best.tag - 2
			dir = mod6m1[dir+1]
			f.bmx += hex2[dir+1][0]
			f.bmy += hex2[dir+1][1]
			f.bcost = best.cost
		}
	}

	best = tagged{f.bcost, 0}
	for j := 1; j < 9; j++ {
		best = best.min(tagged{f.cost(f.bmx+square1[j][0], f.bmy+square1[j][1]), j})
	}
	f.bmx += square1[best.tag][0]
	f.bmy += square1[best.tag][1]
	f.bcost = best.cost
}

// dia1Iter 以 (mx, my) 为中心探测四邻点
func (f *fpelSearch) dia1Iter(mx, my int) {
	for _, d := range dia1 {
		f.try(mx+d[0], my+d[1])
	}
}

// cross 以 (omx, omy) 为中心的非对称十字搜索
func (f *fpelSearch) cross(omx, omy, start, xMax, yMax int) {
	box := f.b.Limits.Fpel
	for i := start; i < xMax; i += 2 {
		if omx+i <= box.MaxX {
			f.try(omx+i, omy)
		}
		if omx-i >= box.MinX {
			f.try(omx-i, omy)
		}
	}
	for i := start; i < yMax; i += 2 {
		if omy+i <= box.MaxY {
			f.try(omx, omy+i)
		}
		if omy-i >= box.MinY {
			f.try(omx, omy-i)
		}
	}
}

// umh 非对称十字多层次六边形格点搜索
func (f *fpelSearch) umh(pmx, pmy int, mvc []mv.Vector) {
	b := f.b
	rng := f.s.params.Range
	crossStart := 1

	ucost1 := f.bcost
	f.dia1Iter(pmx, pmy)
	if pmx != 0 || pmy != 0 {
		f.dia1Iter(0, 0)
	}

	if b.Size == pixel.Size4x4 {
		f.hex(rng)
		return
	}

	ucost2 := f.bcost
	if (f.bmx != 0 || f.bmy != 0) && (f.bmx != pmx || f.bmy != pmy) {
		f.dia1Iter(f.bmx, f.bmy)
	}
	if f.bcost == ucost2 {
		crossStart = 3
	}
	omx, omy := f.bmx, f.bmy

	// 提前终止
	if f.bcost == ucost2 && f.sadThresh(2000) {
		for _, d := range [8][2]int{{0, -2}, {-1, -1}, {1, -1}, {-2, 0}, {2, 0}, {-1, 1}, {1, 1}, {0, 2}} {
			f.try(omx+d[0], omy+d[1])
		}
		if f.bcost == ucost1 && f.sadThresh(500) {
			f.s.EarlyExits++
			return
		}
		if f.bcost == ucost2 {
			r := (rng >> 1) | 1
			f.cross(omx, omy, 3, r, r)
			for _, d := range [8][2]int{{-1, -2}, {1, -2}, {-2, -1}, {2, -1}, {-2, 1}, {2, 1}, {-1, 2}, {1, 2}} {
				f.try(omx+d[0], omy+d[1])
			}
			if f.bcost == ucost2 {
				f.s.EarlyExits++
				return
			}
			crossStart = r + 2
		}
	}

	// 根据候选一致程度和当前代价调整搜索范围
	if n := len(mvc); n > 0 {
		var mvd int
		denom := 1
		if n == 1 {
			if b.Size == pixel.Size16x16 {
				mvd = 25
			} else {
				mvd = abs(int(b.MVP.X)-int(mvc[0].X)) + abs(int(b.MVP.Y)-int(mvc[0].Y))
			}
		} else {
			denom = n - 1
			if b.Size != pixel.Size16x16 {
				mvd = abs(int(b.MVP.X)-int(mvc[0].X)) + abs(int(b.MVP.Y)-int(mvc[0].Y))
				denom++
			}
			mvd += predictorDifference(mvc)
		}
		sadCtx := 3
		switch {
		case f.sadThresh(1000):
			sadCtx = 0
		case f.sadThresh(2000):
			sadCtx = 1
		case f.sadThresh(4000):
			sadCtx = 2
		}
		mvdCtx := 3
		switch {
		case mvd < 10*denom:
			mvdCtx = 0
		case mvd < 20*denom:
			mvdCtx = 1
		case mvd < 40*denom:
			mvdCtx = 2
		}
		rng = rng * rangeMul[mvdCtx][sadCtx] >> 2
	}

	// 中心仍为提前终止阶段的 (omx, omy)
	f.cross(omx, omy, crossStart, rng, rng>>1)
	for _, d := range [4][2]int{{-2, -2}, {-2, 2}, {2, -2}, {2, 2}} {
		f.try(omx+d[0], omy+d[1])
	}

	// 多层六边形格点
	omx, omy = f.bmx, f.bmy
	for i := 1; i == 1 || i <= rng>>2; i++ {
		for _, d := range hex4 {
			f.try(omx+d[0]*i, omy+d[1]*i)
		}
	}

	if f.inside(f.bmx, f.bmy) {
		f.hex(rng)
	}
}
