// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import (
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
)

// 四维联合扰动：零扰动及至多两个分量上的 ±1
var dia4d = [33][4]int{
	{0, 0, 0, 0},
	{0, 0, 0, 1}, {0, 0, 0, -1}, {0, 0, 1, 0}, {0, 0, -1, 0},
	{0, 1, 0, 0}, {0, -1, 0, 0}, {1, 0, 0, 0}, {-1, 0, 0, 0},
	{0, 0, 1, 1}, {0, 0, -1, -1}, {0, 1, 1, 0}, {0, -1, -1, 0},
	{1, 1, 0, 0}, {-1, -1, 0, 0}, {1, 0, 0, 1}, {-1, 0, 0, -1},
	{0, 1, 0, 1}, {0, -1, 0, -1}, {1, 0, 1, 0}, {-1, 0, -1, 0},
	{0, 0, -1, 1}, {0, 0, 1, -1}, {0, -1, 1, 0}, {0, 1, -1, 0},
	{-1, 1, 0, 0}, {1, -1, 0, 0}, {1, 0, 0, -1}, {-1, 0, 0, 1},
	{0, -1, 0, 1}, {0, 1, 0, -1}, {-1, 0, 1, 0}, {1, 0, -1, 0},
}

// bidirMargin 联合搜索要求两个矢量距分像素框边界的最小距离
const bidirMargin = 8

// RefineBidir 联合细化 m0、m1 的矢量，使加权平均预测的近似代价最小。
// weight 为 list0 的权重（0..64，32 为等权）。返回最终近似代价；
// 任一矢量距裁剪框不足 8 个 1/4 像素时不做任何修改并返回 false。
func (s *Searcher) RefineBidir(m0, m1 *Block, weight int) (int, bool) {
	cost, _, ok := s.refineBidir(m0, m1, weight, nil)
	return cost, ok
}

// RefineBidirRD 同 RefineBidir，但容差带内的候选以 ec 的精确代价决定取舍，返回精确代价
func (s *Searcher) RefineBidirRD(m0, m1 *Block, weight int, ec ExactCoster) (uint64, bool) {
	_, rd, ok := s.refineBidir(m0, m1, weight, ec)
	return rd, ok
}

func (s *Searcher) refineBidir(m0, m1 *Block, weight int, ec ExactCoster) (int, uint64, bool) {
	spel := m0.Limits.Spel
	if !spel.Inside(int(m0.MV.X), int(m0.MV.Y), bidirMargin) ||
		!spel.Inside(int(m1.MV.X), int(m1.MV.Y), bidirMargin) {
		s.BidirSkipped++
		return costMax, costMax64, false
	}

	w, h := m0.Size.W(), m0.Size.H()
	enc, es := fenc(m0)
	blocks := [2]*Block{m0, m1}
	bm := [2][2]int{
		{int(m0.MV.X), int(m0.MV.Y)},
		{int(m1.MV.X), int(m1.MV.Y)},
	}
	var (
		src     [2][9][]uint8
		stride  [2][9]int
		visited [8][8][8]uint8 // 每个字节按 m1y 低 3 位记录
	)
	mc := [2]bool{true, true}
	bcost := costMax
	bcostrd := costMax64
	pred := &Prediction{Block: m0, Pixels: s.avg[:], Stride: 16, MVD: make([]mv.Vector, 2)}

	for pass := 0; pass < 8; pass++ {
		bestj := 0
		for l, b := range blocks {
			if !mc[l] {
				continue
			}
			for j := 0; j < 9; j++ {
				dx, dy := square1[j][0], square1[j][1]
				i := 4 + 3*dx + dy
				src[l][i], stride[l][i] = b.Ref.Get(s.bpix[l][i][:], 16, b.X, b.Y, bm[l][0]+dx, bm[l][1]+dy, w, h, nil)
			}
		}

		start := 0
		if pass > 0 {
			start = 1
		}
		for j := start; j < 33; j++ {
			d := dia4d[j]
			m0x, m0y := bm[0][0]+d[0], bm[0][1]+d[1]
			m1x, m1y := bm[1][0]+d[2], bm[1][1]+d[3]
			v := &visited[m0x&7][m0y&7][m1x&7]
			bit := uint8(1) << uint(m1y&7)
			if pass > 0 && *v&bit != 0 {
				continue
			}
			*v |= bit

			i0 := 4 + 3*d[0] + d[1]
			i1 := 4 + 3*d[2] + d[3]
			pixel.Avg(s.avg[:], 16, src[0][i0], stride[0][i0], src[1][i1], stride[1][i1], w, h, weight)
			s.BidirProbes++
			cost := s.mbcmp(enc, es, s.avg[:], 16, w, h) + bits(m0, m0x, m0y) + bits(m1, m1x, m1y)
			if ec == nil {
				if cost < bcost {
					bcost, bestj = cost, j
				}
				continue
			}
			if cost < satdThresh(bcost) {
				if cost < bcost {
					bcost = cost
				}
				pred.MVD[0] = mv.V(m0x-int(m0.MVP.X), m0y-int(m0.MVP.Y))
				pred.MVD[1] = mv.V(m1x-int(m1.MVP.X), m1y-int(m1.MVP.Y))
				s.RDProbes++
				if c := ec.ExactCost(pred); c < bcostrd {
					bcostrd, bestj = c, j
				}
			}
		}

		if bestj == 0 {
			break
		}
		d := dia4d[bestj]
		bm[0][0] += d[0]
		bm[0][1] += d[1]
		bm[1][0] += d[2]
		bm[1][1] += d[3]
		mc[0] = d[0] != 0 || d[1] != 0
		mc[1] = d[2] != 0 || d[3] != 0
	}

	for l, b := range blocks {
		b.MV = mv.V(bm[l][0], bm[l][1])
		b.CostMV = bits(b, bm[l][0], bm[l][1])
	}
	return bcost, bcostrd, true
}
