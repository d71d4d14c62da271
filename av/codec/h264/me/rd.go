// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import (
	mbits "math/bits"

	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
)

// Prediction 交给精确代价估计的预测块
type Prediction struct {
	Block  *Block // 提供位置、尺寸和原始像素
	Pixels []uint8
	Stride int
	MVD    []mv.Vector // 每个参考列表的矢量差
}

// ExactCoster 精确率失真代价估计
type ExactCoster interface {
	ExactCost(p *Prediction) uint64
}

// ExactCosterFunc 函数适配器
type ExactCosterFunc func(p *Prediction) uint64

// ExactCost .
func (f ExactCosterFunc) ExactCost(p *Prediction) uint64 { return f(p) }

// SSDCoster 以平方误差加 lambda2 加权的矢量差 Exp-Golomb 码长估计代价
type SSDCoster struct {
	Lambda2 int // 8 位定点
}

// ExactCost .
func (c SSDCoster) ExactCost(p *Prediction) uint64 {
	b := p.Block
	enc, es := fenc(b)
	ssd := pixel.SSD(enc, es, p.Pixels, p.Stride, b.Size.W(), b.Size.H())
	n := 0
	for _, d := range p.MVD {
		n += seBits(int(d.X)) + seBits(int(d.Y))
	}
	return uint64(ssd) + uint64((c.Lambda2*n+128)>>8)
}

// seBits 有符号 Exp-Golomb 码长
func seBits(v int) int {
	k := -2 * v
	if v > 0 {
		k = 2*v - 1
	}
	return 2*(mbits.Len(uint(k+1))-1) + 1
}

// RefineQpelRD 以精确代价在 1/4 像素邻域内做六边形加方形细化。
// 只有近似代价落在当前最优近似代价容差带内的候选才做精确评估。
func (s *Searcher) RefineQpelRD(b *Block, ec ExactCoster) {
	spel := b.Limits.Spel
	w, h := b.Size.W(), b.Size.H()
	enc, es := fenc(b)
	pred := &Prediction{Block: b, MVD: make([]mv.Vector, 1)}

	bmx, bmy := int(b.MV.X), int(b.MV.Y)
	pmx, pmy := int(b.MVP.X), int(b.MVP.Y)
	bsatd := costMax
	bcost := costMax64
	dir := -2
	var pix []uint8
	var stride int

	satd := func(mx, my int, avoid bool) int {
		if (avoid && mx == pmx && my == pmy) || !spel.Contains(mx, my) {
			return costMax
		}
		s.SubpelProbes++
		pix, stride = s.predict(b, mx, my)
		c := s.mbcmp(enc, es, pix, stride, w, h) + bits(b, mx, my)
		if c < bsatd {
			bsatd = c
		}
		return c
	}
	rd := func(mx, my, c int, doDir bool, mdir int) {
		if c > satdThresh(bsatd) {
			return
		}
		s.RDProbes++
		pred.Pixels, pred.Stride = pix, stride
		pred.MVD[0] = mv.V(mx-int(b.MVP.X), my-int(b.MVP.Y))
		if cost := ec.ExactCost(pred); cost < bcost {
			bcost, bmx, bmy = cost, mx, my
			if doDir {
				dir = mdir
			}
		}
	}

	rd(bmx, bmy, satd(bmx, bmy, false), false, 0)

	// 预测矢量
	if (bmx != pmx || bmy != pmy) && spel.Contains(pmx, pmy) {
		rd(pmx, pmy, satd(pmx, pmy, false), false, 0)
		// 六边形不会重复中心点，预测矢量胜出时改为避开原矢量
		if bmx == pmx && bmy == pmy {
			pmx, pmy = int(b.MV.X), int(b.MV.Y)
		}
	}

	if spel.Inside(bmx, bmy, 3) {
		omx, omy := bmx, bmy
		for j := 0; j < 6; j++ {
			mx, my := omx+hex2[j+1][0], omy+hex2[j+1][1]
			rd(mx, my, satd(mx, my, true), true, j)
		}
		if dir != -2 {
			for i := 1; i < 10; i++ {
				odir := mod6m1[dir+1]
				if bmy < spel.MinY+3 || bmy > spel.MaxY-3 {
					break
				}
				dir = -2
				omx, omy = bmx, bmy
				for j := 0; j < 3; j++ {
					mx, my := omx+hex2[odir+j][0], omy+hex2[odir+j][1]
					rd(mx, my, satd(mx, my, true), true, odir-1+j)
				}
				if dir == -2 {
					break
				}
			}
		}

		omx, omy = bmx, bmy
		for i := 1; i < 9; i++ {
			mx, my := omx+square1[i][0], omy+square1[i][1]
			rd(mx, my, satd(mx, my, true), false, 0)
		}
	}

	b.MV = mv.V(bmx, bmy)
	b.CostRD = bcost
	b.CostMV = bits(b, bmx, bmy)
	pix, stride = s.predict(b, bmx, bmy)
	b.Cost = s.mbcmp(enc, es, pix, stride, w, h) + b.CostMV
}
