// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import "github.com/cnotch/h264me/av/codec/h264/pixel"

type mvsad struct {
	sad    int
	mx, my int
}

// adsLayout 描述差值下界使用的子块：子块尺寸及参与比较的子块偏移
type adsLayout struct {
	size    int
	offsets [][2]int
}

func layoutOf(size pixel.Size) adsLayout {
	d := 8
	if size > pixel.Size8x8 {
		d = 4
	}
	l := adsLayout{size: d}
	switch size {
	case pixel.Size16x16:
		l.offsets = [][2]int{{0, 0}, {d, 0}, {0, d}, {d, d}}
	case pixel.Size16x8, pixel.Size8x4:
		l.offsets = [][2]int{{0, 0}, {d, 0}}
	case pixel.Size8x16, pixel.Size4x8:
		l.offsets = [][2]int{{0, 0}, {0, d}}
	default:
		l.offsets = [][2]int{{0, 0}}
	}
	return l
}

// encDC 待编码块各子块的像素和
func (l adsLayout) encDC(b *Block) []int {
	enc, es := fenc(b)
	dc := make([]int, len(l.offsets))
	for i, o := range l.offsets {
		dc[i] = pixel.Sum(enc[o[1]*es+o[0]:], es, l.size, l.size)
	}
	return dc
}

// ads 绝对差之和的下界：|sum(a)-sum(b)| <= sum|a-b|
func (l adsLayout) ads(b *Block, dc []int, mx, my int) int {
	sum := 0
	for i, o := range l.offsets {
		d := dc[i] - b.Ref.BlockSum(b.X+mx+o[0], b.Y+my+o[1], l.size)
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

// esa 窗口内穷举搜索，先用直流差下界淘汰；tesa 额外维护候选池并剪枝
func (f *fpelSearch) esa(tesa bool) {
	b := f.b
	rng := f.s.params.Range
	box := b.Limits.Fpel
	minX, minY := maxInt(f.bmx-rng, box.MinX), maxInt(f.bmy-rng, box.MinY)
	maxX, maxY := minInt(f.bmx+rng, box.MaxX), minInt(f.bmy+rng, box.MaxY)

	layout := layoutOf(b.Size)
	dc := layout.encDC(b)
	xcost := func(mx int) int { return b.Costs.MV(mx<<2 - int(b.MVP.X)) }
	ycost := func(my int) int { return b.Costs.MV(my<<2 - int(b.MVP.Y)) }

	if !tesa {
		for my := minY; my <= maxY; my++ {
			yc := ycost(my)
			if f.bcost <= yc {
				continue
			}
			for mx := minX; mx <= maxX; mx++ {
				if layout.ads(b, dc, mx, my)+xcost(mx) < f.bcost-yc {
					f.try(mx, my)
				}
			}
		}
		return
	}

	sadThresh := 12
	if rng <= 16 {
		sadThresh = 10
	} else if rng <= 24 {
		sadThresh = 11
	}
	pool := f.s.mvsad[:0]
	bsad := f.cost(f.bmx, f.bmy)
	for my := minY; my <= maxY; my++ {
		yc := ycost(my)
		if bsad <= yc {
			continue
		}
		bsad -= yc
		thresh := bsad * 17 >> 4
		for mx := minX; mx <= maxX; mx++ {
			if layout.ads(b, dc, mx, my)+xcost(mx) >= thresh {
				continue
			}
			sad := f.s.fpelSAD(b, mx, my) + xcost(mx)
			if sad < bsad*sadThresh>>3 {
				if sad < bsad {
					bsad = sad
				}
				pool = append(pool, mvsad{sad: sad + yc, mx: mx, my: my})
			}
		}
		bsad += yc
	}

	pool = prunePool(pool, bsad, sadThresh, rng>>1)
	for _, e := range pool {
		f.try(e.mx, e.my)
	}
	f.s.mvsad = pool[:0]
}

// prunePool 候选过多时收紧阈值，再逐个剔除最差者，最多保留 limit 个
func prunePool(pool []mvsad, bsad, sadThresh, limit int) []mvsad {
	thresh := bsad * sadThresh >> 3
	for len(pool) > limit*2 && thresh > bsad {
		thresh = (thresh + bsad) >> 1
		n := 0
		for _, e := range pool {
			if e.sad <= thresh {
				pool[n] = e
				n++
			}
		}
		pool = pool[:n]
	}
	for len(pool) > limit {
		bi := 0
		for i := 1; i < len(pool); i++ {
			if pool[i].sad > pool[bi].sad {
				bi = i
			}
		}
		pool[bi] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return pool
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
