// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import "github.com/cnotch/h264me/av/codec/h264/mv"

// subpelSearch 分像素细化状态
type subpelSearch struct {
	s          *Searcher
	b          *Block
	bmx, bmy   int
	bcost      int
	bdir, odir int
	refineQpel bool
	chroma     bool
}

// probe 以 mbcmp 评估 (mx, my)，色度只在亮度代价已低于当前最优时才计入
func (t *subpelSearch) probe(mx, my, dir int) {
	if !t.refineQpel && dir^1 == t.odir {
		return
	}
	cost := t.s.spelCmp(t.b, mx, my)
	if cost == costMax {
		return
	}
	if t.chroma && cost < t.bcost {
		cost += t.s.chromaCost(t.b, 0, mx, my)
		if cost < t.bcost {
			cost += t.s.chromaCost(t.b, 1, mx, my)
		}
	}
	if cost < t.bcost {
		t.bcost, t.bmx, t.bmy, t.bdir = cost, mx, my, dir
	}
}

// refineSubpel 先半像素后 1/4 像素的菱形细化
func (s *Searcher) refineSubpel(b *Block, hpelIters, qpelIters int, halfpelThresh *int, refineQpel bool) {
	spel := b.Limits.Spel
	t := &subpelSearch{
		s:          s,
		b:          b,
		bmx:        int(b.MV.X),
		bmy:        int(b.MV.Y),
		bcost:      b.Cost,
		bdir:       -1,
		odir:       -1,
		refineQpel: refineQpel,
		chroma:     s.chromaME(b),
	}

	if hpelIters > 0 {
		// 先试预测矢量自身的分像素位置
		if s.params.Subme < 3 {
			mx := mv.Clip3(int(b.MVP.X), spel.MinX+2, spel.MaxX-2)
			my := mv.Clip3(int(b.MVP.Y), spel.MinY+2, spel.MaxY-2)
			if mx != t.bmx || my != t.bmy {
				if c := s.spelFast(b, mx, my); c < t.bcost {
					t.bcost, t.bmx, t.bmy = c, mx, my
				}
			}
		}
		for i := hpelIters; i > 0; i-- {
			best := tagged{t.bcost, 0}
			for k, d := range dia1 {
				best = best.min(tagged{s.spelFast(b, t.bmx+2*d[0], t.bmy+2*d[1]), k + 1})
			}
			if best.tag == 0 {
				break
			}
			t.bmx += 2 * dia1[best.tag-1][0]
			t.bmy += 2 * dia1[best.tag-1][1]
			t.bcost = best.cost
		}
	}

	if !refineQpel && (s.satd != s.fpelSATD || t.chroma) {
		t.bcost = costMax
		t.probe(t.bmx, t.bmy, -1)
	}

	// 多参考帧提前终止
	if halfpelThresh != nil {
		if t.bcost*7>>3 > *halfpelThresh {
			s.HalfpelSkips++
			b.Cost = t.bcost
			b.MV.X, b.MV.Y = int16(t.bmx), int16(t.bmy)
			b.CostMV = bits(b, t.bmx, t.bmy)
			return
		} else if t.bcost < *halfpelThresh {
			*halfpelThresh = t.bcost
		}
	}

	if s.params.Subme != 1 {
		t.bdir = -1
		for i := qpelIters; i > 0; i-- {
			if !spel.Inside(t.bmx, t.bmy, 1) {
				break
			}
			t.odir = t.bdir
			omx, omy := t.bmx, t.bmy
			t.probe(omx, omy-1, 0)
			t.probe(omx, omy+1, 1)
			t.probe(omx-1, omy, 2)
			t.probe(omx+1, omy, 3)
			if t.bmx == omx && t.bmy == omy {
				break
			}
		}
	} else if spel.Inside(t.bmx, t.bmy, 1) {
		best := tagged{t.bcost, 0}
		for k, d := range dia1 {
			best = best.min(tagged{s.spelFast(b, t.bmx+d[0], t.bmy+d[1]), k + 1})
		}
		if best.tag > 0 {
			t.bmx += dia1[best.tag-1][0]
			t.bmy += dia1[best.tag-1][1]
		}
		t.bcost = best.cost
	}

	b.Cost = t.bcost
	b.MV.X, b.MV.Y = int16(t.bmx), int16(t.bmy)
	b.CostMV = bits(b, t.bmx, t.bmy)
}
