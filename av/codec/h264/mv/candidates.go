// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mv

// MaxCandidates 候选矢量列表容量
const MaxCandidates = 16

// CandidateList 搜索起点候选矢量，定长存储
type CandidateList struct {
	mvs [MaxCandidates]Vector
	n   int
}

// Push 追加候选，容量已满时丢弃
func (l *CandidateList) Push(v Vector) {
	if l.n < MaxCandidates {
		l.mvs[l.n] = v
		l.n++
	}
}

// Len 候选数
func (l *CandidateList) Len() int { return l.n }

// Slice 返回候选切片
func (l *CandidateList) Slice() []Vector { return l.mvs[:l.n] }

// Reset 清空
func (l *CandidateList) Reset() { l.n = 0 }

// Candidates 为 16x16 搜索收集 list/ref 的候选起点：
// 直接块、低分辨率预分析、空间邻居，最后是时间邻居。
func (c *Cache) Candidates(list, ref int, out *CandidateList) {
	out.Reset()
	s := c.slice
	f := s.Cur
	mbxy := f.index(c.mbx, c.mby)

	// 右下 8x8 已使用同一参考
	if s.Type == SliceB {
		if e := c.At(list, 2, 2); e.matches(ref) {
			out.Push(e.MV)
		}
	}

	if ref == 0 && len(s.Refs[list]) > 0 {
		var idx int
		if list == 1 {
			idx = s.Refs[1][0].Frame - f.Frame - 1
		} else {
			idx = f.Frame - s.Refs[0][0].Frame - 1
		}
		if idx >= 0 && idx <= s.BFrames {
			if lowres := f.lowres(list, idx); lowres != nil {
				out.Push(lowres[mbxy].Scale(2))
			}
		}
	}

	neighbours := [4][2]int{
		{c.mbx - 1, c.mby},
		{c.mbx, c.mby - 1},
		{c.mbx - 1, c.mby - 1},
		{c.mbx + 1, c.mby - 1},
	}
	for _, n := range neighbours {
		avail := s.available(n[0], n[1])
		if s.MBAFF {
			if !avail {
				continue
			}
			xy := f.index(n[0], n[1])
			shift := uint(1 + b2i(c.Interlaced) - b2i(f.FieldMB[xy]))
			v := f.mvr(list, ref<<1>>shift, xy)
			out.Push(Vector{X: v.X, Y: int16(int(v.Y) * 2 >> shift)})
			continue
		}
		if avail {
			out.Push(f.mvr(list, ref, f.index(n[0], n[1])))
		} else {
			out.Push(Zero)
		}
	}

	if len(s.Refs[0]) == 0 || len(s.Refs[list]) == 0 {
		return
	}
	l0 := s.Refs[0][0]
	if l0.NumRefs[0] <= 0 {
		return
	}
	field := c.mby & 1
	cur := f.POC + f.DeltaPOC[field]
	rl := ref
	if s.MBAFF {
		rl >>= 1
	}
	if rl >= len(s.Refs[list]) {
		return
	}
	refpoc := s.Refs[list][rl].POC + l0.DeltaPOC[field^(ref&1)]
	scale := (cur - refpoc) * l0.InvRefPOC[b2i(c.Interlaced)&field]

	temporal := func(dx, dy int) {
		v := l0.MV16x16[mbxy+dx+dy*f.MBWidth]
		out.Push(Vector{
			X: clip16((int(v.X)*scale + 128) >> 8),
			Y: clip16((int(v.Y)*scale + 128) >> 8),
		})
	}
	temporal(0, 0)
	if c.mbx < f.MBWidth-1 {
		temporal(1, 0)
	}
	if c.mby < f.MBHeight-1 {
		temporal(0, 1)
	}
}
