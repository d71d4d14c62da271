// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mv

// PredictDirect 推导 B 宏块的直接模式矢量并写入缓存。
// ok 为 false 表示直接模式不可用；changed 表示结果与上一次缓存的直接矢量不同。
func (c *Cache) PredictDirect() (ok, changed bool) {
	s := c.slice
	switch {
	case s == nil || s.Direct == DirectNone || len(s.Refs[1]) == 0:
		return false, false
	case s.Direct == DirectSpatial:
		ok = c.directSpatial(s.MBAFF)
	default:
		ok = c.directTemporal()
	}
	if !ok {
		return false, false
	}

	changed = c.directChanged()
	if changed {
		for l := 0; l < 2; l++ {
			for i := 0; i < 4; i++ {
				c.direct[l][i] = c.At(l, 2*(i&1), 2*(i>>1))
			}
		}
		c.directPartition = c.Partition
	}
	return true, changed
}

// DirectEntry 上一次直接模式推导的第 i8 个 8x8 块
func (c *Cache) DirectEntry(list, i8 int) Entry {
	return c.direct[list][i8]
}

// DirectPartition 上一次直接模式推导的划分
func (c *Cache) DirectPartition() Partition { return c.directPartition }

func (c *Cache) directChanged() bool {
	differ := func(i8 int) bool {
		x, y := 2*(i8&1), 2*(i8>>1)
		for l := 0; l < 2; l++ {
			d, e := c.direct[l][i8], c.At(l, x, y)
			if d.MV != e.MV || d.Ref != e.Ref {
				return true
			}
		}
		return false
	}
	if differ(0) {
		return true
	}
	if c.Partition != Part16x16 && differ(3) {
		return true
	}
	return c.Partition == Part8x8 && (differ(1) || differ(2))
}

// colocated 同位宏块信息
type colocated struct {
	f         *Field
	mbx, mby  int
	mbxy      int
	intra     [2]bool
	partition [2]Partition
	mismatch  bool
}

// locate 选择同位宏块，处理帧/场混合
func (c *Cache) locate(interlaced bool) (col colocated, preshift, postshift, offset, yshift int) {
	s := c.slice
	f := s.Refs[1][0]
	col.f = f
	col.mbx, col.mby = c.mbx, c.mby
	col.mbxy = f.index(c.mbx, c.mby)
	col.intra = [2]bool{f.Intra[col.mbxy], f.Intra[col.mbxy]}
	col.partition = [2]Partition{f.Partition[col.mbxy], f.Partition[col.mbxy]}
	c.Partition = col.partition[0]

	preshift, postshift, offset, yshift = b2i(c.Interlaced), b2i(c.Interlaced), 1, 1
	if !interlaced || f.FieldMB[col.mbxy] == c.Interlaced {
		return
	}

	col.mismatch = true
	if c.Interlaced {
		col.mby = c.mby &^ 1
		col.mbxy = f.index(col.mbx, col.mby)
		below := col.mbxy + f.MBWidth
		col.intra = [2]bool{f.Intra[col.mbxy], f.Intra[below]}
		col.partition = [2]Partition{f.Partition[col.mbxy], f.Partition[below]}
		preshift, yshift = 0, 0

		if (col.intra[0] || col.partition[0] == Part16x16) &&
			(col.intra[1] || col.partition[1] == Part16x16) &&
			col.partition[0] != Part8x8 {
			c.Partition = Part16x8
		} else {
			c.Partition = Part8x8
		}
	} else {
		cur := s.Cur.POC + s.Cur.DeltaPOC[b2i(c.Interlaced)&(c.mby&1)]
		parity := 0
		if abs(f.POC+f.DeltaPOC[0]-cur) >= abs(f.POC+f.DeltaPOC[1]-cur) {
			parity = 1
		}
		col.mby = (c.mby &^ 1) + parity
		col.mbxy = f.index(col.mbx, col.mby)
		col.intra = [2]bool{f.Intra[col.mbxy], f.Intra[col.mbxy]}
		col.partition = [2]Partition{f.Partition[col.mbxy], f.Partition[col.mbxy]}
		preshift, yshift = 1, 2
		c.Partition = col.partition[0]
	}
	offset = 0
	return
}

// ypart 同位 4x4 行偏移
func (c *Cache) ypart(col *colocated, y8 int) int {
	if col.mismatch {
		if c.Interlaced {
			return y8 * 6
		}
		return 2*(c.mby&1) + y8
	}
	return 3 * y8
}

// partitionGeometry 根据划分返回 8x8 遍历范围和写入尺寸
func partitionGeometry(p Partition) (max, step, width, height int) {
	d := int(Part16x16 - p)
	max = d + 1
	step = 1
	if p == Part16x8 {
		step = 2
	}
	width = 4 >> uint(d&1)
	height = 4 >> uint(d>>1)
	return
}

func (c *Cache) directTemporal() bool {
	s := c.slice
	col, preshift, postshift, offset, yshift := c.locate(s.MBAFF)
	f := col.f

	c.SetRef(1, 0, 0, 4, 4, 0)

	max, step, width, height := partitionGeometry(c.Partition)
	for i8 := 0; i8 < max; i8 += step {
		x8, y8 := i8&1, i8>>1
		yp := c.ypart(&col, y8)

		if col.intra[y8] {
			c.Set(0, 2*x8, 2*y8, width, height, 0, Zero)
			c.SetMV(1, 2*x8, 2*y8, width, height, Zero)
			continue
		}

		colRef := int(f.Ref[0][f.index8(2*col.mbx+x8, 2*col.mby+yp>>1)])
		m := s.mapColToList0(colRef >> uint(preshift))
		ref := m*(1<<uint(postshift)) + (offset & colRef & b2i(c.Interlaced))
		if m < 0 || ref < 0 {
			// 同位参考不在当前 list0 中
			return false
		}

		dsf := s.distScaleFactor(ref)
		mvCol := f.MV[0][f.index4(4*col.mbx+3*x8, 4*col.mby+yp)]
		mvY := int(mvCol.Y) * (1 << uint(yshift)) / 2
		l0x := (dsf*int(mvCol.X) + 128) >> 8
		l0y := (dsf*mvY + 128) >> 8
		if s.Threaded && (l0y > c.MaxSpelY || l0y-mvY > c.MaxSpelY) {
			return false
		}
		c.Set(0, 2*x8, 2*y8, width, height, ref, V(l0x, l0y))
		c.SetMV(1, 2*x8, 2*y8, width, height, V(l0x-int(mvCol.X), l0y-mvY))
	}
	return true
}

func (c *Cache) directSpatial(interlaced bool) bool {
	s := c.slice
	var ref [2]int
	var mvs [2]Vector
	for l := 0; l < 2; l++ {
		a, b, cc := c.neighbours16x16(l)

		// 无符号最小值：不可用与负参考排在最后
		r := -1
		for _, e := range [3]Entry{a, b, cc} {
			if e.Available && e.Ref >= 0 && (r < 0 || int(e.Ref) < r) {
				r = int(e.Ref)
			}
		}
		if r >= 0 {
			count := b2i(a.matches(r)) + b2i(b.matches(r)) + b2i(cc.matches(r))
			switch {
			case count > 1:
				mvs[l] = Median(a.MV, b.MV, cc.MV)
			case a.matches(r):
				mvs[l] = a.MV
			case b.matches(r):
				mvs[l] = b.MV
			default:
				mvs[l] = cc.MV
			}
		}
		c.Set(l, 0, 0, 4, 4, r, mvs[l])
		ref[l] = r
	}

	col, _, _, _, _ := c.locate(interlaced)
	f := col.f

	if ref[0] < 0 && ref[1] < 0 {
		c.SetRef(0, 0, 0, 4, 4, 0)
		c.SetRef(1, 0, 0, 4, 4, 0)
		return true
	}

	if s.Threaded && (int(mvs[0].Y) > c.MaxSpelY || int(mvs[1].Y) > c.MaxSpelY) {
		return false
	}

	if (mvs[0].IsZero() && mvs[1].IsZero()) ||
		(!interlaced && col.intra[0]) ||
		(ref[0] != 0 && ref[1] != 0) {
		return true
	}

	max, step, width, height := partitionGeometry(c.Partition)
	for i8 := 0; i8 < max; i8 += step {
		x8, y8 := i8&1, i8>>1
		if interlaced && col.intra[y8] {
			continue
		}
		yp := c.ypart(&col, y8)
		o8 := f.index8(2*col.mbx+x8, 2*col.mby+yp>>1)
		o4 := f.index4(4*col.mbx+3*x8, 4*col.mby+yp)

		var idx int
		switch {
		case f.Ref[0][o8] == 0:
			idx = 0
		case f.Ref[0][o8] < 0 && f.Ref[1][o8] == 0:
			idx = 1
		default:
			continue
		}

		v := f.MV[idx][o4]
		if abs(int(v.X)) <= 1 && abs(int(v.Y)) <= 1 {
			if ref[0] == 0 {
				c.SetMV(0, 2*x8, 2*y8, width, height, Zero)
			}
			if ref[1] == 0 {
				c.SetMV(1, 2*x8, 2*y8, width, height, Zero)
			}
		}
	}
	return true
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
