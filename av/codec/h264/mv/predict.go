// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mv

// PredictMV 计算块 idx（宽度 width，单位 4x4）使用参考 ref 时的预测矢量
func (c *Cache) PredictMV(list, idx, width, ref int) Vector {
	x, y := BlockXY(idx)
	a := c.At(list, x-1, y)
	b := c.At(list, x, y-1)
	cc := c.At(list, x+width, y-1)

	// 扫描顺序未到的右上块不可用
	if (idx&3) >= 2+(width&1) || !cc.Available {
		cc = c.At(list, x-1, y-1)

		if c.slice != nil && c.slice.MBAFF &&
			c.At(list, -1, 0).Available && c.Interlaced != c.LeftInterlaced {
			switch idx {
			case 2:
				cc = c.topright[list][0]
			case 8:
				cc = c.topright[list][1]
			case 10:
				cc = c.topright[list][2]
			}
		}
	}

	switch c.Partition {
	case Part16x8:
		if idx == 0 {
			if b.matches(ref) {
				return b.MV
			}
		} else if a.matches(ref) {
			return a.MV
		}
	case Part8x16:
		if idx == 0 {
			if a.matches(ref) {
				return a.MV
			}
		} else if cc.matches(ref) {
			return cc.MV
		}
	}

	return predict(a, b, cc, ref)
}

// PredictMV16x16 整个宏块的预测矢量
func (c *Cache) PredictMV16x16(list, ref int) Vector {
	a, b, cc := c.neighbours16x16(list)
	return predict(a, b, cc, ref)
}

// PredictMVPSkip P_Skip 宏块的矢量
func (c *Cache) PredictMVPSkip() Vector {
	a := c.At(0, -1, 0)
	b := c.At(0, 0, -1)
	if !a.Available || !b.Available ||
		(a.Ref == 0 && a.MV.IsZero()) ||
		(b.Ref == 0 && b.MV.IsZero()) {
		return Zero
	}
	return c.PredictMV16x16(0, 0)
}

func (c *Cache) neighbours16x16(list int) (a, b, cc Entry) {
	a = c.At(list, -1, 0)
	b = c.At(list, 0, -1)
	cc = c.At(list, 4, -1)
	if !cc.Available {
		cc = c.At(list, -1, -1)
	}
	return
}

func predict(a, b, c Entry, ref int) Vector {
	count := 0
	for _, e := range [3]Entry{a, b, c} {
		if e.matches(ref) {
			count++
		}
	}

	switch {
	case count > 1:
	case count == 1:
		if a.matches(ref) {
			return a.MV
		}
		if b.matches(ref) {
			return b.MV
		}
		return c.MV
	case !b.Available && !c.Available && a.Available:
		return a.MV
	}
	// 不可用单元的矢量为零，参与中值
	return Median(a.MV, b.MV, c.MV)
}
