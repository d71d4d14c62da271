// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pixel

import "strconv"

// Size 运动补偿块尺寸，顺序由大到小
type Size uint8

// 块尺寸
const (
	Size16x16 Size = iota
	Size16x8
	Size8x16
	Size8x8
	Size8x4
	Size4x8
	Size4x4
)

var sizes = [...]struct{ w, h int }{
	{16, 16}, {16, 8}, {8, 16}, {8, 8}, {8, 4}, {4, 8}, {4, 4},
}

// W 宽度
func (s Size) W() int { return sizes[s].w }

// H 高度
func (s Size) H() int { return sizes[s].h }

func (s Size) String() string {
	return strconv.Itoa(sizes[s].w) + "x" + strconv.Itoa(sizes[s].h)
}

// SizeOf 根据宽高返回尺寸
func SizeOf(w, h int) (Size, bool) {
	for i, d := range sizes {
		if d.w == w && d.h == h {
			return Size(i), true
		}
	}
	return 0, false
}
