// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mv

// Entry 邻块缓存中的一个 4x4 单元
type Entry struct {
	Ref       int8
	MV        Vector
	Available bool
}

// Unavailable 不可用单元（图像外、片外或扫描顺序未到）
var Unavailable = Entry{Ref: -1}

func (e Entry) matches(ref int) bool {
	return e.Available && int(e.Ref) == ref
}

// Partition 宏块划分方式，顺序与直接模式推导相关
type Partition uint8

// 宏块划分
const (
	Part8x8 Partition = iota
	Part16x8
	Part8x16
	Part16x16
)

var partitionNames = [...]string{"8x8", "16x8", "8x16", "16x16"}

func (p Partition) String() string {
	if int(p) < len(partitionNames) {
		return partitionNames[p]
	}
	return "unknown"
}

// 缓存网格：列 -1..4，行 -1..3。第 4 列（当前宏块右侧）恒不可用。
const (
	gridW = 6
	gridH = 5
)

// blockXY 块索引 0..15 对应的 4x4 坐标（Z 字形扫描）
var blockXY = [16][2]int{
	{0, 0}, {1, 0}, {0, 1}, {1, 1},
	{2, 0}, {3, 0}, {2, 1}, {3, 1},
	{0, 2}, {1, 2}, {0, 3}, {1, 3},
	{2, 2}, {3, 2}, {2, 3}, {3, 3},
}

// BlockXY 返回 4x4 块索引对应的宏块内坐标
func BlockXY(idx int) (x, y int) {
	return blockXY[idx][0], blockXY[idx][1]
}

// Cache 当前宏块及其左、上邻居的参考索引与运动矢量
type Cache struct {
	grid [2][gridH][gridW]Entry

	// 帧场自适应时的虚拟右上块，分别用于块 2、8、10
	topright [2][3]Entry

	direct          [2][4]Entry
	directPartition Partition

	// Partition 当前宏块划分
	Partition Partition
	// Interlaced 当前宏块是否场编码
	Interlaced bool
	// LeftInterlaced 左邻宏块是否场编码
	LeftInterlaced bool
	// MaxSpelY 帧级并行时可安全读取的最大垂直矢量（1/4 像素）
	MaxSpelY int

	slice    *Slice
	mbx, mby int
}

// NewCache 创建邻块缓存
func NewCache() *Cache {
	c := &Cache{}
	c.reset()
	for l := 0; l < 2; l++ {
		for i := range c.direct[l] {
			c.direct[l][i] = Unavailable
		}
	}
	return c
}

func (c *Cache) reset() {
	for l := 0; l < 2; l++ {
		for y := 0; y < gridH; y++ {
			for x := 0; x < gridW; x++ {
				c.grid[l][y][x] = Unavailable
			}
		}
		for i := range c.topright[l] {
			c.topright[l][i] = Unavailable
		}
	}
	c.Partition = Part16x16
}

// At 读取单元，x 取 -1..4，y 取 -1..3
func (c *Cache) At(list, x, y int) Entry {
	return c.grid[list][y+1][x+1]
}

// Put 写入单个单元
func (c *Cache) Put(list, x, y int, e Entry) {
	c.grid[list][y+1][x+1] = e
}

// SetRef 在宏块内部 (x,y,w,h) 区域设置参考索引，单位 4x4
func (c *Cache) SetRef(list, x, y, w, h, ref int) {
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			e := &c.grid[list][j+1][i+1]
			e.Ref = int8(ref)
			e.Available = true
		}
	}
}

// SetMV 在宏块内部 (x,y,w,h) 区域设置运动矢量
func (c *Cache) SetMV(list, x, y, w, h int, v Vector) {
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			e := &c.grid[list][j+1][i+1]
			e.MV = v
			e.Available = true
		}
	}
}

// Set 同时设置参考索引和运动矢量
func (c *Cache) Set(list, x, y, w, h, ref int, v Vector) {
	c.SetRef(list, x, y, w, h, ref)
	c.SetMV(list, x, y, w, h, v)
}

// SetVirtualTopRight 设置帧场混合时块 2/8/10 使用的虚拟右上邻居
func (c *Cache) SetVirtualTopRight(list, i int, e Entry) {
	c.topright[list][i] = e
}

// MB 当前宏块坐标
func (c *Cache) MB() (x, y int) { return c.mbx, c.mby }

// Load 从图像运动场装载 (mbx, mby) 宏块的邻居
func (c *Cache) Load(s *Slice, mbx, mby int) {
	c.reset()
	c.slice = s
	c.mbx, c.mby = mbx, mby
	f := s.Cur

	c.Interlaced = f.FieldMB[f.index(mbx, mby)]
	c.LeftInterlaced = false
	left, top := s.available(mbx-1, mby), s.available(mbx, mby-1)
	if left {
		c.LeftInterlaced = f.FieldMB[f.index(mbx-1, mby)]
	}

	for l := 0; l < 2; l++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				c.Put(l, x, y, Entry{Ref: -1, Available: true})
			}
		}
		if top {
			for x := 0; x < 4; x++ {
				c.Put(l, x, -1, f.entry(l, 4*mbx+x, 4*mby-1))
			}
		}
		if left {
			for y := 0; y < 4; y++ {
				c.Put(l, -1, y, f.entry(l, 4*mbx-1, 4*mby+y))
			}
		}
		if s.available(mbx-1, mby-1) {
			c.Put(l, -1, -1, f.entry(l, 4*mbx-1, 4*mby-1))
		}
		if s.available(mbx+1, mby-1) {
			c.Put(l, 4, -1, f.entry(l, 4*mbx+4, 4*mby-1))
		}
	}
}

// Store 将当前宏块写回图像运动场
func (c *Cache) Store(intra bool) {
	f := c.slice.Cur
	mbxy := f.index(c.mbx, c.mby)
	f.Intra[mbxy] = intra
	f.Partition[mbxy] = c.Partition
	for l := 0; l < 2; l++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				e := c.At(l, x, y)
				if intra {
					e = Entry{Ref: -1}
				}
				f.MV[l][f.index4(4*c.mbx+x, 4*c.mby+y)] = e.MV
				if x&1 == 0 && y&1 == 0 {
					f.Ref[l][f.index8(2*c.mbx+x/2, 2*c.mby+y/2)] = e.Ref
				}
			}
		}
	}
}
