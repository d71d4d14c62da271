// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mv

// LowresUnset 低分辨率预分析未计算的标记
const LowresUnset = 0x7fff

// MaxRefs 每个列表的最大参考数（含场参考）
const MaxRefs = 32

// Field 一幅图像的运动场，既用于当前编码图像，也作为后续图像的同位数据
type Field struct {
	MBWidth  int
	MBHeight int

	Intra     []bool
	Partition []Partition
	FieldMB   []bool

	// Ref 每个 8x8 块的参考索引，MV 每个 4x4 块的运动矢量
	Ref [2][]int8
	MV  [2][]Vector

	// MV16x16 每个宏块 list0 第一个参考的 16x16 最优矢量
	MV16x16 []Vector
	// MVR 每个参考的 16x16 最优矢量 [list][ref][mb]
	MVR [2][MaxRefs][]Vector

	// Frame 显示顺序帧号
	Frame int
	// POC 图像顺序计数，DeltaPOC 为顶/底场偏移
	POC      int
	DeltaPOC [2]int
	// NumRefs 编码本图像时各列表的参考数
	NumRefs [2]int
	// RefPOC 编码本图像时 list 中各参考的 POC
	RefPOC [2][]int
	// InvRefPOC 与 list0 首个参考距离的倒数（定点 8 位）
	InvRefPOC [2]int

	// Lowres 低分辨率预分析矢量 [list][距离-1][mb]
	Lowres [2][][]Vector
}

// NewField 创建运动场，所有块初始化为帧内
func NewField(mbWidth, mbHeight int) *Field {
	n := mbWidth * mbHeight
	f := &Field{
		MBWidth:   mbWidth,
		MBHeight:  mbHeight,
		Intra:     make([]bool, n),
		Partition: make([]Partition, n),
		FieldMB:   make([]bool, n),
		MV16x16:   make([]Vector, n),
	}
	for l := 0; l < 2; l++ {
		f.Ref[l] = make([]int8, 4*n)
		f.MV[l] = make([]Vector, 16*n)
	}
	f.Reset()
	return f
}

// Reset 清空运动数据以便复用
func (f *Field) Reset() {
	for i := range f.Intra {
		f.Intra[i] = true
		f.Partition[i] = Part16x16
		f.FieldMB[i] = false
		f.MV16x16[i] = Zero
	}
	for l := 0; l < 2; l++ {
		for i := range f.Ref[l] {
			f.Ref[l][i] = -1
		}
		for i := range f.MV[l] {
			f.MV[l][i] = Zero
		}
		f.Lowres[l] = nil
		f.RefPOC[l] = f.RefPOC[l][:0]
		f.NumRefs[l] = 0
		f.InvRefPOC[l] = 0
	}
}

// MBCount 宏块数
func (f *Field) MBCount() int { return f.MBWidth * f.MBHeight }

func (f *Field) index(mbx, mby int) int   { return mby*f.MBWidth + mbx }
func (f *Field) index8(x8, y8 int) int    { return y8*2*f.MBWidth + x8 }
func (f *Field) index4(x4, y4 int) int    { return y4*4*f.MBWidth + x4 }
func (f *Field) contains(mbx, mby int) bool {
	return mbx >= 0 && mby >= 0 && mbx < f.MBWidth && mby < f.MBHeight
}

func (f *Field) entry(list, x4, y4 int) Entry {
	return Entry{
		Ref:       f.Ref[list][f.index8(x4>>1, y4>>1)],
		MV:        f.MV[list][f.index4(x4, y4)],
		Available: true,
	}
}

// Block4x4 返回 4x4 块的参考与矢量，坐标以 4x4 为单位
func (f *Field) Block4x4(list, x4, y4 int) (ref int, v Vector) {
	e := f.entry(list, x4, y4)
	return int(e.Ref), e.MV
}

// PrepareMVR 预先分配 list 前 n 个参考的 16x16 矢量存储，并发写入前必须调用
func (f *Field) PrepareMVR(list, n int) {
	for r := 0; r < n && r < MaxRefs; r++ {
		if f.MVR[list][r] == nil {
			f.MVR[list][r] = make([]Vector, f.MBCount())
		} else {
			for i := range f.MVR[list][r] {
				f.MVR[list][r][i] = Zero
			}
		}
	}
}

// SetMVR 记录宏块对某个参考的 16x16 最优矢量
func (f *Field) SetMVR(list, ref, mbx, mby int, v Vector) {
	if f.MVR[list][ref] == nil {
		f.MVR[list][ref] = make([]Vector, f.MBCount())
	}
	f.MVR[list][ref][f.index(mbx, mby)] = v
}

func (f *Field) mvr(list, ref, mbxy int) Vector {
	if ref < 0 || ref >= MaxRefs || f.MVR[list][ref] == nil {
		return Zero
	}
	return f.MVR[list][ref][mbxy]
}

// SetMV16x16 记录宏块 list0 首个参考的 16x16 矢量
func (f *Field) SetMV16x16(mbx, mby int, v Vector) {
	f.MV16x16[f.index(mbx, mby)] = v
}

// SetLowres 设置低分辨率矢量，vs 为 nil 时写入未计算标记
func (f *Field) SetLowres(list, dist int, vs []Vector) {
	for len(f.Lowres[list]) <= dist {
		f.Lowres[list] = append(f.Lowres[list], []Vector{{X: LowresUnset}})
	}
	if vs == nil {
		vs = []Vector{{X: LowresUnset}}
	}
	f.Lowres[list][dist] = vs
}

func (f *Field) lowres(list, dist int) []Vector {
	if dist < 0 || dist >= len(f.Lowres[list]) {
		return nil
	}
	vs := f.Lowres[list][dist]
	if len(vs) == 0 || vs[0].X == LowresUnset {
		return nil
	}
	return vs
}
