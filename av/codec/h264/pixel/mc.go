// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pixel

import "sync"

// 半像素平面下标
const (
	PlaneFull = iota
	PlaneH
	PlaneV
	PlaneC
)

// ChromaPad 色度平面填充
const ChromaPad = Pad / 2

// 1/4 像素位置由两个半像素平面平均得到
var (
	hpelRef0 = [16]int{0, 1, 1, 1, 0, 1, 1, 1, 2, 3, 3, 3, 0, 1, 1, 1}
	hpelRef1 = [16]int{0, 0, 1, 0, 2, 2, 3, 2, 2, 2, 3, 2, 2, 2, 3, 2}
)

// Weight 显式加权预测参数
type Weight struct {
	Scale  int
	Denom  int
	Offset int
}

// Identity 判断是否为恒等加权
func (w *Weight) Identity() bool {
	return w == nil || (w.Scale == 1<<uint(w.Denom) && w.Offset == 0)
}

// Apply 将加权结果写入 dst
func (w *Weight) Apply(dst []uint8, dstStride int, src []uint8, srcStride int, bw, bh int) {
	round := 0
	if w.Denom > 0 {
		round = 1 << uint(w.Denom-1)
	}
	for y := 0; y < bh; y++ {
		d, s := dst[y*dstStride:y*dstStride+bw], src[y*srcStride:y*srcStride+bw]
		for x, v := range s {
			d[x] = clip8(((int(v)*w.Scale + round) >> uint(w.Denom)) + w.Offset)
		}
	}
}

// Ref 参考帧：整像素及三个半像素亮度平面、色度平面，以及 ESA 用的块和
type Ref struct {
	Planes [4]*Plane
	Chroma [2]*Plane

	once     sync.Once
	integral []int32
	iStride  int
}

// NewRef 由已填充的整像素平面生成参考帧，插值半像素平面
func NewRef(full *Plane, u, v *Plane) *Ref {
	r := &Ref{Chroma: [2]*Plane{u, v}}
	r.Planes[PlaneFull] = full
	r.Planes[PlaneH] = NewPlane(full.Width, full.Height, full.Pad)
	r.Planes[PlaneV] = NewPlane(full.Width, full.Height, full.Pad)
	r.Planes[PlaneC] = NewPlane(full.Width, full.Height, full.Pad)
	r.interpolate()
	return r
}

// Width .
func (r *Ref) Width() int { return r.Planes[PlaneFull].Width }

// Height .
func (r *Ref) Height() int { return r.Planes[PlaneFull].Height }

func tap6(a, b, c, d, e, f int) int {
	return a + f - 5*(b+e) + 20*(c+d)
}

func (r *Ref) interpolate() {
	src := r.Planes[PlaneFull]
	pad := src.Pad
	at := func(x, y int) int {
		if x < -pad {
			x = -pad
		} else if x >= src.Width+pad {
			x = src.Width + pad - 1
		}
		if y < -pad {
			y = -pad
		} else if y >= src.Height+pad {
			y = src.Height + pad - 1
		}
		return int(src.Data[src.Offset(x, y)])
	}

	h, v, c := r.Planes[PlaneH], r.Planes[PlaneV], r.Planes[PlaneC]
	width := src.Width + 2*pad
	mid := make([]int, width+5)
	for y := -pad; y < src.Height+pad; y++ {
		// 垂直滤波的中间结果，供中心半像素二次滤波
		for i := range mid {
			x := i - pad - 2
			mid[i] = tap6(at(x, y-2), at(x, y-1), at(x, y), at(x, y+1), at(x, y+2), at(x, y+3))
		}
		for x := -pad; x < src.Width+pad; x++ {
			off := src.Offset(x, y)
			h.Data[off] = clip8((tap6(at(x-2, y), at(x-1, y), at(x, y), at(x+1, y), at(x+2, y), at(x+3, y)) + 16) >> 5)
			i := x + pad + 2
			v.Data[off] = clip8((mid[i] + 16) >> 5)
			c.Data[off] = clip8((tap6(mid[i-2], mid[i-1], mid[i], mid[i+1], mid[i+2], mid[i+3]) + 512) >> 10)
		}
	}
}

// Get 取位于 (x, y) 的块按 1/4 像素运动矢量 (mvx, mvy) 的预测。
// 无需平均且无加权时直接返回参考平面切片，否则写入 dst。
func (r *Ref) Get(dst []uint8, dstStride int, x, y, mvx, mvy, w, h int, wt *Weight) ([]uint8, int) {
	qidx := ((mvy & 3) << 2) + (mvx & 3)
	x += mvx >> 2
	y += mvy >> 2

	p1 := r.Planes[hpelRef0[qidx]]
	y1 := y
	if mvy&3 == 3 {
		y1++
	}
	src1 := p1.Data[p1.Offset(x, y1):]

	if qidx&5 != 0 {
		p2 := r.Planes[hpelRef1[qidx]]
		x2 := x
		if mvx&3 == 3 {
			x2++
		}
		src2 := p2.Data[p2.Offset(x2, y):]
		Avg(dst, dstStride, src1, p1.Stride, src2, p2.Stride, w, h, 32)
		if !wt.Identity() {
			wt.Apply(dst, dstStride, dst, dstStride, w, h)
		}
		return dst, dstStride
	}
	if !wt.Identity() {
		wt.Apply(dst, dstStride, src1, p1.Stride, w, h)
		return dst, dstStride
	}
	return src1, p1.Stride
}

// GetChroma 色度 1/8 像素双线性插值，x、y 为色度整像素坐标，mv 沿用亮度 1/4 像素单位
func (r *Ref) GetChroma(plane int, dst []uint8, dstStride int, x, y, mvx, mvy, w, h int, wt *Weight) {
	MCChroma(dst, dstStride, r.Chroma[plane], x, y, mvx, mvy, w, h)
	if !wt.Identity() {
		wt.Apply(dst, dstStride, dst, dstStride, w, h)
	}
}

// MCChroma .
func MCChroma(dst []uint8, dstStride int, src *Plane, x, y, mvx, mvy, w, h int) {
	dx, dy := mvx&7, mvy&7
	cA := (8 - dx) * (8 - dy)
	cB := dx * (8 - dy)
	cC := (8 - dx) * dy
	cD := dx * dy
	s := src.Data[src.Offset(x+(mvx>>3), y+(mvy>>3)):]
	stride := src.Stride
	for j := 0; j < h; j++ {
		r0, r1 := s[j*stride:], s[(j+1)*stride:]
		d := dst[j*dstStride:]
		for i := 0; i < w; i++ {
			d[i] = uint8((cA*int(r0[i]) + cB*int(r0[i+1]) + cC*int(r1[i]) + cD*int(r1[i+1]) + 32) >> 6)
		}
	}
}

// Avg 双向加权平均，weight 为 32 时退化为等权平均
func Avg(dst []uint8, dstStride int, a []uint8, aStride int, b []uint8, bStride int, w, h, weight int) {
	for y := 0; y < h; y++ {
		d, ra, rb := dst[y*dstStride:y*dstStride+w], a[y*aStride:], b[y*bStride:]
		if weight == 32 {
			for x := range d {
				d[x] = uint8((int(ra[x]) + int(rb[x]) + 1) >> 1)
			}
			continue
		}
		for x := range d {
			d[x] = clip8((int(ra[x])*weight + int(rb[x])*(64-weight) + 32) >> 6)
		}
	}
}
