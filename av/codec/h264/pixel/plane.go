// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pixel 提供运动估计使用的像素平面、块代价函数和分像素插值。
package pixel

// Pad 亮度平面四周的填充像素数
const Pad = 32

// Plane 带填充边界的 8 位像素平面
type Plane struct {
	Width  int
	Height int
	Stride int
	Pad    int
	Data   []uint8
}

// NewPlane 创建 w x h 的平面，四周填充 pad 像素
func NewPlane(w, h, pad int) *Plane {
	stride := w + 2*pad
	return &Plane{
		Width:  w,
		Height: h,
		Stride: stride,
		Pad:    pad,
		Data:   make([]uint8, stride*(h+2*pad)),
	}
}

// Offset 返回 (x, y) 在 Data 中的下标，坐标可落在填充区
func (p *Plane) Offset(x, y int) int {
	return (y+p.Pad)*p.Stride + x + p.Pad
}

// At .
func (p *Plane) At(x, y int) uint8 {
	return p.Data[p.Offset(x, y)]
}

// Set .
func (p *Plane) Set(x, y int, v uint8) {
	p.Data[p.Offset(x, y)] = v
}

// Row 返回第 y 行的有效像素
func (p *Plane) Row(y int) []uint8 {
	off := p.Offset(0, y)
	return p.Data[off : off+p.Width]
}

// Block 返回从 (x, y) 开始的切片，配合 Stride 访问块
func (p *Plane) Block(x, y int) []uint8 {
	return p.Data[p.Offset(x, y):]
}

// Extend 复制边缘像素填满填充区
func (p *Plane) Extend() {
	for y := 0; y < p.Height; y++ {
		row := p.Data[p.Offset(-p.Pad, y):p.Offset(p.Width+p.Pad, y)]
		left, right := row[p.Pad], row[p.Pad+p.Width-1]
		for i := 0; i < p.Pad; i++ {
			row[i] = left
			row[p.Pad+p.Width+i] = right
		}
	}
	top := p.Data[p.Offset(-p.Pad, 0):p.Offset(-p.Pad, 1)]
	bottom := p.Data[p.Offset(-p.Pad, p.Height-1):p.Offset(-p.Pad, p.Height)]
	for i := 1; i <= p.Pad; i++ {
		copy(p.Data[p.Offset(-p.Pad, -i):], top)
		copy(p.Data[p.Offset(-p.Pad, p.Height-1+i):], bottom)
	}
}

// Downscale 生成 1/2 分辨率平面，用于低分辨率预分析
func (p *Plane) Downscale(pad int) *Plane {
	w, h := (p.Width+1)/2, (p.Height+1)/2
	d := NewPlane(w, h, pad)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := int(p.At(2*x, 2*y)) + int(p.At(2*x+1, 2*y))
			b := int(p.At(2*x, 2*y+1)) + int(p.At(2*x+1, 2*y+1))
			d.Set(x, y, uint8((a+b+2)>>2))
		}
	}
	d.Extend()
	return d
}

func clip8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
