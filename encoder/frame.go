// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"bytes"
	"sync"

	"github.com/cnotch/h264me/av/codec/h264"
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
)

// Frame 一帧 4:2:0 图像。平面按宏块对齐分配，有效区域外复制边缘像素。
type Frame struct {
	Index  int // 显示顺序
	Width  int
	Height int

	Y, U, V *pixel.Plane

	typ   mv.SliceType
	field *mv.Field
	dupe  *Frame // 内容相同的较早帧

	refOnce    sync.Once
	ref        *pixel.Ref
	lowresOnce sync.Once
	lowres     *pixel.Ref
}

// NewFrame 按图像几何分配帧
func NewFrame(g h264.Geometry) *Frame {
	w, h := 16*g.MBWidth, 16*g.MBHeight
	return &Frame{
		Width:  g.Width,
		Height: g.Height,
		Y:      pixel.NewPlane(w, h, pixel.Pad),
		U:      pixel.NewPlane(w/2, h/2, pixel.ChromaPad),
		V:      pixel.NewPlane(w/2, h/2, pixel.ChromaPad),
	}
}

// POC 帧编码时的图像顺序计数
func (f *Frame) POC() int { return 2 * f.Index }

// Type 编码类型，进入编码顺序后有效
func (f *Frame) Type() mv.SliceType { return f.typ }

// Field 分析后的运动场
func (f *Frame) Field() *mv.Field { return f.field }

// Extend 写入像素后调用：把有效区域复制到宏块对齐区域并填充边界
func (f *Frame) Extend() {
	extendPlane(f.Y, f.Width, f.Height)
	extendPlane(f.U, (f.Width+1)/2, (f.Height+1)/2)
	extendPlane(f.V, (f.Width+1)/2, (f.Height+1)/2)
}

func extendPlane(p *pixel.Plane, w, h int) {
	for y := 0; y < h; y++ {
		row := p.Row(y)
		for x := w; x < p.Width; x++ {
			row[x] = row[w-1]
		}
	}
	last := p.Row(h - 1)
	for y := h; y < p.Height; y++ {
		copy(p.Row(y), last)
	}
	p.Extend()
}

// sameContent 两帧亮度是否相同
func (f *Frame) sameContent(o *Frame) bool {
	if o == nil || o.Width != f.Width || o.Height != f.Height {
		return false
	}
	for y := 0; y < f.Height; y++ {
		if !bytes.Equal(f.Y.Row(y), o.Y.Row(y)) {
			return false
		}
	}
	return true
}

// root 内容相同的最早帧
func (f *Frame) root() *Frame {
	if f.dupe != nil {
		return f.dupe
	}
	return f
}

// Ref 插值后的参考帧，首次调用时生成
func (f *Frame) Ref() *pixel.Ref {
	f.refOnce.Do(func() {
		f.ref = pixel.NewRef(f.Y, f.U, f.V)
	})
	return f.ref
}

// Lowres 1/2 分辨率亮度参考，用于预分析
func (f *Frame) Lowres() *pixel.Ref {
	f.lowresOnce.Do(func() {
		f.lowres = pixel.NewRef(f.Y.Downscale(pixel.Pad), nil, nil)
	})
	return f.lowres
}
