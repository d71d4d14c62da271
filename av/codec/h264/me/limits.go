// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import "github.com/cnotch/h264me/av/codec/h264/mv"

const (
	// mbBorder 矢量允许越出图像边界的像素数，须小于参考平面填充
	mbBorder = 24
	// fpelBorder 整像素框相对分像素框的内缩
	fpelBorder = 6
	// maxHorizontal 水平矢量范围（像素）
	maxHorizontal = 2048
	// DefaultMVRange 默认垂直矢量范围（像素）
	DefaultMVRange = 512
)

// Box 闭区间矩形
type Box struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Contains .
func (b Box) Contains(x, y int) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Inside 是否距边界至少 margin
func (b Box) Inside(x, y, margin int) bool {
	return x >= b.MinX+margin && x <= b.MaxX-margin && y >= b.MinY+margin && y <= b.MaxY-margin
}

// Clip 将矢量限制在框内
func (b Box) Clip(v mv.Vector) mv.Vector {
	return mv.V(mv.Clip3(int(v.X), b.MinX, b.MaxX), mv.Clip3(int(v.Y), b.MinY, b.MaxY))
}

// Limits 宏块的矢量裁剪框：Spel 以 1/4 像素计，Fpel 以整像素计
type Limits struct {
	Spel Box
	Fpel Box
}

// NewLimits 计算位于 (mbx, mby) 的宏块的裁剪框，mvRange 为垂直矢量范围（像素）
func NewLimits(mbx, mby, mbWidth, mbHeight, mvRange int) Limits {
	if mvRange <= 0 {
		mvRange = DefaultMVRange
	}
	return newLimits(mbx, mby, mbWidth, mbHeight, 16, mbBorder, mvRange)
}

// NewLowresLimits 半分辨率预分析中 8x8 块的裁剪框，边界和矢量范围同样减半
func NewLowresLimits(mbx, mby, mbWidth, mbHeight, mvRange int) Limits {
	if mvRange <= 0 {
		mvRange = DefaultMVRange
	}
	return newLimits(mbx, mby, mbWidth, mbHeight, 8, mbBorder/2, mvRange/2)
}

func newLimits(mbx, mby, mbWidth, mbHeight, size, border, mvRange int) Limits {
	var l Limits
	l.Spel.MinX = mv.Clip3(4*(-size*mbx-border), -4*maxHorizontal, 4*maxHorizontal-1)
	l.Spel.MaxX = mv.Clip3(4*(size*(mbWidth-mbx-1)+border), -4*maxHorizontal, 4*maxHorizontal-1)
	l.Spel.MinY = mv.Clip3(4*(-size*mby-border), -4*mvRange, 4*mvRange-1)
	l.Spel.MaxY = mv.Clip3(4*(size*(mbHeight-mby-1)+border), -4*mvRange, 4*mvRange-1)
	l.updateFpel()
	return l
}

// BoundY 限制分像素框的最大垂直分量，用于帧级并行时参考帧尚未重建的行
func (l *Limits) BoundY(maxSpelY int) {
	if l.Spel.MaxY > maxSpelY {
		l.Spel.MaxY = maxSpelY
		if l.Spel.MinY > l.Spel.MaxY {
			l.Spel.MinY = l.Spel.MaxY
		}
		l.updateFpel()
	}
}

func (l *Limits) updateFpel() {
	l.Fpel = Box{
		MinX: (l.Spel.MinX >> 2) + fpelBorder,
		MinY: (l.Spel.MinY >> 2) + fpelBorder,
		MaxX: (l.Spel.MaxX >> 2) - fpelBorder,
		MaxY: (l.Spel.MaxY >> 2) - fpelBorder,
	}
	if l.Fpel.MaxX < l.Fpel.MinX {
		l.Fpel.MinX = l.Spel.MinX >> 2
		l.Fpel.MaxX = l.Spel.MaxX >> 2
	}
	if l.Fpel.MaxY < l.Fpel.MinY {
		l.Fpel.MinY = l.Spel.MinY >> 2
		l.Fpel.MaxY = l.Spel.MaxY >> 2
	}
}
