// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mv 实现 H.264 运动矢量预测：邻块缓存、中值预测、直接模式和候选矢量收集。
package mv

import "math"

// Vector 运动矢量，单位为 1/4 像素
type Vector struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
}

// Zero 零矢量
var Zero = Vector{}

// V 构造矢量，超出 int16 的部分被截断
func V(x, y int) Vector {
	return Vector{X: int16(x), Y: int16(y)}
}

// IsZero 是否零矢量
func (v Vector) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Add .
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub .
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale 乘以 n 倍
func (v Vector) Scale(n int) Vector {
	return Vector{X: v.X * int16(n), Y: v.Y * int16(n)}
}

// Median 返回三个矢量的分量中值
func Median(a, b, c Vector) Vector {
	return Vector{X: median3(a.X, b.X, c.X), Y: median3(a.Y, b.Y, c.Y)}
}

func median3(a, b, c int16) int16 {
	min, max := a, a
	if b < min {
		min = b
	} else {
		max = b
	}
	if c < min {
		min = c
	} else if c > max {
		max = c
	}
	return a + b + c - min - max
}

// Clip3 将 v 限制在 [lo, hi]
func Clip3(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clip16(v int) int16 {
	return int16(Clip3(v, math.MinInt16, math.MaxInt16))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
