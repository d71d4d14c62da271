// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import "math"

const (
	// MaxQP 最大量化参数
	MaxQP = 51
	// maxDelta 码率表覆盖的最大矢量差（1/4 像素）
	maxDelta = 2 * 4 * 2048

	costMax   = 1 << 28
	costMax64 = uint64(1) << 62
)

// lambdaTab[qp] 即 round(2^((qp-12)/6))，最小为 1
var lambdaTab = [MaxQP + 1]int{
	1, 1, 1, 1, 1, 1, 1, 1, // 0-7
	1, 1, 1, 1, 1, 1, 1, 1, // 8-15
	2, 2, 2, 2, 3, 3, 3, 4, // 16-23
	4, 4, 5, 6, 6, 7, 8, 9, // 24-31
	10, 11, 13, 14, 16, 18, 20, 23, // 32-39
	25, 29, 32, 36, 40, 45, 51, 57, // 40-47
	64, 72, 81, 91, // 48-51
}

// Lambda 运动矢量码率的拉格朗日乘子，按 8 位量化参数查表，qp 超出 [0,MaxQP] 时取边界
func Lambda(qp int) int {
	if qp < 0 {
		qp = 0
	} else if qp > MaxQP {
		qp = MaxQP
	}
	return lambdaTab[qp]
}

// Lambda2 率失真代价的拉格朗日乘子，8 位定点
func Lambda2(qp int) int {
	return int(0.5 + 0.85*256*math.Pow(2, float64(qp-12)/3))
}

// CostTable 运动矢量差的码率估计表，按 |delta| 单调不减
type CostTable struct {
	lambda int
	costs  []uint16
}

// NewCostTable 按量化参数生成码率表
func NewCostTable(qp int) *CostTable {
	return NewCostTableLambda(Lambda(qp))
}

// NewCostTableLambda 按指定 lambda 生成码率表，lambda 为 0 时所有代价为 0
func NewCostTableLambda(lambda int) *CostTable {
	t := &CostTable{lambda: lambda, costs: make([]uint16, maxDelta+1)}
	for i := range t.costs {
		logs := 0.718
		if i > 0 {
			logs = math.Log2(float64(i+1))*2 + 1.718
		}
		c := float64(lambda)*logs + .5
		if c > math.MaxUint16 {
			c = math.MaxUint16
		}
		t.costs[i] = uint16(c)
	}
	return t
}

// Lambda .
func (t *CostTable) Lambda() int { return t.lambda }

// MV 单个分量差 d（1/4 像素）的码率代价
func (t *CostTable) MV(d int) int {
	if d < 0 {
		d = -d
	}
	if d > maxDelta {
		d = maxDelta
	}
	return int(t.costs[d])
}

// satdThresh 近似代价的容差带
func satdThresh(c int) int { return c + c>>4 }
