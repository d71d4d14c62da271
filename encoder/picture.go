// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"github.com/cnotch/h264me/av/codec/h264/me"
	"github.com/cnotch/h264me/av/codec/h264/mv"
)

// MBType 宏块分析结果类型
type MBType uint8

// 宏块类型
const (
	MBIntra MBType = iota
	MBSkip
	MBP16x16
	MBP16x8
	MBP8x16
	MBP8x8
	MBDirect
	MBL0
	MBL1
	MBBi
)

var mbTypeNames = [...]string{"I", "P_SKIP", "P_16x16", "P_16x8", "P_8x16", "P_8x8",
	"B_DIRECT", "B_L0", "B_L1", "B_BI"}

func (t MBType) String() string {
	if int(t) < len(mbTypeNames) {
		return mbTypeNames[t]
	}
	return "unknown"
}

// MarshalText .
func (t MBType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Partition 一个分区的运动信息
type Partition struct {
	Ref [2]int8      `json:"ref"`
	MV  [2]mv.Vector `json:"mv"`
}

// Macroblock 宏块分析结果
type Macroblock struct {
	Type  MBType      `json:"type"`
	Cost  int         `json:"cost"`
	Parts []Partition `json:"parts,omitempty"` // 按光栅顺序的分区；直接模式为 4 个 8x8
}

// Picture 一幅图像的分析结果
type Picture struct {
	Frame    int          `json:"frame"` // 显示顺序
	POC      int          `json:"poc"`
	Type     mv.SliceType `json:"type"`
	Refs     [2][]int     `json:"refs"` // 参考帧的显示顺序
	MBWidth  int          `json:"mb_width"`
	MBHeight int          `json:"mb_height"`
	MBs      []Macroblock `json:"mbs"`

	Cost          int64       `json:"cost"`
	Skips         int         `json:"skips"`
	DirectChanged int         `json:"direct_changed"` // 直接模式结果变化的宏块数
	Counters      me.Counters `json:"counters"`
}

// TypeCount 统计各类宏块数量
func (p *Picture) TypeCount() map[MBType]int {
	counts := make(map[MBType]int)
	for i := range p.MBs {
		counts[p.MBs[i].Type]++
	}
	return counts
}
