// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package h264 解析 H.264 参数集，得到运动估计所需的图像几何信息。
package h264

// NAL 单元类型
const (
	NalSlice           = 1
	NalIdrSlice        = 5
	NalSei             = 6
	NalSps             = 7
	NalPps             = 8
	NalAud             = 9
	NalPrefix          = 14
	NalExtenSlice      = 20
	NalDepthExtenSlice = 21

	NalTypeBitmask = 0x1f
)

// NalType 返回 NAL 头中的类型
func NalType(header byte) byte {
	return header & NalTypeBitmask
}

// IsSps .
func IsSps(header byte) bool {
	return NalType(header) == NalSps
}
