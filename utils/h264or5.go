// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package utils

import "bytes"

var (
	startCode4 = []byte{0x0, 0x0, 0x0, 0x1}
	startCode3 = []byte{0x0, 0x0, 0x1}
)

// RemoveEmulationBytes 复制 NAL 单元（H.264 或 H.265）为 RBSP，去掉起始码和防竞争字节 0x03
func RemoveEmulationBytes(nalu []byte) []byte {
	nalu = RemoveNaluSeparator(nalu)
	rbsp := make([]byte, 0, len(nalu))
	zeros := 0
	for _, b := range nalu {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		rbsp = append(rbsp, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return rbsp
}

// RemoveNaluSeparator 移除 NALU 分隔符 0x00000001 或 0x000001
func RemoveNaluSeparator(nalu []byte) []byte {
	if bytes.HasPrefix(nalu, startCode4) {
		return nalu[4:]
	}
	if bytes.HasPrefix(nalu, startCode3) {
		return nalu[3:]
	}
	return nalu
}
