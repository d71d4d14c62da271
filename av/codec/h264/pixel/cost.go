// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pixel

// CompareFunc 块匹配代价函数
type CompareFunc func(a []uint8, aStride int, b []uint8, bStride int, w, h int) int

// SAD 绝对差之和
func SAD(a []uint8, aStride int, b []uint8, bStride int, w, h int) int {
	sum := 0
	for y := 0; y < h; y++ {
		ra, rb := a[y*aStride:y*aStride+w], b[y*bStride:y*bStride+w]
		for x, va := range ra {
			d := int(va) - int(rb[x])
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return sum
}

// SSD 平方差之和
func SSD(a []uint8, aStride int, b []uint8, bStride int, w, h int) int {
	sum := 0
	for y := 0; y < h; y++ {
		ra, rb := a[y*aStride:y*aStride+w], b[y*bStride:y*bStride+w]
		for x, va := range ra {
			d := int(va) - int(rb[x])
			sum += d * d
		}
	}
	return sum
}

// SATD 4x4 Hadamard 变换后绝对值之和的一半，逐个 4x4 累加
func SATD(a []uint8, aStride int, b []uint8, bStride int, w, h int) int {
	sum := 0
	for y := 0; y < h; y += 4 {
		for x := 0; x < w; x += 4 {
			sum += satd4x4(a[y*aStride+x:], aStride, b[y*bStride+x:], bStride)
		}
	}
	return sum
}

func satd4x4(a []uint8, aStride int, b []uint8, bStride int) int {
	var d [4][4]int
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			d[i][j] = int(a[i*aStride+j]) - int(b[i*bStride+j])
		}
	}
	for i := 0; i < 4; i++ {
		s01, d01 := d[i][0]+d[i][1], d[i][0]-d[i][1]
		s23, d23 := d[i][2]+d[i][3], d[i][2]-d[i][3]
		d[i][0], d[i][1], d[i][2], d[i][3] = s01+s23, s01-s23, d01-d23, d01+d23
	}
	sum := 0
	for j := 0; j < 4; j++ {
		s01, d01 := d[0][j]+d[1][j], d[0][j]-d[1][j]
		s23, d23 := d[2][j]+d[3][j], d[2][j]-d[3][j]
		for _, v := range [4]int{s01 + s23, s01 - s23, d01 - d23, d01 + d23} {
			if v < 0 {
				v = -v
			}
			sum += v
		}
	}
	return sum >> 1
}

// Sum 块内像素和
func Sum(a []uint8, stride int, w, h int) int {
	sum := 0
	for y := 0; y < h; y++ {
		for _, v := range a[y*stride : y*stride+w] {
			sum += int(v)
		}
	}
	return sum
}
