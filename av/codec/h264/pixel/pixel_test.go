// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pixel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampPlane(w, h int, f func(x, y int) int) *Plane {
	p := NewPlane(w, h, Pad)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p.Set(x, y, clip8(f(x, y)))
		}
	}
	p.Extend()
	return p
}

func TestCompare(t *testing.T) {
	a := []uint8{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	b := make([]uint8, 16)
	copy(b, a)
	assert.Equal(t, 0, SAD(a, 4, b, 4, 4, 4))
	assert.Equal(t, 0, SATD(a, 4, b, 4, 4, 4))
	assert.Equal(t, 0, SSD(a, 4, b, 4, 4, 4))

	for i := range b {
		b[i] = a[i] + 1
	}
	assert.Equal(t, 16, SAD(a, 4, b, 4, 4, 4))
	assert.Equal(t, 16, SSD(a, 4, b, 4, 4, 4))
	// 直流差只落在一个变换系数上
	assert.Equal(t, 8, SATD(a, 4, b, 4, 4, 4))

	b[5] = a[5] + 3
	assert.Equal(t, 18, SAD(a, 4, b, 4, 4, 4))
	assert.Equal(t, 24, SSD(a, 4, b, 4, 4, 4))
	assert.Equal(t, 136, Sum(a, 4, 4, 4))
	assert.Equal(t, 1+2+5+6, Sum(a, 4, 2, 2))
}

func TestSize(t *testing.T) {
	tests := []struct {
		s    Size
		w, h int
		name string
	}{
		{Size16x16, 16, 16, "16x16"},
		{Size16x8, 16, 8, "16x8"},
		{Size8x16, 8, 16, "8x16"},
		{Size8x8, 8, 8, "8x8"},
		{Size8x4, 8, 4, "8x4"},
		{Size4x8, 4, 8, "4x8"},
		{Size4x4, 4, 4, "4x4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.w, tt.s.W())
			assert.Equal(t, tt.h, tt.s.H())
			assert.Equal(t, tt.name, tt.s.String())
			got, ok := SizeOf(tt.w, tt.h)
			assert.True(t, ok)
			assert.Equal(t, tt.s, got)
		})
	}
}

func TestPlaneExtend(t *testing.T) {
	p := rampPlane(8, 4, func(x, y int) int { return 10*y + x })
	assert.Equal(t, uint8(0), p.At(-Pad, -Pad))
	assert.Equal(t, uint8(7), p.At(8+Pad-1, -1))
	assert.Equal(t, uint8(30), p.At(-5, 3+Pad-1))
	assert.Equal(t, uint8(37), p.At(20, 20))
	assert.Equal(t, []uint8{20, 21, 22, 23, 24, 25, 26, 27}, p.Row(2))
}

func TestPlaneDownscale(t *testing.T) {
	p := rampPlane(4, 4, func(x, y int) int { return 4 * x })
	d := p.Downscale(8)
	require.Equal(t, 2, d.Width)
	require.Equal(t, 2, d.Height)
	assert.Equal(t, uint8(2), d.At(0, 0))
	assert.Equal(t, uint8(10), d.At(1, 1))
	assert.Equal(t, uint8(10), d.At(9, 1))
}

func TestRefGetFlat(t *testing.T) {
	p := rampPlane(32, 32, func(x, y int) int { return 77 })
	r := NewRef(p, nil, nil)
	dst := make([]uint8, 16*16)
	for mvy := -6; mvy <= 6; mvy++ {
		for mvx := -6; mvx <= 6; mvx++ {
			buf, stride := r.Get(dst, 16, 8, 8, mvx, mvy, 16, 16, nil)
			assert.Equal(t, 77*256, Sum(buf, stride, 16, 16), "mv (%d,%d)", mvx, mvy)
		}
	}
}

func TestRefGetFullpel(t *testing.T) {
	p := rampPlane(32, 32, func(x, y int) int { return 3*x + y })
	r := NewRef(p, nil, nil)
	dst := make([]uint8, 16)
	buf, stride := r.Get(dst, 4, 4, 4, 8, -4, 4, 4, nil)
	assert.Equal(t, p.Stride, stride)
	assert.Equal(t, p.At(6, 3), buf[0])
	assert.Equal(t, p.At(9, 6), buf[3*stride+3])
}

func TestRefGetSubpelRamp(t *testing.T) {
	// 线性斜坡上六抽头滤波无偏
	p := rampPlane(48, 48, func(x, y int) int { return 4*x + 2*y })
	r := NewRef(p, nil, nil)
	dst := make([]uint8, 16)

	tests := []struct {
		name     string
		mvx, mvy int
		want     uint8
	}{
		{"full", 0, 0, 4*16 + 2*16},
		{"half h", 2, 0, 4*16 + 2 + 2*16},
		{"half v", 0, 2, 4*16 + 2*16 + 1},
		{"center", 2, 2, 4*16 + 2 + 2*16 + 1},
		{"quarter h", 1, 0, 4*16 + 1 + 2*16},
		{"three quarter h", 3, 0, 4*16 + 3 + 2*16},
		{"quarter v", 0, 1, 4*16 + 2*16 + 1},
		{"quarter both", 1, 1, 4*16 + 2*16 + 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, _ := r.Get(dst, 4, 16, 16, tt.mvx, tt.mvy, 4, 4, nil)
			assert.Equal(t, tt.want, buf[0])
		})
	}
}

func TestWeight(t *testing.T) {
	var nilWeight *Weight
	assert.True(t, nilWeight.Identity())
	assert.True(t, (&Weight{Scale: 4, Denom: 2}).Identity())

	w := &Weight{Scale: 3, Denom: 1, Offset: -2}
	assert.False(t, w.Identity())
	src := []uint8{10, 200}
	dst := make([]uint8, 2)
	w.Apply(dst, 2, src, 2, 2, 1)
	assert.Equal(t, []uint8{13, 255}, dst)

	p := rampPlane(16, 16, func(x, y int) int { return 50 })
	r := NewRef(p, nil, nil)
	buf := make([]uint8, 16)
	out, stride := r.Get(buf, 4, 0, 0, 0, 0, 4, 4, &Weight{Scale: 1, Denom: 0, Offset: 5})
	assert.Equal(t, 4, stride)
	assert.Equal(t, uint8(55), out[15])
}

func TestAvg(t *testing.T) {
	a := []uint8{10, 20, 255, 0}
	b := []uint8{11, 40, 255, 255}
	dst := make([]uint8, 4)
	Avg(dst, 4, a, 4, b, 4, 4, 1, 32)
	assert.Equal(t, []uint8{11, 30, 255, 128}, dst)

	Avg(dst, 4, a, 4, b, 4, 4, 1, 64)
	assert.Equal(t, a, dst)
	Avg(dst, 4, a, 4, b, 4, 4, 1, 0)
	assert.Equal(t, b, dst)
}

func TestMCChroma(t *testing.T) {
	p := NewPlane(8, 8, ChromaPad)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			p.Set(x, y, uint8(8*x))
		}
	}
	p.Extend()
	dst := make([]uint8, 4)
	MCChroma(dst, 2, p, 2, 2, 0, 0, 2, 2)
	assert.Equal(t, []uint8{16, 24, 16, 24}, dst)
	MCChroma(dst, 2, p, 2, 2, 4, 0, 2, 2)
	assert.Equal(t, []uint8{20, 28, 20, 28}, dst)
	MCChroma(dst, 2, p, 2, 2, 9, 5, 2, 2)
	assert.Equal(t, []uint8{25, 33, 25, 33}, dst)
}

func TestBlockSum(t *testing.T) {
	p := rampPlane(24, 24, func(x, y int) int { return (x*7 + y*13) % 251 })
	r := NewRef(p, nil, nil)
	for _, pos := range [][2]int{{0, 0}, {3, 5}, {-Pad, -Pad}, {20, 20}, {-4, 10}} {
		for _, size := range []int{4, 8} {
			want := Sum(p.Block(pos[0], pos[1]), p.Stride, size, size)
			assert.Equal(t, want, r.BlockSum(pos[0], pos[1], size), "pos %v size %d", pos, size)
		}
	}
}
