// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newPSlice() (s *Slice, l0 *Field) {
	cur := NewField(3, 3)
	cur.Frame, cur.POC = 2, 4
	l0 = NewField(3, 3)
	l0.Frame, l0.POC = 1, 2
	s = &Slice{Type: SliceP, Cur: cur, Refs: [2][]*Field{{l0}}}
	s.Init()
	cur.PrepareMVR(0, 1)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			cur.SetMVR(0, 0, x, y, V(10*x, 10*y+1))
		}
	}
	return
}

func TestCandidateList(t *testing.T) {
	var l CandidateList
	for i := 0; i < MaxCandidates+4; i++ {
		l.Push(V(i, i))
	}
	assert.Equal(t, MaxCandidates, l.Len())
	assert.Equal(t, V(MaxCandidates-1, MaxCandidates-1), l.Slice()[MaxCandidates-1])
	l.Reset()
	assert.Equal(t, 0, l.Len())
}

func TestCandidatesSpatial(t *testing.T) {
	s, _ := newPSlice()
	c := NewCache()
	var out CandidateList

	c.Load(s, 1, 1)
	c.Candidates(0, 0, &out)
	assert.Equal(t, []Vector{V(0, 11), V(10, 1), V(0, 1), V(20, 1)}, out.Slice())

	// 图像边缘的邻居视为零矢量
	c.Load(s, 0, 0)
	c.Candidates(0, 0, &out)
	assert.Equal(t, []Vector{Zero, Zero, Zero, Zero}, out.Slice())

	// 片外邻居不可用
	s.FirstMB = 3
	c.Load(s, 1, 1)
	c.Candidates(0, 0, &out)
	assert.Equal(t, []Vector{V(0, 11), Zero, Zero, Zero}, out.Slice())
}

func TestCandidatesTemporal(t *testing.T) {
	s, l0 := newPSlice()
	l0.NumRefs[0] = 1
	l0.InvRefPOC[0] = InvRefPOC(2)
	l0.SetMV16x16(1, 1, V(6, -6))
	l0.SetMV16x16(2, 1, V(3, 5))
	l0.SetMV16x16(1, 2, V(-8, 2))

	c := NewCache()
	var out CandidateList
	c.Load(s, 1, 1)
	c.Candidates(0, 0, &out)
	assert.Equal(t, 7, out.Len())
	assert.Equal(t, []Vector{V(6, -6), V(3, 5), V(-8, 2)}, out.Slice()[4:])

	// 右下边界宏块只有同位候选
	c.Load(s, 2, 2)
	c.Candidates(0, 0, &out)
	assert.Equal(t, 5, out.Len())
}

func TestCandidatesLowresAndDirect(t *testing.T) {
	s, _ := newPSlice()
	lowres := make([]Vector, 9)
	lowres[4] = V(3, -2)
	s.Cur.SetLowres(0, 0, lowres)

	c := NewCache()
	var out CandidateList
	c.Load(s, 1, 1)
	c.Candidates(0, 0, &out)
	assert.Equal(t, V(6, -4), out.Slice()[0])
	assert.Equal(t, 5, out.Len())

	// 非首个参考不使用低分辨率矢量
	c.Candidates(0, 1, &out)
	assert.Equal(t, 4, out.Len())

	// 未计算标记
	s.Cur.SetLowres(0, 0, nil)
	c.Candidates(0, 0, &out)
	assert.Equal(t, 4, out.Len())

	// B 片中右下 8x8 使用相同参考时最先加入
	s.Type = SliceB
	c.Set(0, 2, 2, 2, 2, 0, V(-12, 12))
	c.Candidates(0, 0, &out)
	assert.Equal(t, V(-12, 12), out.Slice()[0])
}
