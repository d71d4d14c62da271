// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"testing"

	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/stretchr/testify/assert"
)

func indexes(fs []*Frame) (idx []int, types []mv.SliceType) {
	for _, f := range fs {
		idx = append(idx, f.Index)
		types = append(types, f.typ)
	}
	return
}

func TestGopOrder(t *testing.T) {
	tests := []struct {
		name    string
		keyint  int
		bframes int
		frames  int
		order   []int
		types   []mv.SliceType
	}{
		{"bframes2", 250, 2, 7,
			[]int{0, 3, 1, 2, 6, 4, 5},
			[]mv.SliceType{mv.SliceI, mv.SliceP, mv.SliceB, mv.SliceB, mv.SliceP, mv.SliceB, mv.SliceB}},
		{"flush", 250, 3, 3,
			[]int{0, 2, 1},
			[]mv.SliceType{mv.SliceI, mv.SliceP, mv.SliceB}},
		{"keyint", 4, 0, 6,
			[]int{0, 1, 2, 3, 4, 5},
			[]mv.SliceType{mv.SliceI, mv.SliceP, mv.SliceP, mv.SliceP, mv.SliceI, mv.SliceP}},
		{"keyint flushes pending", 3, 2, 5,
			[]int{0, 2, 1, 3, 4},
			[]mv.SliceType{mv.SliceI, mv.SliceP, mv.SliceB, mv.SliceI, mv.SliceP}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := gop{keyint: tt.keyint, bframes: tt.bframes}
			var out []*Frame
			for i := 0; i < tt.frames; i++ {
				out = append(out, g.push(&Frame{Index: i})...)
			}
			out = append(out, g.flush()...)
			idx, types := indexes(out)
			assert.Equal(t, tt.order, idx)
			assert.Equal(t, tt.types, types)
			assert.Empty(t, g.flush())
		})
	}
}

func TestRefList(t *testing.T) {
	l := refList{max: 2}
	for i := 0; i < 5; i++ {
		l.add(&Frame{Index: i, typ: mv.SliceP})
	}
	assert.Equal(t, 3, l.q.Len())

	l0, l1 := l.lists(&Frame{Index: 5, typ: mv.SliceP})
	idx, _ := indexes(l0)
	assert.Equal(t, []int{4, 3}, idx)
	assert.Nil(t, l1)

	l.reset()
	l.add(&Frame{Index: 0, typ: mv.SliceI})
	l.add(&Frame{Index: 3, typ: mv.SliceP})
	l0, l1 = l.lists(&Frame{Index: 1, typ: mv.SliceB})
	idx, _ = indexes(l0)
	assert.Equal(t, []int{0}, idx)
	idx, _ = indexes(l1)
	assert.Equal(t, []int{3}, idx)
}
