// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import (
	"testing"

	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefineBidirFlat(t *testing.T) {
	flat := func(x, y int) int { return 100 }
	src := texture(flat)
	ref0 := pixel.NewRef(texture(flat), nil, nil)
	ref1 := pixel.NewRef(texture(flat), nil, nil)

	s := newSearcher(t, MethodHex, 7)
	m0 := newBlock(src, ref0, 0)
	m1 := newBlock(src, ref1, 0)
	m0.MV = mv.V(8, 4)
	m1.MV = mv.V(-4, 8)

	cost, ok := s.RefineBidir(m0, m1, 32)
	require.True(t, ok)
	assert.Equal(t, 0, cost)
	assert.Equal(t, mv.V(8, 4), m0.MV)
	assert.Equal(t, mv.V(-4, 8), m1.MV)
	assert.Equal(t, int64(33), s.BidirProbes)
}

func TestRefineBidirMargin(t *testing.T) {
	src, ref := shiftedPair()
	s := newSearcher(t, MethodHex, 7)
	m0 := newBlock(src, ref, 1)
	m1 := newBlock(src, ref, 1)
	m0.MV = mv.V(m0.Limits.Spel.MinX+7, 0)
	m1.MV = mv.V(trueMVX, trueMVY)

	_, ok := s.RefineBidir(m0, m1, 32)
	assert.False(t, ok)
	assert.Equal(t, mv.V(m0.Limits.Spel.MinX+7, 0), m0.MV)
	assert.Equal(t, mv.V(trueMVX, trueMVY), m1.MV)
	assert.Equal(t, int64(1), s.BidirSkipped)
	assert.Equal(t, int64(0), s.BidirProbes)
}

func TestRefineBidirJoint(t *testing.T) {
	src, ref := shiftedPair()
	tests := []struct {
		name   string
		m0, m1 mv.Vector
		rd     bool
	}{
		{"approximate", mv.V(trueMVX+1, trueMVY), mv.V(trueMVX, trueMVY+1), false},
		{"exact", mv.V(trueMVX+1, trueMVY), mv.V(trueMVX, trueMVY+1), true},
		{"both off", mv.V(trueMVX-1, trueMVY-1), mv.V(trueMVX+1, trueMVY), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSearcher(t, MethodHex, 9)
			m0 := newBlock(src, ref, 1)
			m1 := newBlock(src, ref, 1)
			m0.MVP, m1.MVP = mv.V(trueMVX, trueMVY), mv.V(trueMVX, trueMVY)
			m0.MV, m1.MV = tt.m0, tt.m1

			if tt.rd {
				calls := 0
				ec := ExactCosterFunc(func(p *Prediction) uint64 {
					calls++
					require.Len(t, p.MVD, 2)
					return SSDCoster{Lambda2: 256}.ExactCost(p)
				})
				cost, ok := s.RefineBidirRD(m0, m1, 32, ec)
				require.True(t, ok)
				// 矢量差均为零：4 个分量各 1 位
				assert.Equal(t, uint64((256*4+128)>>8), cost)
				assert.Equal(t, int64(calls), s.RDProbes)
			} else {
				cost, ok := s.RefineBidir(m0, m1, 32)
				require.True(t, ok)
				assert.Equal(t, 4*m0.Costs.MV(0), cost)
			}
			assert.Equal(t, mv.V(trueMVX, trueMVY), m0.MV)
			assert.Equal(t, mv.V(trueMVX, trueMVY), m1.MV)
			assert.Equal(t, 2*m0.Costs.MV(0), m0.CostMV)
		})
	}
}
