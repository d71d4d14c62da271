// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package me

import (
	"math"
	"testing"

	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	picW, picH = 64, 64
	shiftX     = 3
	shiftY     = -2
	blockX     = 16
	blockY     = 16
	mbX, mbY   = 1, 1
	mbW, mbH   = picW / 16, picH / 16
	trueMVX    = 4 * shiftX
	trueMVY    = 4 * shiftY
)

func smooth(x, y int) int {
	fx, fy := float64(x), float64(y)
	return 128 + int(50*math.Sin(fx*0.15)) + int(50*math.Cos(fy*0.2)) + int(20*math.Sin((fx-fy)*0.1))
}

func texture(f func(x, y int) int) *pixel.Plane {
	p := pixel.NewPlane(picW, picH, pixel.Pad)
	for y := 0; y < picH; y++ {
		for x := 0; x < picW; x++ {
			p.Set(x, y, uint8(f(x, y)))
		}
	}
	p.Extend()
	return p
}

// shiftedPair 参考帧为平滑纹理，当前帧为其平移 (shiftX, shiftY)
func shiftedPair() (*pixel.Plane, *pixel.Ref) {
	ref := pixel.NewRef(texture(smooth), nil, nil)
	src := texture(func(x, y int) int { return smooth(x+shiftX, y+shiftY) })
	return src, ref
}

func newBlock(src *pixel.Plane, ref *pixel.Ref, lambda int) *Block {
	return &Block{
		Size:   pixel.Size16x16,
		X:      blockX,
		Y:      blockY,
		Src:    src,
		Ref:    ref,
		Costs:  NewCostTableLambda(lambda),
		Limits: NewLimits(mbX, mbY, mbW, mbH, 0),
	}
}

func newSearcher(t *testing.T, method Method, subme int) *Searcher {
	s, err := NewSearcher(Params{Method: method, Range: 16, Subme: subme})
	require.NoError(t, err)
	return s
}

func TestMethod(t *testing.T) {
	for i, name := range []string{"dia", "hex", "umh", "esa", "tesa"} {
		m, err := ParseMethod(name)
		require.NoError(t, err)
		assert.Equal(t, Method(i), m)
		assert.Equal(t, name, m.String())
	}

	var m Method
	require.NoError(t, m.Set("UMH"))
	assert.Equal(t, MethodUMH, m)
	assert.Error(t, m.Set("star"))

	text, err := MethodTESA.MarshalText()
	require.NoError(t, err)
	require.NoError(t, m.UnmarshalText(text))
	assert.Equal(t, MethodTESA, m)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		ok   bool
	}{
		{"default", Params{Method: MethodHex, Range: 16, Subme: 7}, true},
		{"bad method", Params{Method: Method(9), Range: 16, Subme: 7}, false},
		{"small range", Params{Method: MethodHex, Range: 2, Subme: 7}, false},
		{"subme", Params{Method: MethodHex, Range: 16, Subme: 12}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSearcher(tt.p)
			assert.Equal(t, tt.ok, err == nil)
		})
	}
}

func TestLambda(t *testing.T) {
	assert.Equal(t, 1, Lambda(0))
	assert.Equal(t, 1, Lambda(12))
	assert.Equal(t, 4, Lambda(24))
	assert.Equal(t, 91, Lambda(MaxQP))
	assert.Equal(t, 91, Lambda(60))
	assert.Equal(t, 1, Lambda(-3))
	assert.Equal(t, 218, Lambda2(12))

	// 查表与闭式一致
	for qp := 0; qp <= MaxQP; qp++ {
		want := int(0.5 + math.Pow(2, float64(qp-12)/6))
		if want < 1 {
			want = 1
		}
		assert.Equal(t, want, Lambda(qp), "qp %d", qp)
	}
}

func TestCostTable(t *testing.T) {
	ct := NewCostTable(30)
	assert.Equal(t, Lambda(30), ct.Lambda())
	assert.Equal(t, int(float64(ct.Lambda())*0.718+.5), ct.MV(0))
	for d := 1; d < 4096; d++ {
		assert.True(t, ct.MV(d) >= ct.MV(d-1), "delta %d", d)
		assert.Equal(t, ct.MV(d), ct.MV(-d))
	}
	assert.Equal(t, ct.MV(maxDelta), ct.MV(maxDelta+100))

	flat := NewCostTableLambda(0)
	assert.Equal(t, 0, flat.MV(0))
	assert.Equal(t, 0, flat.MV(-5000))
}

func TestLimits(t *testing.T) {
	l := NewLimits(0, 0, 4, 4, 0)
	assert.Equal(t, Box{MinX: -96, MinY: -96, MaxX: 288, MaxY: 288}, l.Spel)
	assert.Equal(t, Box{MinX: -18, MinY: -18, MaxX: 66, MaxY: 66}, l.Fpel)

	l.BoundY(40)
	assert.Equal(t, 40, l.Spel.MaxY)
	assert.Equal(t, 4, l.Fpel.MaxY)

	small := NewLimits(0, 2, 4, 100, 16)
	assert.Equal(t, -64, small.Spel.MinY)
	assert.Equal(t, 63, small.Spel.MaxY)

	low := NewLowresLimits(0, 0, 4, 4, 0)
	assert.Equal(t, Box{MinX: -48, MinY: -48, MaxX: 144, MaxY: 144}, low.Spel)
	assert.Equal(t, Box{MinX: -6, MinY: -6, MaxX: 30, MaxY: 30}, low.Fpel)

	b := Box{MinX: -4, MinY: -4, MaxX: 4, MaxY: 4}
	assert.True(t, b.Inside(0, 0, 4))
	assert.False(t, b.Inside(1, 0, 4))
	assert.Equal(t, mv.V(4, -4), b.Clip(mv.V(9, -100)))
}

func TestPredictorHelpers(t *testing.T) {
	fbox := Box{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10}
	mvc := []mv.Vector{mv.Zero, mv.V(8, 4), mv.V(100, -100), mv.V(5, 6), mv.V(1, 1)}

	clipped := predictorClip(mvc, fbox, mv.V(8, 4))
	assert.Equal(t, []mv.Vector{mv.V(40, -40), mv.V(5, 6), mv.V(1, 1)}, clipped)

	rounded := predictorRoundClip(mvc, fbox, mv.V(2, 1))
	assert.Equal(t, []mv.Vector{mv.V(10, -10), mv.V(1, 2)}, rounded)

	assert.Equal(t, 0, predictorDifference(mvc[:1]))
	assert.Equal(t, 12+92+104, predictorDifference(mvc[:3]))
}

func TestSearchRecoversShift(t *testing.T) {
	src, ref := shiftedPair()
	for _, method := range []Method{MethodDia, MethodHex, MethodUMH, MethodESA, MethodTESA} {
		for _, subme := range []int{0, 1, 2, 5, 7, 9} {
			s := newSearcher(t, method, subme)
			b := newBlock(src, ref, 1)
			s.SearchRef(b, nil, nil)
			assert.Equal(t, mv.V(trueMVX, trueMVY), b.MV, "%s subme %d", method, subme)
			assert.Equal(t, bits(b, trueMVX, trueMVY), b.Cost, "%s subme %d", method, subme)
			assert.Equal(t, int64(1), s.Searches)
		}
	}
}

func TestSearchWithCandidates(t *testing.T) {
	src, ref := shiftedPair()
	for _, method := range []Method{MethodDia, MethodHex, MethodUMH} {
		s := newSearcher(t, method, 7)
		b := newBlock(src, ref, 1)
		b.MVP = mv.V(-20, 24)
		mvc := []mv.Vector{mv.V(-20, 24), mv.V(trueMVX+1, trueMVY-2), mv.V(0, 4)}
		s.SearchRef(b, mvc, nil)
		assert.Equal(t, mv.V(trueMVX, trueMVY), b.MV, method.String())
	}
}

func TestSearchClipInvariant(t *testing.T) {
	ref := pixel.NewRef(texture(func(x, y int) int { return (x*37 + y*91 + x*y) % 256 }), nil, nil)
	src := texture(func(x, y int) int { return (x*53 + y*17 + 3*x*y) % 256 })
	far := []mv.Vector{mv.V(4000, -4000), mv.V(-4000, 4000), mv.V(-900, -900)}
	for _, method := range []Method{MethodDia, MethodHex, MethodUMH, MethodESA, MethodTESA} {
		for _, subme := range []int{0, 2, 5, 9} {
			for _, mb := range [][2]int{{0, 0}, {3, 3}, {0, 3}} {
				s := newSearcher(t, method, subme)
				b := newBlock(src, ref, 4)
				b.X, b.Y = 16*mb[0], 16*mb[1]
				b.Limits = NewLimits(mb[0], mb[1], mbW, mbH, 0)
				b.MVP = mv.V(-3000, 2500)
				s.SearchRef(b, far, nil)
				assert.True(t, b.Limits.Spel.Contains(int(b.MV.X), int(b.MV.Y)),
					"%s subme %d mb %v: %v", method, subme, mb, b.MV)
				if subme == 0 {
					assert.True(t, b.Limits.Fpel.Contains(int(b.MV.X)>>2, int(b.MV.Y)>>2))
				}
			}
		}
	}
}

func TestSearchIdempotent(t *testing.T) {
	src, ref := shiftedPair()
	s := newSearcher(t, MethodDia, 0)
	b := newBlock(src, ref, 1)
	b.MVP = mv.V(trueMVX, trueMVY)
	s.SearchRef(b, nil, nil)

	assert.Equal(t, mv.V(trueMVX, trueMVY), b.MV)
	// 预测点、零矢量、一圈菱形
	assert.Equal(t, int64(6), s.FpelProbes)
	assert.Equal(t, 2*b.Costs.MV(0), b.Cost)
	assert.Equal(t, 2*b.Costs.MV(0), b.CostMV)
}

func TestRefineQpelIdempotent(t *testing.T) {
	src, ref := shiftedPair()
	s := newSearcher(t, MethodHex, 5)
	b := newBlock(src, ref, 1)
	b.MV = mv.V(trueMVX, trueMVY)
	b.Cost = bits(b, trueMVX, trueMVY)
	cost := b.Cost

	s.RefineQpel(b)
	assert.Equal(t, mv.V(trueMVX, trueMVY), b.MV)
	assert.Equal(t, cost, b.Cost)
	assert.Equal(t, int64(4), s.SubpelProbes)
}

func TestRefineQpelSubtractsRefCost(t *testing.T) {
	src, ref := shiftedPair()
	s := newSearcher(t, MethodHex, 5)
	b := newBlock(src, ref, 1)
	b.Size = pixel.Size8x8
	b.MV = mv.V(trueMVX, trueMVY)
	b.RefCost = 3
	b.Cost = bits(b, trueMVX, trueMVY) + b.RefCost

	s.RefineQpel(b)
	assert.Equal(t, bits(b, trueMVX, trueMVY), b.Cost)
}

func TestRefineMonotonic(t *testing.T) {
	src, ref := shiftedPair()
	s := newSearcher(t, MethodHex, 5)
	b := newBlock(src, ref, 1)
	b.MVP = mv.V(-6, 10)
	b.Limits = NewLimits(mbX, mbY, mbW, mbH, 0)
	s.SearchRef(b, []mv.Vector{mv.V(4, -4)}, nil)
	c1 := b.Cost
	s.RefineQpel(b)
	assert.True(t, b.Cost <= c1)

	ec := SSDCoster{Lambda2: Lambda2(26)}
	pix, stride := s.predict(b, int(b.MV.X), int(b.MV.Y))
	start := ec.ExactCost(&Prediction{Block: b, Pixels: pix, Stride: stride,
		MVD: []mv.Vector{b.MV.Sub(b.MVP)}})
	s.RefineQpelRD(b, ec)
	assert.True(t, b.CostRD <= start)
}

func TestHalfpelThresh(t *testing.T) {
	src, ref := shiftedPair()

	s := newSearcher(t, MethodHex, 7)
	b := newBlock(src, ref, 1)
	thresh := 1
	s.SearchRef(b, nil, &thresh)
	assert.Equal(t, int64(1), s.HalfpelSkips)
	assert.Equal(t, 1, thresh)

	s = newSearcher(t, MethodHex, 7)
	b = newBlock(src, ref, 1)
	thresh = 1000
	s.SearchRef(b, nil, &thresh)
	assert.Equal(t, int64(0), s.HalfpelSkips)
	assert.Equal(t, b.Cost, thresh)
	assert.Equal(t, mv.V(trueMVX, trueMVY), b.MV)
}

func TestRefineQpelRefdupe(t *testing.T) {
	src, ref := shiftedPair()
	s := newSearcher(t, MethodHex, 9)
	b := newBlock(src, ref, 1)
	b.MV = mv.V(trueMVX+1, trueMVY)
	b.Cost = costMax - 1
	thresh := costMax
	s.RefineQpelRefdupe(b, &thresh)
	assert.Equal(t, mv.V(trueMVX, trueMVY), b.MV)
	assert.Equal(t, bits(b, trueMVX, trueMVY), b.Cost)
}

func TestChromaME(t *testing.T) {
	src, ref := shiftedPair()
	chroma := func(f func(x, y int) int) *pixel.Plane {
		p := pixel.NewPlane(picW/2, picH/2, pixel.ChromaPad)
		for y := 0; y < picH/2; y++ {
			for x := 0; x < picW/2; x++ {
				p.Set(x, y, uint8(f(x, y)))
			}
		}
		p.Extend()
		return p
	}
	cref := chroma(func(x, y int) int { return 100 + x + 2*y })
	ref = pixel.NewRef(ref.Planes[pixel.PlaneFull], cref, cref)
	csrc := chroma(func(x, y int) int { return 100 + x + 2*y })

	s, err := NewSearcher(Params{Method: MethodHex, Range: 16, Subme: 7, ChromaME: true})
	require.NoError(t, err)
	b := newBlock(src, ref, 1)
	b.Size = pixel.Size8x8
	b.SrcU, b.SrcV = csrc, csrc
	s.SearchRef(b, nil, nil)
	assert.True(t, s.ChromaProbes > 0)
	assert.True(t, b.Limits.Spel.Contains(int(b.MV.X), int(b.MV.Y)))

	s.Counters = Counters{}
	b.Size = pixel.Size8x4
	s.SearchRef(b, nil, nil)
	assert.Equal(t, int64(0), s.ChromaProbes)
}

func TestCountersAdd(t *testing.T) {
	a := Counters{Searches: 1, FpelProbes: 2, RDProbes: 3}
	a.Add(&Counters{Searches: 4, FpelProbes: 5, BidirSkipped: 6})
	assert.Equal(t, Counters{Searches: 5, FpelProbes: 7, RDProbes: 3, BidirSkipped: 6}, a)
}

func TestSeBits(t *testing.T) {
	tests := []struct{ v, n int }{{0, 1}, {1, 3}, {-1, 3}, {2, 5}, {-2, 5}, {3, 5}, {4, 7}, {-4, 7}}
	for _, tt := range tests {
		assert.Equal(t, tt.n, seBits(tt.v), "v=%d", tt.v)
	}
}

func TestRefineQpelRD(t *testing.T) {
	src, ref := shiftedPair()
	s := newSearcher(t, MethodHex, 9)
	b := newBlock(src, ref, 1)
	b.MVP = mv.V(trueMVX, trueMVY)
	b.MV = mv.V(trueMVX+1, trueMVY+1)

	calls := 0
	ec := ExactCosterFunc(func(p *Prediction) uint64 {
		calls++
		return SSDCoster{Lambda2: 256}.ExactCost(p)
	})
	s.RefineQpelRD(b, ec)
	assert.Equal(t, mv.V(trueMVX, trueMVY), b.MV)
	assert.Equal(t, uint64(2), b.CostRD)
	assert.Equal(t, int64(calls), s.RDProbes)
	assert.True(t, calls >= 2)
}

func TestSearcherCost(t *testing.T) {
	src, ref := shiftedPair()
	s := newSearcher(t, MethodHex, 7)
	b := newBlock(src, ref, 1)
	b.MV = mv.V(trueMVX, trueMVY)
	assert.Equal(t, bits(b, trueMVX, trueMVY), s.Cost(b))
	assert.Equal(t, mv.V(trueMVX, trueMVY), b.MV)

	b.MV = mv.V(4*200, 0)
	assert.Equal(t, costMax, s.Cost(b))
}
