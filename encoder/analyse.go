// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"context"
	"math"
	"math/bits"

	"github.com/cnotch/h264me/av/codec/h264/me"
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
)

// 宏块类型头部的近似比特数
const (
	bitsSkip      = 1
	bitsP16x16    = 1
	bitsP16x8     = 3
	bitsP8x16     = 3
	bitsP8x8      = 5 + 4
	bitsDirect    = 1
	bitsB16x16    = 3
	bitsBi16x16   = 5
	costInfinite  = math.MaxInt32
	partMinSubme  = 3
	fullWeight    = 64
	defaultWeight = 32
)

// layout 宏块划分中各分区的几何
type layout struct {
	part   mv.Partition
	typ    MBType
	size   pixel.Size
	idx    []int
	w4, h4 int
	bits   int
}

var layouts = [...]layout{
	{mv.Part16x8, MBP16x8, pixel.Size16x8, []int{0, 8}, 4, 2, bitsP16x8},
	{mv.Part8x16, MBP8x16, pixel.Size8x16, []int{0, 4}, 2, 4, bitsP8x16},
	{mv.Part8x8, MBP8x8, pixel.Size8x8, []int{0, 4, 8, 12}, 2, 2, bitsP8x8},
}

// ueBits 无符号指数哥伦布码长度
func ueBits(v int) int {
	return 2*(bits.Len(uint(v+1))-1) + 1
}

// refCost 参考索引的码率代价，te(v) 编码
func refCost(lambda, nrefs, ref int) int {
	switch {
	case nrefs <= 1:
		return 0
	case nrefs == 2:
		return lambda
	default:
		return lambda * ueBits(ref)
	}
}

// implicitWeight 隐式加权预测中 list0 的权重
func implicitWeight(cur, poc0, poc1 int) int {
	if poc1 == poc0 {
		return defaultWeight
	}
	w1 := mv.DistScaleFactor(cur, poc0, poc1) >> 2
	if w1 < -64 || w1 > 128 {
		return defaultWeight
	}
	return fullWeight - w1
}

// pictureContext 一幅图像分析期间各片共享的状态
type pictureContext struct {
	enc   *Encoder
	frame *Frame
	field *mv.Field
	slice mv.Slice
	refs  [2][]*Frame
	twins [2][]int // 内容相同的较小参考索引，没有为 -1
	costs [2][]int // 参考索引代价
	wts   []int    // list1 首个参考与各 list0 参考的隐式权重
	pic   *Picture
}

func newPictureContext(e *Encoder, f *Frame, l0, l1 []*Frame) *pictureContext {
	mbW, mbH := e.geo.MBWidth, e.geo.MBHeight
	field := mv.NewField(mbW, mbH)
	field.Frame = f.Index
	field.POC = f.POC()

	p := &pictureContext{
		enc:   e,
		frame: f,
		field: field,
		refs:  [2][]*Frame{l0, l1},
		pic: &Picture{
			Frame:    f.Index,
			POC:      f.POC(),
			Type:     f.typ,
			MBWidth:  mbW,
			MBHeight: mbH,
			MBs:      make([]Macroblock, mbW*mbH),
		},
	}

	lambda := e.costs.Lambda()
	for l, refs := range p.refs {
		field.NumRefs[l] = len(refs)
		p.twins[l] = make([]int, len(refs))
		p.costs[l] = make([]int, len(refs))
		p.pic.Refs[l] = make([]int, len(refs))
		for i, r := range refs {
			field.RefPOC[l] = append(field.RefPOC[l], r.POC())
			p.slice.Refs[l] = append(p.slice.Refs[l], r.field)
			p.pic.Refs[l][i] = r.Index
			p.costs[l][i] = refCost(lambda, len(refs), i)
			p.twins[l][i] = -1
			for j := 0; j < i; j++ {
				if refs[j].root() == r.root() {
					p.twins[l][i] = j
					break
				}
			}
		}
		field.PrepareMVR(l, len(refs))
	}
	if len(l0) > 0 {
		inv := mv.InvRefPOC(f.POC() - l0[0].POC())
		field.InvRefPOC = [2]int{inv, inv}
	}
	if len(l1) > 0 {
		p.wts = make([]int, len(l0))
		for i, r := range l0 {
			p.wts[i] = implicitWeight(f.POC(), r.POC(), l1[0].POC())
		}
	}

	p.slice.Type = f.typ
	p.slice.Cur = field
	p.slice.Direct = e.cfg.Direct
	p.slice.BFrames = e.cfg.BFrames
	p.slice.Threaded = e.cfg.ThreadBound > 0
	p.slice.Init()

	f.field = field
	return p
}

// limits 宏块 (mbx, mby) 的矢量范围
func (p *pictureContext) limits(mbx, mby int) me.Limits {
	cfg := &p.enc.cfg
	l := me.NewLimits(mbx, mby, p.enc.geo.MBWidth, p.enc.geo.MBHeight, cfg.MVRange)
	if cfg.ThreadBound > 0 {
		l.BoundY(4 * cfg.ThreadBound)
	}
	return l
}

// finish 汇总宏块结果
func (p *pictureContext) finish() *Picture {
	pic := p.pic
	if pic.Type == mv.SliceI {
		for i := range pic.MBs {
			pic.MBs[i] = Macroblock{Type: MBIntra}
		}
	}
	for i := range pic.MBs {
		mb := &pic.MBs[i]
		pic.Cost += int64(mb.Cost)
		if mb.Type == MBSkip {
			pic.Skips++
		}
	}
	return pic
}

// sliceAnalyser 分析一个片内的宏块，每片独占
type sliceAnalyser struct {
	enc      *Encoder
	searcher *me.Searcher
	cache    *mv.Cache

	p       *pictureContext
	slice   mv.Slice
	cands   mv.CandidateList
	mvs     [mv.MaxRefs]mv.Vector
	changed int
	pix     [2][16 * 16]uint8
	avg     [16 * 16]uint8
}

// run 按光栅顺序分析 [first, last) 宏块行
func (sa *sliceAnalyser) run(ctx context.Context, p *pictureContext, first, last int) error {
	mbW := sa.enc.geo.MBWidth
	sa.p = p
	sa.slice = p.slice
	sa.slice.FirstMB = first * mbW
	sa.changed = 0

	for mby := first; mby < last; mby++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for mbx := 0; mbx < mbW; mbx++ {
			sa.cache.Load(&sa.slice, mbx, mby)
			limits := p.limits(mbx, mby)
			sa.cache.MaxSpelY = limits.Spel.MaxY

			var mb Macroblock
			if p.frame.typ == mv.SliceP {
				mb = sa.analyseP(mbx, mby, limits)
			} else {
				mb = sa.analyseB(mbx, mby, limits)
			}
			p.pic.MBs[mby*mbW+mbx] = mb
		}
	}
	sa.enc.logger.Debugf("frame %d rows %d-%d analysed", p.frame.Index, first, last)
	return nil
}

func (sa *sliceAnalyser) block(size pixel.Size, x, y, list, ref int, limits me.Limits) *me.Block {
	p := sa.p
	f := p.frame
	b := &me.Block{
		Size:     size,
		X:        x,
		Y:        y,
		Src:      f.Y,
		Ref:      p.refs[list][ref].Ref(),
		Costs:    sa.enc.costs,
		Limits:   limits,
		RefIndex: ref,
		RefCost:  p.costs[list][ref],
	}
	if sa.enc.cfg.ChromaME {
		b.SrcU, b.SrcV = f.U, f.V
	}
	return b
}

// search16x16 对列表中每个参考做 16x16 搜索，返回代价最小者
func (sa *sliceAnalyser) search16x16(list, mbx, mby int, limits me.Limits) *me.Block {
	p, c, s := sa.p, sa.cache, sa.searcher
	refs := p.refs[list]

	thresh := costInfinite
	var ht *int
	if len(refs) > 1 {
		ht = &thresh
	}

	var best *me.Block
	for ref := range refs {
		b := sa.block(pixel.Size16x16, 16*mbx, 16*mby, list, ref, limits)
		b.MVP = c.PredictMV16x16(list, ref)
		if ht != nil {
			thresh -= b.RefCost
		}
		if twin := p.twins[list][ref]; twin >= 0 {
			b.MV = sa.mvs[twin]
			b.Cost = s.Cost(b)
			s.RefineQpelRefdupe(b, ht)
		} else {
			c.Candidates(list, ref, &sa.cands)
			s.SearchRef(b, sa.cands.Slice(), ht)
		}
		b.Cost += b.RefCost
		if ht != nil {
			thresh += b.RefCost
		}

		sa.mvs[ref] = b.MV
		p.field.SetMVR(list, ref, mbx, mby, b.MV)
		if list == 0 && ref == 0 {
			p.field.SetMV16x16(mbx, mby, b.MV)
		}
		if best == nil || b.Cost < best.Cost {
			best = b
		}
	}
	return best
}

// searchParts 以 best 的参考搜索一种划分，各分区结果写入缓存供后续分区预测
func (sa *sliceAnalyser) searchParts(l *layout, best *me.Block, limits me.Limits) ([]*me.Block, int) {
	c, s := sa.cache, sa.searcher
	mvc := []mv.Vector{best.MV}
	c.Partition = l.part

	blocks := make([]*me.Block, len(l.idx))
	cost := l.bits * sa.enc.costs.Lambda()
	for i, idx := range l.idx {
		x4, y4 := mv.BlockXY(idx)
		b := sa.block(l.size, best.X+4*x4, best.Y+4*y4, 0, best.RefIndex, limits)
		b.MVP = c.PredictMV(0, idx, l.w4, best.RefIndex)
		s.SearchRef(b, mvc, nil)
		b.Cost += b.RefCost
		c.Set(0, x4, y4, l.w4, l.h4, best.RefIndex, b.MV)
		blocks[i] = b
		cost += b.Cost
	}
	return blocks, cost
}

// refine 最终分区的分像素细化
func (sa *sliceAnalyser) refine(b *me.Block) {
	if sa.enc.cfg.RD {
		sa.searcher.RefineQpelRD(b, me.SSDCoster{Lambda2: sa.enc.lambda2})
		return
	}
	sa.searcher.RefineQpel(b)
	if b.Size <= pixel.Size8x8 {
		b.Cost += b.RefCost
	}
}

// predCost 单向预测的 mbcmp 代价
func (sa *sliceAnalyser) predCost(list, ref, x, y, w, h int, v mv.Vector) int {
	src := sa.p.frame.Y
	pred, stride := sa.p.refs[list][ref].Ref().Get(sa.pix[list][:], 16, x, y, int(v.X), int(v.Y), w, h, nil)
	return sa.searcher.MBCmp()(src.Block(x, y), src.Stride, pred, stride, w, h)
}

// biCost 双向平均预测的 mbcmp 代价
func (sa *sliceAnalyser) biCost(x, y, w, h, ref0 int, v0 mv.Vector, ref1 int, v1 mv.Vector) int {
	p := sa.p
	src := p.frame.Y
	a, as := p.refs[0][ref0].Ref().Get(sa.pix[0][:], 16, x, y, int(v0.X), int(v0.Y), w, h, nil)
	b, bs := p.refs[1][ref1].Ref().Get(sa.pix[1][:], 16, x, y, int(v1.X), int(v1.Y), w, h, nil)
	pixel.Avg(sa.avg[:], 16, a, as, b, bs, w, h, p.wts[ref0])
	return sa.searcher.MBCmp()(src.Block(x, y), src.Stride, sa.avg[:], 16, w, h)
}

func partitionOf(b *me.Block, list int) Partition {
	var pt Partition
	pt.Ref = [2]int8{-1, -1}
	pt.Ref[list] = int8(b.RefIndex)
	pt.MV[list] = b.MV
	return pt
}

// analyseP 分析 P 宏块：跳过、16x16 多参考以及 16x8/8x16/8x8 划分
func (sa *sliceAnalyser) analyseP(mbx, mby int, limits me.Limits) Macroblock {
	c := sa.cache
	cfg := &sa.enc.cfg
	lambda := sa.enc.costs.Lambda()
	x, y := 16*mbx, 16*mby

	c.Partition = mv.Part16x16
	pskip := limits.Spel.Clip(c.PredictMVPSkip())
	skipCost := sa.predCost(0, 0, x, y, 16, 16, pskip) + bitsSkip*lambda

	best := sa.search16x16(0, mbx, mby, limits)
	bestType := MBP16x16
	bestCost := best.Cost + bitsP16x16*lambda
	blocks := []*me.Block{best}
	part := mv.Part16x16

	if cfg.Subme >= partMinSubme {
		for i := range layouts {
			l := &layouts[i]
			// 每种划分从空白内部开始预测
			c.Set(0, 0, 0, 4, 4, -1, mv.Zero)
			bs, cost := sa.searchParts(l, best, limits)
			if cost < bestCost {
				bestType, bestCost, blocks, part = l.typ, cost, bs, l.part
			}
		}
	}

	if skipCost <= bestCost {
		c.Partition = mv.Part16x16
		c.Set(0, 0, 0, 4, 4, 0, pskip)
		c.Store(false)
		return Macroblock{
			Type:  MBSkip,
			Cost:  skipCost,
			Parts: []Partition{{Ref: [2]int8{0, -1}, MV: [2]mv.Vector{pskip}}},
		}
	}

	mb := Macroblock{Type: bestType, Cost: bestCost}
	c.Partition = part
	l := layoutFor(part)
	for i, b := range blocks {
		sa.refine(b)
		x4, y4, w4, h4 := 0, 0, 4, 4
		if l != nil {
			x4, y4 = mv.BlockXY(l.idx[i])
			w4, h4 = l.w4, l.h4
		}
		c.Set(0, x4, y4, w4, h4, b.RefIndex, b.MV)
		mb.Parts = append(mb.Parts, partitionOf(b, 0))
	}
	c.Store(false)
	return mb
}

func layoutFor(part mv.Partition) *layout {
	for i := range layouts {
		if layouts[i].part == part {
			return &layouts[i]
		}
	}
	return nil
}

// directCost 按 8x8 块计算直接模式预测代价
func (sa *sliceAnalyser) directCost(x, y int, direct *[2][4]mv.Entry, limits me.Limits) int {
	cost := 0
	for i8 := 0; i8 < 4; i8++ {
		bx, by := x+8*(i8&1), y+8*(i8>>1)
		e0, e1 := direct[0][i8], direct[1][i8]
		v0, v1 := limits.Spel.Clip(e0.MV), limits.Spel.Clip(e1.MV)
		switch {
		case e0.Ref >= 0 && e1.Ref >= 0:
			cost += sa.biCost(bx, by, 8, 8, int(e0.Ref), v0, int(e1.Ref), v1)
		case e1.Ref >= 0:
			cost += sa.predCost(1, int(e1.Ref), bx, by, 8, 8, v1)
		default:
			ref := 0
			if e0.Ref > 0 {
				ref = int(e0.Ref)
			}
			cost += sa.predCost(0, ref, bx, by, 8, 8, v0)
		}
	}
	return cost
}

// analyseB 分析 B 宏块：直接模式、list0、list1 与双向预测
func (sa *sliceAnalyser) analyseB(mbx, mby int, limits me.Limits) Macroblock {
	c, s := sa.cache, sa.searcher
	cfg := &sa.enc.cfg
	lambda := sa.enc.costs.Lambda()
	x, y := 16*mbx, 16*mby

	c.Partition = mv.Part16x16
	var direct [2][4]mv.Entry
	directCost := costInfinite
	ok, changed := c.PredictDirect()
	if ok {
		if changed {
			sa.changed++
		}
		for l := 0; l < 2; l++ {
			for i8 := 0; i8 < 4; i8++ {
				direct[l][i8] = c.DirectEntry(l, i8)
			}
		}
		directCost = sa.directCost(x, y, &direct, limits) + bitsDirect*lambda
	}

	b0 := sa.search16x16(0, mbx, mby, limits)
	b1 := sa.search16x16(1, mbx, mby, limits)
	cost0 := b0.Cost + bitsB16x16*lambda
	cost1 := b1.Cost + bitsB16x16*lambda

	bi0, bi1 := *b0, *b1
	if cfg.Bidir {
		w := sa.p.wts[bi0.RefIndex]
		if cfg.RD {
			s.RefineBidirRD(&bi0, &bi1, w, me.SSDCoster{Lambda2: sa.enc.lambda2})
		} else {
			s.RefineBidir(&bi0, &bi1, w)
		}
	}
	biCost := sa.biCost(x, y, 16, 16, bi0.RefIndex, bi0.MV, bi1.RefIndex, bi1.MV) +
		bi0.CostMV + bi1.CostMV + bi0.RefCost + bi1.RefCost + bitsBi16x16*lambda

	typ, cost := MBDirect, directCost
	if cost0 < cost {
		typ, cost = MBL0, cost0
	}
	if cost1 < cost {
		typ, cost = MBL1, cost1
	}
	if biCost < cost {
		typ, cost = MBBi, biCost
	}

	mb := Macroblock{Type: typ, Cost: cost}
	c.Partition = mv.Part16x16
	switch typ {
	case MBDirect:
		c.Partition = c.DirectPartition()
		for l := 0; l < 2; l++ {
			for i8 := 0; i8 < 4; i8++ {
				e := direct[l][i8]
				c.Set(l, 2*(i8&1), 2*(i8>>1), 2, 2, int(e.Ref), e.MV)
			}
		}
		for i8 := 0; i8 < 4; i8++ {
			mb.Parts = append(mb.Parts, Partition{
				Ref: [2]int8{direct[0][i8].Ref, direct[1][i8].Ref},
				MV:  [2]mv.Vector{direct[0][i8].MV, direct[1][i8].MV},
			})
		}
	case MBL0:
		sa.refine(b0)
		c.Set(0, 0, 0, 4, 4, b0.RefIndex, b0.MV)
		c.Set(1, 0, 0, 4, 4, -1, mv.Zero)
		mb.Parts = append(mb.Parts, partitionOf(b0, 0))
	case MBL1:
		sa.refine(b1)
		c.Set(0, 0, 0, 4, 4, -1, mv.Zero)
		c.Set(1, 0, 0, 4, 4, b1.RefIndex, b1.MV)
		mb.Parts = append(mb.Parts, partitionOf(b1, 1))
	default:
		c.Set(0, 0, 0, 4, 4, bi0.RefIndex, bi0.MV)
		c.Set(1, 0, 0, 4, 4, bi1.RefIndex, bi1.MV)
		mb.Parts = append(mb.Parts, Partition{
			Ref: [2]int8{int8(bi0.RefIndex), int8(bi1.RefIndex)},
			MV:  [2]mv.Vector{bi0.MV, bi1.MV},
		})
	}
	c.Store(false)
	return mb
}
