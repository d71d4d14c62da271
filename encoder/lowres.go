// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"context"

	"github.com/cnotch/h264me/av/codec/h264/me"
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
	"golang.org/x/sync/errgroup"
)

// lowresPass 在半分辨率图像上对每个列表的首个参考做 8x8 搜索，
// 结果按帧距写入运动场，作为全分辨率搜索的候选
func (e *Encoder) lowresPass(ctx context.Context, p *pictureContext) error {
	g, ctx := errgroup.WithContext(ctx)
	for l := 0; l < 2; l++ {
		if len(p.refs[l]) == 0 {
			continue
		}
		list := l
		ref := p.refs[l][0]
		dist := p.frame.Index - ref.Index
		if dist < 0 {
			dist = -dist
		}
		dist--
		g.Go(func() error {
			vs, err := e.lowresSearch(ctx, e.lowres[list], p.frame, ref)
			if err != nil {
				return err
			}
			p.field.SetLowres(list, dist, vs)
			return nil
		})
	}
	err := g.Wait()
	for _, s := range e.lowres {
		p.pic.Counters.Add(&s.Counters)
		s.Counters = me.Counters{}
	}
	if err != nil {
		e.logger.Errorf("frame %d lowres: %s", p.frame.Index, err.Error())
	}
	return err
}

// lowresSearch 返回每个宏块对应 8x8 块的矢量（半分辨率 1/4 像素单位）
func (e *Encoder) lowresSearch(ctx context.Context, s *me.Searcher, cur, ref *Frame) ([]mv.Vector, error) {
	w, h := e.geo.MBWidth, e.geo.MBHeight
	vs := make([]mv.Vector, w*h)
	src := cur.Lowres().Planes[pixel.PlaneFull]
	rr := ref.Lowres()

	at := func(x, y int) mv.Vector {
		if x < 0 || y < 0 || x >= w {
			return mv.Zero
		}
		return vs[y*w+x]
	}

	var mvc [3]mv.Vector
	for mby := 0; mby < h; mby++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for mbx := 0; mbx < w; mbx++ {
			mvc = [3]mv.Vector{at(mbx-1, mby), at(mbx, mby-1), at(mbx+1, mby-1)}
			b := &me.Block{
				Size:   pixel.Size8x8,
				X:      8 * mbx,
				Y:      8 * mby,
				Src:    src,
				Ref:    rr,
				Costs:  e.costs,
				Limits: me.NewLowresLimits(mbx, mby, w, h, e.cfg.MVRange),
				MVP:    mv.Median(mvc[0], mvc[1], mvc[2]),
			}
			s.SearchRef(b, mvc[:], nil)
			vs[mby*w+mbx] = b.MV
		}
	}
	return vs, nil
}
