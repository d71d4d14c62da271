// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package encoder 驱动宏块级运动分析：GOP 重排、参考列表、
// 低分辨率预分析以及按片并行的 P/B 宏块搜索。
package encoder

import (
	"context"
	"runtime/debug"

	"github.com/cnotch/h264me/av/codec/h264"
	"github.com/cnotch/h264me/av/codec/h264/me"
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/h264me/config"
	"github.com/cnotch/h264me/stats"
	"github.com/cnotch/xlog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// lowresSubme 预分析的分像素等级
const lowresSubme = 4

// Encoder 运动分析器，不能并发调用
type Encoder struct {
	cfg    config.MEConfig
	geo    h264.Geometry
	logger *xlog.Logger
	stats  stats.Search

	costs   *me.CostTable
	lambda2 int
	gop     gop
	refs    refList
	slices  []*sliceAnalyser
	lowres  [2]*me.Searcher
}

// New 创建分析器，st 可为 nil
func New(g h264.Geometry, cfg config.MEConfig, st stats.Search, logger *xlog.Logger) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "encoder")
	}
	if g.MBWidth <= 0 || g.MBHeight <= 0 || g.Width <= 0 || g.Height <= 0 {
		return nil, errors.Errorf("encoder: invalid geometry %dx%d (%dx%d MBs)",
			g.Width, g.Height, g.MBWidth, g.MBHeight)
	}
	if logger == nil {
		logger = xlog.L()
	}
	if st == nil {
		st = stats.NewSearch()
	}
	if cfg.Slices > g.MBHeight {
		cfg.Slices = g.MBHeight
	}
	if g.Interlaced {
		logger.Warnf("interlaced sequence (mbaff=%v) is analysed as progressive frames", g.MBAFF)
	}

	e := &Encoder{
		cfg:     cfg,
		geo:     g,
		logger:  logger,
		stats:   st,
		costs:   me.NewCostTable(cfg.QP),
		lambda2: me.Lambda2(cfg.QP),
		gop:     gop{keyint: cfg.Keyint, bframes: cfg.BFrames},
		refs:    refList{max: cfg.Refs},
	}

	params := cfg.Params()
	for i := 0; i < cfg.Slices; i++ {
		s, err := me.NewSearcher(params)
		if err != nil {
			return nil, errors.Wrap(err, "encoder")
		}
		e.slices = append(e.slices, &sliceAnalyser{enc: e, searcher: s, cache: mv.NewCache()})
	}

	lp := me.Params{Method: me.MethodHex, Range: 16, Subme: lowresSubme}
	if cfg.Subme < lp.Subme {
		lp.Subme = cfg.Subme
	}
	for l := range e.lowres {
		s, err := me.NewSearcher(lp)
		if err != nil {
			return nil, errors.Wrap(err, "encoder")
		}
		e.lowres[l] = s
	}
	return e, nil
}

// Geometry .
func (e *Encoder) Geometry() h264.Geometry { return e.geo }

// Stats 累计统计
func (e *Encoder) Stats() stats.Search { return e.stats }

// NewFrame 按编码几何分配帧
func (e *Encoder) NewFrame() *Frame {
	return NewFrame(e.geo)
}

// Encode 送入一帧（显示顺序），返回按编码顺序完成分析的图像
func (e *Encoder) Encode(ctx context.Context, f *Frame) ([]*Picture, error) {
	return e.analyseAll(ctx, e.gop.push(f))
}

// Flush 分析缓冲中剩余的帧
func (e *Encoder) Flush(ctx context.Context) ([]*Picture, error) {
	return e.analyseAll(ctx, e.gop.flush())
}

func (e *Encoder) analyseAll(ctx context.Context, frames []*Frame) ([]*Picture, error) {
	pics := make([]*Picture, 0, len(frames))
	for _, f := range frames {
		pic, err := e.analyse(ctx, f)
		if err != nil {
			return pics, err
		}
		pics = append(pics, pic)
	}
	return pics, nil
}

// analyse 分析一幅图像，锚帧完成后加入参考列表
func (e *Encoder) analyse(ctx context.Context, f *Frame) (pic *Picture, err error) {
	if f.typ == mv.SliceI {
		e.refs.reset()
	}
	l0, l1 := e.refs.lists(f)
	if f.typ == mv.SliceP && len(l0) == 0 {
		f.typ = mv.SliceI
	}
	if f.typ == mv.SliceB && (len(l0) == 0 || len(l1) == 0) {
		return nil, errors.Errorf("encoder: B frame %d without references", f.Index)
	}

	p := newPictureContext(e, f, l0, l1)
	if f.typ != mv.SliceI {
		if e.cfg.Lowres {
			if err := e.lowresPass(ctx, p); err != nil {
				return nil, err
			}
		}
		if err := e.analyseSlices(ctx, p); err != nil {
			return nil, err
		}
	}

	pic = p.finish()
	if f.typ != mv.SliceB {
		e.refs.add(f)
	}

	e.stats.AddPicture(int64(len(pic.MBs)), int64(pic.Skips))
	e.stats.AddCounters(&pic.Counters)
	e.logger.Infof("frame %d type %s refs %v/%v cost %d skips %d probes %d",
		pic.Frame, pic.Type, pic.Refs[0], pic.Refs[1], pic.Cost, pic.Skips,
		pic.Counters.FpelProbes+pic.Counters.SubpelProbes)
	e.logger.Debugf("frame %d macroblock types %v", pic.Frame, pic.TypeCount())
	return pic, nil
}

// analyseSlices 图像按宏块行划分为片，各片并行分析
func (e *Encoder) analyseSlices(ctx context.Context, p *pictureContext) error {
	rows := e.geo.MBHeight
	n := len(e.slices)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		sa := e.slices[i]
		first, last := i*rows/n, (i+1)*rows/n
		if first == last {
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("slice rows %d-%d panic; r = %v \n %s", first, last, r, debug.Stack())
				}
			}()
			return sa.run(ctx, p, first, last)
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Errorf("frame %d: %s", p.frame.Index, err.Error())
		return err
	}
	for _, sa := range e.slices {
		p.pic.Counters.Add(&sa.searcher.Counters)
		p.pic.DirectChanged += sa.changed
		sa.searcher.Counters = me.Counters{}
		sa.changed = 0
	}
	return nil
}
