// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"sync/atomic"

	"github.com/cnotch/h264me/av/codec/h264/me"
)

// SearchSample 运动搜索统计采样
type SearchSample struct {
	Pictures     int64 `json:"pictures"`
	Macroblocks  int64 `json:"macroblocks"`
	Skips        int64 `json:"skips"`
	Searches     int64 `json:"searches"`
	FpelProbes   int64 `json:"fpel_probes"`
	SubpelProbes int64 `json:"subpel_probes"`
	ChromaProbes int64 `json:"chroma_probes"`
	BidirProbes  int64 `json:"bidir_probes"`
	RDProbes     int64 `json:"rd_probes"`
	EarlyExits   int64 `json:"early_exits"`
	HalfpelSkips int64 `json:"halfpel_skips"`
	BidirSkipped int64 `json:"bidir_skipped"`
}

// Search 运动搜索统计接口，可被多个片协程并发累加
type Search interface {
	AddPicture(macroblocks, skips int64) // 增加一幅图像
	AddCounters(c *me.Counters)          // 累加搜索器计数
	GetSample() SearchSample             // 获取当前时点采样
}

func (s *SearchSample) clone() SearchSample {
	return SearchSample{
		Pictures:     atomic.LoadInt64(&s.Pictures),
		Macroblocks:  atomic.LoadInt64(&s.Macroblocks),
		Skips:        atomic.LoadInt64(&s.Skips),
		Searches:     atomic.LoadInt64(&s.Searches),
		FpelProbes:   atomic.LoadInt64(&s.FpelProbes),
		SubpelProbes: atomic.LoadInt64(&s.SubpelProbes),
		ChromaProbes: atomic.LoadInt64(&s.ChromaProbes),
		BidirProbes:  atomic.LoadInt64(&s.BidirProbes),
		RDProbes:     atomic.LoadInt64(&s.RDProbes),
		EarlyExits:   atomic.LoadInt64(&s.EarlyExits),
		HalfpelSkips: atomic.LoadInt64(&s.HalfpelSkips),
		BidirSkipped: atomic.LoadInt64(&s.BidirSkipped),
	}
}

// Add 采样累加
func (s *SearchSample) Add(o SearchSample) {
	s.Pictures += o.Pictures
	s.Macroblocks += o.Macroblocks
	s.Skips += o.Skips
	s.Searches += o.Searches
	s.FpelProbes += o.FpelProbes
	s.SubpelProbes += o.SubpelProbes
	s.ChromaProbes += o.ChromaProbes
	s.BidirProbes += o.BidirProbes
	s.RDProbes += o.RDProbes
	s.EarlyExits += o.EarlyExits
	s.HalfpelSkips += o.HalfpelSkips
	s.BidirSkipped += o.BidirSkipped
}

// ProbesPerMB 每宏块平均探测点数
func (s SearchSample) ProbesPerMB() float64 {
	if s.Macroblocks == 0 {
		return 0
	}
	return float64(s.FpelProbes+s.SubpelProbes+s.BidirProbes+s.RDProbes) / float64(s.Macroblocks)
}

type search struct {
	sample SearchSample
}

// NewSearch 创建运动搜索统计
func NewSearch() Search {
	return &search{}
}

func (r *search) AddPicture(macroblocks, skips int64) {
	addPicture(&r.sample, macroblocks, skips)
}

func (r *search) AddCounters(c *me.Counters) {
	addCounters(&r.sample, c)
}

func (r *search) GetSample() SearchSample {
	return r.sample.clone()
}

type childSearch struct {
	parent Search
	sample SearchSample
}

// NewChildSearch 创建子统计，它会把自己的计数累加到 parent 上
func NewChildSearch(parent Search) Search {
	return &childSearch{
		parent: parent,
	}
}

func (r *childSearch) AddPicture(macroblocks, skips int64) {
	addPicture(&r.sample, macroblocks, skips)
	r.parent.AddPicture(macroblocks, skips)
}

func (r *childSearch) AddCounters(c *me.Counters) {
	addCounters(&r.sample, c)
	r.parent.AddCounters(c)
}

func (r *childSearch) GetSample() SearchSample {
	return r.sample.clone()
}

func addPicture(s *SearchSample, macroblocks, skips int64) {
	atomic.AddInt64(&s.Pictures, 1)
	atomic.AddInt64(&s.Macroblocks, macroblocks)
	atomic.AddInt64(&s.Skips, skips)
}

func addCounters(s *SearchSample, c *me.Counters) {
	atomic.AddInt64(&s.Searches, c.Searches)
	atomic.AddInt64(&s.FpelProbes, c.FpelProbes)
	atomic.AddInt64(&s.SubpelProbes, c.SubpelProbes)
	atomic.AddInt64(&s.ChromaProbes, c.ChromaProbes)
	atomic.AddInt64(&s.BidirProbes, c.BidirProbes)
	atomic.AddInt64(&s.RDProbes, c.RDProbes)
	atomic.AddInt64(&s.EarlyExits, c.EarlyExits)
	atomic.AddInt64(&s.HalfpelSkips, c.HalfpelSkips)
	atomic.AddInt64(&s.BidirSkipped, c.BidirSkipped)
}
