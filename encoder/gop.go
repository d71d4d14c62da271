// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/cnotch/queue"
)

// gop 决定帧类型，并把显示顺序重排为编码顺序
type gop struct {
	keyint   int
	bframes  int
	count    int
	sinceKey int
	pending  []*Frame
}

// push 接收一帧，返回可以按编码顺序分析的帧
func (g *gop) push(f *Frame) []*Frame {
	g.count++
	if g.count == 1 || g.sinceKey >= g.keyint {
		out := g.flush()
		f.typ = mv.SliceI
		g.sinceKey = 1
		return append(out, f)
	}

	g.sinceKey++
	g.pending = append(g.pending, f)
	if len(g.pending) > g.bframes {
		return g.flush()
	}
	return nil
}

// flush 最后一个缓冲帧作为 P 锚帧先编码，其余为 B 帧
func (g *gop) flush() []*Frame {
	n := len(g.pending)
	if n == 0 {
		return nil
	}
	out := make([]*Frame, 0, n)
	anchor := g.pending[n-1]
	anchor.typ = mv.SliceP
	out = append(out, anchor)
	for _, f := range g.pending[:n-1] {
		f.typ = mv.SliceB
		out = append(out, f)
	}
	g.pending = g.pending[:0]
	return out
}

// refList 参考锚帧，按编码顺序保存最近 max+1 个
type refList struct {
	q   queue.Queue
	max int
}

func (l *refList) reset() {
	l.q.Reset()
}

// add 锚帧分析完成后加入，超出容量时丢弃最早的
func (l *refList) add(f *Frame) {
	l.q.Push(f)
	if n := l.q.Len(); n > l.max+1 {
		keep := append([]interface{}(nil), l.q.Elems()[n-l.max-1:]...)
		l.q.Reset()
		l.q.PushN(keep)
	}
}

// lists 返回 cur 的 list0（显示顺序在前，近者优先）与 list1（在后的最近锚帧）
func (l *refList) lists(cur *Frame) (l0, l1 []*Frame) {
	elems := l.q.Elems()
	for i := len(elems) - 1; i >= 0 && len(l0) < l.max; i-- {
		if f := elems[i].(*Frame); f.Index < cur.Index {
			l0 = append(l0, f)
		}
	}
	if cur.typ != mv.SliceB {
		return l0, nil
	}
	for _, e := range elems {
		if f := e.(*Frame); f.Index > cur.Index {
			return l0, []*Frame{f}
		}
	}
	return l0, nil
}
