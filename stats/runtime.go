// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"runtime"
	"time"

	"github.com/kelindar/process"
)

// 创建时间
var (
	StartingTime = time.Now()
)

// Proc 进程信息统计
type Proc struct {
	CPU    float64 `json:"cpu"`    // cpu使用情况
	Priv   int32   `json:"priv"`   // 私有内存 KB
	Virt   int32   `json:"virt"`   // 虚拟内存 KB
	Uptime int32   `json:"uptime"` // 运行时间 S
}

// Runtime 运行时统计，分析大图像时主要关注堆和 GC
type Runtime struct {
	HeapInuse   int32   `json:"heap_inuse"`   // KB MemStats.HeapInuse
	HeapAlloc   int32   `json:"heap_alloc"`   // KB MemStats.HeapAlloc
	HeapObjects int32   `json:"heap_objects"` // MemStats.HeapObjects
	TotalAlloc  int32   `json:"total_alloc"`  // KB MemStats.TotalAlloc
	Sys         int32   `json:"sys"`          // KB MemStats.Sys
	NumGC       uint32  `json:"num_gc"`
	GCCPU       float64 `json:"gc_cpu"`
	Goroutines  int32   `json:"goroutines"`
	Procs       int32   `json:"procs"`
}

// MeasureRuntime 获取进程信息，平台不支持时返回零值
func MeasureRuntime() (p Proc) {
	p.Uptime = int32(time.Since(StartingTime).Seconds())
	defer func() {
		if r := recover(); r != nil {
			p.CPU, p.Priv, p.Virt = 0, 0, 0
		}
	}()

	var memoryPriv, memoryVirtual int64
	var cpu float64
	process.ProcUsage(&cpu, &memoryPriv, &memoryVirtual)
	p.CPU = cpu
	p.Priv = toKB(uint64(memoryPriv))
	p.Virt = toKB(uint64(memoryVirtual))
	return p
}

// MeasureFullRuntime 获取 Go 运行时信息
func MeasureFullRuntime() *Runtime {
	var memory runtime.MemStats
	runtime.ReadMemStats(&memory)

	return &Runtime{
		HeapInuse:   toKB(memory.HeapInuse),
		HeapAlloc:   toKB(memory.HeapAlloc),
		HeapObjects: int32(memory.HeapObjects),
		TotalAlloc:  toKB(memory.TotalAlloc),
		Sys:         toKB(memory.Sys),
		NumGC:       memory.NumGC,
		GCCPU:       memory.GCCPUFraction,
		Goroutines:  int32(runtime.NumGoroutine()),
		Procs:       int32(runtime.NumCPU()),
	}
}

// Converts the memory in bytes to KBs, otherwise it would overflow our int32
func toKB(v uint64) int32 {
	return int32(v / 1024)
}

// Report 运行结束时的汇总
type Report struct {
	Frames  int          `json:"frames"`
	Elapsed float64      `json:"elapsed"` // 秒
	FPS     float64      `json:"fps"`
	Search  SearchSample `json:"search"`
	Proc    Proc         `json:"proc"`
	Runtime *Runtime     `json:"runtime"`
}

// NewReport 以当前采样生成汇总
func NewReport(frames int, elapsed time.Duration, s Search) *Report {
	r := &Report{
		Frames:  frames,
		Elapsed: elapsed.Seconds(),
		Search:  s.GetSample(),
		Proc:    MeasureRuntime(),
		Runtime: MeasureFullRuntime(),
	}
	if r.Elapsed > 0 {
		r.FPS = float64(frames) / r.Elapsed
	}
	return r
}
