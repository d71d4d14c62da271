// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cnotch/h264me/av/codec/h264"
	"github.com/cnotch/h264me/config"
	"github.com/cnotch/h264me/encoder"
	"github.com/cnotch/h264me/stats"
	"github.com/cnotch/h264me/utils"
	"github.com/cnotch/queue"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
	"github.com/pkg/errors"
)

// dump 运动场输出文件的内容
type dump struct {
	Geometry h264.Geometry      `json:"geometry"`
	ME       config.MEConfig    `json:"me"`
	Pictures []*encoder.Picture `json:"pictures"`
	Report   *stats.Report      `json:"report"`
}

// progress 定时输出分析进度
type progress struct {
	start    time.Time
	interval time.Duration
	frames   int64
	done     int32
	st       stats.Search
}

func (p *progress) Next(t time.Time) time.Time {
	if atomic.LoadInt32(&p.done) != 0 {
		return time.Time{}
	}
	return t.Add(p.interval)
}

func (p *progress) run() {
	if atomic.LoadInt32(&p.done) != 0 {
		return
	}
	frames := int(atomic.LoadInt64(&p.frames))
	r := stats.NewReport(frames, time.Since(p.start), p.st)
	xlog.L().Infof("progress: %d frames, %.2f fps, %.1f probes/mb, cpu %.1f%%",
		r.Frames, r.FPS, r.Search.ProbesPerMB(), r.Proc.CPU)
}

func geometry(in config.InputConfig) (h264.Geometry, error) {
	if in.SPS != "" {
		var sps h264.RawSPS
		if err := sps.DecodeString(in.SPS); err != nil {
			return h264.Geometry{}, err
		}
		return sps.Geometry(), nil
	}
	if in.Width <= 0 || in.Height <= 0 {
		return h264.Geometry{}, errors.New("input: width and height or sps required")
	}
	return h264.Geometry{
		Width:    in.Width,
		Height:   in.Height,
		MBWidth:  (in.Width + 15) / 16,
		MBHeight: (in.Height + 15) / 16,
		MaxRefs:  16,
	}, nil
}

// readFrames 读帧协程，sem 限制缓冲的帧数，输入结束或取消时推入 nil
func readFrames(ctx context.Context, yr *encoder.YUVReader, limit int, q *queue.SyncQueue, sem chan struct{}) {
	// 单独 Signal 在消费者未等待时会丢失
	defer q.Push(nil)
	for n := 0; limit <= 0 || n < limit; n++ {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		f, err := yr.ReadFrame()
		if err != nil {
			if err != io.EOF {
				xlog.L().Errorf("read frame %d: %s", n, err.Error())
			}
			break
		}
		q.Push(f)
	}
}

// consume 逐帧分析直到读到 nil，取消时返回 ctx 的错误
func consume(ctx context.Context, enc *encoder.Encoder, q *queue.SyncQueue, sem chan struct{}, collect func([]*encoder.Picture)) error {
	for {
		e := q.Pop()
		if e == nil {
			return ctx.Err()
		}
		<-sem
		out, err := enc.Encode(ctx, e.(*encoder.Frame))
		collect(out)
		if err != nil {
			return err
		}
	}
}

func run(ctx context.Context) error {
	in := config.Input()
	g, err := geometry(in)
	if err != nil {
		return err
	}
	cfg := config.ME()
	if cfg.Refs > g.MaxRefs && g.MaxRefs > 0 {
		xlog.L().Warnf("refs %d exceeds sps max_num_ref_frames %d", cfg.Refs, g.MaxRefs)
	}

	file, err := os.Open(in.Path)
	if err != nil {
		return errors.Wrap(err, "input")
	}
	defer file.Close()
	yr, err := encoder.NewYUVReader(file, g)
	if err != nil {
		return err
	}

	st := stats.NewSearch()
	enc, err := encoder.New(g, cfg, st, xlog.L())
	if err != nil {
		return err
	}
	xlog.L().Infof("analysing %s: %dx%d (%dx%d MBs), me %s, subme %d, bframes %d, refs %d, slices %d",
		in.Path, g.Width, g.Height, g.MBWidth, g.MBHeight, cfg.Method, cfg.Subme, cfg.BFrames, cfg.Refs, cfg.Slices)

	q := queue.NewSyncQueue()
	sem := make(chan struct{}, config.QueueSize())
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go readFrames(readCtx, yr, in.Frames, q, sem)

	prog := &progress{start: time.Now(), interval: config.ProgressInterval(), st: st}
	defer atomic.StoreInt32(&prog.done, 1)
	if prog.interval > 0 {
		scheduler.PostFunc(prog, prog.run, "The task of reporting motion analysis progress")
	}

	keep := config.DumpPath() != ""
	var pics []*encoder.Picture
	collect := func(out []*encoder.Picture) {
		atomic.AddInt64(&prog.frames, int64(len(out)))
		if keep {
			pics = append(pics, out...)
		}
	}

	if err := consume(ctx, enc, q, sem, collect); err != nil {
		return err
	}
	out, err := enc.Flush(ctx)
	collect(out)
	if err != nil {
		return err
	}

	report := stats.NewReport(int(atomic.LoadInt64(&prog.frames)), time.Since(prog.start), st)
	xlog.L().Infof("done: %d frames in %.2fs, %.2f fps, %d searches, %.1f probes/mb, skips %d",
		report.Frames, report.Elapsed, report.FPS, report.Search.Searches,
		report.Search.ProbesPerMB(), report.Search.Skips)

	if keep {
		d := dump{Geometry: g, ME: cfg, Pictures: pics, Report: report}
		if err := utils.EncodeJSONFile(config.DumpPath(), &d); err != nil {
			return err
		}
		xlog.L().Infof("motion field written to %s", config.DumpPath())
	}
	return nil
}

func main() {
	// 初始化配置
	config.InitConfig()
	// 初始化全局计划任务
	scheduler.SetPanicHandler(func(job *scheduler.ManagedJob, r interface{}) {
		xlog.Errorf("scheduler task panic. tag: %v, recover: %v", job.Tag, r)
	})

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		xlog.L().Warnf("received signal %s, stopping", s)
		cancel()
	}()

	if err := run(ctx); err != nil {
		xlog.L().Panic(err.Error())
	}
}
