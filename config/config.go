// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
)

// config 程序配置
type config struct {
	Preset   string      `json:"preset,omitempty"` // 预设参数集
	Input    InputConfig `json:"input"`            // 输入
	ME       MEConfig    `json:"me"`               // 运动估计
	Dump     string      `json:"dump,omitempty"`   // 运动场输出文件
	Progress int         `json:"progress"`         // 进度报告间隔（秒），0 表示不报告
	Log      LogConfig   `json:"log"`              // 日志配置
}

func (c *config) initFlags() {
	flag.StringVar(&c.Preset, "preset", "",
		"Apply a named parameter preset (ultrafast ... placebo) before explicit options")
	flag.StringVar(&c.Dump, "dump", "", "Set the file to write motion fields to as JSON")
	flag.IntVar(&c.Progress, "progress", 2,
		"Set the progress report interval in seconds, 0 disables it")

	c.Input.initFlags()
	c.ME.initFlags()

	// 初始化日志配置
	c.Log.initFlags()
}

// InputConfig 原始 YUV 输入
type InputConfig struct {
	Path   string `json:"path"`          // 平面 4:2:0 文件
	Width  int    `json:"width"`         // 亮度宽度
	Height int    `json:"height"`        // 亮度高度
	SPS    string `json:"sps,omitempty"` // base64 编码的 SPS，提供时覆盖宽高
	Frames int    `json:"frames"`        // 最多处理的帧数，0 表示全部
}

func (c *InputConfig) initFlags() {
	flag.StringVar(&c.Path, "input", "", "Set the raw planar YUV 4:2:0 input file")
	flag.IntVar(&c.Width, "width", 0, "Set the luma width of the input")
	flag.IntVar(&c.Height, "height", 0, "Set the luma height of the input")
	flag.StringVar(&c.SPS, "sps", "",
		"Set a base64 sequence parameter set to derive the picture geometry from")
	flag.IntVar(&c.Frames, "frames", 0, "Set the maximum number of frames to analyse")
}
