// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	cfg "github.com/cnotch/loader"
	"github.com/cnotch/xlog"
)

// 程序名
const (
	Vendor  = "CAOHONGJU"
	Name    = "h264me"
	Version = "V1.0.0"
)

var (
	globalC *config
)

// InitConfig 初始化 Config
func InitConfig() {
	exe, err := os.Executable()
	if err != nil {
		xlog.Panic(err.Error())
	}

	configPath := filepath.Join(filepath.Dir(exe), Name+".conf")

	globalC = new(config)
	globalC.initFlags()

	// 创建或加载配置文件
	if err := cfg.Load(globalC,
		&cfg.JSONLoader{Path: configPath, CreatedIfNonExsit: true},
		&cfg.EnvLoader{Prefix: strings.ToUpper(Name)},
		&cfg.FlagLoader{}); err != nil {
		// 异常，直接退出
		xlog.Panic(err.Error())
	}

	// 预设先于命令行显式参数生效
	if globalC.Preset != "" {
		explicit := make(map[string]string)
		flag.Visit(func(f *flag.Flag) {
			explicit[f.Name] = f.Value.String()
		})
		if err := globalC.ME.ApplyPreset(globalC.Preset); err != nil {
			xlog.Panic(err.Error())
		}
		for name, value := range explicit {
			if err := flag.Set(name, value); err != nil {
				xlog.Panic(err.Error())
			}
		}
	}

	if err := globalC.ME.Validate(); err != nil {
		xlog.Panic(err.Error())
	}

	// 初始化日志
	globalC.Log.initLogger()
}

// ME 运动估计配置
func ME() MEConfig {
	if globalC == nil {
		return DefaultMEConfig()
	}
	return globalC.ME
}

// Input 输入配置
func Input() InputConfig {
	if globalC == nil {
		return InputConfig{}
	}
	return globalC.Input
}

// DumpPath 运动场输出文件，空表示不输出
func DumpPath() string {
	if globalC == nil {
		return ""
	}
	return globalC.Dump
}

// ProgressInterval 进度报告间隔，0 表示不报告
func ProgressInterval() time.Duration {
	if globalC == nil || globalC.Progress <= 0 {
		return 0
	}
	return time.Duration(globalC.Progress) * time.Second
}

// QueueSize 读帧协程与分析循环之间的缓冲帧数
func QueueSize() int {
	me := ME()
	return me.BFrames + 2
}
