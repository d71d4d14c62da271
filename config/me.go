// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"

	"github.com/cnotch/h264me/av/codec/h264/me"
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/pkg/errors"
)

// MEConfig 运动估计配置
type MEConfig struct {
	Method   me.Method     `json:"method"`   // 整像素搜索方法
	Range    int           `json:"merange"`  // 整像素搜索范围
	Subme    int           `json:"subme"`    // 分像素细化等级
	ChromaME bool          `json:"chromame"` // 分像素阶段计入色度
	MVRange  int           `json:"mvrange"`  // 垂直矢量范围（像素）
	Bidir    bool          `json:"bidir"`    // 双向联合细化
	RD       bool          `json:"rd"`       // 精确率失真细化
	Direct   mv.DirectMode `json:"direct"`   // 直接模式
	QP       int           `json:"qp"`
	Slices   int           `json:"slices"`  // 每幅图像的并行片数
	BFrames  int           `json:"bframes"` // 锚帧间连续 B 帧数
	Refs     int           `json:"refs"`    // 前向参考数
	Keyint   int           `json:"keyint"`  // I 帧间隔
	Lowres   bool          `json:"lowres"`  // 低分辨率预分析
	// ThreadBound 帧级并行时参考帧已重建的行数（像素），0 表示不限制
	ThreadBound int `json:"threadbound"`
}

// DefaultMEConfig 返回与 medium 预设一致的默认配置
func DefaultMEConfig() MEConfig {
	return MEConfig{
		Method:   me.MethodHex,
		Range:    16,
		Subme:    7,
		ChromaME: true,
		MVRange:  me.DefaultMVRange,
		Bidir:    true,
		RD:       false,
		Direct:   mv.DirectSpatial,
		QP:       26,
		Slices:   1,
		BFrames:  3,
		Refs:     3,
		Keyint:   250,
		Lowres:   true,
	}
}

func (c *MEConfig) initFlags() {
	d := DefaultMEConfig()
	*c = d
	flag.Var(&c.Method, "me", "Set the integer-pel search method (dia, hex, umh, esa, tesa)")
	flag.IntVar(&c.Range, "merange", d.Range, "Set the integer-pel search range")
	flag.IntVar(&c.Subme, "subme", d.Subme, "Set the subpel refinement level (0-11)")
	flag.BoolVar(&c.ChromaME, "chroma-me", d.ChromaME,
		"Determines if chroma is counted during subpel refinement")
	flag.IntVar(&c.MVRange, "mvrange", d.MVRange, "Set the vertical motion vector range in pixels")
	flag.BoolVar(&c.Bidir, "bidir", d.Bidir,
		"Determines if bi-predicted vectors are refined jointly")
	flag.BoolVar(&c.RD, "rd", d.RD, "Determines if winners are refined with exact RD cost")
	flag.Var(&c.Direct, "direct", "Set the direct prediction mode (none, spatial, temporal)")
	flag.IntVar(&c.QP, "qp", d.QP, "Set the quantizer used to derive lambda")
	flag.IntVar(&c.Slices, "slices", d.Slices, "Set the number of parallel slices per picture")
	flag.IntVar(&c.BFrames, "bframes", d.BFrames, "Set the number of consecutive B-frames")
	flag.IntVar(&c.Refs, "refs", d.Refs, "Set the number of forward references")
	flag.IntVar(&c.Keyint, "keyint", d.Keyint, "Set the maximum interval between I-frames")
	flag.BoolVar(&c.Lowres, "lowres", d.Lowres,
		"Determines if a half resolution pre-pass seeds the search")
	flag.IntVar(&c.ThreadBound, "thread-bound", d.ThreadBound,
		"Set the reconstructed reference rows available to vertical vectors, 0 disables it")
}

// Params 转换为搜索参数
func (c *MEConfig) Params() me.Params {
	return me.Params{
		Method:   c.Method,
		Range:    c.Range,
		Subme:    c.Subme,
		ChromaME: c.ChromaME,
	}
}

// Validate 检查配置
func (c *MEConfig) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	switch {
	case c.Direct < mv.DirectNone || c.Direct > mv.DirectTemporal:
		return errors.Errorf("invalid direct mode %d", int(c.Direct))
	case c.QP < 0 || c.QP > me.MaxQP:
		return errors.Errorf("qp %d out of [0,%d]", c.QP, me.MaxQP)
	case c.Slices < 1:
		return errors.Errorf("slices must be positive, got %d", c.Slices)
	case c.BFrames < 0 || c.BFrames > 16:
		return errors.Errorf("bframes %d out of [0,16]", c.BFrames)
	case c.Refs < 1 || c.Refs > 16:
		return errors.Errorf("refs %d out of [1,16]", c.Refs)
	case c.Keyint < 1:
		return errors.Errorf("keyint must be positive, got %d", c.Keyint)
	case c.MVRange < 0:
		return errors.Errorf("mvrange must not be negative, got %d", c.MVRange)
	case c.ThreadBound < 0:
		return errors.Errorf("thread-bound must not be negative, got %d", c.ThreadBound)
	}
	return nil
}
