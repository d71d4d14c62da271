// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/cnotch/h264me/av/codec/h264/me"
	"github.com/cnotch/h264me/av/codec/h264/mv"
	"github.com/pkg/errors"
)

// 预设参数表，未列出的项保持原值
const presetTable = `
[ultrafast]
method = "dia"
merange = 16
subme = 0
refs = 1
bframes = 0
chromame = false
bidir = false
rd = false
lowres = false
direct = "spatial"

[superfast]
method = "dia"
subme = 1
refs = 1
bframes = 3
chromame = false
bidir = false
rd = false
lowres = true

[veryfast]
method = "hex"
subme = 2
refs = 1
bframes = 3
bidir = false
rd = false

[faster]
method = "hex"
subme = 4
refs = 2
bframes = 3
bidir = false
rd = false

[fast]
method = "hex"
subme = 6
refs = 2
bframes = 3
bidir = true
rd = false

[medium]
method = "hex"
merange = 16
subme = 7
refs = 3
bframes = 3
chromame = true
bidir = true
rd = false
lowres = true
direct = "spatial"

[slow]
method = "umh"
subme = 8
refs = 5
bframes = 3
bidir = true
rd = true
direct = "temporal"

[slower]
method = "umh"
subme = 9
refs = 8
bframes = 3
bidir = true
rd = true
direct = "temporal"

[veryslow]
method = "umh"
merange = 24
subme = 10
refs = 16
bframes = 8
bidir = true
rd = true
direct = "temporal"

[placebo]
method = "tesa"
merange = 24
subme = 11
refs = 16
bframes = 16
bidir = true
rd = true
direct = "temporal"
`

// preset 一个预设，nil 字段表示不修改
type preset struct {
	Method   *string `toml:"method"`
	Range    *int    `toml:"merange"`
	Subme    *int    `toml:"subme"`
	ChromaME *bool   `toml:"chromame"`
	Bidir    *bool   `toml:"bidir"`
	RD       *bool   `toml:"rd"`
	Direct   *string `toml:"direct"`
	BFrames  *int    `toml:"bframes"`
	Refs     *int    `toml:"refs"`
	Lowres   *bool   `toml:"lowres"`
}

var (
	presetsOnce sync.Once
	presets     map[string]preset
	presetsErr  error
)

func loadPresets() (map[string]preset, error) {
	presetsOnce.Do(func() {
		presets = make(map[string]preset)
		if _, err := toml.Decode(presetTable, &presets); err != nil {
			presetsErr = errors.Wrap(err, "decode preset table")
		}
	})
	return presets, presetsErr
}

// Presets 返回所有预设名称
func Presets() []string {
	ps, err := loadPresets()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset 将名为 name 的预设应用到 c
func (c *MEConfig) ApplyPreset(name string) error {
	ps, err := loadPresets()
	if err != nil {
		return err
	}
	p, ok := ps[name]
	if !ok {
		return errors.Errorf("unknown preset %q", name)
	}

	if p.Method != nil {
		m, err := me.ParseMethod(*p.Method)
		if err != nil {
			return errors.Wrapf(err, "preset %s", name)
		}
		c.Method = m
	}
	setInt(&c.Range, p.Range)
	setInt(&c.Subme, p.Subme)
	setInt(&c.BFrames, p.BFrames)
	setInt(&c.Refs, p.Refs)
	setBool(&c.ChromaME, p.ChromaME)
	setBool(&c.Bidir, p.Bidir)
	setBool(&c.RD, p.RD)
	setBool(&c.Lowres, p.Lowres)
	if p.Direct != nil {
		var d mv.DirectMode
		if err := d.Set(*p.Direct); err != nil {
			return errors.Wrapf(err, "preset %s", name)
		}
		c.Direct = d
	}
	return nil
}

func setInt(dst, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst, v *bool) {
	if v != nil {
		*dst = *v
	}
}
