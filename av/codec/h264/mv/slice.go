// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mv

import (
	"strings"

	"github.com/pkg/errors"
)

// SliceType 片类型
type SliceType uint8

// 片类型
const (
	SliceP SliceType = iota
	SliceB
	SliceI
)

func (t SliceType) String() string {
	switch t {
	case SliceP:
		return "P"
	case SliceB:
		return "B"
	default:
		return "I"
	}
}

// MarshalText .
func (t SliceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// DirectMode 直接模式矢量预测方式
type DirectMode int

// 直接模式
const (
	DirectNone DirectMode = iota
	DirectSpatial
	DirectTemporal
)

var directNames = [...]string{"none", "spatial", "temporal"}

func (m DirectMode) String() string {
	if m >= 0 && int(m) < len(directNames) {
		return directNames[m]
	}
	return "unknown"
}

// Set 实现 flag.Value
func (m *DirectMode) Set(s string) error {
	for i, name := range directNames {
		if strings.EqualFold(name, s) {
			*m = DirectMode(i)
			return nil
		}
	}
	return errors.Errorf("unknown direct mode %q", s)
}

// MarshalText .
func (m DirectMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText .
func (m *DirectMode) UnmarshalText(text []byte) error {
	return m.Set(string(text))
}

// Slice 一个片的预测上下文
type Slice struct {
	Type SliceType
	Cur  *Field
	Refs [2][]*Field

	// MBAFF 片是否帧场自适应
	MBAFF bool
	// Direct 直接模式预测方式
	Direct DirectMode
	// BFrames 连续 B 帧数
	BFrames int
	// Threaded 帧级并行，启用安全矢量边界检查
	Threaded bool
	// FirstMB 片内首个宏块（光栅序号）
	FirstMB int

	distScale []int
	colMap    map[int]int
}

// Init 计算时间直接模式的距离缩放因子和同位参考映射
func (s *Slice) Init() {
	s.distScale = s.distScale[:0]
	s.colMap = nil
	if s.Type != SliceB || len(s.Refs[1]) == 0 {
		return
	}
	col := s.Refs[1][0]
	for _, ref := range s.Refs[0] {
		s.distScale = append(s.distScale, DistScaleFactor(s.Cur.POC, ref.POC, col.POC))
	}
	s.colMap = make(map[int]int)
	for i, poc := range col.RefPOC[0] {
		for j, ref := range s.Refs[0] {
			if ref.POC == poc {
				s.colMap[i] = j
				break
			}
		}
	}
}

// mapColToList0 将同位块的参考索引映射到当前 list0，失败返回 -1
func (s *Slice) mapColToList0(ref int) int {
	if ref < 0 {
		return -1
	}
	if j, ok := s.colMap[ref]; ok {
		return j
	}
	return -1
}

func (s *Slice) distScaleFactor(ref int) int {
	if s.MBAFF {
		ref >>= 1
	}
	if ref < len(s.distScale) {
		return s.distScale[ref]
	}
	return 256
}

// available 宏块是否在图像内且属于本片已编码部分
func (s *Slice) available(mbx, mby int) bool {
	f := s.Cur
	if !f.contains(mbx, mby) {
		return false
	}
	return f.index(mbx, mby) >= s.FirstMB
}

// DistScaleFactor 时间直接模式缩放因子
func DistScaleFactor(cur, poc0, poc1 int) int {
	td := Clip3(poc1-poc0, -128, 127)
	if td == 0 {
		return 256
	}
	tb := Clip3(cur-poc0, -128, 127)
	tx := (16384 + abs(td/2)) / td
	return Clip3((tb*tx+32)>>6, -1024, 1023)
}

// InvRefPOC 参考距离倒数，定点 8 位
func InvRefPOC(delta int) int {
	if delta == 0 {
		return 256
	}
	return (256 + delta/2) / delta
}
