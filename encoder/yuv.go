// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package encoder

import (
	"bufio"
	"io"

	"github.com/cnotch/h264me/av/codec/h264"
	"github.com/cnotch/h264me/av/codec/h264/pixel"
	"github.com/pkg/errors"
)

// YUVReader 读取平面 4:2:0 原始图像
type YUVReader struct {
	r     *bufio.Reader
	geo   h264.Geometry
	index int
	prev  *Frame
}

// NewYUVReader 创建读取器，Width/Height 为每帧的有效尺寸
func NewYUVReader(r io.Reader, g h264.Geometry) (*YUVReader, error) {
	if g.Width <= 0 || g.Height <= 0 || g.Width&1 != 0 || g.Height&1 != 0 {
		return nil, errors.Errorf("yuv: invalid frame size %dx%d", g.Width, g.Height)
	}
	if g.MBWidth*16 < g.Width || g.MBHeight*16 < g.Height {
		return nil, errors.Errorf("yuv: macroblock grid %dx%d smaller than %dx%d",
			g.MBWidth, g.MBHeight, g.Width, g.Height)
	}
	return &YUVReader{r: bufio.NewReaderSize(r, g.Width*g.Height*3/2), geo: g}, nil
}

// FrameSize 每帧字节数
func (yr *YUVReader) FrameSize() int {
	return yr.geo.Width * yr.geo.Height * 3 / 2
}

// ReadFrame 读取下一帧，输入结束返回 io.EOF，帧不完整返回 io.ErrUnexpectedEOF
func (yr *YUVReader) ReadFrame() (*Frame, error) {
	f := NewFrame(yr.geo)
	w, h := yr.geo.Width, yr.geo.Height

	for y := 0; y < h; y++ {
		if _, err := io.ReadFull(yr.r, f.Y.Row(y)[:w]); err != nil {
			if y == 0 && err == io.EOF {
				return nil, io.EOF
			}
			return nil, errors.Wrapf(io.ErrUnexpectedEOF, "yuv: frame %d luma row %d", yr.index, y)
		}
	}
	for _, p := range [2]*pixel.Plane{f.U, f.V} {
		for y := 0; y < h/2; y++ {
			if _, err := io.ReadFull(yr.r, p.Row(y)[:w/2]); err != nil {
				return nil, errors.Wrapf(io.ErrUnexpectedEOF, "yuv: frame %d chroma row %d", yr.index, y)
			}
		}
	}

	f.Extend()
	f.Index = yr.index
	if f.sameContent(yr.prev) {
		f.dupe = yr.prev.root()
	}
	yr.index++
	yr.prev = f
	return f, nil
}
