// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"encoding/base64"
	"runtime/debug"

	"github.com/cnotch/h264me/utils"
	"github.com/cnotch/h264me/utils/bits"
	"github.com/pkg/errors"
)

var (
	errShortSPS = errors.New("sps: the data is not enough")
	errNotSPS   = errors.New("sps: not is sps NAL UNIT")
)

// RawSPS 序列参数集中与图像几何相关的句法元素，VUI 不解析
type RawSPS struct {
	NalRefIdc   uint8
	NalUnitType uint8

	ProfileIdc        uint8
	ConstraintFlags   uint8 // constraint_set0..5_flag 与保留位
	LevelIdc          uint8
	SeqParameterSetID uint8

	ChromaFormatIdc         uint8
	SeparateColourPlaneFlag uint8
	BitDepthLumaMinus8      uint8
	BitDepthChromaMinus8    uint8

	Log2MaxFrameNumMinus4       uint8
	PicOrderCntType             uint8
	Log2MaxPicOrderCntLsbMinus4 uint8

	MaxNumRefFrames           uint8
	GapsInFrameNumAllowedFlag uint8

	PicWidthInMbsMinus1       uint16
	PicHeightInMapUnitsMinus1 uint16

	// frame_mbs_only_flag 为 0 时序列可能包含场或帧场自适应图像
	FrameMbsOnlyFlag         uint8
	MbAdaptiveFrameFieldFlag uint8
	// direct_8x8_inference_flag 直接模式以 8x8 为单位推导
	Direct8x8InferenceFlag uint8

	FrameCroppingFlag     uint8
	FrameCropLeftOffset   uint16
	FrameCropRightOffset  uint16
	FrameCropTopOffset    uint16
	FrameCropBottomOffset uint16
}

// Geometry 运动估计使用的图像几何
type Geometry struct {
	Width      int  `json:"width"`  // 裁剪后亮度宽度
	Height     int  `json:"height"` // 裁剪后亮度高度
	MBWidth    int  `json:"mb_width"`
	MBHeight   int  `json:"mb_height"` // 帧宏块行数
	Interlaced bool `json:"interlaced"`
	MBAFF      bool `json:"mbaff"`
	Direct8x8  bool `json:"direct8x8"`
	MaxRefs    int  `json:"max_refs"`
}

// MBWidth 宏块列数
func (sps *RawSPS) MBWidth() int {
	return int(sps.PicWidthInMbsMinus1) + 1
}

// MBHeight 帧宏块行数
func (sps *RawSPS) MBHeight() int {
	return (2 - int(sps.FrameMbsOnlyFlag)) * (int(sps.PicHeightInMapUnitsMinus1) + 1)
}

// cropUnit 裁剪偏移的单位
func (sps *RawSPS) cropUnit() (x, y int) {
	x, y = 1, 1
	if sps.SeparateColourPlaneFlag == 0 {
		switch sps.ChromaFormatIdc {
		case 1:
			x, y = 2, 2
		case 2:
			x, y = 2, 1
		}
	}
	return x, y * (2 - int(sps.FrameMbsOnlyFlag))
}

// Width 视频宽度（像素）
func (sps *RawSPS) Width() int {
	cx, _ := sps.cropUnit()
	return sps.MBWidth()*16 - cx*int(sps.FrameCropLeftOffset+sps.FrameCropRightOffset)
}

// Height 视频高度（像素）
func (sps *RawSPS) Height() int {
	_, cy := sps.cropUnit()
	return sps.MBHeight()*16 - cy*int(sps.FrameCropTopOffset+sps.FrameCropBottomOffset)
}

// Geometry 返回图像几何
func (sps *RawSPS) Geometry() Geometry {
	return Geometry{
		Width:      sps.Width(),
		Height:     sps.Height(),
		MBWidth:    sps.MBWidth(),
		MBHeight:   sps.MBHeight(),
		Interlaced: sps.FrameMbsOnlyFlag == 0,
		MBAFF:      sps.MbAdaptiveFrameFieldFlag == 1,
		Direct8x8:  sps.Direct8x8InferenceFlag == 1,
		MaxRefs:    int(sps.MaxNumRefFrames),
	}
}

// DecodeString 从 base64 字串解码 sps NAL
func (sps *RawSPS) DecodeString(b64 string) error {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return errors.Wrap(err, "sps: base64")
	}
	return sps.Decode(data)
}

// Decode 从字节序列中解码 sps NAL
func (sps *RawSPS) Decode(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("sps: decode panic; r = %v \n %s", r, debug.Stack())
		}
	}()

	rbsp := utils.RemoveEmulationBytes(data)
	if len(rbsp) < 4 {
		return errShortSPS
	}

	r := bits.NewReader(rbsp)
	if r.ReadBit() != 0 {
		return errors.New("sps: forbidden_zero_bit is set")
	}
	sps.NalRefIdc = r.ReadUint8(2)
	sps.NalUnitType = r.ReadUint8(5)
	if sps.NalUnitType != NalSps {
		return errNotSPS
	}

	sps.ProfileIdc = r.ReadUint8(8)
	sps.ConstraintFlags = r.ReadUint8(8)
	sps.LevelIdc = r.ReadUint8(8)
	sps.SeqParameterSetID = r.ReadUe8()

	switch sps.ProfileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		sps.ChromaFormatIdc = r.ReadUe8()
		if sps.ChromaFormatIdc == 3 {
			sps.SeparateColourPlaneFlag = r.ReadBit()
		}
		sps.BitDepthLumaMinus8 = r.ReadUe8()
		sps.BitDepthChromaMinus8 = r.ReadUe8()
		r.Skip(1) // qpprime_y_zero_transform_bypass_flag

		if r.ReadBool() {
			n := 8
			if sps.ChromaFormatIdc == 3 {
				n = 12
			}
			for i := 0; i < n; i++ {
				if r.ReadBool() {
					skipScalingList(r, i)
				}
			}
		}
	case 183:
		sps.ChromaFormatIdc = 0
	default:
		sps.ChromaFormatIdc = 1
	}

	sps.Log2MaxFrameNumMinus4 = r.ReadUe8()
	sps.PicOrderCntType = r.ReadUe8()
	switch sps.PicOrderCntType {
	case 0:
		sps.Log2MaxPicOrderCntLsbMinus4 = r.ReadUe8()
	case 1:
		r.Skip(1) // delta_pic_order_always_zero_flag
		r.ReadSe() // offset_for_non_ref_pic
		r.ReadSe() // offset_for_top_to_bottom_field
		n := r.ReadUe()
		for i := uint32(0); i < n; i++ {
			r.ReadSe() // offset_for_ref_frame
		}
	}

	sps.MaxNumRefFrames = r.ReadUe8()
	sps.GapsInFrameNumAllowedFlag = r.ReadBit()
	sps.PicWidthInMbsMinus1 = r.ReadUe16()
	sps.PicHeightInMapUnitsMinus1 = r.ReadUe16()

	sps.FrameMbsOnlyFlag = r.ReadBit()
	sps.MbAdaptiveFrameFieldFlag = 0
	if sps.FrameMbsOnlyFlag == 0 {
		sps.MbAdaptiveFrameFieldFlag = r.ReadBit()
	}
	sps.Direct8x8InferenceFlag = r.ReadBit()

	sps.FrameCroppingFlag = r.ReadBit()
	if sps.FrameCroppingFlag == 1 {
		sps.FrameCropLeftOffset = r.ReadUe16()
		sps.FrameCropRightOffset = r.ReadUe16()
		sps.FrameCropTopOffset = r.ReadUe16()
		sps.FrameCropBottomOffset = r.ReadUe16()
	} else {
		sps.FrameCropLeftOffset, sps.FrameCropRightOffset = 0, 0
		sps.FrameCropTopOffset, sps.FrameCropBottomOffset = 0, 0
	}

	if sps.Width() <= 0 || sps.Height() <= 0 {
		return errors.Errorf("sps: invalid cropped size %dx%d", sps.Width(), sps.Height())
	}
	return nil
}

// skipScalingList 跳过第 i 个缩放矩阵
func skipScalingList(r *bits.Reader, i int) {
	size := 16
	if i >= 6 {
		size = 64
	}
	last, next := 8, 8
	for j := 0; j < size; j++ {
		if next != 0 {
			next = (last + int(r.ReadSe()) + 256) % 256
		}
		if next != 0 {
			last = next
		}
	}
}
