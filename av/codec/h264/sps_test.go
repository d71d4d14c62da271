// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawSPS_Decode(t *testing.T) {
	tests := []struct {
		name   string
		b64    string
		chroma uint8
		want   Geometry
	}{
		{
			"high_720p",
			"Z2QAH6zZQFAFuhAAAAMAEAAAAwPI8YMZYA==",
			1,
			Geometry{Width: 1280, Height: 720, MBWidth: 80, MBHeight: 45, Direct8x8: true, MaxRefs: 4},
		},
		{
			"high422_720p",
			"Z3oAH7y0AoAt0IAAAAMAgAAAHkeMGVA=",
			2,
			Geometry{Width: 1280, Height: 720, MBWidth: 80, MBHeight: 45, Direct8x8: true, MaxRefs: 1},
		},
		{
			"high_2160p",
			"Z2QAM6wspADwAQ+wFSAgICgAAB9IAAdTBO0LFok=",
			1,
			Geometry{Width: 3840, Height: 2160, MBWidth: 240, MBHeight: 135, Direct8x8: true, MaxRefs: 3},
		},
		{
			"main_576i_mbaff",
			"Z00AHuygWhJk",
			1,
			Geometry{Width: 720, Height: 576, MBWidth: 45, MBHeight: 36,
				Interlaced: true, MBAFF: true, Direct8x8: true, MaxRefs: 4},
		},
		{
			"baseline_1080p_cropped",
			"Z0LAKNoB4AiflQ==",
			1,
			Geometry{Width: 1920, Height: 1080, MBWidth: 120, MBHeight: 68, Direct8x8: true, MaxRefs: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sps := &RawSPS{}
			require.NoError(t, sps.DecodeString(tt.b64))
			assert.Equal(t, uint8(NalSps), sps.NalUnitType)
			assert.Equal(t, tt.chroma, sps.ChromaFormatIdc)
			assert.Equal(t, tt.want, sps.Geometry())
		})
	}
}

func TestRawSPS_DecodeErrors(t *testing.T) {
	pps, _ := base64.StdEncoding.DecodeString("aOvjyyLA")
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte{0x67, 0x42}},
		{"not_sps", pps},
		{"truncated", []byte{0x67, 0x64, 0x00, 0x1f, 0xac}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sps := &RawSPS{}
			assert.Error(t, sps.Decode(tt.data))
		})
	}

	sps := &RawSPS{}
	assert.Error(t, sps.DecodeString("!!not base64"))
}

func TestNalType(t *testing.T) {
	assert.Equal(t, byte(NalSps), NalType(0x67))
	assert.True(t, IsSps(0x27))
	assert.False(t, IsSps(0x68))
}
