// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var bitsDatas = [][]byte{
	{0x46, 0x4c, 0x56, 0x01, 0x05, 0x00, 0x00, 0x00, 0x09},
	{
		0x47, 0x40, 0x00, 0x10, 0x00,
		0x00, 0xb0, 0x0d, 0x00, 0x01, 0xc1, 0x00, 0x00,
		0x00, 0x01, 0xf0, 0x01,
		0x2e, 0x70, 0x19, 0x05,
	},
	// ue: 0 1 2 3 4
	{0xa6, 0x42, 0x80},
}

func TestReader_ReadBit(t *testing.T) {
	r := NewReader(bitsDatas[0])
	assert.Equal(t, uint8(0), r.ReadBit())
	assert.Equal(t, uint8(1), r.ReadBit())
	r.Skip(3)
	assert.Equal(t, uint8(1), r.ReadBit())
	assert.Equal(t, uint8(1), r.ReadBit())
	r.Skip(5)
	assert.Equal(t, uint8(1), r.ReadBit())
	assert.True(t, r.ReadBool())
	assert.False(t, r.ReadBool())
	assert.Equal(t, uint8(0x2b), r.ReadUint8(8))
	assert.Equal(t, 23, r.Offset())
	assert.Equal(t, 72-23, r.BitsLeft())
}

func TestReader_ReadUint(t *testing.T) {
	r := NewReader(bitsDatas[0])
	assert.Equal(t, uint16(0x464c), r.ReadUint16(16))
	r.Skip(4)
	assert.Equal(t, uint16(0x6010), r.ReadUint16(16))
	r.Skip(1)
	assert.Equal(t, uint16(0x2), r.ReadUint16(2))

	r = NewReader(bitsDatas[1])
	assert.Equal(t, uint64(0x4), r.Peek(4))
	assert.Equal(t, uint32(0x47400010), r.ReadUint32(32))
	r.Skip(4)
	assert.Equal(t, uint32(0x000b00d0), r.ReadUint32(32))
	r.Skip(8)
	assert.Equal(t, uint32(0x1c1), r.ReadUint32(12))

	r = NewReader(bitsDatas[1])
	assert.Equal(t, uint64(0x474000100), r.ReadUint64(36))
	assert.Zero(t, r.ReadUint8(9))
}

func TestReader_ExpGolomb(t *testing.T) {
	r := NewReader(bitsDatas[2])
	for _, want := range []uint32{0, 1, 2, 3, 4} {
		assert.Equal(t, want, r.ReadUe())
	}

	r = NewReader(bitsDatas[2])
	for _, want := range []int32{0, 1, -1, 2, -2} {
		assert.Equal(t, want, r.ReadSe())
	}

	r = NewReader(bitsDatas[2])
	assert.Equal(t, uint8(0), r.ReadUe8())
	assert.Equal(t, uint16(1), r.ReadUe16())
}

func TestReader_Overrun(t *testing.T) {
	r := NewReader([]byte{0x00, 0x00, 0x00, 0x00, 0x00})
	assert.Panics(t, func() { r.ReadUe() })

	r = NewReader([]byte{0xff})
	r.Skip(8)
	assert.Panics(t, func() { r.ReadBit() })
}

func BenchmarkReadUint32(b *testing.B) {
	r := NewReader(bitsDatas[1])
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.offset = 2
		ret := r.ReadUint32(29)
		_ = ret
	}
}
