package dicomio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeScalarsRoundTrip(t *testing.T) {
	e := NewBytesEncoder(binary.LittleEndian, ExplicitVR)
	e.WriteUInt16(0x1234)
	e.WriteUInt32(0xdeadbeef)
	e.WriteInt16(-7)
	e.WriteInt32(-70000)
	e.WriteFloat32(3.5)
	e.WriteFloat64(2.718281828)
	e.WriteString("hi")
	require.NoError(t, e.Error())

	d := NewBytesDecoder(e.Bytes(), binary.LittleEndian, ExplicitVR)
	require.Equal(t, uint16(0x1234), d.ReadUInt16())
	require.Equal(t, uint32(0xdeadbeef), d.ReadUInt32())
	require.Equal(t, int16(-7), d.ReadInt16())
	require.Equal(t, int32(-70000), d.ReadInt32())
	require.Equal(t, float32(3.5), d.ReadFloat32())
	require.Equal(t, 2.718281828, d.ReadFloat64())
	require.Equal(t, "hi", d.ReadString(2))
	require.NoError(t, d.Finish())
}

func TestDecoderLimitStack(t *testing.T) {
	e := NewBytesEncoder(binary.LittleEndian, ExplicitVR)
	e.WriteUInt16(1)
	e.WriteUInt16(2)
	e.WriteUInt16(3)

	d := NewBytesDecoder(e.Bytes(), binary.LittleEndian, ExplicitVR)
	d.PushLimit(2)
	require.Equal(t, uint16(1), d.ReadUInt16())
	require.True(t, d.EOF())
	d.PopLimit()

	require.Equal(t, uint16(2), d.ReadUInt16())
	require.Equal(t, uint16(3), d.ReadUInt16())
	require.True(t, d.EOF())
}

func TestPushPopTransferSyntax(t *testing.T) {
	d := NewBytesDecoder(nil, binary.LittleEndian, ImplicitVR)
	d.PushTransferSyntax(binary.BigEndian, ExplicitVR)
	bo, implicit := d.TransferSyntax()
	require.Equal(t, binary.BigEndian, bo)
	require.Equal(t, ExplicitVR, implicit)

	d.PopTransferSyntax()
	bo, implicit = d.TransferSyntax()
	require.Equal(t, binary.LittleEndian, bo)
	require.Equal(t, ImplicitVR, implicit)
}
