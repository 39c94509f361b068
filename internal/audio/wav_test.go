package audio

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCM16ToWAV_Header(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	clip := PCM16ToWAV(raw, 24000)

	require.Len(t, clip.Data, 44+len(raw))
	assert.Equal(t, MimeWAV, clip.MimeType)

	h := clip.Data
	le := binary.LittleEndian
	assert.Equal(t, "RIFF", string(h[0:4]))
	assert.Equal(t, uint32(36+len(raw)), le.Uint32(h[4:8]))
	assert.Equal(t, "WAVE", string(h[8:12]))
	assert.Equal(t, "fmt ", string(h[12:16]))
	assert.Equal(t, uint32(16), le.Uint32(h[16:20]))
	assert.Equal(t, uint16(1), le.Uint16(h[20:22]), "PCM format")
	assert.Equal(t, uint16(1), le.Uint16(h[22:24]), "mono")
	assert.Equal(t, uint32(24000), le.Uint32(h[24:28]))
	assert.Equal(t, uint32(48000), le.Uint32(h[28:32]), "byte rate")
	assert.Equal(t, uint16(2), le.Uint16(h[32:34]), "block align")
	assert.Equal(t, uint16(16), le.Uint16(h[34:36]))
	assert.Equal(t, "data", string(h[36:40]))
	assert.Equal(t, uint32(len(raw)), le.Uint32(h[40:44]))
	assert.Equal(t, raw, h[44:], "samples copied verbatim")
}

func TestPCM16ToWAV_Empty(t *testing.T) {
	clip := PCM16ToWAV(nil, 16000)
	require.Len(t, clip.Data, 44)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(clip.Data[40:44]))
	assert.Equal(t, uint32(36), binary.LittleEndian.Uint32(clip.Data[4:8]))
}

func TestPCM16ToWAV_NonPositiveRate(t *testing.T) {
	clip := PCM16ToWAV([]byte{0, 0}, 0)
	assert.Equal(t, uint32(DefaultSampleRate), binary.LittleEndian.Uint32(clip.Data[24:28]))
}

func TestPCM16ToWAV_OddLengthDropsHalfSample(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	clip := PCM16ToWAV(raw, 24000)

	le := binary.LittleEndian
	require.Len(t, clip.Data, 44+4)
	assert.Equal(t, uint32(4), le.Uint32(clip.Data[40:44]), "data size is a whole number of frames")
	assert.Equal(t, uint32(36+4), le.Uint32(clip.Data[4:8]))
	assert.Equal(t, raw[:4], clip.Data[44:])
}

func TestPCM16ToWAV_RateAboveMaxFallsBack(t *testing.T) {
	clip := PCM16ToWAV([]byte{0, 0}, 1<<30)
	le := binary.LittleEndian
	assert.Equal(t, uint32(DefaultSampleRate), le.Uint32(clip.Data[24:28]))
	assert.Equal(t, uint32(DefaultSampleRate*2), le.Uint32(clip.Data[28:32]))
}

func TestParseSampleRate(t *testing.T) {
	assert.Equal(t, 24000, ParseSampleRate("audio/L16;codec=pcm;rate=24000"))
	assert.Equal(t, 8000, ParseSampleRate("audio/L16; rate=8000"))
	assert.Equal(t, 16000, ParseSampleRate("audio/L16"))
	assert.Equal(t, 16000, ParseSampleRate(""))
	assert.Equal(t, 16000, ParseSampleRate("audio/L16;rate=0"))
	assert.Equal(t, MaxSampleRate, ParseSampleRate("audio/L16;rate=384000"))
	assert.Equal(t, 16000, ParseSampleRate("audio/L16;rate=384001"))
	assert.Equal(t, 16000, ParseSampleRate("audio/L16;rate=99999999999999999999999"))
}

func TestDecodeInline(t *testing.T) {
	raw := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	clip := DecodeInline(base64.StdEncoding.EncodeToString(raw), "audio/L16;rate=22050")

	require.Equal(t, 48, clip.Len())
	assert.Equal(t, uint32(22050), binary.LittleEndian.Uint32(clip.Data[24:28]))
	assert.Equal(t, raw, clip.Data[44:])
}

func TestDecodeInline_BadBase64DegradesToEmpty(t *testing.T) {
	clip := DecodeInline("!!not base64!!", "audio/L16;rate=24000")

	require.Equal(t, 44, clip.Len())
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(clip.Data[40:44]))
	assert.Equal(t, MimeWAV, clip.MimeType)
}
