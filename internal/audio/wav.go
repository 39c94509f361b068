// Package audio wraps raw PCM returned by the speech endpoint in a WAV container.
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"regexp"
	"strconv"

	"commlink/internal/logging"
)

const (
	// MimeWAV is the container type of every Clip this package produces.
	MimeWAV = "audio/wav"

	// DefaultSampleRate applies when the source mime type carries no rate.
	DefaultSampleRate = 16000
	// MaxSampleRate is the highest rate accepted; anything above falls back
	// to DefaultSampleRate.
	MaxSampleRate = 384000

	headerSize    = 44
	channels      = 1
	bitsPerSample = 16
	blockAlign    = channels * bitsPerSample / 8
)

var rateRe = regexp.MustCompile(`rate=(\d+)`)

// Clip is a playable in-memory audio container.
type Clip struct {
	Data     []byte
	MimeType string
}

// Len returns the container size in bytes.
func (c Clip) Len() int { return len(c.Data) }

// PCM16ToWAV prefixes raw little-endian mono 16-bit samples with a RIFF/WAVE
// header. It never fails; empty input yields a header-only clip. A trailing
// half sample is dropped so the data chunk holds whole frames.
func PCM16ToWAV(raw []byte, sampleRate int) Clip {
	if sampleRate <= 0 || sampleRate > MaxSampleRate {
		sampleRate = DefaultSampleRate
	}
	raw = raw[:len(raw)-len(raw)%blockAlign]
	dataSize := uint32(len(raw))

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(raw)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign)) // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(raw)

	return Clip{Data: buf.Bytes(), MimeType: MimeWAV}
}

// ParseSampleRate extracts N from a mime type such as "audio/L16;rate=24000".
func ParseSampleRate(mime string) int {
	m := rateRe.FindStringSubmatch(mime)
	if m == nil {
		return DefaultSampleRate
	}
	rate, err := strconv.Atoi(m[1])
	if err != nil || rate <= 0 || rate > MaxSampleRate {
		return DefaultSampleRate
	}
	return rate
}

// DecodeInline decodes a base64 inline-data payload and wraps it as WAV.
// Undecodable input degrades to an empty clip rather than an error.
func DecodeInline(b64, mime string) Clip {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		logging.Get(logging.CategoryAudio).Warn("inline audio is not valid base64 (%d chars): %v", len(b64), err)
		raw = nil
	}
	rate := ParseSampleRate(mime)
	logging.Get(logging.CategoryAudio).Debug("decoded %d PCM bytes at %d Hz", len(raw), rate)
	return PCM16ToWAV(raw, rate)
}
