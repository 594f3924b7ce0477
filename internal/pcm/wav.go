package pcm

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	headerSize    = 44
	bitsPerSample = 16
)

// emptyBuffer stands in for a nil buffer passed to Encode.
var emptyBuffer = Buffer{SampleRate: 44100, Channels: 2}

// KindDecode tags clip decoding failures.
const KindDecode ftag.Kind = "resource"

// Encode writes buf as a 16-bit PCM RIFF/WAVE file. Samples are hard
// clipped to [-1, 1] and scaled by 32767 without dithering; NaN samples are
// written as silence. A nil buffer yields an empty 44.1kHz stereo file.
func Encode(buf *Buffer) []byte {
	if buf == nil {
		buf = &emptyBuffer
	}
	channels := buf.Channels
	if channels <= 0 {
		channels = 1
	}
	blockAlign := channels * bitsPerSample / 8
	dataSize := buf.Frames() * blockAlign
	out := make([]byte, headerSize+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(buf.SampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(buf.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], bitsPerSample)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	n := dataSize / 2
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[headerSize+i*2:], uint16(quantize(buf.Samples[i])))
	}
	return out
}

func quantize(s float32) int16 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}

// DecodeWAV reads a PCM WAV clip into a float buffer.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fault.New("not a valid wav file",
			ftag.With(KindDecode),
			fmsg.WithDesc("invalid wav", "Could not read audio file"))
	}
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fault.Wrap(err,
			ftag.With(KindDecode),
			fmsg.WithDesc("decode wav", "Could not read audio file"))
	}
	channels := int(dec.NumChans)
	if ib.Format != nil && ib.Format.NumChannels > 0 {
		channels = ib.Format.NumChannels
	}
	if channels <= 0 {
		return nil, fault.New("wav has no channels", ftag.With(KindDecode),
			fmsg.WithDesc("no channels", "Could not read audio file"))
	}
	depth := int(dec.BitDepth)
	if depth <= 0 {
		depth = bitsPerSample
	}
	return &Buffer{
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		Samples:    normalise(ib, depth),
	}, nil
}

// normalise scales integer samples of the given bit depth to [-1, 1).
// 8-bit WAV data is unsigned.
func normalise(ib *audio.IntBuffer, depth int) []float32 {
	out := make([]float32, len(ib.Data))
	if depth == 8 {
		for i, v := range ib.Data {
			out[i] = float32(v-128) / 128
		}
		return out
	}
	scale := float32(int64(1) << (depth - 1))
	for i, v := range ib.Data {
		out[i] = float32(v) / scale
	}
	return out
}
