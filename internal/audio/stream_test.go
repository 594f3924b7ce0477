package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
)

type rampSource struct{ n float32 }

func (s *rampSource) Process(dst []float32) {
	for i := range dst {
		s.n += 0.25
		dst[i] = s.n
	}
}

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	p := make([]byte, 19)
	n, err := r.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 16 {
		t.Fatalf("n=%d want 16 (two whole frames)", n)
	}
	for i, want := range []float32{0.25, 0.5, 0.75, 1} {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != want {
			t.Errorf("sample %d=%f want %f", i, got, want)
		}
	}
}

func TestStreamReaderShortBuffer(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	if n, err := r.Read(make([]byte, 7)); n != 0 || err != nil {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestStreamReaderEOFAfterClose(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	r.Close()
	if _, err := r.Read(make([]byte, 64)); err != io.EOF {
		t.Fatalf("err=%v want EOF", err)
	}
}
