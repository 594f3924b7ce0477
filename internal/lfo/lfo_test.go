package lfo

import (
	"math"
	"testing"
)

func TestZeroValueInactive(t *testing.T) {
	var l LFO
	if l.Active() {
		t.Fatal("zero LFO active")
	}
	if v := l.Sample(44100); v != 0 {
		t.Fatalf("sample=%f", v)
	}
	if l = New(1, 0, Sine); l.Active() {
		t.Fatal("zero rate active")
	}
}

func TestShapesStayInDepth(t *testing.T) {
	for _, shape := range []Shape{Sine, Triangle, Square, Saw} {
		l := New(0.5, 5, shape)
		var lo, hi float64
		for i := 0; i < 44100; i++ {
			v := l.Sample(44100)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi > 0.5+1e-9 || lo < -0.5-1e-9 {
			t.Errorf("shape %d out of range [%f,%f]", shape, lo, hi)
		}
		if hi < 0.45 || lo > -0.45 {
			t.Errorf("shape %d does not reach depth [%f,%f]", shape, lo, hi)
		}
	}
}

func TestSineStartsAtZeroAndPeaksAtQuarter(t *testing.T) {
	l := New(1, 1, Sine)
	if v := l.Sample(4); v != 0 {
		t.Fatalf("phase 0 = %f", v)
	}
	if v := l.Sample(4); math.Abs(v-1) > 1e-9 {
		t.Fatalf("phase 0.25 = %f", v)
	}
}

func TestReset(t *testing.T) {
	l := New(1, 1, Saw)
	first := l.Sample(8)
	l.Sample(8)
	l.Sample(8)
	l.Reset()
	if v := l.Sample(8); v != first {
		t.Fatalf("after reset %f want %f", v, first)
	}
}

func TestUnknownShapeFallsBackToSine(t *testing.T) {
	l := New(1, 1, Shape(42))
	l.Sample(4)
	if v := l.Sample(4); math.Abs(v-1) > 1e-9 {
		t.Fatalf("got %f", v)
	}
}
