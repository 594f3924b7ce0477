package transport

import (
	"fmt"
	"math"
	"time"
)

const (
	MinBPM     = 40
	MaxBPM     = 300
	DefaultBPM = 120
)

func ClampBPM(bpm int) int {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

// SecondsPerStep is the length of one sixteenth-note step.
func SecondsPerStep(bpm int) float64 {
	return 60.0 / float64(ClampBPM(bpm)) / 4
}

func Interval(bpm int) time.Duration {
	return time.Duration(SecondsPerStep(bpm) * float64(time.Second))
}

// StepFrame is the sample offset of step at sampleRate.
func StepFrame(step, bpm, sampleRate int) int {
	return int(math.Round(float64(step) * SecondsPerStep(bpm) * float64(sampleRate)))
}

// FormatPosition renders a step position as mm:ss:cc where cc is
// hundredths of a second.
func FormatPosition(step, bpm int) string {
	secs := float64(step) * SecondsPerStep(bpm)
	total := int(math.Floor(secs*100 + 1e-9))
	return fmt.Sprintf("%02d:%02d:%02d", total/6000, total/100%60, total%100)
}
