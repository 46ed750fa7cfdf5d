package chime

import (
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep"
)

func TestToneLength(t *testing.T) {
	rate := beep.SampleRate(8000)
	s, err := Tone(rate, 440, 100*time.Millisecond, -1)
	if err != nil {
		t.Fatalf("Tone failed: %v", err)
	}

	buf := make([][2]float64, 128)
	total := 0
	peak := 0.0
	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			peak = math.Max(peak, math.Abs(buf[i][0]))
		}
		total += n
		if !ok {
			break
		}
	}

	if total != 800 {
		t.Errorf("Expected 800 samples, got %d", total)
	}
	if peak == 0 || peak > 0.5+1e-9 {
		t.Errorf("Expected a halved, non-silent tone, peak was %f", peak)
	}
}

func TestToneRejectsAliasedFrequency(t *testing.T) {
	if _, err := Tone(beep.SampleRate(8000), 5000, time.Second, 0); err == nil {
		t.Error("Expected a frequency above Nyquist to be rejected")
	}
}
