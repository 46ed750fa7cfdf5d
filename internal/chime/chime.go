// internal/chime/chime.go
package chime

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// Tone returns a sine tone of length d. volume follows beep's base-2 scale:
// 0 is unchanged, -1 is half amplitude.
func Tone(rate beep.SampleRate, freq float64, d time.Duration, volume float64) (beep.Streamer, error) {
	sine, err := generators.SineTone(rate, freq)
	if err != nil {
		return nil, fmt.Errorf("sine tone %.0fHz: %w", freq, err)
	}
	return &effects.Volume{
		Streamer: beep.Take(rate.N(d), sine),
		Base:     2,
		Volume:   volume,
	}, nil
}

// Play sounds a short two-note chime and blocks until it has been played.
func Play() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond))
	})
	if speakerErr != nil {
		return fmt.Errorf("init speaker: %w", speakerErr)
	}

	high, err := Tone(sampleRate, 880, 180*time.Millisecond, -1)
	if err != nil {
		return err
	}
	low, err := Tone(sampleRate, 660, 360*time.Millisecond, -1)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(high, low, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
