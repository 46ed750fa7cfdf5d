package observer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Slade66/hourglass/internal/hourglass"
)

var _ hourglass.Listener = (*CountdownBar)(nil)

func TestFormatRemaining(t *testing.T) {
	cases := map[time.Duration]string{
		0:                      "00:00",
		-time.Second:           "00:00",
		500 * time.Millisecond: "00:01",
		59 * time.Second:       "00:59",
		25 * time.Minute:       "25:00",
		time.Hour + 2*time.Minute + 3*time.Second: "1:02:03",
	}
	for d, want := range cases {
		if got := FormatRemaining(d); got != want {
			t.Errorf("FormatRemaining(%v) = %q, expected %q", d, got, want)
		}
	}
}

func TestCountdownBarDraws(t *testing.T) {
	var buf bytes.Buffer
	bar := NewCountdownBar(&buf, 4*time.Second)

	bar.Render(4 * time.Second)
	if !strings.Contains(buf.String(), "["+strings.Repeat(" ", 40)+"] 00:04 remaining") {
		t.Errorf("Expected an empty bar, got %q", buf.String())
	}

	buf.Reset()
	bar.OnTimerTick(2 * time.Second)
	if !strings.Contains(buf.String(), "["+strings.Repeat("=", 20)+strings.Repeat(" ", 20)+"] 00:02") {
		t.Errorf("Expected a half bar, got %q", buf.String())
	}
	if !strings.HasPrefix(buf.String(), "\r") {
		t.Errorf("Expected the line to be redrawn in place, got %q", buf.String())
	}

	buf.Reset()
	bar.OnTimerTick(0)
	bar.OnTimerFinish()
	out := buf.String()
	if !strings.Contains(out, strings.Repeat("=", 40)) || !strings.Contains(out, "time is up (00:04)") {
		t.Errorf("Expected a full bar and completion line, got %q", out)
	}
}
