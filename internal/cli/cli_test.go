package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/Slade66/hourglass/internal/history"
	"github.com/Slade66/hourglass/internal/hourglass"
)

func newTestHourglass(t *testing.T, d time.Duration) (*hourglass.Hourglass, *testingclock.FakeClock) {
	t.Helper()
	fc := testingclock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	hg, err := hourglass.NewWithDuration(d, hourglass.WithClock(fc), hourglass.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewWithDuration failed: %v", err)
	}
	t.Cleanup(hg.Cancel)
	return hg, fc
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func awaitState(t *testing.T, result <-chan hourglass.State) hourglass.State {
	t.Helper()
	select {
	case s := <-result:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not return")
		return hourglass.StateIdle
	}
}

func TestCountdownFinishes(t *testing.T) {
	hg, fc := newTestHourglass(t, 2*time.Second)

	result := make(chan hourglass.State, 1)
	go func() {
		state, err := countdown(context.Background(), hg, nil, io.Discard)
		if err != nil {
			t.Errorf("countdown failed: %v", err)
		}
		result <- state
	}()

	for i := 0; i < 2; i++ {
		waitFor(t, fc.HasWaiters, "tick timer")
		fc.Step(hourglass.TickInterval)
	}
	if s := awaitState(t, result); s != hourglass.StateFinished {
		t.Errorf("Expected finished, got %s", s)
	}
}

func TestCountdownPauseResumeCancel(t *testing.T) {
	hg, _ := newTestHourglass(t, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	toggle := make(chan os.Signal, 1)
	var notes bytes.Buffer
	result := make(chan hourglass.State, 1)
	go func() {
		state, _ := countdown(ctx, hg, toggle, &notes)
		result <- state
	}()

	waitFor(t, func() bool { return hg.State() == hourglass.StateRunning }, "start")
	toggle <- syscall.SIGUSR1
	waitFor(t, func() bool { return hg.State() == hourglass.StatePaused }, "pause")
	toggle <- syscall.SIGUSR1
	waitFor(t, func() bool { return hg.State() == hourglass.StateRunning }, "resume")
	cancel()

	if s := awaitState(t, result); s != hourglass.StateCancelled {
		t.Errorf("Expected cancelled, got %s", s)
	}
	out := notes.String()
	if !strings.Contains(out, "paused with 00:05 left") || !strings.Contains(out, "resumed") {
		t.Errorf("Unexpected notes %q", out)
	}
}

func TestCountdownRejectsStartedHourglass(t *testing.T) {
	hg, _ := newTestHourglass(t, time.Minute)
	if err := hg.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := countdown(context.Background(), hg, nil, io.Discard); err == nil {
		t.Error("Expected countdown of a running hourglass to fail")
	}
}

func TestRecordRunAndHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	now := time.Now()
	run := &history.Run{
		Outcome:   "finished",
		Total:     25 * time.Minute,
		StartedAt: now.Add(-25 * time.Minute),
		EndedAt:   now,
	}
	if err := recordRun(context.Background(), path, run); err != nil {
		t.Fatalf("recordRun failed: %v", err)
	}
	if run.ID == 0 {
		t.Error("Expected the run to get an ID")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", "--config", filepath.Join(t.TempDir(), "none.yaml"), "--path", path})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("history command failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{"OUTCOME", "25:00", "finished", "1 sessions, 1 finished, 0 cancelled"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestPrintHistoryEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := printHistory(&out, nil, &history.Stats{}, time.Now()); err != nil {
		t.Fatalf("printHistory failed: %v", err)
	}
	if !strings.Contains(out.String(), "no runs recorded yet") {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func writeConfig(t *testing.T, historyPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hourglass.yaml")
	body := "history:\n  path: " + historyPath + "\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestRunAndHistoryShareConfiguredDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("counts down one real second")
	}
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	configFile := writeConfig(t, dbPath)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--config", configFile, "--duration", "1s", "--quiet", "--history=", "--no-history=false"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if historyDB("") != dbPath {
		t.Errorf("Expected the configured database, got %q", historyDB(""))
	}

	out.Reset()
	rootCmd.SetArgs([]string{"history", "--config", configFile, "--path="})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "finished") || !strings.Contains(got, "1 sessions, 1 finished") {
		t.Errorf("Expected the run to show up in history, got:\n%s", got)
	}
}

func TestHistoryDBPrefersFlag(t *testing.T) {
	rootCmd.SetArgs([]string{"history", "--config", writeConfig(t, filepath.Join(t.TempDir(), "cfg.db")), "--path", filepath.Join(t.TempDir(), "flag.db")})
	rootCmd.SetOut(io.Discard)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if got := historyDB("flag.db"); got != "flag.db" {
		t.Errorf("Expected the flag to win, got %q", got)
	}
	if got := historyDB(""); !strings.HasSuffix(got, "cfg.db") {
		t.Errorf("Expected the configured database, got %q", got)
	}
}
