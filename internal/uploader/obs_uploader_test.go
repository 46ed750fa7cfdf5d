package uploader

import (
	"encoding/json"
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("runs", "abc"); got != "runs/abc.json" {
		t.Errorf("Expected runs/abc.json, got %s", got)
	}
	if got := ObjectKey("", "abc"); got != "abc.json" {
		t.Errorf("Expected abc.json, got %s", got)
	}
}

func TestRunRecordEncode(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := RunRecord{
		ID:        "abc",
		Outcome:   "finished",
		TotalMs:   2500,
		Ticks:     3,
		CreatedAt: created,
		EndedAt:   created.Add(3 * time.Second),
	}
	body, err := rec.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		t.Fatalf("Archived body is not JSON: %v", err)
	}
	if fields["outcome"] != "finished" || fields["total_ms"] != float64(2500) || fields["ticks"] != float64(3) {
		t.Errorf("Unexpected archived fields %v", fields)
	}
}
