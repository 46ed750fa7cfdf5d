package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Slade66/hourglass/internal/api"
	"github.com/Slade66/hourglass/internal/queue"
	"github.com/Slade66/hourglass/internal/status"
	"github.com/Slade66/hourglass/pkg/task"
)

const testStream = "hourglass_commands"

func newTestClient(t *testing.T) (*Client, *redis.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := api.NewServer(queue.NewPublisher(rdb, testStream), status.NewManager(rdb, time.Hour), zerolog.Nop())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return New(srv.URL + "/"), rdb
}

func TestCreateGetList(t *testing.T) {
	c, rdb := newTestClient(t)
	ctx := context.Background()

	id, err := c.Create(ctx, 90*time.Second, true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("Expected a uuid, got %q", id)
	}
	if n, _ := rdb.XLen(ctx, testStream).Result(); n != 1 {
		t.Errorf("Expected one autostarting create to be queued, got %d messages", n)
	}

	info, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if info.State != "idle" || info.TotalMs != 90000 {
		t.Errorf("Unexpected status %+v", info)
	}

	infos, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != id {
		t.Errorf("Unexpected list %+v", infos)
	}
}

func TestAct(t *testing.T) {
	c, rdb := newTestClient(t)
	ctx := context.Background()

	id, err := c.Create(ctx, time.Minute, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	var apiErr *APIError
	if err := c.Act(ctx, id, task.ActionPause); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Errorf("Expected a 409 before a worker owns the hourglass, got %v", err)
	}

	if err := status.NewManager(rdb, time.Hour).Claim(ctx, id, "host-a", time.Minute); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := c.Act(ctx, id, task.ActionPause); err != nil {
		t.Fatalf("Act failed: %v", err)
	}
	if n, _ := rdb.XLen(ctx, queue.OwnerStream(testStream, "host-a")).Result(); n != 1 {
		t.Errorf("Expected the pause on the owner stream, got %d", n)
	}

	if err := c.Act(ctx, uuid.NewString(), task.ActionStart); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := c.Act(ctx, id, task.Action("explode")); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected a 400 APIError, got %v", err)
	}
}

func TestGetErrors(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	var apiErr *APIError
	if _, err := c.Get(ctx, "not-a-uuid"); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected a 400 APIError, got %v", err)
	}
}

func TestGetClientIsShared(t *testing.T) {
	if GetClient() != GetClient() {
		t.Error("Expected the same http.Client on every call")
	}
}
