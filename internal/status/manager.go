package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Slade66/hourglass/internal/hourglass"
)

// ErrNotFound 表示该 id 没有状态记录
var ErrNotFound = errors.New("status: hourglass not found")

const keyPrefix = "hourglass:status:"

// StatusInfo 定义了沙漏状态的详细信息，以 Hash 形式存入 Redis，也用于JSON序列化
type StatusInfo struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	TotalMs     int64  `json:"total_ms"`
	RemainingMs int64  `json:"remaining_ms"`
	Owner       string `json:"owner,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	FinishedAt  string `json:"finished_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Manager 结构体封装了与Redis的交互
type Manager struct {
	rdb       redis.Cmdable
	retention time.Duration
}

// NewManager 创建一个新的状态管理器实例
// 结束或取消的记录在 retention 之后过期，为 0 则永久保留
func NewManager(rdb redis.Cmdable, retention time.Duration) *Manager {
	return &Manager{rdb: rdb, retention: retention}
}

// statusKey 返回一个沙漏状态在Redis中的键名
func statusKey(id string) string {
	return keyPrefix + id
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Init 初始化一个新沙漏的状态为 "idle"
func (m *Manager) Init(ctx context.Context, id string, total time.Duration) error {
	info := StatusInfo{
		ID:          id,
		State:       hourglass.StateIdle.String(),
		TotalMs:     total.Milliseconds(),
		RemainingMs: total.Milliseconds(),
		CreatedAt:   now(),
	}
	fields, err := structToMap(info)
	if err != nil {
		return err
	}
	if err := m.rdb.HSet(ctx, statusKey(id), fields).Err(); err != nil {
		return fmt.Errorf("init status %s: %w", id, err)
	}
	return nil
}

// UpdateState 更新 'state' 字段和剩余时间
// 如果沙漏结束或被取消，则记录完成时间并设置过期
func (m *Manager) UpdateState(ctx context.Context, id string, state hourglass.State, remaining time.Duration) error {
	key := statusKey(id)
	ts := now()
	fields := map[string]interface{}{
		"state":        state.String(),
		"remaining_ms": remaining.Milliseconds(),
		"updated_at":   ts,
	}
	if state.Terminal() {
		fields["finished_at"] = ts
	}

	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if state.Terminal() && m.retention > 0 {
			pipe.Expire(ctx, key, m.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update status %s: %w", id, err)
	}
	return nil
}

// UpdateRemaining 记录最近一次 tick 的剩余时间
func (m *Manager) UpdateRemaining(ctx context.Context, id string, remaining time.Duration) error {
	err := m.rdb.HSet(ctx, statusKey(id), map[string]interface{}{
		"remaining_ms": remaining.Milliseconds(),
		"updated_at":   now(),
	}).Err()
	if err != nil {
		return fmt.Errorf("update remaining %s: %w", id, err)
	}
	return nil
}

// UpdateError 记录最近一条命令被拒绝的原因，状态保持不变
func (m *Manager) UpdateError(ctx context.Context, id, errMsg string) error {
	err := m.rdb.HSet(ctx, statusKey(id), map[string]interface{}{
		"error":      errMsg,
		"updated_at": now(),
	}).Err()
	if err != nil {
		return fmt.Errorf("update error %s: %w", id, err)
	}
	return nil
}

// Claim 记录持有该沙漏的 worker
// 只有在 API 尚未创建记录时才补全 id、total_ms、created_at 等字段
func (m *Manager) Claim(ctx context.Context, id, owner string, total time.Duration) error {
	key := statusKey(id)
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "id", id)
		pipe.HSetNX(ctx, key, "total_ms", total.Milliseconds())
		pipe.HSetNX(ctx, key, "remaining_ms", total.Milliseconds())
		pipe.HSetNX(ctx, key, "state", hourglass.StateIdle.String())
		pipe.HSetNX(ctx, key, "created_at", now())
		pipe.HSet(ctx, key, "owner", owner, "updated_at", now())
		return nil
	})
	if err != nil {
		return fmt.Errorf("claim %s for %s: %w", id, owner, err)
	}
	return nil
}

// Get 获取单个沙漏的状态信息
func (m *Manager) Get(ctx context.Context, id string) (*StatusInfo, error) {
	data, err := m.rdb.HGetAll(ctx, statusKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("read status %s: %w", id, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	info := fromHash(data)
	return &info, nil
}

// List 获取所有沙漏的状态信息，按创建时间排序
func (m *Manager) List(ctx context.Context) ([]StatusInfo, error) {
	keys, err := m.rdb.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list status keys: %w", err)
	}

	infos := make([]StatusInfo, 0, len(keys))
	for _, key := range keys {
		data, err := m.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		// 键可能在 KEYS 和 HGETALL 之间过期，跳过它
		if len(data) == 0 {
			continue
		}
		infos = append(infos, fromHash(data))
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt == infos[j].CreatedAt {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt < infos[j].CreatedAt
	})
	return infos, nil
}

func fromHash(data map[string]string) StatusInfo {
	total, _ := strconv.ParseInt(data["total_ms"], 10, 64)
	remaining, _ := strconv.ParseInt(data["remaining_ms"], 10, 64)
	return StatusInfo{
		ID:          data["id"],
		State:       data["state"],
		TotalMs:     total,
		RemainingMs: remaining,
		Owner:       data["owner"],
		CreatedAt:   data["created_at"],
		UpdatedAt:   data["updated_at"],
		FinishedAt:  data["finished_at"],
		Error:       data["error"],
	}
}

// structToMap 是一个辅助函数，用于将结构体转换为 map
// 删除空的字段，避免在 Redis 中存储空值
func structToMap(s StatusInfo) (map[string]interface{}, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if vs, ok := v.(string); ok && vs == "" {
			delete(fields, k)
		}
	}
	return fields, nil
}
