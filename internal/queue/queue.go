// internal/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Slade66/hourglass/pkg/task"
)

const payloadField = "payload"

var (
	// ErrNoMessage is returned by Read when the block timeout passes without a command.
	ErrNoMessage = errors.New("queue: no message")
	// ErrBadPayload is returned by Read for a message that cannot be decoded.
	// The message id is still set so the caller can ack and skip it.
	ErrBadPayload = errors.New("queue: bad payload")
)

// Publisher appends commands to the stream.
type Publisher struct {
	rdb    redis.Cmdable
	stream string
}

func NewPublisher(rdb redis.Cmdable, stream string) *Publisher {
	return &Publisher{rdb: rdb, stream: stream}
}

// Publish adds cmd to the shared stream, where any worker of the group can
// take it. Only creates go here.
func (p *Publisher) Publish(ctx context.Context, cmd task.Command) (string, error) {
	return p.publish(ctx, p.stream, cmd)
}

// PublishTo adds cmd to the stream of the worker that owns the hourglass.
func (p *Publisher) PublishTo(ctx context.Context, owner string, cmd task.Command) (string, error) {
	return p.publish(ctx, OwnerStream(p.stream, owner), cmd)
}

func (p *Publisher) publish(ctx context.Context, stream string, cmd task.Command) (string, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("encode command: %w", err)
	}
	id, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{payloadField: payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publish %s for %s to %s: %w", cmd.Action, cmd.HourglassID, stream, err)
	}
	return id, nil
}

// OwnerStream names the stream that only the consumer owner reads.
func OwnerStream(stream, owner string) string {
	return stream + ":" + owner
}

// Message is one delivered stream entry.
type Message struct {
	ID      string
	Stream  string
	Command task.Command

	err error
}

// Consumer reads commands as a member of a consumer group. It reads the
// shared stream and its own owner stream.
type Consumer struct {
	rdb      redis.Cmdable
	stream   string
	group    string
	consumer string
	block    time.Duration

	// entries delivered by the last XREADGROUP and not yet returned
	pending []Message
}

func NewConsumer(rdb redis.Cmdable, stream, group, consumer string, block time.Duration) *Consumer {
	return &Consumer{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    block,
	}
}

// Name is the consumer name, which is also the owner recorded for the
// hourglasses this consumer creates.
func (c *Consumer) Name() string {
	return c.consumer
}

func (c *Consumer) streams() []string {
	return []string{c.stream, OwnerStream(c.stream, c.consumer)}
}

// EnsureGroup creates the consumer group on the shared and the owner stream
// if missing. created reports whether the shared stream's group was new.
func (c *Consumer) EnsureGroup(ctx context.Context) (created bool, err error) {
	for i, stream := range c.streams() {
		err := c.rdb.XGroupCreateMkStream(ctx, stream, c.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return false, fmt.Errorf("create consumer group %s on %s: %w", c.group, stream, err)
		}
		if i == 0 {
			created = err == nil
		}
	}
	return created, nil
}

// Read blocks for the next new command on either stream. Zero block waits
// forever. A message that cannot be decoded is returned with ErrBadPayload.
func (c *Consumer) Read(ctx context.Context) (Message, error) {
	if len(c.pending) == 0 {
		if err := c.fetch(ctx); err != nil {
			return Message{}, err
		}
	}
	if len(c.pending) == 0 {
		return Message{}, ErrNoMessage
	}
	msg := c.pending[0]
	c.pending = c.pending[1:]
	return msg, msg.err
}

func (c *Consumer) fetch(ctx context.Context) error {
	streams := c.streams()
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  append(streams, ">", ">"),
		Count:    1,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNoMessage
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", strings.Join(streams, ","), err)
	}

	for _, stream := range res {
		for _, raw := range stream.Messages {
			c.pending = append(c.pending, decode(stream.Stream, raw))
		}
	}
	return nil
}

func decode(stream string, raw redis.XMessage) Message {
	msg := Message{ID: raw.ID, Stream: stream}
	payload, ok := raw.Values[payloadField].(string)
	if !ok {
		msg.err = fmt.Errorf("%w: message %s has no %s field", ErrBadPayload, raw.ID, payloadField)
		return msg
	}
	if err := json.Unmarshal([]byte(payload), &msg.Command); err != nil {
		msg.err = fmt.Errorf("%w: message %s: %v", ErrBadPayload, raw.ID, err)
	}
	return msg
}

// Ack marks a message as processed on the stream it came from.
func (c *Consumer) Ack(ctx context.Context, msg Message) error {
	if err := c.rdb.XAck(ctx, msg.Stream, c.group, msg.ID).Err(); err != nil {
		return fmt.Errorf("ack %s on %s: %w", msg.ID, msg.Stream, err)
	}
	return nil
}
