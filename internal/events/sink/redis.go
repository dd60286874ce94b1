package sink

import (
    "context"
    "fmt"

    redis "github.com/redis/go-redis/v9"

    "github.com/cuihairu/arcade/internal/ports"
)

// Redis appends events to a stream, one entry per event.
type Redis struct {
    cli          *redis.Client
    stream       string
    maxLen       int64
    maxLenApprox bool
}

func NewRedis(url, stream string, maxLen int64, approx bool) (*Redis, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, fmt.Errorf("redis sink: parse url: %w", err) }
    if stream == "" { stream = "arcade:events" }
    return &Redis{cli: redis.NewClient(opt), stream: stream, maxLen: maxLen, maxLenApprox: approx}, nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Send(ctx context.Context, ev ports.Event) error {
    // single 'data' field keeps the stream schema-free; kind and task id are
    // duplicated so consumers can filter without decoding
    b, err := encode(ev)
    if err != nil { return err }
    args := &redis.XAddArgs{Stream: r.stream, Values: map[string]any{
        "data":    string(b),
        "kind":    string(ev.Kind),
        "task_id": ev.TaskID,
    }}
    if r.maxLen > 0 {
        args.MaxLen = r.maxLen
        args.Approx = r.maxLenApprox
    }
    return r.cli.XAdd(ctx, args).Err()
}

func (r *Redis) Close() error { return r.cli.Close() }
