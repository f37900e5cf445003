package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTable keeps each sheet as a list of JSON-encoded rows under
// <prefix><sheet>.
type RedisTable struct {
	client *redis.Client
	prefix string
}

type redisRow struct {
	DataHora string `json:"DataHora"`
	Status   string `json:"Status"`
}

func NewRedisTable(ctx context.Context, url, prefix string) (*RedisTable, error) {
	if url == "" {
		return nil, errors.New("redis URL is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisTable{client: client, prefix: prefix}, nil
}

func (t *RedisTable) key(sheet string) string {
	return t.prefix + sheet
}

func (t *RedisTable) ReadRows(ctx context.Context, sheet string) ([]Row, error) {
	values, err := t.client.LRange(ctx, t.key(sheet), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrSheetNotFound
	}
	rows := make([]Row, 0, len(values))
	for _, value := range values {
		var decoded redisRow
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			// Keep undecodable entries as malformed rows so they are
			// quarantined instead of lost on the next rewrite.
			rows = append(rows, Row{DataHora: value})
			continue
		}
		rows = append(rows, Row(decoded))
	}
	return rows, nil
}

func (t *RedisTable) WriteRows(ctx context.Context, sheet string, rows []Row) error {
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		encoded, err := json.Marshal(redisRow(row))
		if err != nil {
			return err
		}
		values = append(values, string(encoded))
	}
	key := t.key(sheet)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	return err
}

func (t *RedisTable) AppendRow(ctx context.Context, sheet string, row Row) error {
	encoded, err := json.Marshal(redisRow(row))
	if err != nil {
		return err
	}
	return t.client.RPush(ctx, t.key(sheet), string(encoded)).Err()
}

func (t *RedisTable) Close() error {
	return t.client.Close()
}
