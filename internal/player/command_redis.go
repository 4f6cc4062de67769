package player

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// DefaultCommandsKey is the Redis hash holding one field per room.
const DefaultCommandsKey = "youkebox:commands"

// setIfPresentScript updates a hash field only when it already exists so a
// skip can never create an entry, matching MemoryTable.SetIfPresent.
var setIfPresentScript = redis.NewScript(`
    if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
        redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
        return 1
    end
    return 0
`)

// RedisTable is a CommandTable stored in a Redis hash. It lets a skip issued
// by one API instance reach the worker running in another process.
type RedisTable struct {
	rdb *redis.Client
	key string
}

// NewRedisTable returns a table stored under key, or DefaultCommandsKey when
// key is empty.
func NewRedisTable(rdb *redis.Client, key string) *RedisTable {
	if key == "" {
		key = DefaultCommandsKey
	}
	return &RedisTable{rdb: rdb, key: key}
}

func (t *RedisTable) Get(ctx context.Context, room string) (Command, bool, error) {
	v, err := t.rdb.HGet(ctx, t.key, room).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return Command(v), true, nil
}

func (t *RedisTable) Set(ctx context.Context, room string, cmd Command) error {
	return t.rdb.HSet(ctx, t.key, room, string(cmd)).Err()
}

func (t *RedisTable) Initialize(ctx context.Context, room string) error {
	return t.rdb.HSetNX(ctx, t.key, room, string(Play)).Err()
}

func (t *RedisTable) SetIfPresent(ctx context.Context, room string, cmd Command) (bool, error) {
	n, err := setIfPresentScript.Run(ctx, t.rdb, []string{t.key}, room, string(cmd)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
