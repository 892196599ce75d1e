// SPDX-License-Identifier: MPL-2.0

package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
)

// DefaultKeyPrefix namespaces run queue items in Redis.
const DefaultKeyPrefix = "launchkit:runqueue:"

// Run queue item states.
const (
	StatePending = "pending"
	StateClaimed = "claimed"
)

const (
	stateField = "state"
	runField   = "run_id"
)

/*
ackScript claims a pending item. It is called with:
- KEYS[1] - the item hash
- ARGV[1] - the run id
- ARGV[2] - the pending state
- ARGV[3] - the claimed state

It returns 1 on success, 0 when the item does not exist (lease ended) and -1
when it was already claimed.
*/
const ackScript = `local state = redis.call("hget",KEYS[1],"state")
if state == false then
	return 0
end
if state ~= ARGV[2] then
	return -1
end
redis.call("hset",KEYS[1],"state",ARGV[3])
redis.call("hset",KEYS[1],"run_id",ARGV[1])
redis.call("persist",KEYS[1])
return 1
`

/*
enqueueScript leases a pending item. It is called with:
- KEYS[1] - the item hash
- ARGV[1] - the pending state
- ARGV[2] - the lease in milliseconds, 0 for none
*/
const enqueueScript = `redis.call("del",KEYS[1])
redis.call("hset",KEYS[1],"state",ARGV[1])
local lease = tonumber(ARGV[2])
if lease > 0 then
	redis.call("pexpire",KEYS[1],lease)
end
return 1
`

// RedisQueue is a run queue stored as one Redis hash per item. An item's
// lease is the key's expiry.
type RedisQueue struct {
	client redis.Cmdable
	prefix string
}

// NewRedisQueue wraps an existing client.
func NewRedisQueue(client redis.Cmdable) *RedisQueue {
	return &RedisQueue{client: client, prefix: DefaultKeyPrefix}
}

// DialRedisQueue connects to the Redis server at rawURL
// (redis://[:password@]host:port/db) and verifies it answers.
func DialRedisQueue(rawURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse run queue url: %w", err)
	}
	client := redis.NewClient(opts)
	if _, err := client.Ping().Result(); err != nil {
		_ = client.Close() // connection never became usable
		return nil, fmt.Errorf("connect to run queue: %w", err)
	}
	return NewRedisQueue(client), nil
}

func (q *RedisQueue) key(itemID string) string {
	return q.prefix + itemID
}

// Enqueue makes itemID pending. A positive lease expires the item.
func (q *RedisQueue) Enqueue(ctx context.Context, itemID string, lease time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := q.client.Eval(enqueueScript, []string{q.key(itemID)}, StatePending, lease.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("enqueue run queue item %q: %w", itemID, err)
	}
	return nil
}

// Ack atomically claims a pending item for runID. A missing or already
// claimed item is a *ConflictError.
func (q *RedisQueue) Ack(ctx context.Context, itemID, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := q.client.Eval(ackScript, []string{q.key(itemID)}, runID, StatePending, StateClaimed).Result()
	if err != nil {
		return fmt.Errorf("ack run queue item %q: %w", itemID, err)
	}
	code, ok := res.(int64)
	if !ok {
		return fmt.Errorf("ack run queue item %q: unexpected reply %v", itemID, res)
	}
	switch code {
	case 1:
		return nil
	case 0:
		return &ConflictError{ItemID: itemID, Reason: "lease ended or item unknown"}
	default:
		return &ConflictError{ItemID: itemID, Reason: "already acknowledged by another launcher"}
	}
}

// State returns the state and claiming run id of itemID. A missing item has
// an empty state.
func (q *RedisQueue) State(itemID string) (state, runID string, err error) {
	fields, err := q.client.HGetAll(q.key(itemID)).Result()
	if err != nil {
		return "", "", fmt.Errorf("read run queue item %q: %w", itemID, err)
	}
	return fields[stateField], fields[runField], nil
}
