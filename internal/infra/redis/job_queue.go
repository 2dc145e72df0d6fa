package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"speech-to-text/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var _ adapter.Queue = (*JobQueue)(nil)

// JobQueue is a reliable list queue. Send pushes on the left of {name},
// Receive moves bodies from the right into {name}:inflight and records a
// visibility deadline in {name}:deadlines. Bodies whose deadline passed are
// pushed back on the next Receive, which mirrors SQS visibility timeouts.
type JobQueue struct {
	cli        redis.Cmdable
	name       string
	visibility time.Duration
	now        func() time.Time
	log        *zerolog.Logger
}

func NewJobQueue(cli redis.Cmdable, name string, visibility time.Duration, logger *zerolog.Logger) *JobQueue {
	l := logger.With().Str("component", "RedisJobQueue").Str("queue", name).Logger()
	return &JobQueue{cli: cli, name: name, visibility: visibility, now: time.Now, log: &l}
}

func (q *JobQueue) Name() string { return q.name }
func (q *JobQueue) inflight() string { return q.name + ":inflight" }
func (q *JobQueue) deadlines() string { return q.name + ":deadlines" }

// requeueExpired moves every inflight body whose deadline is <= ARGV[1] back
// to the ready list.
var requeueExpired = redis.NewScript(`
local expired = redis.call("ZRANGEBYSCORE", KEYS[3], "-inf", ARGV[1])
for _, body in ipairs(expired) do
	if redis.call("LREM", KEYS[2], 1, body) > 0 then
		redis.call("RPUSH", KEYS[1], body)
	end
	redis.call("ZREM", KEYS[3], body)
end
return #expired`)

// ack removes one inflight body and its deadline.
var ack = redis.NewScript(`
local n = redis.call("LREM", KEYS[1], 1, ARGV[1])
redis.call("ZREM", KEYS[2], ARGV[1])
return n`)

func (q *JobQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]adapter.Message, error) {
	keys := []string{q.name, q.inflight(), q.deadlines()}
	n, err := requeueExpired.Run(ctx, q.cli, keys, q.now().UnixMilli()).Int()
	if err != nil {
		return nil, err
	}
	if n > 0 {
		q.log.Warn().Int("count", n).Msg("requeued messages whose visibility expired")
	}

	if max < 1 {
		max = 1
	}
	var msgs []adapter.Message
	for len(msgs) < max {
		var body string
		if len(msgs) == 0 && wait > 0 {
			// BRPOPLPUSH counts in whole seconds and 0 means forever
			if wait < time.Second {
				wait = time.Second
			}
			body, err = q.cli.BRPopLPush(ctx, q.name, q.inflight(), wait).Result()
		} else {
			body, err = q.cli.RPopLPush(ctx, q.name, q.inflight()).Result()
		}
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return msgs, err
		}
		deadline := q.now().Add(q.visibility).UnixMilli()
		if err := q.cli.ZAdd(ctx, q.deadlines(), &redis.Z{Score: float64(deadline), Member: body}).Err(); err != nil {
			return msgs, err
		}
		msgs = append(msgs, adapter.Message{
			ID:      strconv.FormatInt(deadline, 10),
			Body:    []byte(body),
			Receipt: body,
		})
	}
	return msgs, nil
}

func (q *JobQueue) Delete(ctx context.Context, msg adapter.Message) error {
	n, err := ack.Run(ctx, q.cli, []string{q.inflight(), q.deadlines()}, msg.Receipt).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("message is no longer in flight")
	}
	return nil
}

func (q *JobQueue) Send(ctx context.Context, body []byte) error {
	return q.cli.LPush(ctx, q.name, body).Err()
}
