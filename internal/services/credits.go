package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ExhaustedMessage is the user-facing text returned when a user has
// spent all chat credits for the current window.
const ExhaustedMessage = "No tienes créditos disponibles. Se resetean cada 24 horas."

// ConsumeResult reports the outcome of one credit consumption.
// Credits is the remaining balance after the attempt.
type ConsumeResult struct {
	Success bool
	Credits int
	Message string
}

// CreditLedger is the atomic "consume one credit" operation backing
// the chatbot. Consume must serialize concurrent calls for the same
// user: with one credit left, exactly one of two concurrent calls may
// succeed.
type CreditLedger interface {
	Consume(ctx context.Context, userID uuid.UUID) (ConsumeResult, error)
}

// consumeScript makes the read-decide-write cycle a single atomic
// operation. A missing key means a fresh window: initialize to max-1
// and start the TTL. Returns the remaining balance, or -1 when the
// user is out of credits.
var consumeScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false then
	redis.call("SET", KEYS[1], ARGV[1] - 1, "EX", ARGV[2])
	return ARGV[1] - 1
end
if tonumber(current) <= 0 then
	return -1
end
return redis.call("DECR", KEYS[1])
`)

// RedisCreditLedger keeps per-user balances in redis with a rolling
// reset window implemented as key expiry.
type RedisCreditLedger struct {
	redis      *redis.Client
	maxCredits int
	window     time.Duration
}

func NewRedisCreditLedger(redisClient *redis.Client, maxCredits int, window time.Duration) *RedisCreditLedger {
	return &RedisCreditLedger{
		redis:      redisClient,
		maxCredits: maxCredits,
		window:     window,
	}
}

func creditKey(userID uuid.UUID) string {
	return "chat_credits:" + userID.String()
}

func (l *RedisCreditLedger) Consume(ctx context.Context, userID uuid.UUID) (ConsumeResult, error) {
	remaining, err := consumeScript.Run(ctx, l.redis,
		[]string{creditKey(userID)},
		l.maxCredits, int(l.window.Seconds()),
	).Int()
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("failed to consume credit: %w", err)
	}

	if remaining < 0 {
		return ConsumeResult{
			Success: false,
			Credits: 0,
			Message: ExhaustedMessage,
		}, nil
	}

	return ConsumeResult{Success: true, Credits: remaining}, nil
}
