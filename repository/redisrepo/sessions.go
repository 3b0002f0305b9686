package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/faranic/advisor/internal/conversation"
)

const (
	stateKeyPrefix    = "advisor:session:state:"
	messagesKeyPrefix = "advisor:session:messages:"
)

// SessionRepository stores conversation state and transcripts in redis.
// State is a JSON blob per session; the transcript is a list the session
// appends to. Keys expire after TTL so abandoned sessions clean themselves
// up, including ones left in the research phase by a crashed process.
type SessionRepository struct {
	client *redis.Client

	// TTL applies to both the state blob and the message list. Zero keeps
	// keys forever.
	TTL time.Duration

	// BusyTTL is the shorter expiry used while a state is in the research
	// phase. The busy phase rejects new messages, so a crash that never
	// rewrites the state must not lock the session out for the full TTL;
	// a completed run saves again and restores the normal expiry.
	BusyTTL time.Duration
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client, TTL: 24 * time.Hour, BusyTTL: 15 * time.Minute}
}

func (r *SessionRepository) stateTTL(st conversation.State) time.Duration {
	if st.Phase == conversation.PhaseResearch && r.BusyTTL > 0 {
		return r.BusyTTL
	}
	return r.TTL
}

func (r *SessionRepository) LoadState(ctx context.Context, sessionID string) (conversation.State, error) {
	val, err := r.client.Get(ctx, stateKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return conversation.NewState(), nil
		}
		return conversation.State{}, fmt.Errorf("redis get state: %w", err)
	}

	var st conversation.State
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return conversation.State{}, fmt.Errorf("redis decode state: %w", err)
	}
	return st, nil
}

func (r *SessionRepository) SaveState(ctx context.Context, sessionID string, st conversation.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis encode state: %w", err)
	}
	if err := r.client.Set(ctx, stateKeyPrefix+sessionID, data, r.stateTTL(st)).Err(); err != nil {
		return fmt.Errorf("redis set state: %w", err)
	}
	return nil
}

func (r *SessionRepository) AppendMessages(ctx context.Context, sessionID string, msgs ...conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	key := messagesKeyPrefix + sessionID
	vals := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("redis encode message: %w", err)
		}
		vals = append(vals, data)
	}

	if err := r.client.RPush(ctx, key, vals...).Err(); err != nil {
		return fmt.Errorf("redis push messages: %w", err)
	}
	if r.TTL > 0 {
		if err := r.client.Expire(ctx, key, r.TTL).Err(); err != nil {
			return fmt.Errorf("redis expire messages: %w", err)
		}
	}
	return nil
}

func (r *SessionRepository) History(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	vals, err := r.client.LRange(ctx, messagesKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read messages: %w", err)
	}

	msgs := make([]conversation.Message, 0, len(vals))
	for _, val := range vals {
		var msg conversation.Message
		if err := json.Unmarshal([]byte(val), &msg); err != nil {
			return nil, fmt.Errorf("redis decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
