package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoActiveAttempt = errors.New("no active drill attempt")

const defaultAttemptTTL = 24 * time.Hour

// attemptState is the persisted form of one in-flight drill plus the
// trainee's progress through the opening. Board state is never stored; the
// move list is replayed on load.
type attemptState struct {
	AttemptUUID   string            `json:"attempt_uuid"`
	TraineeHash   string            `json:"trainee_hash"`
	OpeningID     string            `json:"opening_id"`
	VariationName string            `json:"variation_name"`
	Color         string            `json:"color"`
	MovesUCI      []string          `json:"moves_uci"`
	Errors        int               `json:"errors"`
	HintsUsed     int               `json:"hints_used"`
	LastHintPly   int               `json:"last_hint_ply"`
	HintFrom      string            `json:"hint_from,omitempty"`
	HintTo        string            `json:"hint_to,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	Completed     bool              `json:"completed"`
	SelectionMode string            `json:"selection_mode"`
	Statuses      map[string]string `json:"statuses"`
	Cursor        int               `json:"cursor"`
}

// AttemptStore keeps the active attempt per trainee in Redis with a sliding
// TTL. One trainee has at most one attempt.
type AttemptStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAttemptStore(redisURL string, ttl time.Duration) (*AttemptStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for attempt store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewAttemptStoreWithClient(rdb, ttl), nil
}

// NewAttemptStoreWithClient wraps an existing client, for tests.
func NewAttemptStoreWithClient(rdb *redis.Client, ttl time.Duration) *AttemptStore {
	if ttl <= 0 {
		ttl = defaultAttemptTTL
	}
	return &AttemptStore{rdb: rdb, ttl: ttl}
}

func (s *AttemptStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *AttemptStore) Save(ctx context.Context, st *attemptState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := s.rdb.Set(ctx, attemptKey(st.TraineeHash), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) Load(ctx context.Context, traineeHash string) (*attemptState, error) {
	raw, err := s.rdb.Get(ctx, attemptKey(traineeHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoActiveAttempt
	}
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	var st attemptState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode attempt: %w", err)
	}
	return &st, nil
}

func (s *AttemptStore) Delete(ctx context.Context, traineeHash string) error {
	return s.rdb.Del(ctx, attemptKey(traineeHash)).Err()
}

func attemptKey(traineeHash string) string {
	return "drill:attempt:" + strings.TrimSpace(traineeHash)
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
