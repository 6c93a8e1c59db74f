package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
)

const defaultKeyPrefix = "valora:followups"

type Config struct {
	Address   string `envconfig:"ADDRESS" required:"true"`
	Password  string `envconfig:"PASSWORD"`
	DB        int    `envconfig:"DB" default:"0"`
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"valora:followups"`
}

// Followup is one queued outbound message.
type Followup struct {
	ID    string    `json:"id"`
	Phone string    `json:"-"`
	Text  string    `json:"text"`
	At    time.Time `json:"-"`
}

// Scheduler queues follow-up sends in a Redis sorted set per phone, scored
// by send time. stop_messages cancels the whole queue for a lead with a
// single key delete.
type Scheduler struct {
	client *redis.Client
	prefix string
}

var _ contractx.Scheduler = (*Scheduler)(nil)

func New(cfg Config) (*Scheduler, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewWithClient(client, cfg.KeyPrefix), nil
}

func NewWithClient(client *redis.Client, prefix string) *Scheduler {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Scheduler{client: client, prefix: prefix}
}

func (s *Scheduler) key(phone string) string {
	return s.prefix + ":" + phonex.Normalize(phone)
}

func (s *Scheduler) Schedule(ctx context.Context, phone, text string, at time.Time) error {
	entry := Followup{ID: uuid.NewString(), Text: text}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode follow-up: %w", err)
	}
	err = s.client.ZAdd(ctx, s.key(phone), redis.Z{
		Score:  float64(at.Unix()),
		Member: string(payload),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule follow-up: %w", err)
	}
	return nil
}

func (s *Scheduler) CancelAll(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, s.key(phone)).Err(); err != nil {
		return fmt.Errorf("cancel follow-ups: %w", err)
	}
	return nil
}

// Due pops every follow-up whose send time has passed, across all phones.
// Popped entries are removed; a crash between read and remove redelivers,
// which is acceptable for follow-up nudges.
func (s *Scheduler) Due(ctx context.Context, now time.Time) ([]Followup, error) {
	var due []Followup
	max := strconv.FormatInt(now.Unix(), 10)

	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		phone := strings.TrimPrefix(key, s.prefix+":")

		members, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min: "-inf",
			Max: max,
		}).Result()
		if err != nil {
			return due, fmt.Errorf("read due follow-ups: %w", err)
		}
		for _, member := range members {
			raw, ok := member.Member.(string)
			if !ok {
				continue
			}
			var entry Followup
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				log.Warn().Str("key", key).Err(err).Msg("dropping malformed follow-up entry")
				_ = s.client.ZRem(ctx, key, raw).Err()
				continue
			}
			entry.Phone = phone
			entry.At = time.Unix(int64(member.Score), 0)
			due = append(due, entry)
			if err := s.client.ZRem(ctx, key, raw).Err(); err != nil {
				return due, fmt.Errorf("remove dispatched follow-up: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return due, fmt.Errorf("scan follow-up keys: %w", err)
	}
	return due, nil
}

func (s *Scheduler) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
