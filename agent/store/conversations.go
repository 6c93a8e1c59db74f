package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
)

// DefaultMaxHistory caps conversation length as a safety valve against
// runaway loops, not as a user-facing feature.
const DefaultMaxHistory = 30

// Conversations is the append-only message log. The stop flag lives on the
// lead row so a fresh lead record starts unstopped.
type Conversations struct {
	db         *bun.DB
	maxHistory int
}

var _ contractx.ConversationStore = (*Conversations)(nil)

func NewConversations(db *bun.DB, maxHistory int) *Conversations {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Conversations{db: db, maxHistory: maxHistory}
}

func (s *Conversations) MaxHistory() int { return s.maxHistory }

// Append inserts the turn, then checks the total count and sets the stop
// flag once it exceeds the maximum. The check is not atomic with the
// insert; the turn that crossed the threshold is still persisted.
func (s *Conversations) Append(ctx context.Context, phone string, turn contractx.Turn) error {
	key := phonex.Normalize(phone)
	row := &messageRow{Phone: key, Message: turn}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	count, err := s.Count(ctx, key)
	if err != nil {
		log.Warn().Str("phone", key).Err(err).Msg("failed to count turns after append")
		return nil
	}
	if count > s.maxHistory {
		if err := s.SetStopped(ctx, key); err != nil {
			log.Warn().Str("phone", key).Err(err).Msg("failed to stop over-length conversation")
		} else {
			log.Info().Str("phone", key).Int("count", count).Msg("conversation hit history cutoff")
		}
	}
	return nil
}

func (s *Conversations) FetchOrdered(ctx context.Context, phone string) ([]contractx.Turn, error) {
	var rows []messageRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("phone = ?", phonex.Normalize(phone)).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch turns: %w", err)
	}

	turns := make([]contractx.Turn, 0, len(rows))
	for _, r := range rows {
		t := r.Message
		t.CreatedAt = r.CreatedAt
		t.Seq = r.ID
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *Conversations) Count(ctx context.Context, phone string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*messageRow)(nil)).
		Where("phone = ?", phonex.Normalize(phone)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return count, nil
}

func (s *Conversations) SetStopped(ctx context.Context, phone string) error {
	_, err := s.db.NewUpdate().
		Model((*leadRow)(nil)).
		Set("stop = TRUE").
		Where("phone = ?", phonex.Normalize(phone)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set stop flag: %w", err)
	}
	return nil
}

func (s *Conversations) IsStopped(ctx context.Context, phone string) (bool, error) {
	var stopped bool
	err := s.db.NewSelect().
		Model((*leadRow)(nil)).
		Column("stop").
		Where("phone = ?", phonex.Normalize(phone)).
		Limit(1).
		Scan(ctx, &stopped)
	if err != nil {
		// A lead that does not exist yet has nothing to stop.
		return false, nil
	}
	return stopped, nil
}
