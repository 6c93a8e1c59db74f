package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
)

// MessageLog records every outbound send attempt; the messenger derives
// the per-lead quota from the sent count.
type MessageLog struct {
	db *bun.DB
}

func NewMessageLog(db *bun.DB) *MessageLog {
	return &MessageLog{db: db}
}

func (s *MessageLog) SentCount(ctx context.Context, phone string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*messageLogRow)(nil)).
		Where("phone = ?", phonex.Normalize(phone)).
		Where("status = ?", "sent").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count sent messages: %w", err)
	}
	return count, nil
}

func (s *MessageLog) Record(ctx context.Context, phone, messageType, text, status string) error {
	row := &messageLogRow{
		Phone:       phonex.Normalize(phone),
		MessageType: messageType,
		MessageText: text,
		Status:      status,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("record message log: %w", err)
	}
	return nil
}
