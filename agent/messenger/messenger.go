package messenger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
)

// DefaultQuota is the per-lead cap on outbound sends.
const DefaultQuota = 10

// Transport is the raw WhatsApp send surface.
type Transport interface {
	SendMessage(ctx context.Context, phone, text string) error
	SendTemplate(ctx context.Context, phone, name, language string, components []any) error
}

// SendLog records send attempts and answers quota queries.
type SendLog interface {
	SentCount(ctx context.Context, phone string) (int, error)
	Record(ctx context.Context, phone, messageType, text, status string) error
}

// Messenger enforces the per-lead send quota in front of the transport.
// A quota-exhausted send is skipped without error so the conversation
// record stays intact even when the lead hears nothing.
type Messenger struct {
	transport Transport
	sendLog   SendLog
	quota     int
}

var _ contractx.Messenger = (*Messenger)(nil)

func New(transport Transport, sendLog SendLog, quota int) (*Messenger, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if sendLog == nil {
		return nil, errors.New("send log is required")
	}
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &Messenger{transport: transport, sendLog: sendLog, quota: quota}, nil
}

func (m *Messenger) SendText(ctx context.Context, phone, text string) error {
	return m.send(ctx, phone, "text", text, func(ctx context.Context, key string) error {
		return m.transport.SendMessage(ctx, key, text)
	})
}

func (m *Messenger) SendTemplate(ctx context.Context, phone, name, language string, components []any) error {
	return m.send(ctx, phone, "template", name, func(ctx context.Context, key string) error {
		return m.transport.SendTemplate(ctx, key, name, language, components)
	})
}

func (m *Messenger) send(ctx context.Context, phone, messageType, text string, deliver func(context.Context, string) error) error {
	key := phonex.Normalize(phone)

	count, err := m.sendLog.SentCount(ctx, key)
	if err != nil {
		log.Warn().Str("phone", key).Err(err).Msg("quota check failed, sending anyway")
	} else if count >= m.quota {
		log.Info().Str("phone", key).Int("sent", count).Int("quota", m.quota).
			Msg("send quota exhausted, skipping delivery")
		return nil
	}

	if err := deliver(ctx, key); err != nil {
		if logErr := m.sendLog.Record(ctx, key, messageType, text, "failed"); logErr != nil {
			log.Warn().Str("phone", key).Err(logErr).Msg("failed to record failed send")
		}
		return fmt.Errorf("send %s: %w", messageType, err)
	}
	if err := m.sendLog.Record(ctx, key, messageType, text, "sent"); err != nil {
		log.Warn().Str("phone", key).Err(err).Msg("failed to record sent message")
	}
	return nil
}
