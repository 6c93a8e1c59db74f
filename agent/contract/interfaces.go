package contract

import (
	"context"
	"time"
)

// LeadStore persists lead records keyed by normalized phone.
type LeadStore interface {
	Get(ctx context.Context, phone string) (*Lead, error)
	Upsert(ctx context.Context, lead *Lead) error
	SetState(ctx context.Context, phone string, state LeadState) error
	MarkHotIfCold(ctx context.Context, phone string) error
	// AppendAddresses concatenates; existing entries are preserved and
	// duplicates are kept.
	AppendAddresses(ctx context.Context, phone string, addrs []Address) error
	HasAddress(ctx context.Context, phone string) (bool, error)
	UpdateSummaries(ctx context.Context, phone string, survey *string, message *MessageSummary) error
	AgentInfo(ctx context.Context, phone string) (*AgentInfo, error)
	BookingInfo(ctx context.Context, phone string) (*BookingInfo, error)
	Realtor(ctx context.Context, realtorID string) (*Realtor, error)
	Report(ctx context.Context, phone string) (*Report, error)
}

// ConversationStore is the append-only message log plus the per-lead stop
// flag. Append must set the stop flag once the turn count exceeds the
// configured maximum.
type ConversationStore interface {
	Append(ctx context.Context, phone string, turn Turn) error
	FetchOrdered(ctx context.Context, phone string) ([]Turn, error)
	Count(ctx context.Context, phone string) (int, error)
	SetStopped(ctx context.Context, phone string) error
	IsStopped(ctx context.Context, phone string) (bool, error)
}

// BookingStore keeps at most one active booking per phone.
type BookingStore interface {
	Get(ctx context.Context, phone string) (*Booking, error)
	Upsert(ctx context.Context, b *Booking) error
}

// Calendar is the scheduling collaborator boundary.
type Calendar interface {
	BookedSlots(ctx context.Context, realtorID, date string) ([]string, error)
	OpenSlots(ctx context.Context, realtorID, date string) ([]string, error)
	AddEvent(ctx context.Context, realtorID string, event CalendarEvent) (eventID string, err error)
}

// Messenger is the outbound messaging boundary. Sends are subject to a
// per-lead quota; a skipped send is still recorded in the conversation.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
	SendTemplate(ctx context.Context, phone, name, language string, components []any) error
}

// Scheduler manages queued follow-up sends for a lead.
type Scheduler interface {
	Schedule(ctx context.Context, phone, text string, at time.Time) error
	CancelAll(ctx context.Context, phone string) error
}

// Notifier delivers booking notifications to the realtor.
type Notifier interface {
	BookingNotification(ctx context.Context, realtorEmail, leadName, address, when, reportLink string) error
}

// Searcher is the web-search capability behind the search_web tool.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// ModelClient sends message history plus the tool catalog to the language
// model and returns exactly one assistant turn.
type ModelClient interface {
	Chat(ctx context.Context, turns []Turn, calendarUse bool) (Turn, error)
}
