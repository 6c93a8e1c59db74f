package store

import (
	"context"
	"sync"
	"time"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
)

// Memory implements the lead, conversation and booking contracts in
// process memory. It backs tests and local runs without Postgres and
// mirrors the Postgres semantics, including the append-then-check history
// valve.
type Memory struct {
	mu         sync.Mutex
	maxHistory int
	seq        int64

	leads    map[string]*contractx.Lead
	realtors map[string]*contractx.Realtor
	turns    map[string][]contractx.Turn
	stopped  map[string]bool
	bookings map[string]*contractx.Booking
}

var (
	_ contractx.LeadStore         = (*Memory)(nil)
	_ contractx.ConversationStore = (*Memory)(nil)
	_ contractx.BookingStore      = (*MemoryBookings)(nil)
)

func NewMemory(maxHistory int) *Memory {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Memory{
		maxHistory: maxHistory,
		leads:      make(map[string]*contractx.Lead),
		realtors:   make(map[string]*contractx.Realtor),
		turns:      make(map[string][]contractx.Turn),
		stopped:    make(map[string]bool),
		bookings:   make(map[string]*contractx.Booking),
	}
}

/* ------------------------------ leads ------------------------------ */

func (m *Memory) Get(ctx context.Context, phone string) (*contractx.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[phonex.Normalize(phone)]
	if !ok {
		return nil, contractx.ErrLeadNotFound
	}
	cp := *lead
	return &cp, nil
}

func (m *Memory) Upsert(ctx context.Context, lead *contractx.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *lead
	cp.Phone = phonex.Normalize(lead.Phone)
	if cp.State == "" {
		cp.State = contractx.LeadCold
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.leads[cp.Phone] = &cp
	// A fresh lead record is the only path that clears the stop flag.
	m.stopped[cp.Phone] = false
	return nil
}

func (m *Memory) PutRealtor(r *contractx.Realtor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.realtors[r.ID] = &cp
}

func (m *Memory) SetState(ctx context.Context, phone string, state contractx.LeadState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[phonex.Normalize(phone)]
	if !ok {
		return contractx.ErrLeadNotFound
	}
	lead.State = state
	return nil
}

func (m *Memory) MarkHotIfCold(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[phonex.Normalize(phone)]
	if ok && lead.State == contractx.LeadCold {
		lead.State = contractx.LeadHot
	}
	return nil
}

func (m *Memory) AppendAddresses(ctx context.Context, phone string, addrs []contractx.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[phonex.Normalize(phone)]
	if !ok {
		return contractx.ErrLeadNotFound
	}
	lead.Addresses = append(lead.Addresses, addrs...)
	return nil
}

func (m *Memory) HasAddress(ctx context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[phonex.Normalize(phone)]
	return ok && len(lead.Addresses) > 0, nil
}

func (m *Memory) UpdateSummaries(ctx context.Context, phone string, survey *string, message *contractx.MessageSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[phonex.Normalize(phone)]
	if !ok {
		return contractx.ErrLeadNotFound
	}
	if survey != nil {
		lead.SurveySummary = *survey
	}
	if message != nil {
		cp := *message
		lead.MessageSummary = &cp
	}
	return nil
}

func (m *Memory) Realtor(ctx context.Context, realtorID string) (*contractx.Realtor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.realtors[realtorID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) AgentInfo(ctx context.Context, phone string) (*contractx.AgentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[phonex.Normalize(phone)]
	if !ok {
		return nil, contractx.ErrLeadNotFound
	}
	info := &contractx.AgentInfo{
		Answers:     lead.SurveyAnswers,
		LeadName:    lead.FullName(),
		Phone:       lead.Phone,
		TimeZone:    lead.TimeZone,
		CalendarUse: true,
	}
	if r, ok := m.realtors[lead.RealtorID]; ok {
		info.RealtorName = r.Name
		info.CalendarUse = r.CalendarUse
		info.CustomPrompt = r.CustomPrompt
	}
	return info, nil
}

func (m *Memory) Report(ctx context.Context, phone string) (*contractx.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[phonex.Normalize(phone)]
	if !ok {
		return nil, contractx.ErrLeadNotFound
	}
	cp := *lead
	report := &contractx.Report{Lead: &cp}
	if r, ok := m.realtors[lead.RealtorID]; ok {
		rc := *r
		report.Realtor = &rc
	}
	return report, nil
}

func (m *Memory) BookingInfo(ctx context.Context, phone string) (*contractx.BookingInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[phonex.Normalize(phone)]
	if !ok {
		return nil, contractx.ErrLeadNotFound
	}
	return &contractx.BookingInfo{
		Phone:     lead.Phone,
		FullName:  lead.FullName(),
		TimeZone:  lead.TimeZone,
		RealtorID: lead.RealtorID,
	}, nil
}

/* --------------------------- conversation --------------------------- */

func (m *Memory) Append(ctx context.Context, phone string, turn contractx.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := phonex.Normalize(phone)
	m.seq++
	turn.Seq = m.seq
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	m.turns[key] = append(m.turns[key], turn)
	if len(m.turns[key]) > m.maxHistory {
		m.stopped[key] = true
	}
	return nil
}

func (m *Memory) FetchOrdered(ctx context.Context, phone string) ([]contractx.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.turns[phonex.Normalize(phone)]
	out := make([]contractx.Turn, len(src))
	copy(out, src)
	return out, nil
}

func (m *Memory) Count(ctx context.Context, phone string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns[phonex.Normalize(phone)]), nil
}

func (m *Memory) SetStopped(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped[phonex.Normalize(phone)] = true
	return nil
}

func (m *Memory) IsStopped(ctx context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped[phonex.Normalize(phone)], nil
}

/* ----------------------------- bookings ----------------------------- */

// MemoryBookings is the booking view over the same in-memory state. It is
// a separate type because the lead and booking contracts both name their
// lookup Get.
type MemoryBookings struct {
	m *Memory
}

func (m *Memory) Bookings() *MemoryBookings { return &MemoryBookings{m: m} }

func (b *MemoryBookings) Get(ctx context.Context, phone string) (*contractx.Booking, error) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	stored, ok := b.m.bookings[phonex.Normalize(phone)]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

func (b *MemoryBookings) Upsert(ctx context.Context, booking *contractx.Booking) error {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	cp := *booking
	cp.Phone = phonex.Normalize(booking.Phone)
	b.m.bookings[cp.Phone] = &cp
	return nil
}
