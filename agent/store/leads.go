package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
)

// Leads is the Postgres lead store. All operations key on the normalized
// phone; callers may pass raw input.
type Leads struct {
	db *bun.DB
}

var _ contractx.LeadStore = (*Leads)(nil)

func NewLeads(db *bun.DB) *Leads {
	return &Leads{db: db}
}

func (s *Leads) Get(ctx context.Context, phone string) (*contractx.Lead, error) {
	key := phonex.Normalize(phone)
	row := new(leadRow)
	err := s.db.NewSelect().Model(row).Where("phone = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contractx.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select lead: %w", err)
	}
	return row.toLead(), nil
}

func (s *Leads) Upsert(ctx context.Context, lead *contractx.Lead) error {
	if lead == nil {
		return errors.New("nil lead")
	}
	lead.Phone = phonex.Normalize(lead.Phone)
	if lead.State == "" {
		lead.State = contractx.LeadCold
	}
	_, err := s.db.NewInsert().
		Model(fromLead(lead)).
		On("CONFLICT (phone) DO UPDATE").
		Set("realtor_id = EXCLUDED.realtor_id").
		Set("first_name = EXCLUDED.first_name").
		Set("last_name = EXCLUDED.last_name").
		Set("email = EXCLUDED.email").
		Set("time_zone = EXCLUDED.time_zone").
		Set("addresses = EXCLUDED.addresses").
		Set("survey_answers = EXCLUDED.survey_answers").
		Set("lead_state = EXCLUDED.lead_state").
		Set("ad_id = EXCLUDED.ad_id").
		Set("leadgen_id = EXCLUDED.leadgen_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert lead: %w", err)
	}
	return nil
}

func (s *Leads) SetState(ctx context.Context, phone string, state contractx.LeadState) error {
	_, err := s.db.NewUpdate().
		Model((*leadRow)(nil)).
		Set("lead_state = ?", string(state)).
		Where("phone = ?", phonex.Normalize(phone)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set lead state: %w", err)
	}
	return nil
}

// MarkHotIfCold promotes a cold lead to hot on its first inbound reply.
// Missing leads and store errors are logged and ignored; the conversation
// continues with degraded data.
func (s *Leads) MarkHotIfCold(ctx context.Context, phone string) error {
	key := phonex.Normalize(phone)
	_, err := s.db.NewUpdate().
		Model((*leadRow)(nil)).
		Set("lead_state = ?", string(contractx.LeadHot)).
		Where("phone = ?", key).
		Where("lead_state = ?", string(contractx.LeadCold)).
		Exec(ctx)
	if err != nil {
		log.Warn().Str("phone", key).Err(err).Msg("failed to promote lead to hot")
		return fmt.Errorf("mark hot: %w", err)
	}
	return nil
}

// AppendAddresses concatenates the given addresses onto the existing list.
// Duplicates are deliberately kept; the list documents everything the
// conversation produced.
func (s *Leads) AppendAddresses(ctx context.Context, phone string, addrs []contractx.Address) error {
	if len(addrs) == 0 {
		return nil
	}
	key := phonex.Normalize(phone)

	row := new(leadRow)
	err := s.db.NewSelect().Model(row).Column("addresses").Where("phone = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.ErrLeadNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch existing addresses: %w", err)
	}

	updated := append(row.Addresses, addrs...)
	payload, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("encode addresses: %w", err)
	}
	_, err = s.db.NewUpdate().
		Model((*leadRow)(nil)).
		Set("addresses = ?::jsonb", string(payload)).
		Where("phone = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("append addresses: %w", err)
	}
	return nil
}

func (s *Leads) HasAddress(ctx context.Context, phone string) (bool, error) {
	lead, err := s.Get(ctx, phone)
	if errors.Is(err, contractx.ErrLeadNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(lead.Addresses) > 0, nil
}

func (s *Leads) UpdateSummaries(ctx context.Context, phone string, survey *string, message *contractx.MessageSummary) error {
	if survey == nil && message == nil {
		return nil
	}
	q := s.db.NewUpdate().
		Model((*leadRow)(nil)).
		Where("phone = ?", phonex.Normalize(phone))
	if survey != nil {
		q = q.Set("survey_summary = ?", *survey)
	}
	if message != nil {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("encode message summary: %w", err)
		}
		q = q.Set("message_summary = ?::jsonb", string(payload))
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("update summaries: %w", err)
	}
	return nil
}

func (s *Leads) Realtor(ctx context.Context, realtorID string) (*contractx.Realtor, error) {
	row := new(realtorRow)
	err := s.db.NewSelect().Model(row).Where("realtor_id = ?", realtorID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select realtor: %w", err)
	}
	return &contractx.Realtor{
		ID:           row.RealtorID,
		Name:         row.name(),
		CalendarUse:  row.calendarUse(),
		CustomPrompt: row.CustomPrompt,
		NotifyEmail:  row.SentToEmail,
	}, nil
}

// AgentInfo resolves the prompt context for one loop iteration. A missing
// realtor degrades to the anonymous defaults rather than failing.
func (s *Leads) AgentInfo(ctx context.Context, phone string) (*contractx.AgentInfo, error) {
	lead, err := s.Get(ctx, phone)
	if err != nil {
		return nil, err
	}

	info := &contractx.AgentInfo{
		Answers:     lead.SurveyAnswers,
		LeadName:    lead.FullName(),
		Phone:       lead.Phone,
		TimeZone:    lead.TimeZone,
		CalendarUse: true,
	}
	if lead.RealtorID == "" {
		return info, nil
	}

	realtor, err := s.Realtor(ctx, lead.RealtorID)
	if err != nil {
		log.Warn().Str("phone", lead.Phone).Str("realtor_id", lead.RealtorID).Err(err).
			Msg("failed to resolve realtor, using defaults")
		return info, nil
	}
	if realtor != nil {
		info.RealtorName = realtor.Name
		info.CalendarUse = realtor.CalendarUse
		info.CustomPrompt = realtor.CustomPrompt
	}
	return info, nil
}

// Report joins the lead with its realtor for the read API.
func (s *Leads) Report(ctx context.Context, phone string) (*contractx.Report, error) {
	lead, err := s.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	report := &contractx.Report{Lead: lead}
	if lead.RealtorID == "" {
		return report, nil
	}
	realtor, err := s.Realtor(ctx, lead.RealtorID)
	if err != nil {
		return nil, err
	}
	report.Realtor = realtor
	return report, nil
}

func (s *Leads) BookingInfo(ctx context.Context, phone string) (*contractx.BookingInfo, error) {
	lead, err := s.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	return &contractx.BookingInfo{
		Phone:     lead.Phone,
		FullName:  lead.FullName(),
		TimeZone:  lead.TimeZone,
		RealtorID: lead.RealtorID,
	}, nil
}
