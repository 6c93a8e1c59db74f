package store

import (
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
)

type leadRow struct {
	bun.BaseModel `bun:"table:leads"`

	Phone          string                    `bun:"phone,pk"`
	RealtorID      string                    `bun:"realtor_id"`
	FirstName      string                    `bun:"first_name"`
	LastName       string                    `bun:"last_name"`
	Email          string                    `bun:"email"`
	TimeZone       string                    `bun:"time_zone,nullzero"`
	Addresses      []contractx.Address       `bun:"addresses,type:jsonb,nullzero"`
	SurveyAnswers  []contractx.SurveyAnswer  `bun:"survey_answers,type:jsonb,nullzero"`
	State          string                    `bun:"lead_state"`
	SurveySummary  string                    `bun:"survey_summary,nullzero"`
	MessageSummary *contractx.MessageSummary `bun:"message_summary,type:jsonb,nullzero"`
	AdID           string                    `bun:"ad_id,nullzero"`
	LeadgenID      string                    `bun:"leadgen_id,nullzero"`
	Stop           bool                      `bun:"stop"`
	CreatedAt      time.Time                 `bun:"created_at,nullzero,default:now()"`
}

func (r *leadRow) toLead() *contractx.Lead {
	return &contractx.Lead{
		Phone:          r.Phone,
		RealtorID:      r.RealtorID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		TimeZone:       r.TimeZone,
		Addresses:      r.Addresses,
		SurveyAnswers:  r.SurveyAnswers,
		State:          contractx.LeadState(r.State),
		SurveySummary:  r.SurveySummary,
		MessageSummary: r.MessageSummary,
		AdID:           r.AdID,
		LeadgenID:      r.LeadgenID,
		Stopped:        r.Stop,
		CreatedAt:      r.CreatedAt,
	}
}

func fromLead(l *contractx.Lead) *leadRow {
	return &leadRow{
		Phone:          l.Phone,
		RealtorID:      l.RealtorID,
		FirstName:      l.FirstName,
		LastName:       l.LastName,
		Email:          l.Email,
		TimeZone:       l.TimeZone,
		Addresses:      l.Addresses,
		SurveyAnswers:  l.SurveyAnswers,
		State:          string(l.State),
		SurveySummary:  l.SurveySummary,
		MessageSummary: l.MessageSummary,
		AdID:           l.AdID,
		LeadgenID:      l.LeadgenID,
		Stop:           l.Stopped,
		CreatedAt:      l.CreatedAt,
	}
}

type realtorRow struct {
	bun.BaseModel `bun:"table:realtor"`

	RealtorID    string `bun:"realtor_id,pk"`
	FName        string `bun:"f_name"`
	EName        string `bun:"e_name"`
	CalendarUse  *bool  `bun:"calendar_use"`
	CustomPrompt string `bun:"custom_prompt,nullzero"`
	SentToEmail  string `bun:"sent_to_email,nullzero"`
}

func (r *realtorRow) name() string {
	name := r.FName
	if r.EName != "" {
		if name != "" {
			name += " "
		}
		name += r.EName
	}
	return name
}

// calendarUse defaults to true when the column is null.
func (r *realtorRow) calendarUse() bool {
	return r.CalendarUse == nil || *r.CalendarUse
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages"`

	ID        int64          `bun:"id,pk,autoincrement"`
	Phone     string         `bun:"phone"`
	Message   contractx.Turn `bun:"message_json,type:jsonb"`
	CreatedAt time.Time      `bun:"created_at,nullzero,default:now()"`
}

type bookingRow struct {
	bun.BaseModel `bun:"table:bookings"`

	Phone           string    `bun:"phone,pk"`
	AppointmentTime time.Time `bun:"appointment_time"`
	RealtorID       string    `bun:"realtor_id"`
	CalendarID      string    `bun:"google_calendar_id"`
	EventID         string    `bun:"google_event_id"`
}

type messageLogRow struct {
	bun.BaseModel `bun:"table:message_logs"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Phone       string    `bun:"phone"`
	MessageType string    `bun:"message_type"`
	MessageText string    `bun:"message_text"`
	Status      string    `bun:"status"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:now()"`
}
