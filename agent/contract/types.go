package contract

import (
	"encoding/json"
	"time"
)

// Role tags a conversation turn with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// LeadState is the qualification lifecycle of a lead.
type LeadState string

const (
	LeadCold   LeadState = "cold"
	LeadHot    LeadState = "hot"
	LeadBooked LeadState = "booked"
)

type Address struct {
	Address      string `json:"address"`
	Neighberhood string `json:"neighberhood,omitempty"`
}

type SurveyAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// MessageSummary caches a rolling summary together with the message count it
// was computed at, so stale summaries can be detected.
type MessageSummary struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

// Lead is keyed by normalized phone. Addresses are ordered and append-only;
// tool calls never deduplicate them.
type Lead struct {
	Phone          string          `json:"phone"`
	RealtorID      string          `json:"realtor_id"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Email          string          `json:"email"`
	TimeZone       string          `json:"time_zone"`
	Addresses      []Address       `json:"addresses,omitempty"`
	SurveyAnswers  []SurveyAnswer  `json:"survey_answers,omitempty"`
	State          LeadState       `json:"lead_state"`
	SurveySummary  string          `json:"survey_summary,omitempty"`
	MessageSummary *MessageSummary `json:"message_summary,omitempty"`
	AdID           string          `json:"ad_id,omitempty"`
	LeadgenID      string          `json:"leadgen_id,omitempty"`
	Stopped        bool            `json:"stop"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (l *Lead) FullName() string {
	if l.LastName == "" {
		return l.FirstName
	}
	if l.FirstName == "" {
		return l.LastName
	}
	return l.FirstName + " " + l.LastName
}

// Realtor is read-only from the agent's perspective.
type Realtor struct {
	ID           string `json:"realtor_id"`
	Name         string `json:"name"`
	CalendarUse  bool   `json:"calendar_use"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
	NotifyEmail  string `json:"sent_to_email,omitempty"`
}

// ToolCall is a structured request from the model to invoke a named tool.
// Arguments stay raw until the executor decodes them; the payload is
// untrusted and may be malformed.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Turn is one message in a conversation. Turns are append-only and strictly
// ordered by (CreatedAt, Seq).
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
	Seq        int64      `json:"seq,omitempty"`
}

func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string, calls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolTurn marshals an arbitrary handler outcome into a tool-result turn.
// Strings pass through as-is; everything else is JSON-encoded so the model
// can read its own tool outcomes on the next iteration.
func ToolTurn(callID string, result any) Turn {
	content, ok := result.(string)
	if !ok {
		raw, err := json.Marshal(result)
		if err != nil {
			raw = []byte(`{"error":"unencodable tool result"}`)
		}
		content = string(raw)
	}
	return Turn{Role: RoleTool, Content: content, ToolCallID: callID}
}

// Report is the read-API view of a lead: the record joined with its
// realtor, if one is assigned.
type Report struct {
	Lead    *Lead    `json:"lead"`
	Realtor *Realtor `json:"realtor,omitempty"`
}

// AgentInfo bundles the lead/realtor context the prompt builder needs for
// one loop iteration.
type AgentInfo struct {
	RealtorName  string
	Answers      []SurveyAnswer
	LeadName     string
	Phone        string
	TimeZone     string
	CalendarUse  bool
	CustomPrompt string
}

// BookingInfo is the lead context required to create a calendar booking.
type BookingInfo struct {
	Phone     string
	FullName  string
	TimeZone  string
	RealtorID string
}

// Booking is the single active appointment for a lead. A new booking for
// the same phone replaces the old one.
type Booking struct {
	Phone           string    `json:"phone"`
	AppointmentTime time.Time `json:"appointment_time"`
	RealtorID       string    `json:"realtor_id"`
	CalendarID      string    `json:"google_calendar_id"`
	EventID         string    `json:"google_event_id"`
}

// CalendarEvent is the payload for Calendar.AddEvent.
type CalendarEvent struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CalendarID  string    `json:"calendarId"`
	Phone       string    `json:"phone"`
}

// ToolResult is the outcome of executing one tool call. Either Result or
// Error is set; both feed back into the conversation as a tool turn.
type ToolResult struct {
	CallID string `json:"-"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (r ToolResult) Payload() any {
	if r.Error != "" {
		return map[string]string{"error": r.Error}
	}
	return r.Result
}
