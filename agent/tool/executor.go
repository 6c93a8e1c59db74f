package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	promptx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/prompt"
)

// Booker is the booking workflow the executor drives. CreateOrUpdate books
// a concrete slot; MarkBooked records a booking with no time attached.
type Booker interface {
	CreateOrUpdate(ctx context.Context, info contractx.BookingInfo, bookedDate, bookedTime string) error
	MarkBooked(ctx context.Context, phone string) error
}

// Executor interprets tool calls requested by the model and turns every
// outcome, success or failure, into a ToolResult the model can read back.
// Handler errors never escape as Go errors; a broken call must not take
// down the remaining calls in the same assistant turn.
type Executor struct {
	leads        contractx.LeadStore
	conversation contractx.ConversationStore
	booker       Booker
	calendar     contractx.Calendar
	scheduler    contractx.Scheduler
	messenger    contractx.Messenger
	searcher     contractx.Searcher
}

func NewExecutor(
	leads contractx.LeadStore,
	conversation contractx.ConversationStore,
	booker Booker,
	calendar contractx.Calendar,
	scheduler contractx.Scheduler,
	messenger contractx.Messenger,
	searcher contractx.Searcher,
) (*Executor, error) {
	if leads == nil {
		return nil, errors.New("lead store is required")
	}
	if conversation == nil {
		return nil, errors.New("conversation store is required")
	}
	if booker == nil {
		return nil, errors.New("booker is required")
	}
	if calendar == nil {
		return nil, errors.New("calendar is required")
	}
	if scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	if messenger == nil {
		return nil, errors.New("messenger is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	return &Executor{
		leads:        leads,
		conversation: conversation,
		booker:       booker,
		calendar:     calendar,
		scheduler:    scheduler,
		messenger:    messenger,
		searcher:     searcher,
	}, nil
}

// Execute runs a single tool call for the given lead. The returned result
// carries the originating call id so it can be appended as a tool turn.
func (e *Executor) Execute(ctx context.Context, phone string, info *contractx.AgentInfo, call contractx.ToolCall) contractx.ToolResult {
	args, err := DecodeArgs(call.Name, call.Arguments)
	if err != nil {
		log.Error().Str("tool", call.Name).Str("args", call.Arguments).Err(err).
			Msg("tool arguments rejected")
		return contractx.ToolResult{CallID: call.ID, Error: err.Error()}
	}

	var result contractx.ToolResult
	switch a := args.(type) {
	case SearchArgs:
		result = e.searchWeb(ctx, a)
	case AddressArgs:
		result = e.setAddress(ctx, phone, a)
	case BookArgs:
		result = e.bookTime(ctx, phone, a)
	case AvailabilityArgs:
		result = e.listAvailable(ctx, phone, a)
	case EmptyArgs:
		switch call.Name {
		case ToolBookTrue:
			result = e.bookTrue(ctx, phone, info)
		case ToolStopMessages:
			result = e.stopMessages(ctx, phone)
		}
	}
	result.CallID = call.ID
	return result
}

func (e *Executor) searchWeb(ctx context.Context, a SearchArgs) contractx.ToolResult {
	text, err := e.searcher.Search(ctx, a.Query)
	if err != nil {
		return contractx.ToolResult{Error: fmt.Sprintf("search failed: %v", err)}
	}
	return contractx.ToolResult{Result: text}
}

func (e *Executor) setAddress(ctx context.Context, phone string, a AddressArgs) contractx.ToolResult {
	if err := e.leads.AppendAddresses(ctx, phone, a.Addresses); err != nil {
		return contractx.ToolResult{Error: fmt.Sprintf("failed to save address: %v", err)}
	}
	return contractx.ToolResult{Result: map[string]string{"status": "ok"}}
}

// bookTime is address-gated: scheduling actions are impossible until the
// lead has recorded at least one property address. The gate is a workflow
// invariant enforced here no matter what the model asks for.
func (e *Executor) bookTime(ctx context.Context, phone string, a BookArgs) contractx.ToolResult {
	ok, err := e.leads.HasAddress(ctx, phone)
	if err != nil || !ok {
		return contractx.ToolResult{Error: contractx.ErrAddressRequired.Error()}
	}

	info, err := e.leads.BookingInfo(ctx, phone)
	if err != nil || info == nil {
		return contractx.ToolResult{Error: contractx.ErrLeadNotFound.Error()}
	}

	if err := e.booker.CreateOrUpdate(ctx, *info, a.BookedDate, a.BookedTime); err != nil {
		return contractx.ToolResult{Error: err.Error()}
	}
	if err := e.conversation.SetStopped(ctx, phone); err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to stop conversation after booking")
	}
	return contractx.ToolResult{Result: map[string]string{"status": "booked"}}
}

func (e *Executor) listAvailable(ctx context.Context, phone string, a AvailabilityArgs) contractx.ToolResult {
	ok, err := e.leads.HasAddress(ctx, phone)
	if err != nil || !ok {
		return contractx.ToolResult{Error: contractx.ErrAddressRequired.Error()}
	}

	info, err := e.leads.BookingInfo(ctx, phone)
	if err != nil || info == nil {
		return contractx.ToolResult{Error: contractx.ErrLeadNotFound.Error()}
	}

	open, err := e.calendar.OpenSlots(ctx, info.RealtorID, a.Date)
	if err != nil {
		return contractx.ToolResult{Error: fmt.Sprintf("failed to list open slots: %v", err)}
	}
	return contractx.ToolResult{Result: map[string]any{"open": open}}
}

func (e *Executor) bookTrue(ctx context.Context, phone string, info *contractx.AgentInfo) contractx.ToolResult {
	if err := e.booker.MarkBooked(ctx, phone); err != nil {
		return contractx.ToolResult{Error: err.Error()}
	}
	if err := e.conversation.SetStopped(ctx, phone); err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to stop conversation after book_true")
	}

	realtorName := promptx.DefaultRealtorName
	if info != nil && info.RealtorName != "" {
		realtorName = info.RealtorName
	}
	if err := e.messenger.SendText(ctx, phone, realtorName+" entrará em contato em breve."); err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to send book_true notice")
	}
	return contractx.ToolResult{Result: map[string]string{"status": "booked"}}
}

func (e *Executor) stopMessages(ctx context.Context, phone string) contractx.ToolResult {
	if err := e.scheduler.CancelAll(ctx, phone); err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to cancel scheduled follow-ups")
	}
	if err := e.conversation.SetStopped(ctx, phone); err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to set stop flag")
	}
	return contractx.ToolResult{Result: map[string]string{"status": "stopped"}}
}
