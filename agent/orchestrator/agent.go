// Package orchestrator runs the conversation loop: persist the inbound
// turn, call the model with the full history, execute whatever tools it
// asked for, and repeat until the model answers in plain text or a stop
// condition fires.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
	promptx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/prompt"
)

// DefaultMaxIterations bounds model round-trips within a single inbound
// message. The cap is separate from the conversation history valve.
const DefaultMaxIterations = 8

// summaryInterval is how many turns may accumulate past the cached
// summary's watermark before the summary is recomputed.
const summaryInterval = 10

type Config struct {
	MaxIterations int `envconfig:"MAX_ITERATIONS" default:"8"`
}

// ToolExecutor runs one tool call and reports the outcome as a result the
// model can read back.
type ToolExecutor interface {
	Execute(ctx context.Context, phone string, info *contractx.AgentInfo, call contractx.ToolCall) contractx.ToolResult
}

// Agent drives one conversation per phone. Sends for the same phone are
// serialized; different phones proceed concurrently.
type Agent struct {
	model         contractx.ModelClient
	leads         contractx.LeadStore
	conversation  contractx.ConversationStore
	executor      ToolExecutor
	messenger     contractx.Messenger
	summarizer    contractx.Searcher // optional
	maxIterations int
	now           func() time.Time

	locks sync.Map // normalized phone -> *sync.Mutex
}

func New(
	cfg Config,
	model contractx.ModelClient,
	leads contractx.LeadStore,
	conversation contractx.ConversationStore,
	executor ToolExecutor,
	messenger contractx.Messenger,
) (*Agent, error) {
	if model == nil {
		return nil, errors.New("model client is required")
	}
	if leads == nil {
		return nil, errors.New("lead store is required")
	}
	if conversation == nil {
		return nil, errors.New("conversation store is required")
	}
	if executor == nil {
		return nil, errors.New("tool executor is required")
	}
	if messenger == nil {
		return nil, errors.New("messenger is required")
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Agent{
		model:         model,
		leads:         leads,
		conversation:  conversation,
		executor:      executor,
		messenger:     messenger,
		maxIterations: maxIterations,
		now:           time.Now,
	}, nil
}

// WithSummarizer enables rolling message-summary caching after replies.
func (a *Agent) WithSummarizer(s contractx.Searcher) *Agent {
	a.summarizer = s
	return a
}

// Send processes one inbound message and returns the final reply text, or
// empty when the conversation is stopped or the loop ended without a plain
// reply. Messages for a stopped lead are dropped silently.
func (a *Agent) Send(ctx context.Context, phone, userMsg string) (string, error) {
	key := phonex.Normalize(phone)
	mu := a.lock(key)
	mu.Lock()
	defer mu.Unlock()

	stopped, err := a.conversation.IsStopped(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check stop flag: %w", err)
	}
	if stopped {
		log.Info().Str("phone", key).Msg("dropping message for stopped conversation")
		return "", nil
	}

	if err := a.leads.MarkHotIfCold(ctx, key); err != nil {
		log.Warn().Str("phone", key).Err(err).Msg("failed to promote lead state")
	}
	if err := a.conversation.Append(ctx, key, contractx.UserTurn(userMsg)); err != nil {
		return "", fmt.Errorf("persist user turn: %w", err)
	}

	return a.loop(ctx, key)
}

func (a *Agent) loop(ctx context.Context, phone string) (string, error) {
	for i := 0; i < a.maxIterations; i++ {
		stopped, err := a.conversation.IsStopped(ctx, phone)
		if err != nil {
			return "", fmt.Errorf("check stop flag: %w", err)
		}
		if stopped {
			log.Info().Str("phone", phone).Int("iteration", i).Msg("conversation stopped mid-loop")
			return "", nil
		}

		history, err := a.conversation.FetchOrdered(ctx, phone)
		if err != nil {
			return "", fmt.Errorf("fetch history: %w", err)
		}
		info := a.agentInfo(ctx, phone)

		system := promptx.SystemMessage(
			info.RealtorName, info.Answers, info.LeadName, phone,
			a.now(), info.CustomPrompt, info.CalendarUse,
		)
		turns := make([]contractx.Turn, 0, len(history)+1)
		turns = append(turns, contractx.Turn{Role: contractx.RoleSystem, Content: system})
		turns = append(turns, history...)

		reply, err := a.model.Chat(ctx, turns, info.CalendarUse)
		if err != nil {
			return "", err
		}
		if err := a.conversation.Append(ctx, phone, reply); err != nil {
			return "", fmt.Errorf("persist assistant turn: %w", err)
		}

		if len(reply.ToolCalls) == 0 {
			if reply.Content != "" {
				if err := a.messenger.SendText(ctx, phone, reply.Content); err != nil {
					log.Warn().Str("phone", phone).Err(err).Msg("failed to deliver reply")
				}
			}
			a.refreshSummary(ctx, phone)
			return reply.Content, nil
		}

		// Tool calls execute in the order the model requested them, each
		// outcome persisted before the next model round-trip.
		for _, call := range reply.ToolCalls {
			result := a.executor.Execute(ctx, phone, info, call)
			toolTurn := contractx.ToolTurn(result.CallID, result.Payload())
			if err := a.conversation.Append(ctx, phone, toolTurn); err != nil {
				return "", fmt.Errorf("persist tool turn: %w", err)
			}
		}
	}

	log.Warn().Str("phone", phone).Int("max_iterations", a.maxIterations).
		Msg("loop ended without a plain reply")
	return "", nil
}

// refreshSummary recomputes the cached message summary once enough turns
// have accumulated past its watermark. Summary caching is best effort;
// every failure is swallowed with a warning.
func (a *Agent) refreshSummary(ctx context.Context, phone string) {
	if a.summarizer == nil {
		return
	}

	lead, err := a.leads.Get(ctx, phone)
	if err != nil {
		return
	}
	count, err := a.conversation.Count(ctx, phone)
	if err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to count turns for summary")
		return
	}
	watermark := 0
	if lead.MessageSummary != nil {
		watermark = lead.MessageSummary.Number
	}
	if count-watermark < summaryInterval {
		return
	}

	history, err := a.conversation.FetchOrdered(ctx, phone)
	if err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to fetch turns for summary")
		return
	}
	var b strings.Builder
	for _, t := range history {
		if t.Content == "" || (t.Role != contractx.RoleUser && t.Role != contractx.RoleAssistant) {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}

	summary, err := a.summarizer.Search(ctx, b.String())
	if err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to summarize conversation")
		return
	}
	update := &contractx.MessageSummary{Number: count, Content: summary}
	if err := a.leads.UpdateSummaries(ctx, phone, nil, update); err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to cache message summary")
	}
}

// agentInfo resolves prompt context, degrading to the anonymous defaults
// when the lead record is missing or unreadable.
func (a *Agent) agentInfo(ctx context.Context, phone string) *contractx.AgentInfo {
	info, err := a.leads.AgentInfo(ctx, phone)
	if err != nil {
		if !errors.Is(err, contractx.ErrLeadNotFound) {
			log.Warn().Str("phone", phone).Err(err).Msg("failed to load agent info, using defaults")
		}
		return &contractx.AgentInfo{Phone: phone, CalendarUse: true}
	}
	return info
}

func (a *Agent) lock(phone string) *sync.Mutex {
	mu, _ := a.locks.LoadOrStore(phone, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
