package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	storex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/store"
)

// fakeModel replays a scripted sequence of assistant turns and records the
// message slices it was called with.
type fakeModel struct {
	script   []contractx.Turn
	err      error
	calls    int
	seenSys  []string
	seenLens []int
}

func (f *fakeModel) Chat(ctx context.Context, turns []contractx.Turn, calendarUse bool) (contractx.Turn, error) {
	f.calls++
	f.seenLens = append(f.seenLens, len(turns))
	if len(turns) > 0 && turns[0].Role == contractx.RoleSystem {
		f.seenSys = append(f.seenSys, turns[0].Content)
	}
	if f.err != nil {
		return contractx.Turn{}, f.err
	}
	if len(f.script) == 0 {
		return contractx.AssistantTurn("fim", nil), nil
	}
	next := f.script[0]
	f.script = f.script[1:]
	return next, nil
}

type executedCall struct {
	phone string
	call  contractx.ToolCall
}

type fakeExecutor struct {
	executed []executedCall
	results  map[string]contractx.ToolResult
	onCall   func(ctx context.Context, name string)
}

func (f *fakeExecutor) Execute(ctx context.Context, phone string, info *contractx.AgentInfo, call contractx.ToolCall) contractx.ToolResult {
	f.executed = append(f.executed, executedCall{phone: phone, call: call})
	if f.onCall != nil {
		f.onCall(ctx, call.Name)
	}
	if r, ok := f.results[call.Name]; ok {
		r.CallID = call.ID
		return r
	}
	return contractx.ToolResult{CallID: call.ID, Result: map[string]string{"status": "ok"}}
}

type fakeMessenger struct {
	texts []string
	err   error
}

func (f *fakeMessenger) SendText(ctx context.Context, phone, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendTemplate(ctx context.Context, phone, name, language string, components []any) error {
	return nil
}

func newAgent(t *testing.T, mem *storex.Memory, model *fakeModel, exec *fakeExecutor, msg *fakeMessenger) *Agent {
	t.Helper()
	agent, err := New(Config{MaxIterations: 8}, model, mem, mem, exec, msg)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	agent.now = func() time.Time {
		return time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)
	}
	return agent
}

func seedLead(t *testing.T, mem *storex.Memory, phone string) {
	t.Helper()
	err := mem.Upsert(context.Background(), &contractx.Lead{
		Phone:     phone,
		RealtorID: "r-1",
		FirstName: "Ana",
		TimeZone:  "America/Sao_Paulo",
	})
	if err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	mem.PutRealtor(&contractx.Realtor{ID: "r-1", Name: "Carlos", CalendarUse: true})
}

func TestSendPlainReply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")
	model := &fakeModel{script: []contractx.Turn{
		contractx.AssistantTurn("Olá Ana, posso ajudar?", nil),
	}}
	msg := &fakeMessenger{}
	agent := newAgent(t, mem, model, &fakeExecutor{}, msg)

	reply, err := agent.Send(ctx, "5511999990000", "oi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != "Olá Ana, posso ajudar?" {
		t.Fatalf("reply = %q", reply)
	}
	if len(msg.texts) != 1 || msg.texts[0] != reply {
		t.Fatalf("delivered = %v", msg.texts)
	}

	turns, _ := mem.FetchOrdered(ctx, "5511999990000")
	if len(turns) != 2 {
		t.Fatalf("expected user+assistant turns, got %d", len(turns))
	}
	if turns[0].Role != contractx.RoleUser || turns[1].Role != contractx.RoleAssistant {
		t.Fatalf("turn roles = %v, %v", turns[0].Role, turns[1].Role)
	}

	lead, _ := mem.Get(ctx, "5511999990000")
	if lead.State != contractx.LeadHot {
		t.Fatalf("first inbound message should promote lead to hot, got %q", lead.State)
	}
}

func TestSendDropsStoppedConversation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")
	if err := mem.SetStopped(ctx, "5511999990000"); err != nil {
		t.Fatalf("set stopped: %v", err)
	}
	model := &fakeModel{}
	agent := newAgent(t, mem, model, &fakeExecutor{}, &fakeMessenger{})

	reply, err := agent.Send(ctx, "5511999990000", "oi?")
	if err != nil || reply != "" {
		t.Fatalf("expected silent drop, got %q, %v", reply, err)
	}
	if model.calls != 0 {
		t.Fatalf("model should not be called, got %d calls", model.calls)
	}
	if count, _ := mem.Count(ctx, "5511999990000"); count != 0 {
		t.Fatalf("no turn should be persisted, got %d", count)
	}
}

func TestSendExecutesToolChainInOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")
	model := &fakeModel{script: []contractx.Turn{
		contractx.AssistantTurn("", []contractx.ToolCall{
			{ID: "call-1", Name: "set_address", Arguments: `{"addresses":[{"address":"Rua Augusta 100"}]}`},
			{ID: "call-2", Name: "list_available_times", Arguments: `{"date":"2024-06-10"}`},
		}),
		contractx.AssistantTurn("Tenho horários para segunda.", nil),
	}}
	exec := &fakeExecutor{results: map[string]contractx.ToolResult{
		"list_available_times": {Result: map[string]any{"open": []string{"09:00"}}},
	}}
	agent := newAgent(t, mem, model, exec, &fakeMessenger{})

	reply, err := agent.Send(ctx, "5511999990000", "quero agendar")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != "Tenho horários para segunda." {
		t.Fatalf("reply = %q", reply)
	}
	if model.calls != 2 {
		t.Fatalf("model calls = %d", model.calls)
	}
	if len(exec.executed) != 2 ||
		exec.executed[0].call.Name != "set_address" ||
		exec.executed[1].call.Name != "list_available_times" {
		t.Fatalf("executed = %+v", exec.executed)
	}

	turns, _ := mem.FetchOrdered(ctx, "5511999990000")
	wantRoles := []contractx.Role{
		contractx.RoleUser,
		contractx.RoleAssistant,
		contractx.RoleTool,
		contractx.RoleTool,
		contractx.RoleAssistant,
	}
	if len(turns) != len(wantRoles) {
		t.Fatalf("turn count = %d, want %d", len(turns), len(wantRoles))
	}
	for i, role := range wantRoles {
		if turns[i].Role != role {
			t.Fatalf("turn %d role = %q, want %q", i, turns[i].Role, role)
		}
	}
	if turns[2].ToolCallID != "call-1" || turns[3].ToolCallID != "call-2" {
		t.Fatalf("tool turn ids = %q, %q", turns[2].ToolCallID, turns[3].ToolCallID)
	}
	// Second model round-trip saw the tool outcomes.
	if model.seenLens[1] <= model.seenLens[0] {
		t.Fatalf("history did not grow between iterations: %v", model.seenLens)
	}
}

func TestSendToolErrorFedBackToModel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")
	model := &fakeModel{script: []contractx.Turn{
		contractx.AssistantTurn("", []contractx.ToolCall{
			{ID: "call-1", Name: "book_time", Arguments: `{"bookedDate":"2024-06-10","bookedTime":"14:00"}`},
		}),
		contractx.AssistantTurn("Antes preciso do endereço do imóvel.", nil),
	}}
	exec := &fakeExecutor{results: map[string]contractx.ToolResult{
		"book_time": {Error: contractx.ErrAddressRequired.Error()},
	}}
	agent := newAgent(t, mem, model, exec, &fakeMessenger{})

	reply, err := agent.Send(ctx, "5511999990000", "marca pra segunda 14h")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply == "" {
		t.Fatal("expected a recovery reply")
	}

	turns, _ := mem.FetchOrdered(ctx, "5511999990000")
	toolTurn := turns[2]
	if toolTurn.Role != contractx.RoleTool {
		t.Fatalf("turn 2 role = %q", toolTurn.Role)
	}
	if !strings.Contains(toolTurn.Content, "please set the address before proceding") {
		t.Fatalf("tool turn content = %q", toolTurn.Content)
	}
}

func TestSendIterationCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")

	// The model never answers in plain text.
	looping := make([]contractx.Turn, 20)
	for i := range looping {
		looping[i] = contractx.AssistantTurn("", []contractx.ToolCall{
			{ID: "call", Name: "search_web", Arguments: `{"query":"valor do m2"}`},
		})
	}
	model := &fakeModel{script: looping}
	agent := newAgent(t, mem, model, &fakeExecutor{}, &fakeMessenger{})

	reply, err := agent.Send(ctx, "5511999990000", "oi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != "" {
		t.Fatalf("capped loop should yield no reply, got %q", reply)
	}
	if model.calls != 8 {
		t.Fatalf("model calls = %d, want the iteration cap", model.calls)
	}
}

func TestSendStopMidLoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")
	model := &fakeModel{script: []contractx.Turn{
		contractx.AssistantTurn("", []contractx.ToolCall{
			{ID: "call-1", Name: "stop_messages", Arguments: "{}"},
		}),
		contractx.AssistantTurn("não deveria chegar aqui", nil),
	}}
	exec := &fakeExecutor{}
	exec.onCall = func(ctx context.Context, name string) {
		if name == "stop_messages" {
			_ = mem.SetStopped(ctx, "5511999990000")
		}
	}
	agent := newAgent(t, mem, model, exec, &fakeMessenger{})

	reply, err := agent.Send(ctx, "5511999990000", "para de me mandar mensagem")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != "" {
		t.Fatalf("stopped loop should yield no reply, got %q", reply)
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d, loop should halt after the stop", model.calls)
	}
}

func TestSendUnknownLeadUsesDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	model := &fakeModel{script: []contractx.Turn{
		contractx.AssistantTurn("Olá! Como posso ajudar?", nil),
	}}
	agent := newAgent(t, mem, model, &fakeExecutor{}, &fakeMessenger{})

	reply, err := agent.Send(ctx, "5500000000000", "oi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply == "" {
		t.Fatal("expected a reply for an unknown lead")
	}
	if len(model.seenSys) != 1 || !strings.Contains(model.seenSys[0], "o corretor") {
		t.Fatal("system prompt should fall back to the anonymous persona")
	}
}

func TestSendModelErrorIsFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")
	model := &fakeModel{err: contractx.ErrModelInvoke}
	msg := &fakeMessenger{}
	agent := newAgent(t, mem, model, &fakeExecutor{}, msg)

	_, err := agent.Send(ctx, "5511999990000", "oi")
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected model error, got %v", err)
	}
	if len(msg.texts) != 0 {
		t.Fatalf("no reply should be delivered, got %v", msg.texts)
	}
	// The user turn is still part of the record.
	if count, _ := mem.Count(ctx, "5511999990000"); count != 1 {
		t.Fatalf("turn count = %d", count)
	}
}

func TestSendDeliveryFailureDoesNotUnwind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")
	model := &fakeModel{script: []contractx.Turn{
		contractx.AssistantTurn("resposta", nil),
	}}
	msg := &fakeMessenger{err: errors.New("whatsapp down")}
	agent := newAgent(t, mem, model, &fakeExecutor{}, msg)

	reply, err := agent.Send(ctx, "5511999990000", "oi")
	if err != nil {
		t.Fatalf("delivery failure should not fail the send: %v", err)
	}
	if reply != "resposta" {
		t.Fatalf("reply = %q", reply)
	}
}

type fakeSummarizer struct {
	queries []string
}

func (f *fakeSummarizer) Search(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return "lead quer avaliar um apartamento em Pinheiros", nil
}

func TestSendRefreshesMessageSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")

	script := make([]contractx.Turn, 10)
	for i := range script {
		script[i] = contractx.AssistantTurn("resposta", nil)
	}
	model := &fakeModel{script: script}
	summarizer := &fakeSummarizer{}
	agent := newAgent(t, mem, model, &fakeExecutor{}, &fakeMessenger{}).WithSummarizer(summarizer)

	// Five exchanges produce ten turns, crossing the summary interval.
	for i := 0; i < 5; i++ {
		if _, err := agent.Send(ctx, "5511999990000", "oi"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	if len(summarizer.queries) != 1 {
		t.Fatalf("summarizer calls = %d", len(summarizer.queries))
	}
	lead, _ := mem.Get(ctx, "5511999990000")
	if lead.MessageSummary == nil || lead.MessageSummary.Number != 10 {
		t.Fatalf("message summary = %+v", lead.MessageSummary)
	}
	if !strings.Contains(summarizer.queries[0], "user: oi") {
		t.Fatalf("summary input = %q", summarizer.queries[0])
	}
}

func TestSendConcurrentSamePhoneSerialized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	seedLead(t, mem, "5511999990000")
	model := &fakeModel{}
	agent := newAgent(t, mem, model, &fakeExecutor{}, &fakeMessenger{})

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = agent.Send(ctx, "5511999990000", "oi")
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	turns, _ := mem.FetchOrdered(ctx, "5511999990000")
	if len(turns) != 8 {
		t.Fatalf("expected 4 user+assistant pairs, got %d turns", len(turns))
	}
	// Serialized sends never interleave a user turn between another send's
	// user turn and its assistant reply.
	for i := 0; i < len(turns); i += 2 {
		if turns[i].Role != contractx.RoleUser || turns[i+1].Role != contractx.RoleAssistant {
			t.Fatalf("interleaved turns at %d: %v %v", i, turns[i].Role, turns[i+1].Role)
		}
	}
}
