package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	storex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/store"
)

type fakeAgent struct {
	mu    sync.Mutex
	sent  []string
	done  chan struct{}
	reply string
}

func (f *fakeAgent) Send(ctx context.Context, phone, message string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, message)
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return f.reply, nil
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := NewServer(&fakeAgent{}, storex.NewMemory(0), storex.NewMemory(0), 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetConversation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	if err := mem.Upsert(ctx, &contractx.Lead{Phone: "5511999990000"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, content := range []string{"oi", "olá!"} {
		if err := mem.Append(ctx, "5511999990000", contractx.UserTurn(content)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	srv := NewServer(&fakeAgent{}, mem, mem, 30)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversation/5511999990000", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var res conversationResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Phone != "5511999990000" || len(res.Turns) != 2 {
		t.Fatalf("response = %+v", res)
	}
	if res.Turns[0].Content != "oi" {
		t.Fatalf("turn order wrong: %+v", res.Turns)
	}
}

func TestGetConversationStopsOverLength(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(100)
	if err := mem.Upsert(ctx, &contractx.Lead{Phone: "5511999990000"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := mem.Append(ctx, "5511999990000", contractx.UserTurn("m")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	srv := NewServer(&fakeAgent{}, mem, mem, 3)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversation/5511999990000", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stopped, _ := mem.IsStopped(ctx, "5511999990000")
	if !stopped {
		t.Fatal("over-length conversation should be stopped on read")
	}
}

func TestGetLeadReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storex.NewMemory(0)
	err := mem.Upsert(ctx, &contractx.Lead{Phone: "5511999990000", RealtorID: "r-1", FirstName: "Ana"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	mem.PutRealtor(&contractx.Realtor{ID: "r-1", Name: "Carlos", CalendarUse: true})
	srv := NewServer(&fakeAgent{}, mem, mem, 30)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lead/5511999990000", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var report contractx.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Lead == nil || report.Lead.FirstName != "Ana" {
		t.Fatalf("report lead = %+v", report.Lead)
	}
	if report.Realtor == nil || report.Realtor.Name != "Carlos" {
		t.Fatalf("report realtor = %+v", report.Realtor)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lead/5500000000000", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown lead status = %d", rec.Code)
	}
}

func TestPostMessage(t *testing.T) {
	t.Parallel()
	agent := &fakeAgent{done: make(chan struct{})}
	srv := NewServer(agent, storex.NewMemory(0), storex.NewMemory(0), 0)

	body := strings.NewReader(`{"phone":"+55 11 99999-0000","message":"quero avaliar meu apartamento"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/message", body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	<-agent.done
	agent.mu.Lock()
	defer agent.mu.Unlock()
	if len(agent.sent) != 1 || agent.sent[0] != "quero avaliar meu apartamento" {
		t.Fatalf("agent received = %v", agent.sent)
	}
}

func TestPostMessageValidation(t *testing.T) {
	t.Parallel()
	srv := NewServer(&fakeAgent{}, storex.NewMemory(0), storex.NewMemory(0), 0)

	cases := []struct {
		name string
		body string
	}{
		{"missing phone", `{"message":"oi"}`},
		{"missing message", `{"phone":"5511999990000"}`},
		{"not json", `oi`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}
}
