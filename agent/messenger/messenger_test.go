package messenger

import (
	"context"
	"errors"
	"testing"
)

type fakeTransport struct {
	sent      []string
	templates []string
	err       error
}

func (f *fakeTransport) SendMessage(ctx context.Context, phone, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) SendTemplate(ctx context.Context, phone, name, language string, components []any) error {
	if f.err != nil {
		return f.err
	}
	f.templates = append(f.templates, name)
	return nil
}

type fakeSendLog struct {
	sentCount int
	countErr  error
	records   []string
}

func (f *fakeSendLog) SentCount(ctx context.Context, phone string) (int, error) {
	return f.sentCount, f.countErr
}

func (f *fakeSendLog) Record(ctx context.Context, phone, messageType, text, status string) error {
	f.records = append(f.records, status)
	if status == "sent" {
		f.sentCount++
	}
	return nil
}

func TestSendTextRecordsDelivery(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	sendLog := &fakeSendLog{}
	m, err := New(transport, sendLog, 10)
	if err != nil {
		t.Fatalf("new messenger: %v", err)
	}

	if err := m.SendText(context.Background(), "5511999990000", "olá"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(transport.sent) != 1 || transport.sent[0] != "olá" {
		t.Fatalf("transport sent = %v", transport.sent)
	}
	if len(sendLog.records) != 1 || sendLog.records[0] != "sent" {
		t.Fatalf("records = %v", sendLog.records)
	}
}

func TestSendTextQuotaExhaustedSkipsSilently(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	sendLog := &fakeSendLog{sentCount: 10}
	m, _ := New(transport, sendLog, 10)

	// Skipped sends return nil so callers still persist the assistant turn.
	if err := m.SendText(context.Background(), "5511999990000", "olá"); err != nil {
		t.Fatalf("quota skip should not error: %v", err)
	}
	if len(transport.sent) != 0 {
		t.Fatalf("nothing should be delivered, got %v", transport.sent)
	}
	if len(sendLog.records) != 0 {
		t.Fatalf("skipped send should not be recorded, got %v", sendLog.records)
	}
}

func TestSendTextQuotaBoundary(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	sendLog := &fakeSendLog{sentCount: 9}
	m, _ := New(transport, sendLog, 10)
	ctx := context.Background()

	if err := m.SendText(ctx, "5511999990000", "décima"); err != nil {
		t.Fatalf("tenth send should go through: %v", err)
	}
	if err := m.SendText(ctx, "5511999990000", "décima primeira"); err != nil {
		t.Fatalf("over-quota send should be skipped, not fail: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("delivered = %v", transport.sent)
	}
}

func TestSendTextTransportFailureRecorded(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{err: errors.New("graph api 500")}
	sendLog := &fakeSendLog{}
	m, _ := New(transport, sendLog, 10)

	err := m.SendText(context.Background(), "5511999990000", "olá")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if len(sendLog.records) != 1 || sendLog.records[0] != "failed" {
		t.Fatalf("records = %v", sendLog.records)
	}
}

func TestSendTextQuotaCheckFailureSendsAnyway(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	sendLog := &fakeSendLog{countErr: errors.New("db down")}
	m, _ := New(transport, sendLog, 10)

	if err := m.SendText(context.Background(), "5511999990000", "olá"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("delivered = %v", transport.sent)
	}
}

func TestSendTemplate(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	sendLog := &fakeSendLog{}
	m, _ := New(transport, sendLog, 10)

	if err := m.SendTemplate(context.Background(), "5511999990000", "followup_1", "pt_BR", nil); err != nil {
		t.Fatalf("send template: %v", err)
	}
	if len(transport.templates) != 1 || transport.templates[0] != "followup_1" {
		t.Fatalf("templates = %v", transport.templates)
	}
}
