package nlp

import (
	"context"
	"testing"
	"time"

	"github.com/fcamachol/chatflow/pkg/models"
)

type fakeNLPGateway struct {
	logs []models.NLPParseLog
}

func (f *fakeNLPGateway) InsertNLPParseLog(ctx context.Context, l models.NLPParseLog) error {
	f.logs = append(f.logs, l)
	return nil
}

func TestService_Parse_TaskSuccessLogsCall(t *testing.T) {
	gw := &fakeNLPGateway{}
	svc := NewService(gw)
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	result, err := svc.Parse(context.Background(), "task: call the dentist tomorrow", ParserTask, "en", models.RuleConfig{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if len(gw.logs) != 1 {
		t.Fatalf("expected one log row, got %d", len(gw.logs))
	}
	if gw.logs[0].ParserType != string(ParserTask) || gw.logs[0].Language != "en" {
		t.Fatalf("unexpected log row: %+v", gw.logs[0])
	}
}

func TestService_Parse_TaskWithoutTitleFails(t *testing.T) {
	gw := &fakeNLPGateway{}
	svc := NewService(gw)
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	result, err := svc.Parse(context.Background(), "task:", ParserTask, "en", models.RuleConfig{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for an empty title")
	}
	if result.Error == "" {
		t.Fatal("expected a localized error message")
	}
}

func TestService_Parse_CalendarWithoutDateFails(t *testing.T) {
	gw := &fakeNLPGateway{}
	svc := NewService(gw)
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	result, err := svc.Parse(context.Background(), "let's catch up sometime", ParserCalendar, "en", models.RuleConfig{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure without a date reference")
	}
}

func TestService_Parse_RuleConfigFillsGapNotOverride(t *testing.T) {
	gw := &fakeNLPGateway{}
	svc := NewService(gw)
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	cfg := models.RuleConfig{DefaultPriority: "low"}
	result, err := svc.Parse(context.Background(), "task: call the dentist tomorrow, urgent", ParserTask, "en", cfg, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := result.Data.(TaskData)
	if data.Priority != "high" {
		t.Fatalf("expected extracted priority to win over config default, got %q", data.Priority)
	}

	result2, err := svc.Parse(context.Background(), "task: water the plants", ParserTask, "en", cfg, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data2 := result2.Data.(TaskData)
	if data2.Priority != "low" {
		t.Fatalf("expected config default to fill the gap, got %q", data2.Priority)
	}
}

func TestService_Parse_BillDueMonthsAwayGetsMediumPriorityAndBillTag(t *testing.T) {
	gw := &fakeNLPGateway{}
	svc := NewService(gw)
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	result, err := svc.Parse(context.Background(), "Pagar luz CFE $890 vence 15 enero", ParserBill, "es", models.RuleConfig{DefaultCurrency: "MXN"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	bill := result.Data.(BillData)
	if bill.Vendor != "CFE" {
		t.Fatalf("expected vendor CFE, got %q", bill.Vendor)
	}
	if bill.Priority != "medium" {
		t.Fatalf("expected medium priority since Jan 15 is months away, got %q", bill.Priority)
	}
	if len(bill.Tags) != 1 || bill.Tags[0] != "bill" {
		t.Fatalf("expected tags to include bill, got %v", bill.Tags)
	}
}

func TestService_Parse_BillDueWithinWeekGetsHighPriority(t *testing.T) {
	gw := &fakeNLPGateway{}
	svc := NewService(gw)
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	result, err := svc.Parse(context.Background(), "pay the electricity bill from CFE $45.50 tomorrow", ParserBill, "en", models.RuleConfig{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bill := result.Data.(BillData)
	if bill.Priority != "high" {
		t.Fatalf("expected high priority for a bill due tomorrow, got %q", bill.Priority)
	}
}

func TestService_Parse_AutoDetectsLanguageWhenNotHinted(t *testing.T) {
	gw := &fakeNLPGateway{}
	svc := NewService(gw)
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	_, err := svc.Parse(context.Background(), "necesito pagar la cuenta de la luz $50 mañana", ParserBill, "auto", models.RuleConfig{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.logs[0].Language != "es" {
		t.Fatalf("expected auto-detected es, got %q", gw.logs[0].Language)
	}
}
