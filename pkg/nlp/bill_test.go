package nlp

import (
	"testing"
	"time"
)

func TestParseBill_SingleVendorAndAmount(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	result, confidence, ok := parseBill("pay the electricity bill from CFE $45.50 tomorrow", LangEnglish, now, "USD")
	if !ok {
		t.Fatal("expected a match")
	}
	bill, isBill := result.(BillData)
	if !isBill {
		t.Fatalf("expected BillData, got %T", result)
	}
	if bill.Amount.String() != "45.5" {
		t.Fatalf("expected amount 45.5, got %s", bill.Amount.String())
	}
	if bill.Category != "utilities" {
		t.Fatalf("expected utilities category, got %q", bill.Category)
	}
	if confidence <= 0.5 {
		t.Fatalf("expected boosted confidence, got %f", confidence)
	}
}

func TestParseBill_MultipleLinesYieldMultipleBillsWithTotal(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	text := "luz $30\nagua $20"
	result, _, ok := parseBill(text, LangEnglish, now, "USD")
	if !ok {
		t.Fatal("expected a match")
	}
	multi, isMulti := result.(MultipleBillsData)
	if !isMulti {
		t.Fatalf("expected MultipleBillsData, got %T", result)
	}
	if len(multi.Bills) != 2 {
		t.Fatalf("expected 2 bills, got %d", len(multi.Bills))
	}
	if multi.Total.String() != "50" {
		t.Fatalf("expected total 50, got %s", multi.Total.String())
	}
}

func TestParseBill_NoAmountReturnsFalse(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	_, _, ok := parseBill("no numbers here at all", LangEnglish, now, "USD")
	if ok {
		t.Fatal("expected no match")
	}
}

func TestParseBill_JuxtaposedVendorAndAbsoluteSpanishDate(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	result, _, ok := parseBill("Pagar luz CFE $890 vence 15 enero", LangSpanish, now, "MXN")
	if !ok {
		t.Fatal("expected a match")
	}
	bill, isBill := result.(BillData)
	if !isBill {
		t.Fatalf("expected BillData, got %T", result)
	}
	if bill.Vendor != "CFE" {
		t.Fatalf("expected vendor CFE, got %q", bill.Vendor)
	}
	if bill.DueDate == nil {
		t.Fatal("expected a due date")
	}
	if bill.DueDate.Month() != time.January || bill.DueDate.Day() != 15 {
		t.Fatalf("expected January 15, got %v", bill.DueDate)
	}
	if bill.DueDate.Year() != 2027 {
		t.Fatalf("expected the date to roll to next year since it already passed, got %d", bill.DueDate.Year())
	}
}
