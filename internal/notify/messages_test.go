package notify

import (
	"testing"
	"time"
)

func TestNewProvisionCompleteMessage(t *testing.T) {
	msg := NewProvisionCompleteMessage("proj-1", "budget-1", "obl-1", "Tax Office", "Year-end tax", 80000)

	if msg.ProjectID != "proj-1" || msg.BudgetID != "budget-1" || msg.ObligationID != "obl-1" {
		t.Errorf("ids = %s/%s/%s", msg.ProjectID, msg.BudgetID, msg.ObligationID)
	}
	if msg.AmountCents != 80000 {
		t.Errorf("AmountCents = %d, want 80000", msg.AmountCents)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestProvisionCompleteMessage_JSON(t *testing.T) {
	msg := &ProvisionCompleteMessage{
		ProjectID:    "proj-1",
		BudgetID:     "budget-1",
		ObligationID: "obl-1",
		Counterpart:  "Tax Office",
		Description:  "Year-end tax",
		AmountCents:  80000,
		Timestamp:    time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ProvisionCompleteMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("ProvisionCompleteMessageFromJSON() error = %v", err)
	}
	if parsed.BudgetID != msg.BudgetID || parsed.ObligationID != msg.ObligationID {
		t.Errorf("parsed ids = %s/%s", parsed.BudgetID, parsed.ObligationID)
	}
	if parsed.AmountCents != msg.AmountCents {
		t.Errorf("parsed AmountCents = %d", parsed.AmountCents)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("parsed Timestamp = %v", parsed.Timestamp)
	}
}

func TestProvisionCompleteMessage_InvalidJSON(t *testing.T) {
	if _, err := ProvisionCompleteMessageFromJSON([]byte(`{"amountCents": "nope"}`)); err == nil {
		t.Error("should fail with invalid JSON")
	}
}
