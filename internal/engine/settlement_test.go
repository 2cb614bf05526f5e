package engine

import (
	"testing"

	"trezo/internal/core"
)

func setupObligation(t *testing.T, cents int64) (State, string, string) {
	t.Helper()
	s, pid := testState(t)
	s, _, err := Apply(s, RecordActual{ProjectID: pid, Actual: core.Obligation{
		Direction:   core.Outflow,
		Category:    "Office supplies",
		DueDate:     core.NewDate(2025, 3, 10),
		Amount:      core.FromCents(cents),
		Counterpart: "Paper Co",
	}})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return s, pid, s.Actuals[pid][0].ID
}

func pay(t *testing.T, s State, actualID string, cents int64, day core.Date, final bool) State {
	t.Helper()
	next, _, err := Apply(s, RecordPayment{ActualID: actualID, Payment: core.PaymentRecord{
		PaidAmount:     core.FromCents(cents),
		PaymentDate:    day,
		IsFinalPayment: final,
	}})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	return next
}

func TestRecordPayment_StatusProgression(t *testing.T) {
	s, pid, id := setupObligation(t, 10000)

	s = pay(t, s, id, 4000, core.NewDate(2025, 3, 5), false)
	if got := s.Actuals[pid][0].Status; got != core.StatusPartiallyPaid {
		t.Fatalf("after partial payment status = %s", got)
	}

	s = pay(t, s, id, 6000, core.NewDate(2025, 3, 8), false)
	a := s.Actuals[pid][0]
	if a.Status != core.StatusPaid {
		t.Fatalf("after full payment status = %s", a.Status)
	}
	if !a.Remaining().IsZero() {
		t.Errorf("remaining = %d", a.Remaining().Cents)
	}
	if len(a.Payments) != 2 {
		t.Errorf("payments = %d", len(a.Payments))
	}
}

func TestRecordPayment_InflowStatuses(t *testing.T) {
	s, pid := testState(t)
	s, _, err := Apply(s, RecordActual{ProjectID: pid, Actual: core.Obligation{
		Direction:   core.Inflow,
		Category:    "Product sales",
		DueDate:     core.NewDate(2025, 3, 20),
		Amount:      core.FromCents(50000),
		Counterpart: "Acme",
	}})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	id := s.Actuals[pid][0].ID

	s = pay(t, s, id, 20000, core.NewDate(2025, 3, 21), false)
	if got := s.Actuals[pid][0].Status; got != core.StatusPartiallyReceived {
		t.Fatalf("status = %s, want partially_received", got)
	}
	s = pay(t, s, id, 30000, core.NewDate(2025, 3, 25), false)
	if got := s.Actuals[pid][0].Status; got != core.StatusReceived {
		t.Fatalf("status = %s, want received", got)
	}
}

func TestRecordPayment_FinalPaymentForcesSettled(t *testing.T) {
	s, pid, id := setupObligation(t, 10000)

	// Underpaid but marked final: explicit write-off of the remainder.
	s = pay(t, s, id, 7000, core.NewDate(2025, 3, 5), true)
	a := s.Actuals[pid][0]
	if a.Status != core.StatusPaid {
		t.Fatalf("status = %s, want paid", a.Status)
	}
	if a.Remaining().Cents != 3000 {
		t.Errorf("remaining = %d, want 3000 still outstanding on record", a.Remaining().Cents)
	}
}

func TestDeletePayment_WalksStatusBack(t *testing.T) {
	s, pid, id := setupObligation(t, 10000)
	s = pay(t, s, id, 4000, core.NewDate(2025, 3, 5), false)
	s = pay(t, s, id, 6000, core.NewDate(2025, 3, 8), false)

	paymentID := s.Actuals[pid][0].Payments[1].ID
	s, _, err := Apply(s, DeletePayment{ActualID: id, PaymentID: paymentID})
	if err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if got := s.Actuals[pid][0].Status; got != core.StatusPartiallyPaid {
		t.Fatalf("status = %s, want partially_paid", got)
	}

	paymentID = s.Actuals[pid][0].Payments[0].ID
	s, _, err = Apply(s, DeletePayment{ActualID: id, PaymentID: paymentID})
	if err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	a := s.Actuals[pid][0]
	if a.Status != core.StatusPending {
		t.Fatalf("status = %s, want pending", a.Status)
	}
	if len(a.Payments) != 0 {
		t.Errorf("payments = %d, want 0", len(a.Payments))
	}
}

func TestRecordPayment_ProvisionCompletionEvent(t *testing.T) {
	s, pid := testState(t)
	entry := core.BudgetEntry{
		Direction:   core.Outflow,
		Category:    "Taxes",
		Frequency:   core.Provision,
		Amount:      core.FromCents(80000),
		Counterpart: "Tax Office",
		Description: "Year-end tax",
		Provision: &core.ProvisionDetails{
			FinalPaymentDate:   core.NewDate(2025, 12, 15),
			ProvisionAccountID: s.Accounts[0].ID,
		},
		Payments: []core.ExplicitPayment{
			{Date: core.NewDate(2025, 4, 1), Amount: core.FromCents(40000)},
			{Date: core.NewDate(2025, 5, 1), Amount: core.FromCents(40000)},
		},
	}
	s, _, err := Apply(s, SaveDefinition{ProjectID: pid, Entry: entry, Now: testNow})
	if err != nil {
		t.Fatalf("save provision: %v", err)
	}

	var transfers []core.Obligation
	var final core.Obligation
	for _, a := range s.Actuals[pid] {
		if a.IsProvision {
			transfers = append(transfers, a)
		}
		if a.IsFinalProvisionPayment {
			final = a
		}
	}

	// First installment settles: no event yet.
	next, events, err := Apply(s, RecordPayment{ActualID: transfers[0].ID, Payment: core.PaymentRecord{
		PaidAmount:  core.FromCents(40000),
		PaymentDate: core.NewDate(2025, 4, 1),
	}})
	if err != nil {
		t.Fatalf("pay first installment: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events after first installment = %d, want 0", len(events))
	}

	// Last installment settles: advisory fires, pointing at the final
	// payment obligation.
	_, events, err = Apply(next, RecordPayment{ActualID: transfers[1].ID, Payment: core.PaymentRecord{
		PaidAmount:  core.FromCents(40000),
		PaymentDate: core.NewDate(2025, 5, 1),
	}})
	if err != nil {
		t.Fatalf("pay last installment: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev, ok := events[0].(ProvisionCompleted)
	if !ok {
		t.Fatalf("event type = %T", events[0])
	}
	if ev.ObligationID != final.ID || ev.Counterpart != "Tax Office" || ev.Description != "Year-end tax" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Amount.Cents != 80000 {
		t.Errorf("event amount = %d, want 80000", ev.Amount.Cents)
	}
}
