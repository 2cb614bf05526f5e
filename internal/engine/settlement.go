package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"trezo/internal/core"
)

// RecordPayment appends a settlement record to an obligation and
// recomputes its status. Status follows totalPaid against amount;
// isFinalPayment forces the terminal status even when underpaid, an
// explicit write-off of the remainder.
type RecordPayment struct {
	ActualID string
	Payment  core.PaymentRecord
}

func (c RecordPayment) Apply(s State) (State, []Event, error) {
	if err := c.Payment.Validate(); err != nil {
		return s, nil, fmt.Errorf("record payment: %w", err)
	}
	pid, idx, ok := s.findActual(c.ActualID)
	if !ok {
		return s, nil, fmt.Errorf("record payment: obligation %s: %w", c.ActualID, ErrNotFound)
	}

	actuals := append([]core.Obligation{}, s.Actuals[pid]...)
	a := actuals[idx]
	payment := c.Payment
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	a.Payments = append(append([]core.PaymentRecord{}, a.Payments...), payment)

	if payment.IsFinalPayment || a.TotalPaid().GreaterOrEqual(a.Amount) {
		a.Status = core.SettledStatus(a.Direction)
	} else {
		a.Status = core.PartialStatus(a.Direction)
	}
	actuals[idx] = a
	s = s.withActuals(pid, actuals)

	var events []Event
	if a.IsProvision && a.IsSettled() {
		if ev, ok := provisionCompletion(actuals, a.BudgetID); ok {
			events = append(events, ev)
		}
	}
	return s, events, nil
}

// DeletePayment removes one settlement record and walks the status back
// from the new total.
type DeletePayment struct {
	ActualID  string
	PaymentID string
}

func (c DeletePayment) Apply(s State) (State, []Event, error) {
	pid, idx, ok := s.findActual(c.ActualID)
	if !ok {
		return s, nil, fmt.Errorf("delete payment: obligation %s: %w", c.ActualID, ErrNotFound)
	}

	actuals := append([]core.Obligation{}, s.Actuals[pid]...)
	a := actuals[idx]
	payments := make([]core.PaymentRecord, 0, len(a.Payments))
	found := false
	for _, p := range a.Payments {
		if p.ID == c.PaymentID {
			found = true
			continue
		}
		payments = append(payments, p)
	}
	if !found {
		return s, nil, fmt.Errorf("delete payment %s: %w", c.PaymentID, ErrNotFound)
	}
	a.Payments = payments

	switch total := a.TotalPaid(); {
	case total.IsZero():
		a.Status = core.StatusPending
	case total.GreaterOrEqual(a.Amount):
		a.Status = core.SettledStatus(a.Direction)
	default:
		a.Status = core.PartialStatus(a.Direction)
	}
	actuals[idx] = a
	s = s.withActuals(pid, actuals)
	return s, nil, nil
}

// provisionCompletion checks whether every transfer installment of a
// provision plan is settled; if so it returns the advisory event
// pointing at the final payment obligation now due.
func provisionCompletion(actuals []core.Obligation, budgetID string) (ProvisionCompleted, bool) {
	var final *core.Obligation
	for i := range actuals {
		a := actuals[i]
		if a.BudgetID != budgetID {
			continue
		}
		if a.IsProvision && !a.IsSettled() {
			return ProvisionCompleted{}, false
		}
		if a.IsFinalProvisionPayment {
			final = &actuals[i]
		}
	}
	if final == nil {
		return ProvisionCompleted{}, false
	}
	return ProvisionCompleted{
		ProjectID:    final.ProjectID,
		BudgetID:     budgetID,
		ObligationID: final.ID,
		Counterpart:  final.Counterpart,
		Description:  strings.TrimPrefix(final.Description, "Final payment for: "),
		Amount:       final.Amount,
	}, true
}
