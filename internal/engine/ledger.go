package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"trezo/internal/core"
)

// SaveDefinition creates or updates a budget entry and regenerates its
// unsettled obligations, partially settled ones included. Only settled
// obligations survive an edit: recorded history wins over a changed plan.
type SaveDefinition struct {
	ProjectID string
	Entry     core.BudgetEntry
	Now       time.Time
}

func (c SaveDefinition) Apply(s State) (State, []Event, error) {
	p, ok := s.project(c.ProjectID)
	if !ok {
		return s, nil, fmt.Errorf("save definition: project %s: %w", c.ProjectID, ErrNotFound)
	}
	if p.IsArchived {
		return s, nil, fmt.Errorf("save definition: project %q is archived", p.Name)
	}
	e := c.Entry
	if err := e.Validate(); err != nil {
		return s, nil, fmt.Errorf("save definition: %w", err)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	entries := append([]core.BudgetEntry{}, s.Entries[c.ProjectID]...)
	replaced := false
	for i, prev := range entries {
		if prev.ID == e.ID {
			entries[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, e)
	}
	s = s.withEntries(c.ProjectID, entries)
	s = registerTier(s, e.Counterpart, tierKind(e.Direction))

	// Settled obligations are immutable history. Everything unsettled
	// belonging to this entry is dropped and derived fresh from the plan.
	kept := make([]core.Obligation, 0, len(s.Actuals[c.ProjectID]))
	for _, a := range s.Actuals[c.ProjectID] {
		if a.BudgetID == e.ID && !a.IsSettled() {
			continue
		}
		kept = append(kept, a)
	}
	derived := deriveObligations(e, c.ProjectID, core.DefaultHorizon(c.Now))

	// An occurrence whose due date already carries a settled obligation
	// is not re-created, so a paid instance is never duplicated.
	fresh := make([]core.Obligation, 0, len(derived))
	for _, d := range derived {
		occupied := false
		for _, a := range kept {
			if a.BudgetID == e.ID && a.DueDate.Equal(d.DueDate.Time) {
				occupied = true
				break
			}
		}
		if !occupied {
			fresh = append(fresh, d)
		}
	}
	s = s.withActuals(c.ProjectID, append(kept, fresh...))
	return s, nil, nil
}

// DeleteDefinition removes an entry and cascades deletion of its
// unsettled obligations. Settled ones survive as historical record.
type DeleteDefinition struct {
	ProjectID string
	EntryID   string
}

func (c DeleteDefinition) Apply(s State) (State, []Event, error) {
	entries := make([]core.BudgetEntry, 0, len(s.Entries[c.ProjectID]))
	found := false
	for _, e := range s.Entries[c.ProjectID] {
		if e.ID == c.EntryID {
			found = true
			continue
		}
		entries = append(entries, e)
	}
	if !found {
		return s, nil, fmt.Errorf("delete definition %s: %w", c.EntryID, ErrNotFound)
	}
	s = s.withEntries(c.ProjectID, entries)

	kept := make([]core.Obligation, 0, len(s.Actuals[c.ProjectID]))
	for _, a := range s.Actuals[c.ProjectID] {
		if a.BudgetID == c.EntryID && !a.IsSettled() {
			continue
		}
		kept = append(kept, a)
	}
	s = s.withActuals(c.ProjectID, kept)
	return s, nil, nil
}

// RecordActual creates or updates a standalone obligation that has no
// backing definition, such as an imported bank line. Off-budget actuals
// get a synthesized one-off entry so reporting always finds an owner.
type RecordActual struct {
	ProjectID string
	Actual    core.Obligation
}

func (c RecordActual) Apply(s State) (State, []Event, error) {
	p, ok := s.project(c.ProjectID)
	if !ok {
		return s, nil, fmt.Errorf("record actual: project %s: %w", c.ProjectID, ErrNotFound)
	}
	if p.IsArchived {
		return s, nil, fmt.Errorf("record actual: project %q is archived", p.Name)
	}
	a := c.Actual
	if !a.Direction.Valid() {
		return s, nil, fmt.Errorf("record actual: %w", core.ErrUnknownDirection)
	}
	if err := a.Amount.Validate(); err != nil {
		return s, nil, fmt.Errorf("record actual: %w", err)
	}
	if a.DueDate.IsEmpty() {
		return s, nil, fmt.Errorf("record actual: %w", core.ErrInvalidDate)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.ProjectID = c.ProjectID
	if a.Status == "" {
		a.Status = core.StatusPending
	}

	// Every obligation needs an owning definition. An actual posted
	// without one gets a synthesized off-budget one-off entry.
	if a.BudgetID == "" {
		shadow := core.BudgetEntry{
			ID:          uuid.NewString(),
			Direction:   a.Direction,
			Category:    a.Category,
			Frequency:   core.OneOff,
			Amount:      a.Amount,
			Date:        a.DueDate,
			Counterpart: a.Counterpart,
			Description: a.Description,
			IsOffBudget: true,
		}
		a.BudgetID = shadow.ID
		a.IsOffBudget = true
		s = s.withEntries(c.ProjectID, append(append([]core.BudgetEntry{}, s.Entries[c.ProjectID]...), shadow))
	}
	s = registerTier(s, a.Counterpart, tierKind(a.Direction))

	actuals := append([]core.Obligation{}, s.Actuals[c.ProjectID]...)
	for i, prev := range actuals {
		if prev.ID != a.ID {
			continue
		}
		// Settlement history belongs to the tracker; an edit never
		// rewrites payments or walks the status on its own.
		a.Payments = prev.Payments
		a.Status = statusFor(a)
		actuals[i] = a
		s = s.withActuals(c.ProjectID, actuals)
		return s, nil, nil
	}
	s = s.withActuals(c.ProjectID, append(actuals, a))
	return s, nil, nil
}

// statusFor derives an obligation's status from its payment records
// alone, used when an edit changes the amount under recorded payments.
// A final-payment write-off keeps the obligation settled.
func statusFor(a core.Obligation) core.Status {
	for _, p := range a.Payments {
		if p.IsFinalPayment {
			return core.SettledStatus(a.Direction)
		}
	}
	switch total := a.TotalPaid(); {
	case total.IsZero():
		return core.StatusPending
	case total.GreaterOrEqual(a.Amount):
		return core.SettledStatus(a.Direction)
	default:
		return core.PartialStatus(a.Direction)
	}
}

// DeleteActual removes a single obligation wherever it lives.
type DeleteActual struct {
	ActualID string
}

func (c DeleteActual) Apply(s State) (State, []Event, error) {
	pid, idx, ok := s.findActual(c.ActualID)
	if !ok {
		return s, nil, fmt.Errorf("delete actual %s: %w", c.ActualID, ErrNotFound)
	}
	actuals := append([]core.Obligation{}, s.Actuals[pid]...)
	actuals = append(actuals[:idx], actuals[idx+1:]...)
	s = s.withActuals(pid, actuals)
	return s, nil, nil
}

// deriveObligations expands a definition into pending obligations, one
// per occurrence. Provision entries get the dedicated generator.
func deriveObligations(e core.BudgetEntry, projectID string, horizon core.Date) []core.Obligation {
	if e.Frequency == core.Provision {
		return deriveProvisionObligations(e, projectID)
	}
	occs := core.ExpandOccurrences(e, horizon)
	obligations := make([]core.Obligation, 0, len(occs))
	for _, occ := range occs {
		obligations = append(obligations, core.Obligation{
			ID:          uuid.NewString(),
			BudgetID:    e.ID,
			ProjectID:   projectID,
			Direction:   e.Direction,
			Category:    e.Category,
			DueDate:     occ.Date,
			Amount:      occ.Amount,
			Counterpart: e.Counterpart,
			Description: e.Description,
			Status:      core.StatusPending,
			IsOffBudget: e.IsOffBudget,
		})
	}
	return obligations
}

// deriveProvisionObligations turns a sinking-fund definition into its
// transfer installments plus the final payment for the full amount. The
// installments move money to the provision account and do not count as
// spend; only the final obligation carries the real outflow.
func deriveProvisionObligations(e core.BudgetEntry, projectID string) []core.Obligation {
	obligations := make([]core.Obligation, 0, len(e.Payments)+1)
	for _, p := range e.Payments {
		if p.Date.IsEmpty() || p.Amount.IsZero() {
			continue
		}
		obligations = append(obligations, core.Obligation{
			ID:          uuid.NewString(),
			BudgetID:    e.ID,
			ProjectID:   projectID,
			Direction:   core.Outflow,
			Category:    ProvisionCategory,
			DueDate:     p.Date,
			Amount:      p.Amount,
			Counterpart: e.Counterpart,
			Description: "Provision for: " + e.Description,
			Status:      core.StatusPending,
			IsProvision: true,
			Provision:   e.Provision,
		})
	}
	obligations = append(obligations, core.Obligation{
		ID:                      uuid.NewString(),
		BudgetID:                e.ID,
		ProjectID:               projectID,
		Direction:               e.Direction,
		Category:                e.Category,
		DueDate:                 e.Provision.FinalPaymentDate,
		Amount:                  e.Amount,
		Counterpart:             e.Counterpart,
		Description:             "Final payment for: " + e.Description,
		Status:                  core.StatusPending,
		IsFinalProvisionPayment: true,
		Provision:               e.Provision,
	})
	sort.SliceStable(obligations, func(i, j int) bool {
		return obligations[i].DueDate.Before(obligations[j].DueDate)
	})
	return obligations
}

// registerTier records a counterpart in the directory if it is new.
func registerTier(s State, name, kind string) State {
	name = strings.TrimSpace(name)
	if name == "" {
		return s
	}
	for _, t := range s.Tiers {
		if strings.EqualFold(t.Name, name) {
			return s
		}
	}
	s.Tiers = append(append([]core.Tier{}, s.Tiers...), core.Tier{
		ID:   uuid.NewString(),
		Name: name,
		Kind: kind,
	})
	return s
}

func tierKind(d core.Direction) string {
	if d == core.Inflow {
		return "client"
	}
	return "supplier"
}
