package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trezo/internal/core"
	"trezo/internal/engine"
	"trezo/internal/notify"
)

type memStore struct {
	mu    sync.Mutex
	state engine.State
	saved int
	fail  bool
}

func (m *memStore) Load(ctx context.Context) (engine.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *memStore) Save(ctx context.Context, state engine.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.state = state
	m.saved++
	return nil
}

type memPublisher struct {
	mu       sync.Mutex
	messages []*notify.ProvisionCompleteMessage
}

func (m *memPublisher) PublishProvisionComplete(ctx context.Context, msg *notify.ProvisionCompleteMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func newTestPlanner(t *testing.T) (*Planner, *memStore, *memPublisher) {
	t.Helper()
	store := &memStore{state: engine.Seed()}
	pub := &memPublisher{}
	p, err := NewPlanner(context.Background(), store, pub)
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	p.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p, store, pub
}

func provisionEntry(accountID string) core.BudgetEntry {
	return core.BudgetEntry{
		Direction:   core.Outflow,
		Category:    "Taxes",
		Frequency:   core.Provision,
		Amount:      core.FromCents(80000),
		Counterpart: "Tax Office",
		Description: "Year-end tax",
		Provision: &core.ProvisionDetails{
			FinalPaymentDate:   core.NewDate(2025, 12, 15),
			ProvisionAccountID: accountID,
		},
		Payments: []core.ExplicitPayment{
			{Date: core.NewDate(2025, 4, 1), Amount: core.FromCents(40000)},
			{Date: core.NewDate(2025, 5, 1), Amount: core.FromCents(40000)},
		},
	}
}

func TestPlanner_ExecutePersistsWholesale(t *testing.T) {
	p, store, _ := newTestPlanner(t)
	pid := p.State().Projects[0].ID

	savedBefore := store.saved
	state, err := p.SaveDefinition(context.Background(), pid, core.BudgetEntry{
		Direction: core.Outflow,
		Category:  "Housing",
		Frequency: core.Monthly,
		Amount:    core.FromCents(120000),
		StartDate: core.NewDate(2025, 1, 5),
	})
	if err != nil {
		t.Fatalf("SaveDefinition: %v", err)
	}
	if store.saved != savedBefore+1 {
		t.Errorf("saves = %d, want %d", store.saved, savedBefore+1)
	}
	if len(state.Entries[pid]) != 1 {
		t.Fatalf("entries = %d, want 1", len(state.Entries[pid]))
	}
	if len(store.state.Actuals[pid]) != len(state.Actuals[pid]) {
		t.Error("persisted snapshot diverges from returned state")
	}
}

func TestPlanner_PersistFailureRollsBack(t *testing.T) {
	p, store, _ := newTestPlanner(t)
	pid := p.State().Projects[0].ID

	store.fail = true
	_, err := p.SaveDefinition(context.Background(), pid, core.BudgetEntry{
		Direction: core.Outflow,
		Category:  "Housing",
		Frequency: core.Monthly,
		Amount:    core.FromCents(120000),
		StartDate: core.NewDate(2025, 1, 5),
	})
	if err == nil {
		t.Fatal("persist failure not surfaced")
	}
	if len(p.State().Entries[pid]) != 0 {
		t.Error("in-memory state kept a command that never persisted")
	}
}

func TestPlanner_RejectedCommandDoesNotPersist(t *testing.T) {
	p, store, _ := newTestPlanner(t)
	savedBefore := store.saved

	_, err := p.Execute(context.Background(), engine.DeleteActual{ActualID: "missing"})
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if store.saved != savedBefore {
		t.Error("rejected command reached the store")
	}
}

func TestPlanner_PublishesProvisionComplete(t *testing.T) {
	p, _, pub := newTestPlanner(t)
	pid := p.State().Projects[0].ID
	accountID := p.State().Accounts[0].ID

	state, err := p.SaveDefinition(context.Background(), pid, provisionEntry(accountID))
	if err != nil {
		t.Fatalf("save provision: %v", err)
	}
	var transfers []core.Obligation
	for _, a := range state.Actuals[pid] {
		if a.IsProvision {
			transfers = append(transfers, a)
		}
	}
	if len(transfers) != 2 {
		t.Fatalf("transfers = %d, want 2", len(transfers))
	}

	ctx := context.Background()
	for i, tr := range transfers {
		if _, err := p.Execute(ctx, engine.RecordPayment{ActualID: tr.ID, Payment: core.PaymentRecord{
			PaidAmount:  core.FromCents(40000),
			PaymentDate: core.NewDate(2025, 4+i, 1),
		}}); err != nil {
			t.Fatalf("pay installment %d: %v", i, err)
		}
	}

	if len(pub.messages) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Counterpart != "Tax Office" || msg.AmountCents != 80000 {
		t.Errorf("message = %+v", msg)
	}
}

func TestPlanner_ProjectionAndScenario(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	pid := p.State().Projects[0].ID

	if _, err := p.SaveDefinition(context.Background(), pid, core.BudgetEntry{
		Direction: core.Outflow,
		Category:  "Housing",
		Frequency: core.Monthly,
		Amount:    core.FromCents(120000),
		StartDate: core.NewDate(2025, 1, 5),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	proj, err := p.Projection(pid, engine.UnitMonth, 6)
	if err != nil {
		t.Fatalf("Projection: %v", err)
	}
	if len(proj.Buckets) != 6 {
		t.Fatalf("buckets = %d, want 6", len(proj.Buckets))
	}

	state, err := p.Execute(context.Background(), engine.AddScenario{ProjectID: pid, Name: "Cheaper office"})
	if err != nil {
		t.Fatalf("add scenario: %v", err)
	}
	sid := state.Scenarios[0].ID

	variant, err := p.ScenarioProjection(sid, engine.UnitMonth, 6)
	if err != nil {
		t.Fatalf("ScenarioProjection: %v", err)
	}
	if len(variant.Buckets) != 6 {
		t.Fatalf("scenario buckets = %d, want 6", len(variant.Buckets))
	}

	if _, err := p.Projection("missing", engine.UnitMonth, 6); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPlanner_EffectiveEntriesLeavesBaseUntouched(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	pid := p.State().Projects[0].ID

	state, err := p.SaveDefinition(context.Background(), pid, core.BudgetEntry{
		Direction: core.Outflow,
		Category:  "Housing",
		Frequency: core.Monthly,
		Amount:    core.FromCents(120000),
		StartDate: core.NewDate(2025, 1, 5),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	state, err = p.Execute(context.Background(), engine.AddScenario{ProjectID: pid, Name: "What-if"})
	if err != nil {
		t.Fatalf("add scenario: %v", err)
	}
	sid := state.Scenarios[0].ID

	override := state.Entries[pid][0]
	override.Amount = core.FromCents(90000)
	if _, err := p.Execute(context.Background(), engine.SaveScenarioDelta{ScenarioID: sid, Entry: override}); err != nil {
		t.Fatalf("save delta: %v", err)
	}

	effective, err := p.EffectiveEntries(sid)
	if err != nil {
		t.Fatalf("EffectiveEntries: %v", err)
	}
	if len(effective) != 1 || effective[0].Amount.Cents != 90000 {
		t.Fatalf("effective = %+v", effective)
	}
	if got := p.State().Entries[pid][0].Amount.Cents; got != 120000 {
		t.Errorf("base entry amount = %d, scenario leaked into base", got)
	}
}
