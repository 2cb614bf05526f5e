// Package service orchestrates the planner: it owns the live state
// snapshot, runs engine commands under a single writer, persists the
// result wholesale and publishes the events a command emitted.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trezo/internal/core"
	"trezo/internal/engine"
	"trezo/internal/notify"
)

// Store persists complete state snapshots.
type Store interface {
	Load(ctx context.Context) (engine.State, error)
	Save(ctx context.Context, state engine.State) error
}

// Publisher forwards provision-complete advisories to consumers.
type Publisher interface {
	PublishProvisionComplete(ctx context.Context, msg *notify.ProvisionCompleteMessage) error
}

// Planner is the single writer over the planner state. Reads return the
// current snapshot by value; snapshots are never mutated in place, so
// readers can hold one across a concurrent write.
type Planner struct {
	mu        sync.RWMutex
	state     engine.State
	store     Store
	publisher Publisher
	now       func() time.Time
}

func NewPlanner(ctx context.Context, store Store, publisher Publisher) (*Planner, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	p := &Planner{
		state:     state,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
	// A fresh seed has never been written; persist it so ids are stable
	// across restarts.
	if err := store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("persist initial state: %w", err)
	}
	return p, nil
}

// State returns the current snapshot.
func (p *Planner) State() engine.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Now returns the clock the planner stamps commands with.
func (p *Planner) Now() time.Time {
	return p.now()
}

// Execute applies one command, persists the new snapshot and publishes
// its events. A persistence failure rolls the in-memory state back so
// memory and disk never diverge.
func (p *Planner) Execute(ctx context.Context, cmd engine.Command) (engine.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, events, err := engine.Apply(p.state, cmd)
	if err != nil {
		return p.state, err
	}

	if err := p.store.Save(ctx, next); err != nil {
		slog.ErrorContext(ctx, "Failed to persist snapshot, command discarded",
			"error", err, "command", fmt.Sprintf("%T", cmd))
		return p.state, fmt.Errorf("persist state: %w", err)
	}
	p.state = next

	for _, ev := range events {
		p.publish(ctx, ev)
	}
	return next, nil
}

// publish forwards an event best-effort; the command already succeeded
// and a lost advisory must not fail it.
func (p *Planner) publish(ctx context.Context, ev engine.Event) {
	if p.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping event", "event", ev.EventName())
		return
	}
	switch e := ev.(type) {
	case engine.ProvisionCompleted:
		msg := notify.NewProvisionCompleteMessage(
			e.ProjectID, e.BudgetID, e.ObligationID, e.Counterpart, e.Description, e.Amount.Cents)
		if err := p.publisher.PublishProvisionComplete(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish event",
				"event", ev.EventName(), "budget_id", e.BudgetID, "error", err)
		}
	default:
		slog.WarnContext(ctx, "Unknown event type", "event", ev.EventName())
	}
}

// SaveDefinition creates or updates a budget entry, stamping the
// expansion horizon from the planner clock.
func (p *Planner) SaveDefinition(ctx context.Context, projectID string, entry core.BudgetEntry) (engine.State, error) {
	return p.Execute(ctx, engine.SaveDefinition{ProjectID: projectID, Entry: entry, Now: p.now()})
}

// Projection computes the base cash-position forecast for a project.
func (p *Planner) Projection(projectID string, unit engine.BucketUnit, horizon int) (engine.Projection, error) {
	s := p.State()
	accounts := projectAccounts(s, projectID)
	actuals, ok := s.Actuals[projectID]
	if !ok {
		return engine.Projection{}, fmt.Errorf("projection: project %s: %w", projectID, engine.ErrNotFound)
	}
	return engine.ProjectPositions(accounts, actuals, unit, horizon, p.now()), nil
}

// ScenarioProjection computes the forecast for one scenario overlay.
func (p *Planner) ScenarioProjection(scenarioID string, unit engine.BucketUnit, horizon int) (engine.Projection, error) {
	s := p.State()
	var scenario core.Scenario
	found := false
	for _, sc := range s.Scenarios {
		if sc.ID == scenarioID {
			scenario = sc
			found = true
			break
		}
	}
	if !found {
		return engine.Projection{}, fmt.Errorf("scenario projection: %s: %w", scenarioID, engine.ErrNotFound)
	}
	accounts := projectAccounts(s, scenario.ProjectID)
	return engine.ProjectScenarioPositions(
		accounts,
		s.Actuals[scenario.ProjectID],
		s.ScenarioDeltas[scenarioID],
		scenario.ProjectID,
		unit, horizon, p.now()), nil
}

// EffectiveEntries resolves a scenario's entry view without touching the
// base plan.
func (p *Planner) EffectiveEntries(scenarioID string) ([]core.BudgetEntry, error) {
	s := p.State()
	var scenario core.Scenario
	found := false
	for _, sc := range s.Scenarios {
		if sc.ID == scenarioID {
			scenario = sc
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("effective entries: scenario %s: %w", scenarioID, engine.ErrNotFound)
	}
	return engine.ResolveEffectiveEntries(s.Entries[scenario.ProjectID], s.ScenarioDeltas[scenarioID]), nil
}

func projectAccounts(s engine.State, projectID string) []core.CashAccount {
	var accounts []core.CashAccount
	for _, a := range s.Accounts {
		if a.ProjectID == projectID {
			accounts = append(accounts, a)
		}
	}
	return accounts
}
