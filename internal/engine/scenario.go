package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"trezo/internal/core"
)

// MaxScenariosPerProject caps how many what-if overlays a project keeps.
const MaxScenariosPerProject = 3

// AddScenario creates a visible scenario with an empty delta set.
type AddScenario struct {
	ProjectID   string
	Name        string
	Description string
}

func (c AddScenario) Apply(s State) (State, []Event, error) {
	if _, ok := s.project(c.ProjectID); !ok {
		return s, nil, fmt.Errorf("add scenario: project %s: %w", c.ProjectID, ErrNotFound)
	}
	if strings.TrimSpace(c.Name) == "" {
		return s, nil, fmt.Errorf("add scenario: empty name")
	}
	count := 0
	for _, sc := range s.Scenarios {
		if sc.ProjectID == c.ProjectID {
			count++
		}
	}
	if count >= MaxScenariosPerProject {
		return s, nil, fmt.Errorf("add scenario: %w", ErrScenarioLimit)
	}
	sc := core.Scenario{
		ID:          uuid.NewString(),
		ProjectID:   c.ProjectID,
		Name:        strings.TrimSpace(c.Name),
		Description: c.Description,
		IsVisible:   true,
	}
	s.Scenarios = append(append([]core.Scenario{}, s.Scenarios...), sc)
	s = s.withDeltas(sc.ID, []core.ScenarioDelta{})
	return s, nil, nil
}

type UpdateScenario struct {
	ScenarioID  string
	Name        string
	Description string
}

func (c UpdateScenario) Apply(s State) (State, []Event, error) {
	scenarios := append([]core.Scenario{}, s.Scenarios...)
	for i, sc := range scenarios {
		if sc.ID == c.ScenarioID {
			scenarios[i].Name = c.Name
			scenarios[i].Description = c.Description
			s.Scenarios = scenarios
			return s, nil, nil
		}
	}
	return s, nil, fmt.Errorf("update scenario %s: %w", c.ScenarioID, ErrNotFound)
}

// ToggleScenarioVisibility flips whether a scenario's variant shows up
// in projections.
type ToggleScenarioVisibility struct {
	ScenarioID string
}

func (c ToggleScenarioVisibility) Apply(s State) (State, []Event, error) {
	scenarios := append([]core.Scenario{}, s.Scenarios...)
	for i, sc := range scenarios {
		if sc.ID == c.ScenarioID {
			scenarios[i].IsVisible = !sc.IsVisible
			s.Scenarios = scenarios
			return s, nil, nil
		}
	}
	return s, nil, fmt.Errorf("toggle scenario %s: %w", c.ScenarioID, ErrNotFound)
}

type DeleteScenario struct {
	ScenarioID string
}

func (c DeleteScenario) Apply(s State) (State, []Event, error) {
	scenarios := make([]core.Scenario, 0, len(s.Scenarios))
	found := false
	for _, sc := range s.Scenarios {
		if sc.ID == c.ScenarioID {
			found = true
			continue
		}
		scenarios = append(scenarios, sc)
	}
	if !found {
		return s, nil, fmt.Errorf("delete scenario %s: %w", c.ScenarioID, ErrNotFound)
	}
	s.Scenarios = scenarios
	deltas := make(map[string][]core.ScenarioDelta, len(s.ScenarioDeltas))
	for k, v := range s.ScenarioDeltas {
		if k != c.ScenarioID {
			deltas[k] = v
		}
	}
	s.ScenarioDeltas = deltas
	return s, nil, nil
}

// SaveScenarioDelta records a what-if override. The delta carries the
// complete effective entry; overriding an existing entry id replaces
// the base version inside the scenario, a new id is a pure addition.
type SaveScenarioDelta struct {
	ScenarioID string
	Entry      core.BudgetEntry
}

func (c SaveScenarioDelta) Apply(s State) (State, []Event, error) {
	if _, ok := s.scenario(c.ScenarioID); !ok {
		return s, nil, fmt.Errorf("save scenario delta: scenario %s: %w", c.ScenarioID, ErrNotFound)
	}
	e := c.Entry
	if err := e.Validate(); err != nil {
		return s, nil, fmt.Errorf("save scenario delta: %w", err)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	deltas := append([]core.ScenarioDelta{}, s.ScenarioDeltas[c.ScenarioID]...)
	next := core.ScenarioDelta{EntryID: e.ID, Entry: e}
	for i, d := range deltas {
		if d.EntryID == e.ID {
			deltas[i] = next
			return s.withDeltas(c.ScenarioID, deltas), nil, nil
		}
	}
	return s.withDeltas(c.ScenarioID, append(deltas, next)), nil, nil
}

// DeleteScenarioDelta removes an entry from a scenario's view. For an
// entry that exists in the base plan it writes a tombstone; a pure
// scenario addition is simply dropped.
type DeleteScenarioDelta struct {
	ScenarioID string
	EntryID    string
}

func (c DeleteScenarioDelta) Apply(s State) (State, []Event, error) {
	sc, ok := s.scenario(c.ScenarioID)
	if !ok {
		return s, nil, fmt.Errorf("delete scenario delta: scenario %s: %w", c.ScenarioID, ErrNotFound)
	}
	deltas := make([]core.ScenarioDelta, 0, len(s.ScenarioDeltas[c.ScenarioID]))
	for _, d := range s.ScenarioDeltas[c.ScenarioID] {
		if d.EntryID != c.EntryID {
			deltas = append(deltas, d)
		}
	}
	inBase := false
	for _, e := range s.Entries[sc.ProjectID] {
		if e.ID == c.EntryID {
			inBase = true
			break
		}
	}
	if inBase {
		deltas = append(deltas, core.ScenarioDelta{EntryID: c.EntryID, IsDeleted: true})
	}
	return s.withDeltas(c.ScenarioID, deltas), nil, nil
}

// ResolveEffectiveEntries overlays scenario deltas on the base plan:
// tombstoned entries disappear, overridden ids take the delta's version,
// additions append. The base slice is never mutated; the result is a
// fresh, disposable set.
func ResolveEffectiveEntries(base []core.BudgetEntry, deltas []core.ScenarioDelta) []core.BudgetEntry {
	byID := make(map[string]core.ScenarioDelta, len(deltas))
	for _, d := range deltas {
		byID[d.EntryID] = d
	}
	effective := make([]core.BudgetEntry, 0, len(base)+len(deltas))
	seen := make(map[string]bool, len(base))
	for _, e := range base {
		seen[e.ID] = true
		d, ok := byID[e.ID]
		if !ok {
			effective = append(effective, e)
			continue
		}
		if d.IsDeleted {
			continue
		}
		effective = append(effective, d.Entry)
	}
	for _, d := range deltas {
		if !d.IsDeleted && !seen[d.EntryID] {
			effective = append(effective, d.Entry)
		}
	}
	return effective
}

// DeriveScenarioObligations builds the scenario's obligation set from
// the base one: for every delta, the touched entry's unsettled base
// obligations are filtered out and, unless tombstoned, regenerated from
// the effective entry. Settled history is shared untouched, scenarios
// never alter the past.
func DeriveScenarioObligations(baseActuals []core.Obligation, deltas []core.ScenarioDelta, projectID string, horizon core.Date) []core.Obligation {
	out := append([]core.Obligation{}, baseActuals...)
	for _, d := range deltas {
		kept := make([]core.Obligation, 0, len(out))
		for _, a := range out {
			if a.BudgetID == d.EntryID && !a.IsSettled() {
				continue
			}
			kept = append(kept, a)
		}
		out = kept
		if d.IsDeleted {
			continue
		}
		out = append(out, deriveObligations(d.Entry, projectID, horizon)...)
	}
	return out
}
