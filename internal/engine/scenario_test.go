package engine

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"trezo/internal/core"
)

func setupScenario(t *testing.T) (State, string, string) {
	t.Helper()
	s, pid := testState(t)
	s, _, err := Apply(s, AddScenario{ProjectID: pid, Name: "Hire in Q3"})
	if err != nil {
		t.Fatalf("add scenario: %v", err)
	}
	return s, pid, s.Scenarios[0].ID
}

func TestAddScenario_LimitPerProject(t *testing.T) {
	s, pid := testState(t)
	var err error
	for i := 0; i < MaxScenariosPerProject; i++ {
		s, _, err = Apply(s, AddScenario{ProjectID: pid, Name: "What-if"})
		if err != nil {
			t.Fatalf("scenario %d: %v", i, err)
		}
	}
	if _, _, err := Apply(s, AddScenario{ProjectID: pid, Name: "One too many"}); !errors.Is(err, ErrScenarioLimit) {
		t.Fatalf("err = %v, want ErrScenarioLimit", err)
	}

	// The cap is per project, another project still has room.
	s, _, err = Apply(s, AddProject{Name: "Side project"})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	otherID := s.Projects[1].ID
	if _, _, err := Apply(s, AddScenario{ProjectID: otherID, Name: "Fresh"}); err != nil {
		t.Fatalf("other project scenario: %v", err)
	}
}

func TestToggleScenarioVisibility(t *testing.T) {
	s, _, sid := setupScenario(t)
	if !s.Scenarios[0].IsVisible {
		t.Fatal("new scenario should start visible")
	}
	s, _, err := Apply(s, ToggleScenarioVisibility{ScenarioID: sid})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if s.Scenarios[0].IsVisible {
		t.Error("toggle did not hide scenario")
	}
}

func TestDeleteScenario_DropsDeltas(t *testing.T) {
	s, _, sid := setupScenario(t)
	s, _, err := Apply(s, SaveScenarioDelta{ScenarioID: sid, Entry: monthlyRent(90000)})
	if err != nil {
		t.Fatalf("save delta: %v", err)
	}
	s, _, err = Apply(s, DeleteScenario{ScenarioID: sid})
	if err != nil {
		t.Fatalf("delete scenario: %v", err)
	}
	if len(s.Scenarios) != 0 {
		t.Error("scenario survived delete")
	}
	if _, ok := s.ScenarioDeltas[sid]; ok {
		t.Error("deltas survived scenario delete")
	}
}

func TestDeleteScenarioDelta_TombstoneVsDrop(t *testing.T) {
	s, pid, sid := setupScenario(t)
	s, _, err := Apply(s, SaveDefinition{ProjectID: pid, Entry: monthlyRent(120000), Now: testNow})
	if err != nil {
		t.Fatalf("save base: %v", err)
	}
	baseID := entryID(t, s, pid)

	// Removing a base entry from the scenario leaves a tombstone.
	s, _, err = Apply(s, DeleteScenarioDelta{ScenarioID: sid, EntryID: baseID})
	if err != nil {
		t.Fatalf("delete base from scenario: %v", err)
	}
	deltas := s.ScenarioDeltas[sid]
	if len(deltas) != 1 || !deltas[0].IsDeleted || deltas[0].EntryID != baseID {
		t.Fatalf("deltas = %+v, want tombstone for %s", deltas, baseID)
	}

	// A pure scenario addition is simply dropped.
	s, _, err = Apply(s, SaveScenarioDelta{ScenarioID: sid, Entry: monthlyRent(50000)})
	if err != nil {
		t.Fatalf("save addition: %v", err)
	}
	addedID := s.ScenarioDeltas[sid][1].EntryID
	s, _, err = Apply(s, DeleteScenarioDelta{ScenarioID: sid, EntryID: addedID})
	if err != nil {
		t.Fatalf("delete addition: %v", err)
	}
	for _, d := range s.ScenarioDeltas[sid] {
		if d.EntryID == addedID {
			t.Error("pure addition left a tombstone")
		}
	}
}

func TestResolveEffectiveEntries(t *testing.T) {
	base := []core.BudgetEntry{
		func() core.BudgetEntry { e := monthlyRent(120000); e.ID = "rent"; return e }(),
		func() core.BudgetEntry {
			e := monthlyRent(30000)
			e.ID = "parking"
			e.Description = "Parking"
			return e
		}(),
	}
	override := monthlyRent(150000)
	override.ID = "rent"
	addition := monthlyRent(400000)
	addition.ID = "new-hire"
	addition.Description = "New hire salary"
	deltas := []core.ScenarioDelta{
		{EntryID: "rent", Entry: override},
		{EntryID: "parking", IsDeleted: true},
		{EntryID: "new-hire", Entry: addition},
	}

	before, err := json.Marshal(base)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	effective := ResolveEffectiveEntries(base, deltas)
	if len(effective) != 2 {
		t.Fatalf("effective = %d entries, want 2", len(effective))
	}
	byID := map[string]core.BudgetEntry{}
	for _, e := range effective {
		byID[e.ID] = e
	}
	if got := byID["rent"].Amount.Cents; got != 150000 {
		t.Errorf("override amount = %d, want 150000", got)
	}
	if _, ok := byID["parking"]; ok {
		t.Error("tombstoned entry still visible")
	}
	if _, ok := byID["new-hire"]; !ok {
		t.Error("addition missing")
	}

	after, err := json.Marshal(base)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatal("base entries mutated by resolution")
	}
}

func TestDeriveScenarioObligations_SharesSettledHistory(t *testing.T) {
	s, pid := testState(t)
	s, _, err := Apply(s, SaveDefinition{ProjectID: pid, Entry: monthlyRent(120000), Now: testNow})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	eid := entryID(t, s, pid)

	first := s.Actuals[pid][0]
	s = pay(t, s, first.ID, 120000, core.NewDate(2025, 1, 6), false)

	override := monthlyRent(150000)
	override.ID = eid
	deltas := []core.ScenarioDelta{{EntryID: eid, Entry: override}}

	derived := DeriveScenarioObligations(s.Actuals[pid], deltas, pid, core.DefaultHorizon(testNow))
	foundSettled := false
	for _, a := range derived {
		if a.ID == first.ID {
			foundSettled = true
			if a.Amount.Cents != 120000 {
				t.Error("settled obligation changed in scenario view")
			}
			continue
		}
		if a.BudgetID == eid && a.Amount.Cents != 150000 {
			t.Errorf("scenario obligation amount = %d, want 150000", a.Amount.Cents)
		}
	}
	if !foundSettled {
		t.Error("settled history missing from scenario set")
	}

	// Base state untouched.
	for _, a := range s.Actuals[pid] {
		if a.BudgetID == eid && !a.IsSettled() && a.Amount.Cents != 120000 {
			t.Fatal("base obligations mutated by scenario derivation")
		}
	}
}

func TestDeriveScenarioObligations_Tombstone(t *testing.T) {
	s, pid := testState(t)
	s, _, err := Apply(s, SaveDefinition{ProjectID: pid, Entry: monthlyRent(120000), Now: testNow})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	eid := entryID(t, s, pid)

	deltas := []core.ScenarioDelta{{EntryID: eid, IsDeleted: true}}
	derived := DeriveScenarioObligations(s.Actuals[pid], deltas, pid, core.DefaultHorizon(testNow))
	for _, a := range derived {
		if a.BudgetID == eid {
			t.Fatal("tombstoned entry still produced obligations")
		}
	}
}
