// Package engine implements the obligation engine: an immutable state
// snapshot threaded through a command reducer that expands budget
// definitions into obligations, settles them against payments, overlays
// scenarios and projects cash positions.
package engine

import (
	"errors"

	"github.com/google/uuid"

	"trezo/internal/core"
)

// State is the complete planner world. Commands never mutate a State in
// place; every accepted command produces a new snapshot with all
// invariants re-established.
type State struct {
	Projects       []core.Project                  `json:"projects"`
	Accounts       []core.CashAccount              `json:"userCashAccounts"`
	Entries        map[string][]core.BudgetEntry   `json:"allEntries"`
	Actuals        map[string][]core.Obligation    `json:"allActuals"`
	Tiers          []core.Tier                     `json:"tiers"`
	Categories     core.CategoryTree               `json:"categories"`
	Scenarios      []core.Scenario                 `json:"scenarios"`
	ScenarioDeltas map[string][]core.ScenarioDelta `json:"scenarioEntries"`
	Settings       core.Settings                   `json:"settings"`
}

var (
	ErrNotFound        = errors.New("not found")
	ErrStillReferenced = errors.New("blocked: still referenced")
	ErrScenarioLimit   = errors.New("scenario limit reached for project")
)

// ProvisionCategory is the category assigned to provision transfer
// obligations.
const ProvisionCategory = "Savings & Provisions"

// Seed returns the default state used when no persisted snapshot exists
// or the stored one cannot be parsed.
func Seed() State {
	projectID := uuid.NewString()
	return State{
		Projects: []core.Project{
			{ID: projectID, Name: "My Budget"},
		},
		Accounts: []core.CashAccount{
			{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				Category:  core.AccountBank,
				Name:      "Main Account",
			},
			{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				Category:  core.AccountCash,
				Name:      "Petty Cash",
			},
		},
		Entries: map[string][]core.BudgetEntry{projectID: {}},
		Actuals: map[string][]core.Obligation{projectID: {}},
		Categories: core.CategoryTree{
			Revenue: []core.Category{
				{ID: "rev-main-1", Name: "Sales", Sub: []core.SubCategory{
					{ID: uuid.NewString(), Name: "Product sales"},
					{ID: uuid.NewString(), Name: "Service sales"},
				}},
				{ID: "rev-main-2", Name: "Financial Income", Sub: []core.SubCategory{
					{ID: uuid.NewString(), Name: "Interest received"},
				}},
				{ID: "rev-main-3", Name: "Other Income", Sub: []core.SubCategory{
					{ID: uuid.NewString(), Name: "Grants"},
				}},
			},
			Expense: []core.Category{
				{ID: "exp-main-1", Name: "Operations", IsFixed: true, Sub: []core.SubCategory{
					{ID: uuid.NewString(), Name: "Rent and utilities"},
					{ID: uuid.NewString(), Name: "Office supplies"},
				}},
				{ID: "exp-main-2", Name: "Payroll", IsFixed: true, Sub: []core.SubCategory{
					{ID: uuid.NewString(), Name: "Salaries"},
				}},
				{ID: "exp-main-3", Name: ProvisionCategory, IsFixed: true, Sub: []core.SubCategory{
					{ID: uuid.NewString(), Name: "Risk provision"},
				}},
				{ID: "exp-main-4", Name: "Taxes", IsFixed: true, Sub: []core.SubCategory{
					{ID: uuid.NewString(), Name: "Income tax"},
					{ID: uuid.NewString(), Name: "VAT"},
				}},
				{ID: "exp-main-5", Name: "Household", Sub: []core.SubCategory{
					{ID: uuid.NewString(), Name: "Housing"},
					{ID: uuid.NewString(), Name: "Groceries"},
					{ID: uuid.NewString(), Name: "Transport"},
				}},
			},
		},
		Scenarios:      []core.Scenario{},
		ScenarioDeltas: map[string][]core.ScenarioDelta{},
		Settings: core.Settings{
			DisplayUnit:   "standard",
			DecimalPlaces: 2,
			Currency:      "EUR",
			TimeUnit:      "month",
			HorizonLength: 12,
		},
	}
}

// Normalize backfills fields a snapshot from an older version may lack.
// Best effort only; anything unrecognizable falls back to zero values.
func (s State) Normalize() State {
	if s.Entries == nil {
		s.Entries = map[string][]core.BudgetEntry{}
	}
	if s.Actuals == nil {
		s.Actuals = map[string][]core.Obligation{}
	}
	if s.ScenarioDeltas == nil {
		s.ScenarioDeltas = map[string][]core.ScenarioDelta{}
	}
	for _, p := range s.Projects {
		if _, ok := s.Entries[p.ID]; !ok {
			s.Entries[p.ID] = []core.BudgetEntry{}
		}
		if _, ok := s.Actuals[p.ID]; !ok {
			s.Actuals[p.ID] = []core.Obligation{}
		}
	}
	if s.Settings.HorizonLength == 0 {
		s.Settings.HorizonLength = 12
	}
	if s.Settings.TimeUnit == "" {
		s.Settings.TimeUnit = "month"
	}
	if s.Settings.Currency == "" {
		s.Settings.Currency = "EUR"
	}
	return s
}

// project looks up a project by id.
func (s State) project(id string) (core.Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return core.Project{}, false
}

// scenario looks up a scenario by id.
func (s State) scenario(id string) (core.Scenario, bool) {
	for _, sc := range s.Scenarios {
		if sc.ID == id {
			return sc, true
		}
	}
	return core.Scenario{}, false
}

// findActual locates an obligation across all projects.
func (s State) findActual(id string) (projectID string, idx int, ok bool) {
	for pid, actuals := range s.Actuals {
		for i, a := range actuals {
			if a.ID == id {
				return pid, i, true
			}
		}
	}
	return "", 0, false
}

// withEntries returns a copy of s where the given project's entry slice
// is replaced. The maps are copied shallowly; untouched projects share
// their backing slices with the previous snapshot.
func (s State) withEntries(projectID string, entries []core.BudgetEntry) State {
	m := make(map[string][]core.BudgetEntry, len(s.Entries))
	for k, v := range s.Entries {
		m[k] = v
	}
	m[projectID] = entries
	s.Entries = m
	return s
}

// withActuals returns a copy of s where the given project's obligation
// slice is replaced.
func (s State) withActuals(projectID string, actuals []core.Obligation) State {
	m := make(map[string][]core.Obligation, len(s.Actuals))
	for k, v := range s.Actuals {
		m[k] = v
	}
	m[projectID] = actuals
	s.Actuals = m
	return s
}

// withDeltas returns a copy of s where the given scenario's delta slice
// is replaced.
func (s State) withDeltas(scenarioID string, deltas []core.ScenarioDelta) State {
	m := make(map[string][]core.ScenarioDelta, len(s.ScenarioDeltas))
	for k, v := range s.ScenarioDeltas {
		m[k] = v
	}
	m[scenarioID] = deltas
	s.ScenarioDeltas = m
	return s
}

// accountReferenced reports whether any payment record on any obligation
// references the account.
func (s State) accountReferenced(accountID string) bool {
	for _, actuals := range s.Actuals {
		for _, a := range actuals {
			for _, p := range a.Payments {
				if p.AccountID == accountID {
					return true
				}
			}
		}
	}
	return false
}

// tierReferenced reports whether any entry or obligation still names the
// counterpart.
func (s State) tierReferenced(name string) bool {
	for _, entries := range s.Entries {
		for _, e := range entries {
			if e.Counterpart == name {
				return true
			}
		}
	}
	for _, actuals := range s.Actuals {
		for _, a := range actuals {
			if a.Counterpart == name {
				return true
			}
		}
	}
	return false
}

// categoryReferenced reports whether any entry or obligation still uses
// the subcategory name.
func (s State) categoryReferenced(name string) bool {
	for _, entries := range s.Entries {
		for _, e := range entries {
			if e.Category == name {
				return true
			}
		}
	}
	for _, actuals := range s.Actuals {
		for _, a := range actuals {
			if a.Category == name {
				return true
			}
		}
	}
	return false
}
