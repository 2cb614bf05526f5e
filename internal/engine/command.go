package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"trezo/internal/core"
)

// Command is one planner mutation. Apply must treat the input state as
// read-only and return a fresh snapshot on success.
type Command interface {
	Apply(s State) (State, []Event, error)
}

// Event is a side effect the service layer publishes after the new
// snapshot has been persisted.
type Event interface {
	EventName() string
}

// ProvisionCompleted fires when the final payment of a provision plan is
// settled in full.
type ProvisionCompleted struct {
	ProjectID    string     `json:"projectId"`
	BudgetID     string     `json:"budgetId"`
	ObligationID string     `json:"obligationId"`
	Counterpart  string     `json:"counterpart"`
	Description  string     `json:"description"`
	Amount       core.Money `json:"amount"`
}

func (ProvisionCompleted) EventName() string { return "provision.completed" }

// Apply runs a command against a snapshot.
func Apply(s State, cmd Command) (State, []Event, error) {
	return cmd.Apply(s)
}

// AddProject creates a project with an empty ledger.
type AddProject struct {
	Name string
}

func (c AddProject) Apply(s State) (State, []Event, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return s, nil, fmt.Errorf("add project: empty name")
	}
	p := core.Project{ID: uuid.NewString(), Name: name}
	s.Projects = append(append([]core.Project{}, s.Projects...), p)
	s = s.withEntries(p.ID, []core.BudgetEntry{})
	s = s.withActuals(p.ID, []core.Obligation{})
	return s, nil, nil
}

type RenameProject struct {
	ProjectID string
	Name      string
}

func (c RenameProject) Apply(s State) (State, []Event, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return s, nil, fmt.Errorf("rename project: empty name")
	}
	projects := append([]core.Project{}, s.Projects...)
	for i, p := range projects {
		if p.ID == c.ProjectID {
			projects[i].Name = name
			s.Projects = projects
			return s, nil, nil
		}
	}
	return s, nil, fmt.Errorf("rename project %s: %w", c.ProjectID, ErrNotFound)
}

// SetProjectArchived flips a project in or out of the archive. Archived
// projects keep their data but accept no further ledger commands.
type SetProjectArchived struct {
	ProjectID string
	Archived  bool
}

func (c SetProjectArchived) Apply(s State) (State, []Event, error) {
	projects := append([]core.Project{}, s.Projects...)
	for i, p := range projects {
		if p.ID == c.ProjectID {
			projects[i].IsArchived = c.Archived
			s.Projects = projects
			return s, nil, nil
		}
	}
	return s, nil, fmt.Errorf("archive project %s: %w", c.ProjectID, ErrNotFound)
}

// DeleteProject removes a project and everything keyed to it: entries,
// obligations, accounts, scenarios and their deltas.
type DeleteProject struct {
	ProjectID string
}

func (c DeleteProject) Apply(s State) (State, []Event, error) {
	if _, ok := s.project(c.ProjectID); !ok {
		return s, nil, fmt.Errorf("delete project %s: %w", c.ProjectID, ErrNotFound)
	}
	projects := make([]core.Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		if p.ID != c.ProjectID {
			projects = append(projects, p)
		}
	}
	s.Projects = projects

	entries := make(map[string][]core.BudgetEntry, len(s.Entries))
	for k, v := range s.Entries {
		if k != c.ProjectID {
			entries[k] = v
		}
	}
	s.Entries = entries

	actuals := make(map[string][]core.Obligation, len(s.Actuals))
	for k, v := range s.Actuals {
		if k != c.ProjectID {
			actuals[k] = v
		}
	}
	s.Actuals = actuals

	accounts := make([]core.CashAccount, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		if a.ProjectID != c.ProjectID {
			accounts = append(accounts, a)
		}
	}
	s.Accounts = accounts

	deltas := make(map[string][]core.ScenarioDelta, len(s.ScenarioDeltas))
	for k, v := range s.ScenarioDeltas {
		deltas[k] = v
	}
	scenarios := make([]core.Scenario, 0, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		if sc.ProjectID == c.ProjectID {
			delete(deltas, sc.ID)
			continue
		}
		scenarios = append(scenarios, sc)
	}
	s.Scenarios = scenarios
	s.ScenarioDeltas = deltas
	return s, nil, nil
}

// AddAccount registers a cash account on a project.
type AddAccount struct {
	Account core.CashAccount
}

func (c AddAccount) Apply(s State) (State, []Event, error) {
	a := c.Account
	if err := a.Validate(); err != nil {
		return s, nil, fmt.Errorf("add account: %w", err)
	}
	if _, ok := s.project(a.ProjectID); !ok {
		return s, nil, fmt.Errorf("add account: project %s: %w", a.ProjectID, ErrNotFound)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.Accounts = append(append([]core.CashAccount{}, s.Accounts...), a)
	return s, nil, nil
}

type UpdateAccount struct {
	Account core.CashAccount
}

func (c UpdateAccount) Apply(s State) (State, []Event, error) {
	if err := c.Account.Validate(); err != nil {
		return s, nil, fmt.Errorf("update account: %w", err)
	}
	accounts := append([]core.CashAccount{}, s.Accounts...)
	for i, a := range accounts {
		if a.ID == c.Account.ID {
			updated := c.Account
			updated.ProjectID = a.ProjectID
			accounts[i] = updated
			s.Accounts = accounts
			return s, nil, nil
		}
	}
	return s, nil, fmt.Errorf("update account %s: %w", c.Account.ID, ErrNotFound)
}

// DeleteAccount refuses to remove an account that payment records still
// reference; history must stay resolvable.
type DeleteAccount struct {
	AccountID string
}

func (c DeleteAccount) Apply(s State) (State, []Event, error) {
	if s.accountReferenced(c.AccountID) {
		return s, nil, fmt.Errorf("delete account %s: %w", c.AccountID, ErrStillReferenced)
	}
	accounts := make([]core.CashAccount, 0, len(s.Accounts))
	found := false
	for _, a := range s.Accounts {
		if a.ID == c.AccountID {
			found = true
			continue
		}
		accounts = append(accounts, a)
	}
	if !found {
		return s, nil, fmt.Errorf("delete account %s: %w", c.AccountID, ErrNotFound)
	}
	s.Accounts = accounts
	return s, nil, nil
}

// AddTier registers a counterpart in the directory. Adding an existing
// name (case-insensitive) is a no-op.
type AddTier struct {
	Name string
	Kind string
}

func (c AddTier) Apply(s State) (State, []Event, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return s, nil, fmt.Errorf("add tier: empty name")
	}
	return registerTier(s, name, c.Kind), nil, nil
}

// RenameTier renames a counterpart and rewrites every entry and
// obligation that references the old name.
type RenameTier struct {
	TierID string
	Name   string
}

func (c RenameTier) Apply(s State) (State, []Event, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return s, nil, fmt.Errorf("rename tier: empty name")
	}
	tiers := append([]core.Tier{}, s.Tiers...)
	oldName := ""
	for i, t := range tiers {
		if t.ID == c.TierID {
			oldName = t.Name
			tiers[i].Name = name
		}
	}
	if oldName == "" {
		return s, nil, fmt.Errorf("rename tier %s: %w", c.TierID, ErrNotFound)
	}
	s.Tiers = tiers
	for pid, entries := range s.Entries {
		touched := false
		next := append([]core.BudgetEntry{}, entries...)
		for i, e := range next {
			if e.Counterpart == oldName {
				next[i].Counterpart = name
				touched = true
			}
		}
		if touched {
			s = s.withEntries(pid, next)
		}
	}
	for pid, actuals := range s.Actuals {
		touched := false
		next := append([]core.Obligation{}, actuals...)
		for i, a := range next {
			if a.Counterpart == oldName {
				next[i].Counterpart = name
				touched = true
			}
		}
		if touched {
			s = s.withActuals(pid, next)
		}
	}
	return s, nil, nil
}

type DeleteTier struct {
	TierID string
}

func (c DeleteTier) Apply(s State) (State, []Event, error) {
	tiers := make([]core.Tier, 0, len(s.Tiers))
	found := false
	for _, t := range s.Tiers {
		if t.ID == c.TierID {
			if s.tierReferenced(t.Name) {
				return s, nil, fmt.Errorf("delete tier %q: %w", t.Name, ErrStillReferenced)
			}
			found = true
			continue
		}
		tiers = append(tiers, t)
	}
	if !found {
		return s, nil, fmt.Errorf("delete tier %s: %w", c.TierID, ErrNotFound)
	}
	s.Tiers = tiers
	return s, nil, nil
}

// AddSubCategory appends a subcategory under a main category of the
// revenue or expense tree.
type AddSubCategory struct {
	Kind   core.Direction
	MainID string
	Name   string
}

func (c AddSubCategory) Apply(s State) (State, []Event, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return s, nil, fmt.Errorf("add category: %w", core.ErrEmptyCategory)
	}
	tree, mains := s.Categories, s.Categories.Expense
	if c.Kind == core.Inflow {
		mains = tree.Revenue
	}
	next := append([]core.Category{}, mains...)
	for i, main := range next {
		if main.ID != c.MainID {
			continue
		}
		for _, sub := range main.Sub {
			if strings.EqualFold(sub.Name, name) {
				return s, nil, nil
			}
		}
		subs := append([]core.SubCategory{}, main.Sub...)
		next[i].Sub = append(subs, core.SubCategory{ID: uuid.NewString(), Name: name})
		if c.Kind == core.Inflow {
			tree.Revenue = next
		} else {
			tree.Expense = next
		}
		s.Categories = tree
		return s, nil, nil
	}
	return s, nil, fmt.Errorf("add category: main %s: %w", c.MainID, ErrNotFound)
}

// RenameSubCategory renames a subcategory and rewrites every entry and
// obligation carrying the old name.
type RenameSubCategory struct {
	Kind  core.Direction
	SubID string
	Name  string
}

func (c RenameSubCategory) Apply(s State) (State, []Event, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return s, nil, fmt.Errorf("rename category: %w", core.ErrEmptyCategory)
	}
	tree, mains := s.Categories, s.Categories.Expense
	if c.Kind == core.Inflow {
		mains = tree.Revenue
	}
	next := append([]core.Category{}, mains...)
	oldName := ""
	for i, main := range next {
		for j, sub := range main.Sub {
			if sub.ID == c.SubID {
				oldName = sub.Name
				subs := append([]core.SubCategory{}, main.Sub...)
				subs[j].Name = name
				next[i].Sub = subs
			}
		}
	}
	if oldName == "" {
		return s, nil, fmt.Errorf("rename category %s: %w", c.SubID, ErrNotFound)
	}
	if c.Kind == core.Inflow {
		tree.Revenue = next
	} else {
		tree.Expense = next
	}
	s.Categories = tree
	for pid, entries := range s.Entries {
		touched := false
		nextEntries := append([]core.BudgetEntry{}, entries...)
		for i, e := range nextEntries {
			if e.Category == oldName {
				nextEntries[i].Category = name
				touched = true
			}
		}
		if touched {
			s = s.withEntries(pid, nextEntries)
		}
	}
	for pid, actuals := range s.Actuals {
		touched := false
		nextActuals := append([]core.Obligation{}, actuals...)
		for i, a := range nextActuals {
			if a.Category == oldName {
				nextActuals[i].Category = name
				touched = true
			}
		}
		if touched {
			s = s.withActuals(pid, nextActuals)
		}
	}
	return s, nil, nil
}

type DeleteSubCategory struct {
	Kind  core.Direction
	SubID string
}

func (c DeleteSubCategory) Apply(s State) (State, []Event, error) {
	tree, mains := s.Categories, s.Categories.Expense
	if c.Kind == core.Inflow {
		mains = tree.Revenue
	}
	next := append([]core.Category{}, mains...)
	for i, main := range next {
		for j, sub := range main.Sub {
			if sub.ID != c.SubID {
				continue
			}
			if s.categoryReferenced(sub.Name) {
				return s, nil, fmt.Errorf("delete category %q: %w", sub.Name, ErrStillReferenced)
			}
			subs := append([]core.SubCategory{}, main.Sub[:j]...)
			next[i].Sub = append(subs, main.Sub[j+1:]...)
			if c.Kind == core.Inflow {
				tree.Revenue = next
			} else {
				tree.Expense = next
			}
			s.Categories = tree
			return s, nil, nil
		}
	}
	return s, nil, fmt.Errorf("delete category %s: %w", c.SubID, ErrNotFound)
}

// UpdateSettings replaces display and projection preferences.
type UpdateSettings struct {
	Settings core.Settings
}

func (c UpdateSettings) Apply(s State) (State, []Event, error) {
	if c.Settings.HorizonLength <= 0 {
		return s, nil, fmt.Errorf("update settings: horizon length must be positive")
	}
	s.Settings = c.Settings
	return s, nil, nil
}
