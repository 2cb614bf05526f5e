package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"trezo/internal/core"
	"trezo/internal/engine"
)

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.State())
}

type nameRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleAddProject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := s.planner.Execute(r.Context(), engine.AddProject{Name: req.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state.Projects)
}

func (s *Server) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := s.planner.Execute(r.Context(), engine.RenameProject{ProjectID: r.PathValue("id"), Name: req.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Projects)
}

func (s *Server) handleArchiveProject(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, true)
}

func (s *Server) handleRestoreProject(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, false)
}

func (s *Server) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	state, err := s.planner.Execute(r.Context(), engine.SetProjectArchived{ProjectID: r.PathValue("id"), Archived: archived})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Projects)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if _, err := s.planner.Execute(r.Context(), engine.DeleteProject{ProjectID: r.PathValue("id")}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSaveDefinition(w http.ResponseWriter, r *http.Request) {
	var entry core.BudgetEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	projectID := r.PathValue("id")
	state, err := s.planner.SaveDefinition(r.Context(), projectID, entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Entries []core.BudgetEntry `json:"entries"`
		Actuals []core.Obligation  `json:"actuals"`
	}{state.Entries[projectID], state.Actuals[projectID]})
}

func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	cmd := engine.DeleteDefinition{ProjectID: r.PathValue("id"), EntryID: r.PathValue("entryID")}
	if _, err := s.planner.Execute(r.Context(), cmd); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) findEntry(projectID, entryID string) (core.BudgetEntry, bool) {
	for _, e := range s.planner.State().Entries[projectID] {
		if e.ID == entryID {
			return e, true
		}
	}
	return core.BudgetEntry{}, false
}

func parseDateParam(r *http.Request, key string) (core.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return core.Date{}, err
	}
	return core.DateOf(t), nil
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.findEntry(r.PathValue("id"), r.PathValue("entryID"))
	if !ok {
		writeError(w, r, engine.ErrNotFound)
		return
	}
	until, err := parseDateParam(r, "until")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "until must be YYYY-MM-DD"})
		return
	}
	if until.IsEmpty() {
		until = core.DefaultHorizon(s.planner.Now())
	}
	occs := core.ExpandOccurrences(entry, until)
	if occs == nil {
		occs = []core.Occurrence{}
	}
	writeJSON(w, http.StatusOK, occs)
}

func (s *Server) handlePeriodAmount(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.findEntry(r.PathValue("id"), r.PathValue("entryID"))
	if !ok {
		writeError(w, r, engine.ErrNotFound)
		return
	}
	start, errStart := parseDateParam(r, "start")
	end, errEnd := parseDateParam(r, "end")
	if errStart != nil || errEnd != nil || start.IsEmpty() || end.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "start and end must be YYYY-MM-DD"})
		return
	}
	amount := core.AmountForPeriod(entry, start.Time, end.Time)
	writeJSON(w, http.StatusOK, struct {
		Start  core.Date  `json:"start"`
		End    core.Date  `json:"end"`
		Amount core.Money `json:"amount"`
	}{start, end, amount})
}

func (s *Server) handleRecordActual(w http.ResponseWriter, r *http.Request) {
	var actual core.Obligation
	if !decodeBody(w, r, &actual) {
		return
	}
	projectID := r.PathValue("id")
	state, err := s.planner.Execute(r.Context(), engine.RecordActual{ProjectID: projectID, Actual: actual})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Actuals[projectID])
}

func (s *Server) handleDeleteActual(w http.ResponseWriter, r *http.Request) {
	if _, err := s.planner.Execute(r.Context(), engine.DeleteActual{ActualID: r.PathValue("id")}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var payment core.PaymentRecord
	if !decodeBody(w, r, &payment) {
		return
	}
	state, err := s.planner.Execute(r.Context(), engine.RecordPayment{ActualID: r.PathValue("id"), Payment: payment})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Actuals)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	cmd := engine.DeletePayment{ActualID: r.PathValue("id"), PaymentID: r.PathValue("paymentID")}
	state, err := s.planner.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Actuals)
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var account core.CashAccount
	if !decodeBody(w, r, &account) {
		return
	}
	state, err := s.planner.Execute(r.Context(), engine.AddAccount{Account: account})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state.Accounts)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var account core.CashAccount
	if !decodeBody(w, r, &account) {
		return
	}
	account.ID = r.PathValue("id")
	state, err := s.planner.Execute(r.Context(), engine.UpdateAccount{Account: account})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Accounts)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if _, err := s.planner.Execute(r.Context(), engine.DeleteAccount{AccountID: r.PathValue("id")}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type tierRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

func (s *Server) handleAddTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := s.planner.Execute(r.Context(), engine.AddTier{Name: req.Name, Kind: req.Kind})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state.Tiers)
}

func (s *Server) handleRenameTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := s.planner.Execute(r.Context(), engine.RenameTier{TierID: r.PathValue("id"), Name: req.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Tiers)
}

func (s *Server) handleDeleteTier(w http.ResponseWriter, r *http.Request) {
	if _, err := s.planner.Execute(r.Context(), engine.DeleteTier{TierID: r.PathValue("id")}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func categoryKind(raw string) (core.Direction, bool) {
	switch strings.ToLower(raw) {
	case "revenue":
		return core.Inflow, true
	case "expense":
		return core.Outflow, true
	}
	return "", false
}

func (s *Server) handleAddSubCategory(w http.ResponseWriter, r *http.Request) {
	kind, ok := categoryKind(r.PathValue("kind"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "kind must be revenue or expense"})
		return
	}
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd := engine.AddSubCategory{Kind: kind, MainID: r.PathValue("mainID"), Name: req.Name}
	state, err := s.planner.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state.Categories)
}

func (s *Server) handleRenameSubCategory(w http.ResponseWriter, r *http.Request) {
	kind, ok := categoryKind(r.PathValue("kind"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "kind must be revenue or expense"})
		return
	}
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd := engine.RenameSubCategory{Kind: kind, SubID: r.PathValue("id"), Name: req.Name}
	state, err := s.planner.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Categories)
}

func (s *Server) handleDeleteSubCategory(w http.ResponseWriter, r *http.Request) {
	kind, ok := categoryKind(r.PathValue("kind"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "kind must be revenue or expense"})
		return
	}
	cmd := engine.DeleteSubCategory{Kind: kind, SubID: r.PathValue("id")}
	if _, err := s.planner.Execute(r.Context(), cmd); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleAddScenario(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd := engine.AddScenario{ProjectID: r.PathValue("id"), Name: req.Name, Description: req.Description}
	state, err := s.planner.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state.Scenarios)
}

func (s *Server) handleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd := engine.UpdateScenario{ScenarioID: r.PathValue("id"), Name: req.Name, Description: req.Description}
	state, err := s.planner.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Scenarios)
}

func (s *Server) handleToggleScenario(w http.ResponseWriter, r *http.Request) {
	state, err := s.planner.Execute(r.Context(), engine.ToggleScenarioVisibility{ScenarioID: r.PathValue("id")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Scenarios)
}

func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	if _, err := s.planner.Execute(r.Context(), engine.DeleteScenario{ScenarioID: r.PathValue("id")}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSaveScenarioDelta(w http.ResponseWriter, r *http.Request) {
	var entry core.BudgetEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	sid := r.PathValue("id")
	state, err := s.planner.Execute(r.Context(), engine.SaveScenarioDelta{ScenarioID: sid, Entry: entry})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.ScenarioDeltas[sid])
}

func (s *Server) handleDeleteScenarioDelta(w http.ResponseWriter, r *http.Request) {
	cmd := engine.DeleteScenarioDelta{
		ScenarioID: r.PathValue("id"),
		EntryID:    r.PathValue("entryID"),
	}
	state, err := s.planner.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.ScenarioDeltas[cmd.ScenarioID])
}

func (s *Server) handleEffectiveEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.planner.EffectiveEntries(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) projectionParams(r *http.Request) (engine.BucketUnit, int) {
	unit := s.defaultUnit
	if v := strings.TrimSpace(r.URL.Query().Get("unit")); v != "" {
		unit = engine.BucketUnit(v)
	}
	horizon := s.defaultHorizon
	if v := strings.TrimSpace(r.URL.Query().Get("horizon")); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			horizon = h
		}
	}
	return unit, horizon
}

func (s *Server) handleProjectPositions(w http.ResponseWriter, r *http.Request) {
	unit, horizon := s.projectionParams(r)
	if !unit.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown bucket unit"})
		return
	}
	proj, err := s.planner.Projection(r.PathValue("id"), unit, horizon)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (s *Server) handleScenarioPositions(w http.ResponseWriter, r *http.Request) {
	unit, horizon := s.projectionParams(r)
	if !unit.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown bucket unit"})
		return
	}
	proj, err := s.planner.ScenarioProjection(r.PathValue("id"), unit, horizon)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.Settings
	if !decodeBody(w, r, &settings) {
		return
	}
	state, err := s.planner.Execute(r.Context(), engine.UpdateSettings{Settings: settings})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Settings)
}
