package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/modelforge/paramd/internal/model"
	"github.com/modelforge/paramd/internal/params"
)

// parameterRequest is the write payload for create and update. The
// definition fields are inlined; updated_by names the author recorded
// in version history.
type parameterRequest struct {
	model.ParameterDefinition
	UpdatedBy string `json:"updated_by"`
}

// author fills the version-history author for requests that omit it.
func author(s string) string {
	if s == "" {
		return "api"
	}
	return s
}

// positionQuery reads the level and entity_id query parameters.
func positionQuery(r *http.Request) (model.Level, string, error) {
	level, err := model.ParseLevel(r.URL.Query().Get("level"))
	if err != nil {
		return "", "", err
	}
	entityID := r.URL.Query().Get("entity_id")
	if level == model.LevelSystem && entityID == "" {
		entityID = model.SystemEntityID
	}
	if entityID == "" {
		return "", "", eris.New("entity_id query parameter is required")
	}
	return level, entityID, nil
}

func (s *Server) handleListParameters(w http.ResponseWriter, r *http.Request) {
	level, entityID, err := positionQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	defs, err := s.deps.Store.ListForEntity(r.Context(), level, entityID)
	if err != nil {
		writeError(w, err)
		return
	}
	if defs == nil {
		defs = []model.ParameterDefinition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleCreateParameter(w http.ResponseWriter, r *http.Request) {
	var req parameterRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	created, err := s.deps.Service.Create(r.Context(), req.ParameterDefinition, author(req.UpdatedBy))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetParameter(w http.ResponseWriter, r *http.Request) {
	def, err := s.deps.Store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleUpdateParameter(w http.ResponseWriter, r *http.Request) {
	var req parameterRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.ID = chi.URLParam(r, "id")
	updated, err := s.deps.Service.Update(r.Context(), req.ParameterDefinition, author(req.UpdatedBy))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteParameter(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Service.DeleteByID(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleDeleteAtPosition deletes by (level, entity_id, name). Unlike the
// id-addressed delete it can name an inherited parameter, which is
// rejected with a 409 pointing at the owning level.
func (s *Server) handleDeleteAtPosition(w http.ResponseWriter, r *http.Request) {
	level, entityID, err := positionQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeBadRequest(w, "name query parameter is required")
		return
	}
	if err := s.deps.Service.Delete(r.Context(), level, entityID, name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// resolveResponse echoes the requested position alongside the effective
// parameter set.
type resolveResponse struct {
	Level      model.Level                `json:"level"`
	EntityID   string                     `json:"entity_id"`
	Parameters []model.EffectiveParameter `json:"parameters"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	level, entityID, err := positionQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		eff, err := s.deps.Resolver.ResolveOne(r.Context(), level, entityID, name)
		if err != nil {
			writeError(w, err)
			return
		}
		if eff == nil {
			writeError(w, params.NewNotFound("parameter", fmt.Sprintf("%s/%s/%s", level, entityID, name)))
			return
		}
		writeJSON(w, http.StatusOK, eff)
		return
	}
	effs, err := s.deps.Resolver.Resolve(r.Context(), level, entityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Level: level, EntityID: entityID, Parameters: effs})
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Store.GetByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	versions, err := s.deps.History.List(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if versions == nil {
		versions = []model.VersionRecord{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UpdatedBy string `json:"updated_by"`
	}
	// The body is optional; revert needs nothing beyond the path.
	_ = decodeBody(r, &body)
	reverted, err := s.deps.Service.Revert(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "versionID"), author(body.UpdatedBy))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reverted)
}

func (s *Server) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Edits     []params.BatchEdit `json:"edits"`
		UpdatedBy string             `json:"updated_by"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(req.Edits) == 0 {
		writeBadRequest(w, "edits must not be empty")
		return
	}
	if err := s.deps.Service.BatchUpdate(r.Context(), req.Edits, author(req.UpdatedBy)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(req.Edits)})
}

func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeBadRequest(w, "ids must not be empty")
		return
	}
	if err := s.deps.Service.BatchDelete(r.Context(), req.IDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}
