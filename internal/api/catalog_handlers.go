package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modelforge/paramd/internal/hierarchy"
	"github.com/modelforge/paramd/internal/model"
	"github.com/modelforge/paramd/internal/params"
)

// levelInfo is one row of the levels listing: the level, its rank in
// the hierarchy, and its parent (absent for system).
type levelInfo struct {
	Level  model.Level  `json:"level"`
	Rank   int          `json:"rank"`
	Parent *model.Level `json:"parent,omitempty"`
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	levels := model.Levels()
	out := make([]levelInfo, 0, len(levels))
	for _, l := range levels {
		info := levelInfo{Level: l, Rank: l.Rank()}
		if p, ok := model.ParentOf(l); ok {
			info.Parent = &p
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.deps.Store.ListTemplates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if tpls == nil {
		tpls = []model.Template{}
	}
	writeJSON(w, http.StatusOK, tpls)
}

func (s *Server) handleUpsertTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl model.Template
	if err := decodeBody(r, &tpl); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := tpl.Check(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	stored, err := s.deps.Store.UpsertTemplate(r.Context(), &tpl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// handleApplyTemplate binds a template to a position. Level, entity_id,
// strategy, and updated_by all come from the query string; the applier
// reports per-parameter outcomes rather than failing wholesale.
func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	level, entityID, err := positionQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	strategy, err := model.ParseApplyStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	result, err := s.deps.Applier.Apply(r.Context(), chi.URLParam(r, "id"),
		level, entityID, strategy, author(r.URL.Query().Get("updated_by")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Clean())
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	var filter params.EntityFilter
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, err := model.ParseLevel(raw)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		filter.Level = &level
	}
	filter.ParentID = r.URL.Query().Get("parent_id")

	entities, err := s.deps.Catalog.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if entities == nil {
		entities = []model.Entity{}
	}
	writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleRegisterEntity(w http.ResponseWriter, r *http.Request) {
	var e model.Entity
	if err := decodeBody(r, &e); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := hierarchy.ValidateEntity(e); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.deps.Catalog.Register(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}
