package api

import (
	"net/http"

	"github.com/example/b2b-storefront/internal/api/middleware"
	"github.com/example/b2b-storefront/internal/session"
)

// CreateSession opens a catalog session. Grid and flow params in the query
// string seed it the way a bookmarked URL would.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	s := h.sessions.Create(r.Context(), userID, r.PathValue("empresa"), r.URL.Query())
	respondJSON(w, http.StatusCreated, s.View(r.Context(), nil))
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.View(r.Context(), r.URL.Query()))
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.PathValue("id"), middleware.GetUserID(r.Context())); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ReloadSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Reload(r.Context(), r.PathValue("id"), middleware.GetUserID(r.Context())); err != nil {
		respondErr(w, err)
		return
	}
	h.respondView(w, r)
}

// SelectLine accepts {"line": "LLANTAS"}; a null or empty line returns to
// line selection.
func (h *Handlers) SelectLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Line *string `json:"line"`
	}
	h.mutate(w, r, &req, func(s *session.Session) {
		line := ""
		if req.Line != nil {
			line = *req.Line
		}
		s.SelectLine(r.Context(), line)
	})
}

func (h *Handlers) SelectFilterValue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	h.mutate(w, r, &req, func(s *session.Session) {
		s.SelectFilterValue(r.Context(), req.Value)
	})
}

func (h *Handlers) GoToPreviousStep(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(s *session.Session) {
		s.GoToPreviousStep(r.Context())
	})
}

func (h *Handlers) GoToFilterStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StepID string `json:"stepId"`
	}
	h.mutate(w, r, &req, func(s *session.Session) {
		s.GoToFilterStep(r.Context(), req.StepID)
	})
}

func (h *Handlers) ApplyAdditionalFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	h.mutate(w, r, &req, func(s *session.Session) {
		s.ApplyAdditionalFilter(r.Context(), req.Key, req.Value)
	})
}

func (h *Handlers) ClearAdditionalFilter(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(s *session.Session) {
		s.ClearAdditionalFilter(r.Context(), r.PathValue("key"))
	})
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	h.mutate(w, r, &req, func(s *session.Session) {
		s.HandleSearchChange(r.Context(), req.Query)
	})
}

func (h *Handlers) RecordViewed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
	}
	s, ok := h.session(w, r)
	if !ok || !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		respondJSONError(w, "productId is required", http.StatusBadRequest)
		return
	}
	s.RecordViewed(r.Context(), req.ProductID)
	w.WriteHeader(http.StatusNoContent)
}

// mutate decodes the optional body into req, applies fn and responds with
// the new view.
func (h *Handlers) mutate(w http.ResponseWriter, r *http.Request, req any, fn func(*session.Session)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if req != nil && !decodeJSON(w, r, req) {
		return
	}
	fn(s)
	respondJSON(w, http.StatusOK, s.View(r.Context(), nil))
}

func (h *Handlers) respondView(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.View(r.Context(), nil))
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"), middleware.GetUserID(r.Context()))
	if err != nil {
		respondErr(w, err)
		return nil, false
	}
	return s, true
}
