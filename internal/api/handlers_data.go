package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finsight-labs/finsight-go/internal/models"
)

// Info describes this agent.
type Info struct {
	Version       string `json:"version"`
	BackendURL    string `json:"backend_url"`
	BackendOnline bool   `json:"backend_online"`
}

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	info := Info{Version: h.Version, BackendURL: h.BackendURL}
	if h.Health != nil {
		info.BackendOnline = h.Health.Online()
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) getSnapshot(s Synchronizer, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s == nil {
			writeError(w, unavailable(name))
			return
		}
		writeJSON(w, http.StatusOK, s.Current())
	}
}

// refresh triggers an out-of-band fetch and answers immediately; the new
// snapshot arrives on the event stream.
func (h *Handlers) refresh(s Synchronizer, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s == nil {
			writeError(w, unavailable(name))
			return
		}
		s.Refresh()
		writeJSON(w, http.StatusAccepted, s.Current())
	}
}

type searchRequest struct {
	Term string `json:"term"`
}

type pageRequest struct {
	Page *int   `json:"page"`
	Move string `json:"move,omitempty"` // "next" or "prev" instead of page
}

func (h *Handlers) getList(p Pager, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p == nil {
			writeError(w, unavailable(name))
			return
		}
		writeJSON(w, http.StatusOK, p.Current())
	}
}

func (h *Handlers) searchList(p Pager, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p == nil {
			writeError(w, unavailable(name))
			return
		}
		var req searchRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		p.SetSearchTerm(req.Term)
		writeJSON(w, http.StatusAccepted, p.Current())
	}
}

func (h *Handlers) pageList(p Pager, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p == nil {
			writeError(w, unavailable(name))
			return
		}
		var req pageRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		switch {
		case req.Move == "next":
			p.NextPage()
		case req.Move == "prev":
			p.PrevPage()
		case req.Move != "":
			writeError(w, models.ErrBadRequest(`move must be "next" or "prev"`))
			return
		case req.Page == nil:
			writeError(w, models.ErrBadRequest("page is required"))
			return
		case *req.Page < 0:
			writeError(w, models.ErrBadRequest("page must be >= 0"))
			return
		default:
			p.SetPage(*req.Page)
		}
		writeJSON(w, http.StatusAccepted, p.Current())
	}
}

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request) {
	if h.Predictor == nil {
		writeError(w, unavailable("prediction"))
		return
	}
	var req models.PredictionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	switch model := chi.URLParam(r, "model"); model {
	case "sla":
		writeJSON(w, http.StatusOK, h.Predictor.PredictSLA(r.Context(), req))
	case "failure":
		writeJSON(w, http.StatusOK, h.Predictor.PredictFailure(r.Context(), req))
	case "anomaly":
		writeJSON(w, http.StatusOK, h.Predictor.DetectAnomaly(r.Context(), req))
	default:
		writeError(w, models.ErrNotFound("unknown model "+model))
	}
}
