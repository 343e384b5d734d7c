package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/settings"
)

// SettingsResponse is the body of every settings route.
type SettingsResponse struct {
	Loaded   bool            `json:"loaded"`
	Settings models.Settings `json:"settings"`
	Warning  string          `json:"warning,omitempty"`
}

type settingRequest struct {
	Value json.RawMessage `json:"value"`
}

func (h *Handlers) settingsResponse(s models.Settings) SettingsResponse {
	resp := SettingsResponse{Loaded: h.Settings.Loaded(), Settings: s}
	if err := h.Settings.PersistError(); err != nil {
		resp.Warning = "settings could not be saved: " + err.Error()
	}
	return resp
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	if h.Settings == nil {
		writeError(w, unavailable("settings"))
		return
	}
	writeJSON(w, http.StatusOK, h.settingsResponse(h.Settings.Settings()))
}

func (h *Handlers) getSetting(w http.ResponseWriter, r *http.Request) {
	if h.Settings == nil {
		writeError(w, unavailable("settings"))
		return
	}
	v, appErr := h.Settings.Get(chi.URLParam(r, "section"), chi.URLParam(r, "key"))
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": v})
}

func (h *Handlers) setSetting(w http.ResponseWriter, r *http.Request) {
	if h.Settings == nil {
		writeError(w, unavailable("settings"))
		return
	}
	var req settingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Value) == 0 || string(req.Value) == "null" {
		writeError(w, models.ErrBadRequest("value is required"))
		return
	}
	var value any
	if err := json.Unmarshal(req.Value, &value); err != nil {
		writeError(w, models.ErrBadRequest("invalid value: "+err.Error()))
		return
	}

	s, appErr := h.Settings.Update(r.Context(), chi.URLParam(r, "section"), chi.URLParam(r, "key"), value)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, h.settingsResponse(s))
}

func (h *Handlers) resetSettings(w http.ResponseWriter, r *http.Request) {
	if h.Settings == nil {
		writeError(w, unavailable("settings"))
		return
	}
	s, appErr := h.Settings.Reset(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, h.settingsResponse(s))
}

// PresentationResponse lists the presentation flags and the class names
// that are currently on.
type PresentationResponse struct {
	settings.Flags
	Classes []string `json:"classes"`
}

func (h *Handlers) getPresentation(w http.ResponseWriter, r *http.Request) {
	if h.Presentation == nil {
		writeError(w, unavailable("presentation"))
		return
	}
	f := h.Presentation.Flags()
	writeJSON(w, http.StatusOK, PresentationResponse{Flags: f, Classes: f.Names()})
}
