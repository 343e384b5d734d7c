// Package api serves the local dashboard API: synchronized snapshots,
// settings, paged lists, predictions and a server-sent event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/finsight-labs/finsight-go/internal/events"
	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/remote"
	"github.com/finsight-labs/finsight-go/internal/settings"
)

// maxBodyBytes bounds request bodies; every payload here is tiny.
const maxBodyBytes = 64 << 10

// SettingsService is the settings surface the handlers use.
type SettingsService interface {
	Loaded() bool
	Settings() models.Settings
	Get(section, key string) (any, *models.AppError)
	PersistError() error
	Update(ctx context.Context, section, key string, value any) (models.Settings, *models.AppError)
	Reset(ctx context.Context) (models.Settings, *models.AppError)
}

// FlagSource exposes the current presentation flags.
type FlagSource interface {
	Flags() settings.Flags
}

// Predictor forwards prediction requests to the ML service.
type Predictor interface {
	PredictSLA(ctx context.Context, req models.PredictionRequest) remote.Result[models.Prediction]
	PredictFailure(ctx context.Context, req models.PredictionRequest) remote.Result[models.Prediction]
	DetectAnomaly(ctx context.Context, req models.PredictionRequest) remote.Result[models.Prediction]
}

// EventBus is the interface for subscribing to the event stream.
type EventBus interface {
	Subscribe(id string) <-chan events.Event
	Unsubscribe(id string)
}

// OnlineChecker reports backend reachability.
type OnlineChecker interface {
	Online() bool
}

// Deps are the components behind the routes. Nil synchronizers and pagers
// make their routes answer 503.
type Deps struct {
	Version    string
	BackendURL string

	Settings     SettingsService
	Presentation FlagSource
	Health       OnlineChecker
	Predictor    Predictor
	Events       EventBus

	Dashboard  Synchronizer
	Operations Synchronizer
	Risk       Synchronizer

	Clients      Pager
	Transactions Pager
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	Deps
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// decodeBody decodes a JSON request body into v. An empty body is an error.
func decodeBody(r *http.Request, v any) *models.AppError {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return models.ErrBadRequest("request body is empty")
		}
		return models.ErrBadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

func unavailable(what string) *models.AppError {
	return models.ErrUnavailable(what + " is not configured")
}
