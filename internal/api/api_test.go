package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-labs/finsight-go/internal/api"
	"github.com/finsight-labs/finsight-go/internal/config"
	"github.com/finsight-labs/finsight-go/internal/events"
	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/poll"
	"github.com/finsight-labs/finsight-go/internal/query"
	"github.com/finsight-labs/finsight-go/internal/remote"
	"github.com/finsight-labs/finsight-go/internal/settings"
)

type fakePredictor struct{}

func (fakePredictor) PredictSLA(ctx context.Context, req models.PredictionRequest) remote.Result[models.Prediction] {
	p, prob := 1, 0.87
	return remote.Success(models.Prediction{Prediction: &p, Probability: &prob, ModelVersion: "sla-v1"})
}

func (fakePredictor) PredictFailure(ctx context.Context, req models.PredictionRequest) remote.Result[models.Prediction] {
	return remote.Failure[models.Prediction]("model not loaded")
}

func (fakePredictor) DetectAnomaly(ctx context.Context, req models.PredictionRequest) remote.Result[models.Prediction] {
	a, score := 0, -0.12
	return remote.Success(models.Prediction{IsAnomaly: &a, AnomalyScore: &score, ModelVersion: "iforest-v2"})
}

type onlineStub bool

func (o onlineStub) Online() bool { return bool(o) }

type testEnv struct {
	srv          *httptest.Server
	store        *settings.Store
	backend      *config.MemStore
	dashCalls    atomic.Int32
	mu           sync.Mutex
	clientParams []query.Params
}

func (e *testEnv) clientCalls() []query.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]query.Params(nil), e.clientParams...)
}

// newTestEnv spins up a full router over real components with fake fetchers.
// Settings are not loaded unless load is true.
func newTestEnv(t *testing.T, load bool) *testEnv {
	t.Helper()
	return newTestEnvWith(t, load, config.NewMemStore())
}

func newTestEnvWith(t *testing.T, load bool, backend *config.MemStore) *testEnv {
	t.Helper()
	env := &testEnv{backend: backend}
	ctx := context.Background()

	bus := events.NewBus[events.Event]()
	settingsBus := events.NewBus[models.Settings]()
	presentation := settings.NewPresentation()
	env.store = settings.New(env.backend, presentation, settingsBus, nil)
	if load {
		env.store.Load(ctx)
	}

	fwdCtx, cancel := context.WithCancel(ctx)
	go events.Forward(fwdCtx, settingsBus, bus, "test-settings", api.EventSettings)
	require.Eventually(t, func() bool { return settingsBus.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	dashboard := poll.New(func(ctx context.Context) remote.Result[models.Dashboard] {
		n := env.dashCalls.Add(1)
		return remote.Success(models.Dashboard{KPIs: models.KPIs{TotalTransactions: int(n)}})
	}, poll.Options[models.Dashboard]{Name: "dashboard"})
	stopDash := dashboard.Start(ctx)
	dashboard.Wait()

	clients := query.New(func(ctx context.Context, p query.Params) remote.Result[[]models.Client] {
		env.mu.Lock()
		env.clientParams = append(env.clientParams, p)
		env.mu.Unlock()
		return remote.Success([]models.Client{{ClientID: p.Page + 1, Name: "Acme " + p.Search}})
	}, query.Options[models.Client]{Name: "clients", Debounce: time.Millisecond, Limit: 1})
	stopClients := clients.Start(ctx)
	clients.Wait()

	router := api.NewRouter(api.Deps{
		Version:      "test",
		BackendURL:   "http://localhost:8000/api/v1",
		Settings:     env.store,
		Presentation: presentation,
		Health:       onlineStub(true),
		Predictor:    fakePredictor{},
		Events:       bus,
		Dashboard:    api.FromPoller(dashboard),
		Clients:      api.FromController(clients),
	})
	env.srv = httptest.NewServer(router)
	t.Cleanup(func() {
		env.srv.Close()
		cancel()
		stopDash()
		stopClients()
		dashboard.Wait()
		clients.Wait()
	})
	return env
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// requireStatus fails the test if the response status doesn't match.
func requireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, expected, body)
	}
}

func requireError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	requireStatus(t, resp, status)
	var appErr models.AppError
	decodeJSON(t, resp, &appErr)
	assert.Equal(t, code, appErr.Code)
}

// --- Tests ---

func TestGetInfo(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "GET", "/api/info", "")
	requireStatus(t, resp, http.StatusOK)

	var info api.Info
	decodeJSON(t, resp, &info)
	assert.Equal(t, "test", info.Version)
	assert.Equal(t, "http://localhost:8000/api/v1", info.BackendURL)
	assert.True(t, info.BackendOnline)
}

func TestGetDashboardSnapshot(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "GET", "/api/dashboard", "")
	requireStatus(t, resp, http.StatusOK)

	var snap poll.Snapshot[models.Dashboard]
	decodeJSON(t, resp, &snap)
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.Data)
	assert.Equal(t, 1, snap.Data.KPIs.TotalTransactions)
}

func TestRefreshDashboard(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "POST", "/api/dashboard/refresh", "")
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		var snap poll.Snapshot[models.Dashboard]
		decodeJSON(t, do(t, env.srv, "GET", "/api/dashboard", ""), &snap)
		return snap.Data != nil && snap.Data.KPIs.TotalTransactions == 2
	}, time.Second, 5*time.Millisecond)
}

func TestUnconfiguredResource(t *testing.T) {
	env := newTestEnv(t, true)

	requireError(t, do(t, env.srv, "GET", "/api/risk", ""), http.StatusServiceUnavailable, "UNAVAILABLE")
	requireError(t, do(t, env.srv, "POST", "/api/transactions/page", `{"page":1}`), http.StatusServiceUnavailable, "UNAVAILABLE")
}

func TestGetSettings_NotLoaded(t *testing.T) {
	env := newTestEnv(t, false)

	resp := do(t, env.srv, "GET", "/api/settings", "")
	requireStatus(t, resp, http.StatusOK)
	var body api.SettingsResponse
	decodeJSON(t, resp, &body)
	assert.False(t, body.Loaded)

	requireError(t, do(t, env.srv, "PATCH", "/api/settings/theme/glow", `{"value":false}`), http.StatusConflict, "CONFLICT")
}

func TestPatchSetting_AccentColor(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "PATCH", "/api/settings/theme/accentColor", `{"value":"indigo"}`)
	requireStatus(t, resp, http.StatusOK)
	var body api.SettingsResponse
	decodeJSON(t, resp, &body)
	assert.True(t, body.Loaded)
	assert.Equal(t, models.AccentIndigo, body.Settings.Theme.AccentColor)
	assert.Empty(t, body.Warning)

	resp = do(t, env.srv, "GET", "/api/settings/theme/accentColor", "")
	requireStatus(t, resp, http.StatusOK)
	var leaf map[string]any
	decodeJSON(t, resp, &leaf)
	assert.Equal(t, "indigo", leaf["value"])

	assert.Equal(t, models.AccentIndigo, env.store.Settings().Theme.AccentColor)
	assert.Equal(t, 1, env.backend.Saves())
}

func TestPatchSetting_UpdatesPresentation(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "PATCH", "/api/settings/theme/reduceMotion", `{"value":true}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	resp = do(t, env.srv, "PATCH", "/api/settings/dashboard/blurIntensity", `{"value":"low"}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = do(t, env.srv, "GET", "/api/presentation", "")
	requireStatus(t, resp, http.StatusOK)
	var pres api.PresentationResponse
	decodeJSON(t, resp, &pres)
	assert.True(t, pres.ReduceMotion)
	assert.Equal(t, models.BlurLow, pres.BlurIntensity)
	assert.Equal(t, []string{"blur-intensity-low", "reduce-motion", "theme-glow-enabled"}, pres.Classes)
}

func TestPatchSetting_Errors(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown section", "/api/settings/layout/grid", `{"value":true}`, http.StatusNotFound, "NOT_FOUND"},
		{"unknown key", "/api/settings/theme/font", `{"value":"x"}`, http.StatusNotFound, "NOT_FOUND"},
		{"wrong kind", "/api/settings/theme/glow", `{"value":"yes"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"number for string", "/api/settings/data/currency", `{"value":5}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing value", "/api/settings/theme/glow", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"invalid json", "/api/settings/theme/glow", `{not json`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireError(t, do(t, env.srv, "PATCH", tt.path, tt.body), tt.status, tt.code)
		})
	}
	assert.Equal(t, models.DefaultSettings(), env.store.Settings())
	assert.Equal(t, 0, env.backend.Saves())
}

func TestPatchSetting_PersistWarning(t *testing.T) {
	backend := config.NewMemStore()
	backend.SaveErr = errors.New("disk full")
	env := newTestEnvWith(t, true, backend)

	resp := do(t, env.srv, "PATCH", "/api/settings/data/region", `{"value":"europe"}`)
	requireStatus(t, resp, http.StatusOK)
	var body api.SettingsResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "europe", body.Settings.Data.Region)
	assert.Contains(t, body.Warning, "disk full")
}

func TestResetSettings(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "PATCH", "/api/settings/data/timeRange", `{"value":"90d"}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = do(t, env.srv, "POST", "/api/settings/reset", "")
	requireStatus(t, resp, http.StatusOK)
	var body api.SettingsResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, models.DefaultSettings(), body.Settings)
}

func TestClientsSearchAndPage(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "POST", "/api/clients/search", `{"term":"acme"}`)
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		var st query.State[models.Client]
		decodeJSON(t, do(t, env.srv, "GET", "/api/clients", ""), &st)
		return !st.Loading && len(st.Results) == 1 && st.Results[0].Name == "Acme acme"
	}, time.Second, 5*time.Millisecond)

	resp = do(t, env.srv, "POST", "/api/clients/page", `{"move":"next"}`)
	requireStatus(t, resp, http.StatusAccepted)
	var st query.State[models.Client]
	decodeJSON(t, resp, &st)
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, "acme", st.SearchTerm)

	require.Eventually(t, func() bool {
		calls := env.clientCalls()
		return calls[len(calls)-1] == query.Params{Page: 1, Search: "acme", Limit: 1}
	}, time.Second, time.Millisecond)
}

func TestClientsPage_Invalid(t *testing.T) {
	env := newTestEnv(t, true)

	requireError(t, do(t, env.srv, "POST", "/api/clients/page", `{"page":-1}`), http.StatusBadRequest, "BAD_REQUEST")
	requireError(t, do(t, env.srv, "POST", "/api/clients/page", `{}`), http.StatusBadRequest, "BAD_REQUEST")
	requireError(t, do(t, env.srv, "POST", "/api/clients/page", `{"move":"sideways"}`), http.StatusBadRequest, "BAD_REQUEST")
	requireError(t, do(t, env.srv, "POST", "/api/clients/search", ""), http.StatusBadRequest, "BAD_REQUEST")
}

func TestPredict(t *testing.T) {
	env := newTestEnv(t, true)
	body := `{"amount":1200,"risk_rating":"High","region":"EU","hour_of_day":14,"transaction_type":"wire"}`

	resp := do(t, env.srv, "POST", "/api/predict/sla", body)
	requireStatus(t, resp, http.StatusOK)
	var res remote.Result[models.Prediction]
	decodeJSON(t, resp, &res)
	require.True(t, res.OK)
	require.NotNil(t, res.Value.Probability)
	assert.InDelta(t, 0.87, *res.Value.Probability, 1e-9)

	resp = do(t, env.srv, "POST", "/api/predict/failure", body)
	requireStatus(t, resp, http.StatusOK)
	res = remote.Result[models.Prediction]{}
	decodeJSON(t, resp, &res)
	assert.False(t, res.OK)
	assert.Equal(t, "model not loaded", res.Reason)

	requireError(t, do(t, env.srv, "POST", "/api/predict/churn", body), http.StatusNotFound, "NOT_FOUND")
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "GET", "/api/nonexistent", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, true)

	resp := do(t, env.srv, "OPTIONS", "/api/settings", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSSESubscribe(t *testing.T) {
	env := newTestEnv(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/subscribe", nil)
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusOK)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))

	type rawEvent struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	lines := make(chan rawEvent, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev rawEvent
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
				lines <- ev
			}
		}
		close(lines)
	}()

	next := func() rawEvent {
		select {
		case ev, ok := <-lines:
			require.True(t, ok, "stream closed")
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for SSE event")
		}
		return rawEvent{}
	}

	assert.Equal(t, api.EventSettings, next().Type)
	assert.Equal(t, api.EventDashboard, next().Type)

	patch := do(t, env.srv, "PATCH", "/api/settings/theme/accentColor", `{"value":"blue"}`)
	requireStatus(t, patch, http.StatusOK)
	patch.Body.Close()

	ev := next()
	require.Equal(t, api.EventSettings, ev.Type)
	var s models.Settings
	require.NoError(t, json.Unmarshal(ev.Data, &s))
	assert.Equal(t, models.AccentBlue, s.Theme.AccentColor)
}
