package settings_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-labs/finsight-go/internal/config"
	"github.com/finsight-labs/finsight-go/internal/events"
	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/settings"
)

func newLoadedStore(t *testing.T, backend config.Store) (*settings.Store, *settings.Presentation) {
	t.Helper()
	p := settings.NewPresentation()
	s := settings.New(backend, p, nil, nil)
	s.Load(context.Background())
	require.True(t, s.Loaded())
	return s, p
}

func persisted(t *testing.T, m *config.MemStore) models.Settings {
	t.Helper()
	raw, err := m.Load(context.Background())
	require.NoError(t, err)
	var out models.Settings
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestLoad_NothingPersistedYieldsDefaults(t *testing.T) {
	s := settings.New(config.NewMemStore(), nil, nil, nil)
	assert.False(t, s.Loaded())

	got := s.Load(context.Background())

	assert.True(t, s.Loaded())
	assert.Equal(t, models.DefaultSettings(), got)
	assert.Equal(t, models.DefaultSettings(), s.Settings())
}

func TestLoad_DeepMergesMissingSection(t *testing.T) {
	backend := config.NewMemStoreWith([]byte(`{"theme":{"mode":"dark","glow":false,"reduceMotion":true,"accentColor":"indigo"},"dashboard":{"animatedCounters":false,"chartAnimations":true,"compactMode":true,"blurIntensity":"medium"}}`))
	s, _ := newLoadedStore(t, backend)

	got := s.Settings()
	assert.Equal(t, models.DefaultSettings().Data, got.Data)
	assert.Equal(t, models.AccentIndigo, got.Theme.AccentColor)
	assert.True(t, got.Theme.ReduceMotion)
	assert.Equal(t, models.BlurMedium, got.Dashboard.BlurIntensity)
}

func TestLoad_CorruptFallsBackToDefaults(t *testing.T) {
	s, _ := newLoadedStore(t, config.NewMemStoreWith([]byte(`{not json`)))
	assert.Equal(t, models.DefaultSettings(), s.Settings())
}

type failingBackend struct{ config.MemStore }

func (f *failingBackend) Load(context.Context) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestLoad_ReadErrorIsNonFatal(t *testing.T) {
	s, _ := newLoadedStore(t, &failingBackend{})
	assert.Equal(t, models.DefaultSettings(), s.Settings())
	assert.EqualError(t, s.PersistError(), "disk on fire")
}

func TestLoad_OnlyOnce(t *testing.T) {
	backend := config.NewMemStoreWith([]byte(`{"data":{"currency":"EUR"}}`))
	s, _ := newLoadedStore(t, backend)

	require.NoError(t, backend.Save(context.Background(), []byte(`{"data":{"currency":"GBP"}}`)))
	got := s.Load(context.Background())

	assert.Equal(t, models.CurrencyEUR, got.Data.Currency)
}

func TestUpdate_BeforeLoadIsRejected(t *testing.T) {
	s := settings.New(config.NewMemStore(), nil, nil, nil)
	_, err := s.Update(context.Background(), "theme", "glow", false)
	require.NotNil(t, err)
	assert.Equal(t, 409, err.Status)
}

func TestUpdate_AccentColorLeavesOtherSectionsAtDefaults(t *testing.T) {
	backend := config.NewMemStore()
	s, _ := newLoadedStore(t, backend)

	got, err := s.Update(context.Background(), "theme", "accentColor", "indigo")
	require.Nil(t, err)

	v, getErr := s.Get("theme", "accentColor")
	require.Nil(t, getErr)
	assert.Equal(t, "indigo", v)

	def := models.DefaultSettings()
	assert.Equal(t, def.Dashboard, got.Dashboard)
	assert.Equal(t, def.Data, got.Data)
	assert.Equal(t, got, persisted(t, backend), "whole object written back")
}

func TestUpdate_SequenceHasNoCrossLeafCorruption(t *testing.T) {
	s, _ := newLoadedStore(t, config.NewMemStore())
	ctx := context.Background()

	type write struct {
		section, key string
		value        any
	}
	writes := []write{
		{"theme", "glow", false},
		{"data", "region", "eu"},
		{"dashboard", "compactMode", true},
		{"theme", "glow", true},
		{"data", "timeRange", "90d"},
		{"data", "region", "apac"},
		{"dashboard", "blurIntensity", "low"},
	}

	want := map[string]any{}
	for _, l := range models.Leaves() {
		v, _ := models.DefaultSettings().Get(l.Section, l.Key)
		want[l.Path()] = v
	}
	for _, w := range writes {
		_, err := s.Update(ctx, w.section, w.key, w.value)
		require.Nil(t, err)
		want[w.section+"."+w.key] = w.value

		for _, l := range models.Leaves() {
			got, getErr := s.Get(l.Section, l.Key)
			require.Nil(t, getErr)
			assert.Equal(t, want[l.Path()], got, l.Path())
		}
	}
}

func TestUpdate_RejectsUnknownLeafAndWrongKind(t *testing.T) {
	backend := config.NewMemStore()
	s, _ := newLoadedStore(t, backend)
	ctx := context.Background()

	_, err := s.Update(ctx, "theme", "fontSize", "12px")
	require.NotNil(t, err)
	assert.Equal(t, 404, err.Status)

	_, err = s.Update(ctx, "profile", "name", "x")
	require.NotNil(t, err)
	assert.Equal(t, 404, err.Status)

	_, err = s.Update(ctx, "theme", "glow", "yes")
	require.NotNil(t, err)
	assert.Equal(t, 400, err.Status)

	_, err = s.Update(ctx, "data", "currency", 3)
	require.NotNil(t, err)

	assert.Equal(t, models.DefaultSettings(), s.Settings())
	assert.Equal(t, 0, backend.Saves())
}

func TestUpdate_OutOfDomainValueAccepted(t *testing.T) {
	s, _ := newLoadedStore(t, config.NewMemStore())
	got, err := s.Update(context.Background(), "data", "currency", "JPY")
	require.Nil(t, err)
	assert.Equal(t, "JPY", got.Data.Currency)
}

func TestUpdate_PersistFailureKeepsInMemoryValue(t *testing.T) {
	backend := config.NewMemStore()
	s, _ := newLoadedStore(t, backend)
	backend.SaveErr = errors.New("quota exceeded")

	got, err := s.Update(context.Background(), "theme", "reduceMotion", true)
	require.Nil(t, err)
	assert.True(t, got.Theme.ReduceMotion)
	assert.True(t, s.Settings().Theme.ReduceMotion)
	assert.EqualError(t, s.PersistError(), "quota exceeded")

	backend.SaveErr = nil
	_, err = s.Update(context.Background(), "theme", "glow", false)
	require.Nil(t, err)
	assert.NoError(t, s.PersistError())
	assert.True(t, persisted(t, backend).Theme.ReduceMotion)
}

func TestReset_RestoresDefaults(t *testing.T) {
	backend := config.NewMemStore()
	s, _ := newLoadedStore(t, backend)
	ctx := context.Background()

	_, err := s.Update(ctx, "data", "currency", "EUR")
	require.Nil(t, err)
	got, err := s.Reset(ctx)
	require.Nil(t, err)

	assert.Equal(t, models.DefaultSettings(), got)
	assert.Equal(t, models.DefaultSettings(), persisted(t, backend))
}

func TestEffects_DerivedFromStateAfterLoadAndEveryUpdate(t *testing.T) {
	backend := config.NewMemStoreWith([]byte(`{"theme":{"reduceMotion":true,"glow":false},"dashboard":{"blurIntensity":"low"}}`))
	s, p := newLoadedStore(t, backend)
	ctx := context.Background()

	assert.Equal(t, 1, p.Applied())
	assert.Equal(t, []string{"blur-intensity-low", "reduce-motion"}, p.Flags().Names())

	_, err := s.Update(ctx, "theme", "glow", true)
	require.Nil(t, err)
	assert.Equal(t, []string{"blur-intensity-low", "reduce-motion", "theme-glow-enabled"}, p.Flags().Names())

	// Unrelated keys still re-apply, and the outcome is unchanged.
	_, err = s.Update(ctx, "data", "region", "na")
	require.Nil(t, err)
	assert.Equal(t, 3, p.Applied())
	assert.Equal(t, []string{"blur-intensity-low", "reduce-motion", "theme-glow-enabled"}, p.Flags().Names())

	_, err = s.Update(ctx, "dashboard", "blurIntensity", "high")
	require.Nil(t, err)
	_, err = s.Update(ctx, "theme", "reduceMotion", false)
	require.Nil(t, err)
	assert.Equal(t, []string{"blur-intensity-high", "theme-glow-enabled"}, p.Flags().Names())
	assert.Equal(t, settings.DeriveFlags(s.Settings()), p.Flags())
}

func TestChangesArePublished(t *testing.T) {
	bus := events.NewBus[models.Settings]()
	ch := bus.Subscribe("test")
	s := settings.New(config.NewMemStore(), nil, bus, nil)
	ctx := context.Background()

	s.Load(ctx)
	_, err := s.Update(ctx, "theme", "accentColor", "blue")
	require.Nil(t, err)

	for _, want := range []string{models.AccentTeal, models.AccentBlue} {
		select {
		case got := <-ch:
			assert.Equal(t, want, got.Theme.AccentColor)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for settings event")
		}
	}
}
