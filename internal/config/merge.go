package config

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"

	"github.com/finsight-labs/finsight-go/internal/models"
)

// MergeSettings deep-merges a persisted blob over models.DefaultSettings.
// Stored leaves win; absent leaves, absent sections and leaves of the wrong
// JSON kind fall back to the default. Enum values outside their declared
// domain are kept and only logged. An error means the blob is not a JSON
// object at all; callers fall back to defaults.
func MergeSettings(raw []byte, log *slog.Logger) (models.Settings, error) {
	if log == nil {
		log = slog.Default()
	}

	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		return models.DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}
	if stored == nil {
		return models.DefaultSettings(), fmt.Errorf("decode settings: not an object")
	}
	sanitize(stored, log)

	defaults, err := toMap(models.DefaultSettings())
	if err != nil {
		return models.DefaultSettings(), err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, ""), nil); err != nil {
		return models.DefaultSettings(), fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(confmap.Provider(stored, ""), nil); err != nil {
		return models.DefaultSettings(), fmt.Errorf("merge stored settings: %w", err)
	}

	var out models.Settings
	if err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return models.DefaultSettings(), fmt.Errorf("decode merged settings: %w", err)
	}

	for _, l := range out.OutOfDomain() {
		v, _ := out.Get(l.Section, l.Key)
		log.Warn("config: setting outside declared values, keeping", "setting", l.Path(), "value", v)
	}
	return out, nil
}

// sanitize drops stored sections that are not objects and stored leaves
// whose JSON kind differs from the default's, so the merge backfills them.
// Unknown keys are left alone.
func sanitize(stored map[string]any, log *slog.Logger) {
	for _, l := range models.Leaves() {
		secVal, ok := stored[l.Section]
		if !ok {
			continue
		}
		sec, ok := secVal.(map[string]any)
		if !ok {
			log.Warn("config: settings section is not an object, using defaults", "section", l.Section)
			delete(stored, l.Section)
			continue
		}
		v, ok := sec[l.Key]
		if !ok {
			continue
		}
		kindOK := false
		if l.Bool {
			_, kindOK = v.(bool)
		} else {
			_, kindOK = v.(string)
		}
		if !kindOK {
			log.Warn("config: setting has wrong type, using default", "setting", l.Path(), "value", v)
			delete(sec, l.Key)
		}
	}
}

func toMap(s models.Settings) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
