// Package models defines the data structures shared by the FinSight agent.
// JSON field names match the dashboard frontend and the FinSight API exactly
// for wire compatibility.
package models

import "slices"

// Section names.
const (
	SectionTheme     = "theme"
	SectionDashboard = "dashboard"
	SectionData      = "data"
)

// Enum values for string-valued settings.
const (
	ModeDark  = "dark"
	ModeLight = "light"

	AccentTeal   = "teal"
	AccentBlue   = "blue"
	AccentIndigo = "indigo"

	BlurLow    = "low"
	BlurMedium = "medium"
	BlurHigh   = "high"

	Range24h = "24h"
	Range7d  = "7d"
	Range30d = "30d"
	Range90d = "90d"

	RegionAll  = "all"
	RegionNA   = "na"
	RegionEU   = "eu"
	RegionAPAC = "apac"

	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyGBP = "GBP"
)

// ThemeSettings controls visual appearance.
type ThemeSettings struct {
	Mode         string `json:"mode"` // "dark" | "light" (only dark is rendered today)
	Glow         bool   `json:"glow"`
	ReduceMotion bool   `json:"reduceMotion"`
	AccentColor  string `json:"accentColor"` // "teal" | "blue" | "indigo"
}

// DashboardSettings controls how the main board presents data.
type DashboardSettings struct {
	AnimatedCounters bool   `json:"animatedCounters"`
	ChartAnimations  bool   `json:"chartAnimations"`
	CompactMode      bool   `json:"compactMode"`
	BlurIntensity    string `json:"blurIntensity"` // "low" | "medium" | "high"
}

// DataSettings holds default filters and regional preferences.
type DataSettings struct {
	TimeRange string `json:"timeRange"` // "24h" | "7d" | "30d" | "90d"
	Region    string `json:"region"`    // "all" | "na" | "eu" | "apac"
	Currency  string `json:"currency"`  // "USD" | "EUR" | "GBP"
}

// Settings is the complete persisted configuration object.
// All fields are values, so a plain assignment is a full copy.
type Settings struct {
	Theme     ThemeSettings     `json:"theme"`
	Dashboard DashboardSettings `json:"dashboard"`
	Data      DataSettings      `json:"data"`
}

// DefaultSettings returns the settings used on first run and for backfilling
// leaves missing from persisted storage.
func DefaultSettings() Settings {
	return Settings{
		Theme: ThemeSettings{
			Mode:         ModeDark,
			Glow:         true,
			ReduceMotion: false,
			AccentColor:  AccentTeal,
		},
		Dashboard: DashboardSettings{
			AnimatedCounters: true,
			ChartAnimations:  true,
			CompactMode:      false,
			BlurIntensity:    BlurHigh,
		},
		Data: DataSettings{
			TimeRange: Range7d,
			Region:    RegionAll,
			Currency:  CurrencyUSD,
		},
	}
}

// Leaf describes one addressable settings value.
type Leaf struct {
	Section string
	Key     string
	Bool    bool     // true for toggles, false for string enums
	Domain  []string // declared values for string enums
}

// Path returns the dotted "section.key" form.
func (l Leaf) Path() string { return l.Section + "." + l.Key }

// InDomain reports whether v is one of the declared enum values.
// Toggles have no domain and always report true.
func (l Leaf) InDomain(v string) bool {
	if l.Bool {
		return true
	}
	return slices.Contains(l.Domain, v)
}

var leaves = []Leaf{
	{Section: SectionTheme, Key: "mode", Domain: []string{ModeDark, ModeLight}},
	{Section: SectionTheme, Key: "glow", Bool: true},
	{Section: SectionTheme, Key: "reduceMotion", Bool: true},
	{Section: SectionTheme, Key: "accentColor", Domain: []string{AccentTeal, AccentBlue, AccentIndigo}},
	{Section: SectionDashboard, Key: "animatedCounters", Bool: true},
	{Section: SectionDashboard, Key: "chartAnimations", Bool: true},
	{Section: SectionDashboard, Key: "compactMode", Bool: true},
	{Section: SectionDashboard, Key: "blurIntensity", Domain: []string{BlurLow, BlurMedium, BlurHigh}},
	{Section: SectionData, Key: "timeRange", Domain: []string{Range24h, Range7d, Range30d, Range90d}},
	{Section: SectionData, Key: "region", Domain: []string{RegionAll, RegionNA, RegionEU, RegionAPAC}},
	{Section: SectionData, Key: "currency", Domain: []string{CurrencyUSD, CurrencyEUR, CurrencyGBP}},
}

// Leaves returns every addressable settings leaf in declaration order.
func Leaves() []Leaf {
	return slices.Clone(leaves)
}

// LookupLeaf finds the leaf addressed by section and key.
func LookupLeaf(section, key string) (Leaf, bool) {
	for _, l := range leaves {
		if l.Section == section && l.Key == key {
			return l, true
		}
	}
	return Leaf{}, false
}

// field returns a pointer to the addressed leaf: *bool or *string.
func (s *Settings) field(section, key string) any {
	switch section {
	case SectionTheme:
		switch key {
		case "mode":
			return &s.Theme.Mode
		case "glow":
			return &s.Theme.Glow
		case "reduceMotion":
			return &s.Theme.ReduceMotion
		case "accentColor":
			return &s.Theme.AccentColor
		}
	case SectionDashboard:
		switch key {
		case "animatedCounters":
			return &s.Dashboard.AnimatedCounters
		case "chartAnimations":
			return &s.Dashboard.ChartAnimations
		case "compactMode":
			return &s.Dashboard.CompactMode
		case "blurIntensity":
			return &s.Dashboard.BlurIntensity
		}
	case SectionData:
		switch key {
		case "timeRange":
			return &s.Data.TimeRange
		case "region":
			return &s.Data.Region
		case "currency":
			return &s.Data.Currency
		}
	}
	return nil
}

// Get returns the value of one leaf (bool or string).
func (s Settings) Get(section, key string) (any, bool) {
	switch p := s.field(section, key).(type) {
	case *bool:
		return *p, true
	case *string:
		return *p, true
	}
	return nil, false
}

// Set replaces exactly one leaf. It fails if the leaf does not exist or the
// value is of the wrong kind. Enum values outside the declared domain are
// accepted as-is.
func (s *Settings) Set(section, key string, value any) *AppError {
	switch p := s.field(section, key).(type) {
	case *bool:
		b, ok := value.(bool)
		if !ok {
			return ErrBadRequest(section + "." + key + " expects a boolean")
		}
		*p = b
	case *string:
		str, ok := value.(string)
		if !ok {
			return ErrBadRequest(section + "." + key + " expects a string")
		}
		*p = str
	default:
		return ErrNotFound("unknown setting " + section + "." + key)
	}
	return nil
}

// OutOfDomain lists the enum leaves whose current value is not one of the
// declared values.
func (s Settings) OutOfDomain() []Leaf {
	var out []Leaf
	for _, l := range leaves {
		if l.Bool {
			continue
		}
		v, _ := s.Get(l.Section, l.Key)
		if !l.InDomain(v.(string)) {
			out = append(out, l)
		}
	}
	return out
}
