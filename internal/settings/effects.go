package settings

import (
	"slices"
	"sync"

	"github.com/finsight-labs/finsight-go/internal/models"
)

// Presentation flag names, matching the dashboard's global CSS classes.
const (
	FlagReduceMotion = "reduce-motion"
	FlagGlow         = "theme-glow-enabled"
	FlagBlurPrefix   = "blur-intensity-"
)

// Flags are the global presentation toggles derived from settings.
type Flags struct {
	ReduceMotion  bool   `json:"reduce_motion"`
	Glow          bool   `json:"glow"`
	BlurIntensity string `json:"blur_intensity"`
}

// DeriveFlags computes the presentation flags from settings alone.
func DeriveFlags(s models.Settings) Flags {
	return Flags{
		ReduceMotion:  s.Theme.ReduceMotion,
		Glow:          s.Theme.Glow,
		BlurIntensity: s.Dashboard.BlurIntensity,
	}
}

// Names returns the set of flag names that are on, sorted. Exactly one blur
// flag is always present.
func (f Flags) Names() []string {
	names := []string{FlagBlurPrefix + f.BlurIntensity}
	if f.ReduceMotion {
		names = append(names, FlagReduceMotion)
	}
	if f.Glow {
		names = append(names, FlagGlow)
	}
	slices.Sort(names)
	return names
}

// Presentation is the Effects sink that holds the current global
// presentation flags for renderers to read.
type Presentation struct {
	mu      sync.RWMutex
	flags   Flags
	applied int
}

// NewPresentation returns a sink holding the flags for default settings.
func NewPresentation() *Presentation {
	return &Presentation{flags: DeriveFlags(models.DefaultSettings())}
}

// Apply replaces the flags with those derived from s.
func (p *Presentation) Apply(s models.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flags = DeriveFlags(s)
	p.applied++
}

// Flags returns the current flags.
func (p *Presentation) Flags() Flags {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flags
}

// Applied returns how many times flags have been re-derived.
func (p *Presentation) Applied() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.applied
}

var _ Effects = (*Presentation)(nil)
