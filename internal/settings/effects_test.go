package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/settings"
)

func TestDeriveFlags_ExactlyOneBlurFlag(t *testing.T) {
	for _, blur := range []string{models.BlurLow, models.BlurMedium, models.BlurHigh} {
		s := models.DefaultSettings()
		s.Dashboard.BlurIntensity = blur
		s.Theme.Glow = false

		names := settings.DeriveFlags(s).Names()
		assert.Equal(t, []string{"blur-intensity-" + blur}, names)
	}
}

func TestPresentation_ApplyIsIdempotent(t *testing.T) {
	p := settings.NewPresentation()
	s := models.DefaultSettings()
	s.Theme.ReduceMotion = true

	p.Apply(s)
	first := p.Flags()
	p.Apply(s)

	assert.Equal(t, first, p.Flags())
	assert.Equal(t, 2, p.Applied())
}

func TestPresentation_StartsWithDefaultFlags(t *testing.T) {
	p := settings.NewPresentation()
	assert.Equal(t, []string{"blur-intensity-high", "theme-glow-enabled"}, p.Flags().Names())
	assert.Equal(t, 0, p.Applied())
}
