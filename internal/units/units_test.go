package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMillimetresToMetres(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.713, MillimetresToMetres(1713), 1e-9)
	assert.InDelta(t, -0.782, MillimetresToMetres(-782), 1e-9)
	assert.Zero(t, MillimetresToMetres(0))
}

func TestMetresToMillimetres(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1713, MetresToMillimetres(1.713))
	assert.Equal(t, 0, MetresToMillimetres(0))
}

func TestCentimetresPerSecondToMPS(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -0.16, CentimetresPerSecondToMPS(-16), 1e-9)
	assert.InDelta(t, 1.0, CentimetresPerSecondToMPS(100), 1e-9)
}
