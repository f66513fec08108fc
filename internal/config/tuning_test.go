package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexar-systems/hexar/internal/track"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial file keeps defaults for omitted fields", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{"gating_distance": 3.5, "scan_interval": "50ms"}`)

		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 3.5, cfg.GetGatingDistance())
		assert.Equal(t, 50*time.Millisecond, cfg.GetScanInterval())
		assert.Equal(t, 8, cfg.GetMaxTargetsPerChannel())
		assert.Equal(t, 30*time.Second, cfg.GetPruneTimeout())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.yaml", `{}`)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, ".json")
	})

	t.Run("rejects missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{"gating_distance": `)
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{"max_targets_per_channel": 0}`)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, "max_targets_per_channel")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	floatPtr := func(v float64) *float64 { return &v }
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty config", TuningConfig{}, false},
		{"negative gating distance", TuningConfig{GatingDistance: floatPtr(-1)}, true},
		{"confidence floor above one", TuningConfig{ConfidenceFloor: floatPtr(1.5)}, true},
		{"risk threshold at one", TuningConfig{FallingRiskThreshold: floatPtr(1.0)}, true},
		{"risk threshold in range", TuningConfig{FallingRiskThreshold: floatPtr(0.5)}, false},
		{"negative measurement noise", TuningConfig{MeasurementNoise: floatPtr(-0.1)}, true},
		{"bad prune timeout", TuningConfig{PruneTimeout: strPtr("soon")}, true},
		{"good scan interval", TuningConfig{ScanInterval: strPtr("250ms")}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTrackerConfigResolution(t *testing.T) {
	t.Parallel()

	// An empty tuning config resolves to the stock tracker config.
	got := (&TuningConfig{}).TrackerConfig()
	want := track.Config{
		ChannelCount:         6,
		MaxTargetsPerChannel: 8,
		GatingDistance:       2.0,
		PruneTimeout:         30 * time.Second,
		ConfidenceFloor:      0.1,
		MaxCoastCycles:       10,
		Kalman: track.KalmanConfig{
			InitialCovariance: 100.0,
			ProcessNoise:      0.1,
			MeasurementNoise:  1.0,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolved config mismatch (-want +got):\n%s", diff)
	}
}

func TestFallDetectorResolution(t *testing.T) {
	t.Parallel()

	threshold := -8.0
	cfg := &TuningConfig{GravityThreshold: &threshold}
	d := cfg.FallDetector()

	assert.Equal(t, -8.0, d.GravityThreshold)
	assert.Equal(t, 2.0, d.VelocityThreshold)
	assert.Equal(t, 15.0, d.AccelerationThreshold)
	assert.Equal(t, 0.7, d.FallingRiskThreshold)
}
