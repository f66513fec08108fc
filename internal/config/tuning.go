// Package config loads the engine tuning parameters. All fields are
// pointers so partial JSON files are safe: anything omitted keeps its
// default via the Get* accessors. The engine reads the configuration once
// at startup and never re-derives these values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hexar-systems/hexar/internal/track"
)

// TuningConfig is the root tuning schema. The same JSON shape is returned
// by the /api/config endpoint so a saved response round-trips as a config
// file.
type TuningConfig struct {
	// Acquisition
	ChannelCount *int    `json:"channel_count,omitempty"`
	ScanInterval *string `json:"scan_interval,omitempty"` // duration string like "100ms"

	// Tracker lifecycle
	MaxTargetsPerChannel *int     `json:"max_targets_per_channel,omitempty"`
	PruneTimeout         *string  `json:"prune_timeout,omitempty"` // duration string like "30s"
	GatingDistance       *float64 `json:"gating_distance,omitempty"`
	ConfidenceFloor      *float64 `json:"confidence_floor,omitempty"`
	MaxCoastCycles       *int     `json:"max_coast_cycles,omitempty"`

	// Filter noise
	ProcessNoise      *float64 `json:"process_noise,omitempty"`
	MeasurementNoise  *float64 `json:"measurement_noise,omitempty"`
	InitialCovariance *float64 `json:"initial_covariance,omitempty"`

	// Fall detection thresholds
	GravityThreshold      *float64 `json:"gravity_threshold,omitempty"`
	VelocityThreshold     *float64 `json:"velocity_threshold,omitempty"`
	AccelerationThreshold *float64 `json:"acceleration_threshold,omitempty"`
	FallingRiskThreshold  *float64 `json:"falling_risk_threshold,omitempty"`
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The path must
// have a .json extension and the file must be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.ChannelCount != nil && *c.ChannelCount <= 0 {
		return fmt.Errorf("channel_count must be positive, got %d", *c.ChannelCount)
	}
	if c.MaxTargetsPerChannel != nil && *c.MaxTargetsPerChannel <= 0 {
		return fmt.Errorf("max_targets_per_channel must be positive, got %d", *c.MaxTargetsPerChannel)
	}
	if c.GatingDistance != nil && *c.GatingDistance <= 0 {
		return fmt.Errorf("gating_distance must be positive, got %f", *c.GatingDistance)
	}
	if c.ConfidenceFloor != nil && (*c.ConfidenceFloor < 0 || *c.ConfidenceFloor > 1) {
		return fmt.Errorf("confidence_floor must be between 0 and 1, got %f", *c.ConfidenceFloor)
	}
	if c.FallingRiskThreshold != nil && (*c.FallingRiskThreshold <= 0 || *c.FallingRiskThreshold >= 1) {
		return fmt.Errorf("falling_risk_threshold must be in (0,1), got %f", *c.FallingRiskThreshold)
	}
	if c.MeasurementNoise != nil && *c.MeasurementNoise < 0 {
		return fmt.Errorf("measurement_noise must be non-negative, got %f", *c.MeasurementNoise)
	}
	if c.PruneTimeout != nil && *c.PruneTimeout != "" {
		if _, err := time.ParseDuration(*c.PruneTimeout); err != nil {
			return fmt.Errorf("invalid prune_timeout '%s': %w", *c.PruneTimeout, err)
		}
	}
	if c.ScanInterval != nil && *c.ScanInterval != "" {
		if _, err := time.ParseDuration(*c.ScanInterval); err != nil {
			return fmt.Errorf("invalid scan_interval '%s': %w", *c.ScanInterval, err)
		}
	}
	return nil
}

// GetChannelCount returns the channel_count value or the default.
func (c *TuningConfig) GetChannelCount() int {
	if c.ChannelCount == nil {
		return 6
	}
	return *c.ChannelCount
}

// GetScanInterval parses and returns the scan interval as a time.Duration.
func (c *TuningConfig) GetScanInterval() time.Duration {
	if c.ScanInterval == nil || *c.ScanInterval == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.ScanInterval)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetMaxTargetsPerChannel returns the per-channel capacity or the default.
func (c *TuningConfig) GetMaxTargetsPerChannel() int {
	if c.MaxTargetsPerChannel == nil {
		return 8
	}
	return *c.MaxTargetsPerChannel
}

// GetPruneTimeout parses and returns the prune timeout as a time.Duration.
func (c *TuningConfig) GetPruneTimeout() time.Duration {
	if c.PruneTimeout == nil || *c.PruneTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.PruneTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetGatingDistance returns the gating_distance value or the default.
func (c *TuningConfig) GetGatingDistance() float64 {
	if c.GatingDistance == nil {
		return 2.0
	}
	return *c.GatingDistance
}

// GetConfidenceFloor returns the confidence_floor value or the default.
func (c *TuningConfig) GetConfidenceFloor() float64 {
	if c.ConfidenceFloor == nil {
		return 0.1
	}
	return *c.ConfidenceFloor
}

// GetMaxCoastCycles returns the max_coast_cycles value or the default.
func (c *TuningConfig) GetMaxCoastCycles() int {
	if c.MaxCoastCycles == nil {
		return 10
	}
	return *c.MaxCoastCycles
}

// GetProcessNoise returns the process_noise value or the default.
func (c *TuningConfig) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return 0.1
	}
	return *c.ProcessNoise
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 1.0
	}
	return *c.MeasurementNoise
}

// GetInitialCovariance returns the initial_covariance value or the default.
func (c *TuningConfig) GetInitialCovariance() float64 {
	if c.InitialCovariance == nil {
		return 100.0
	}
	return *c.InitialCovariance
}

// GetGravityThreshold returns the gravity_threshold value or the default.
func (c *TuningConfig) GetGravityThreshold() float64 {
	if c.GravityThreshold == nil {
		return -9.5
	}
	return *c.GravityThreshold
}

// GetVelocityThreshold returns the velocity_threshold value or the default.
func (c *TuningConfig) GetVelocityThreshold() float64 {
	if c.VelocityThreshold == nil {
		return 2.0
	}
	return *c.VelocityThreshold
}

// GetAccelerationThreshold returns the acceleration_threshold value or the default.
func (c *TuningConfig) GetAccelerationThreshold() float64 {
	if c.AccelerationThreshold == nil {
		return 15.0
	}
	return *c.AccelerationThreshold
}

// GetFallingRiskThreshold returns the falling_risk_threshold value or the default.
func (c *TuningConfig) GetFallingRiskThreshold() float64 {
	if c.FallingRiskThreshold == nil {
		return 0.7
	}
	return *c.FallingRiskThreshold
}

// TrackerConfig resolves the tuning values into a track.Config.
func (c *TuningConfig) TrackerConfig() track.Config {
	return track.Config{
		ChannelCount:         c.GetChannelCount(),
		MaxTargetsPerChannel: c.GetMaxTargetsPerChannel(),
		GatingDistance:       c.GetGatingDistance(),
		PruneTimeout:         c.GetPruneTimeout(),
		ConfidenceFloor:      c.GetConfidenceFloor(),
		MaxCoastCycles:       c.GetMaxCoastCycles(),
		Kalman: track.KalmanConfig{
			InitialCovariance: c.GetInitialCovariance(),
			ProcessNoise:      c.GetProcessNoise(),
			MeasurementNoise:  c.GetMeasurementNoise(),
		},
	}
}

// FallDetector resolves the tuning values into a track.FallDetector.
func (c *TuningConfig) FallDetector() *track.FallDetector {
	return &track.FallDetector{
		GravityThreshold:      c.GetGravityThreshold(),
		VelocityThreshold:     c.GetVelocityThreshold(),
		AccelerationThreshold: c.GetAccelerationThreshold(),
		FallingRiskThreshold:  c.GetFallingRiskThreshold(),
	}
}
